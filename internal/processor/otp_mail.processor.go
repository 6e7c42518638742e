package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/expense-tracker/internal/mailer"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/prom"
)

// ErrSkipped marks a message acknowledged without delivery.
var ErrSkipped = errors.New("message skipped")

type OTPMailConfig struct {
	From    string
	AppName string
}

// OTPMailProcessor delivers password reset codes.
type OTPMailProcessor struct {
	mailer      mailer.Mailer
	idempotency *IdempotencyService
	config      OTPMailConfig
	now         func() time.Time
}

func NewOTPMailProcessor(m mailer.Mailer, idempotency *IdempotencyService, config OTPMailConfig) *OTPMailProcessor {
	return &OTPMailProcessor{
		mailer:      m,
		idempotency: idempotency,
		config:      config,
		now:         time.Now,
	}
}

func (p *OTPMailProcessor) GetType() string {
	return model.MailKindPasswordResetOTP
}

func (p *OTPMailProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.OTPMail
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// retried until it lands in the dead letter queue
		logger.Error("failed to unmarshal otp mail", "message_id", msg.ID, "error", err)
		prom.AddMailDispatch("invalid", p.mailer.Name(), 0)
		return fmt.Errorf("invalid otp mail payload: %w", err)
	}

	if job.Kind != "" && job.Kind != model.MailKindPasswordResetOTP {
		logger.Warn("unexpected mail kind", "message_id", msg.ID, "kind", job.Kind)
		return ErrSkipped
	}

	// a code nobody can use any more is not worth sending
	expiresAt := job.RequestedAt.Add(time.Duration(job.ExpireMinutes) * time.Minute)
	if !job.RequestedAt.IsZero() && !p.now().Before(expiresAt) {
		logger.Info("otp expired before delivery, dropping", "job_id", job.ID, "expired_at", expiresAt)
		prom.AddMailDispatch("expired", p.mailer.Name(), 0)
		return ErrSkipped
	}

	jobID := job.ID.String()
	pc, err := p.idempotency.AcquireProcessingLock(ctx, jobID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("otp mail already sent, skipping", "job_id", jobID)
		return ErrSkipped
	case err != nil:
		return err
	}
	defer p.idempotency.ReleaseLock(ctx, pc)

	out, err := mailer.RenderOTP(p.config.From, job.To, mailer.OTPContent{
		FirstName:     job.FirstName,
		OTP:           job.OTP,
		ExpireMinutes: job.ExpireMinutes,
		AppName:       p.config.AppName,
	})
	if err != nil {
		return err
	}
	out.ID = jobID

	start := time.Now()
	err = p.mailer.Send(ctx, out)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		prom.AddMailDispatch("failed", p.mailer.Name(), elapsed)
		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Error("failed to mark failure", "job_id", jobID, "error", markErr)
		}
		return fmt.Errorf("send otp mail: %w", err)
	}

	prom.AddMailDispatch("sent", p.mailer.Name(), elapsed)
	logger.Info("otp mail sent", "job_id", jobID, "attempt", msg.Attempts, "driver", p.mailer.Name())

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		// the mail is out; a redelivery may duplicate it
		logger.Error("failed to mark success", "job_id", jobID, "error", err)
	}
	return nil
}
