package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type DeliveryStatus string

const (
	StatusAccepted DeliveryStatus = "ACCEPTED"
	StatusRejected DeliveryStatus = "REJECTED"
)

// SendMailRequest mirrors the body posted by the relay mailer.
type SendMailRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	From      string `json:"from"`
	To        string `json:"to" binding:"required,email"`
	Subject   string `json:"subject" binding:"required"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
}

type SendMailResponse struct {
	MessageID  string         `json:"message_id"`
	Status     DeliveryStatus `json:"status"`
	RelayID    string         `json:"relay_id"`
	ErrorMsg   string         `json:"error_message,omitempty"`
	AcceptedAt time.Time      `json:"accepted_at"`
}

type StoredMail struct {
	SendMailRequest
	ReceivedAt time.Time `json:"received_at"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	RelayID   string    `json:"relay_id"`
	Timestamp time.Time `json:"timestamp"`
	Stored    int       `json:"stored"`
}

// Sink accepts mail and keeps the most recent messages in memory so OTPs
// can be read back during development.
type Sink struct {
	mu         sync.RWMutex
	relayID    string
	rejectRate float64
	capacity   int
	inbox      []StoredMail
	rng        *rand.Rand
}

func NewSink(rejectRate float64, capacity int) *Sink {
	if capacity <= 0 {
		capacity = 100
	}
	return &Sink{
		relayID:    "MAILSINK_" + uuid.New().String()[:8],
		rejectRate: rejectRate,
		capacity:   capacity,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Sink) accept(req SendMailRequest) *SendMailResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &SendMailResponse{MessageID: req.MessageID, RelayID: s.relayID, AcceptedAt: time.Now()}
	if s.rejectRate > 0 && s.rng.Float64() < s.rejectRate {
		resp.Status = StatusRejected
		resp.ErrorMsg = "Recipient mailbox unavailable"
		log.Warn().Str("message_id", req.MessageID).Str("to", req.To).Msg("Mail rejected")
		return resp
	}

	s.inbox = append(s.inbox, StoredMail{SendMailRequest: req, ReceivedAt: resp.AcceptedAt})
	if len(s.inbox) > s.capacity {
		s.inbox = s.inbox[len(s.inbox)-s.capacity:]
	}
	resp.Status = StatusAccepted

	log.Info().Str("message_id", req.MessageID).Str("to", req.To).Str("subject", req.Subject).Msg("Mail accepted")
	return resp
}

// messages returns stored mail for to, newest first. An empty to matches all.
func (s *Sink) messages(to string) []StoredMail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredMail, 0, len(s.inbox))
	for i := len(s.inbox) - 1; i >= 0; i-- {
		if to == "" || strings.EqualFold(s.inbox[i].To, to) {
			out = append(out, s.inbox[i])
		}
	}
	return out
}

func (s *Sink) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inbox)
}

type Handler struct {
	sink *Sink
}

func NewHandler(sink *Sink) *Handler {
	return &Handler{sink: sink}
}

func (h *Handler) SendMail(c *gin.Context) {
	var req SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.sink.accept(req))
}

func (h *Handler) Inbox(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.sink.messages(c.Query("to"))})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		RelayID:   h.sink.relayID,
		Timestamp: time.Now(),
		Stored:    h.sink.size(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/mail/send", handler.SendMail)
		v1.GET("/mail/inbox", handler.Inbox)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8025")
	rejectRate := getEnvFloat("REJECT_RATE", 0)
	capacity := getEnvInt("INBOX_CAPACITY", 100)

	log.Info().
		Str("port", port).
		Float64("reject_rate", rejectRate).
		Int("inbox_capacity", capacity).
		Msg("Starting mail sink")

	router := SetupRouter(NewHandler(NewSink(rejectRate, capacity)))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
