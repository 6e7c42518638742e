package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	sendPath   = "/api/v1/mail/send"
	healthPath = "/health"
)

type RelayStatus string

const (
	StatusAccepted RelayStatus = "ACCEPTED"
	StatusRejected RelayStatus = "REJECTED"
)

type RelayResponse struct {
	MessageID  string      `json:"message_id"`
	Status     RelayStatus `json:"status"`
	RelayID    string      `json:"relay_id"`
	ErrorMsg   string      `json:"error_message,omitempty"`
	AcceptedAt time.Time   `json:"accepted_at"`
}

type RelayMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *RelayMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *RelayMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *RelayMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *RelayMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type RelayState int32

const (
	StateHealthy RelayState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

func (s RelayState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Relay is one HTTP mail relay endpoint.
type Relay struct {
	name             string
	url              string
	weight           int
	client           *fasthttp.Client
	metrics          *RelayMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func newRelay(name, url string, weight int, client *fasthttp.Client) *Relay {
	r := &Relay{
		name:    name,
		url:     url,
		weight:  weight,
		client:  client,
		metrics: &RelayMetrics{},
	}
	r.state.Store(int32(StateHealthy))
	return r
}

func (r *Relay) State() RelayState {
	return RelayState(r.state.Load())
}

func (r *Relay) setState(state RelayState) {
	r.state.Store(int32(state))
}

// IsAvailable reports whether the relay may take traffic. An open circuit
// half-opens into DEGRADED once its timeout has passed.
func (r *Relay) IsAvailable(now time.Time) bool {
	switch r.State() {
	case StateCircuitOpen:
		if now.UnixMilli() > r.circuitOpenUntil.Load() {
			r.setState(StateDegraded)
			return true
		}
		return false
	case StateUnhealthy:
		return false
	default:
		return true
	}
}

// Score ranks available relays; higher is better.
func (r *Relay) Score(now time.Time) float64 {
	if !r.IsAvailable(now) {
		return 0
	}

	successScore := r.metrics.SuccessRate() * 100

	latencyScore := 100.0
	if avg := r.metrics.AvgLatencyMs(); avg > 0 {
		latencyScore = 100.0 * (1.0 - float64(avg)/5000.0)
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	recentPenalty := 1.0 - float64(r.metrics.ConsecutiveFails.Load())*0.1
	if recentPenalty < 0.1 {
		recentPenalty = 0.1
	}

	statePenalty := 1.0
	if r.State() == StateDegraded {
		statePenalty = 0.5
	}

	return (successScore*0.4 + latencyScore*0.4 + float64(r.weight)*0.2) * recentPenalty * statePenalty
}

type RelayConfig struct {
	Relays                  []RelayEndpoint
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type RelayEndpoint struct {
	Name   string
	URL    string
	Weight int
}

// RelayMailer posts messages to the best scoring relay and fails over to
// the next one on error.
type RelayMailer struct {
	config RelayConfig
	relays []*Relay
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewRelayMailer(config RelayConfig) (*RelayMailer, error) {
	if len(config.Relays) == 0 {
		return nil, errors.New("at least one relay is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.CircuitBreakerThreshold == 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout == 0 {
		config.CircuitBreakerTimeout = time.Minute
	}

	m := &RelayMailer{
		config: config,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	for _, rc := range config.Relays {
		if rc.URL == "" {
			continue
		}
		client := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
		m.relays = append(m.relays, newRelay(rc.Name, rc.URL, rc.Weight, client))
		logger.Info("mail relay initialized", "name", rc.Name, "url", rc.URL, "weight", rc.Weight)
	}
	if len(m.relays) == 0 {
		return nil, errors.New("at least one relay url is required")
	}

	if config.HealthCheckInterval > 0 {
		m.wg.Add(1)
		go m.healthChecker()
	}

	return m, nil
}

func (m *RelayMailer) Name() string {
	return "relay"
}

func (m *RelayMailer) selectRelay(exclude map[*Relay]bool) (*Relay, error) {
	now := m.now()

	var best *Relay
	var bestScore float64
	for _, r := range m.relays {
		if exclude[r] {
			continue
		}
		if score := r.Score(now); score > bestScore {
			best, bestScore = r, score
		}
	}
	if best == nil {
		return nil, ErrNoAvailableRelays
	}
	return best, nil
}

// Send tries up to MaxRetries+1 relays. A relay that answers REJECTED is
// not retried elsewhere: the message itself is at fault.
func (m *RelayMailer) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	tried := make(map[*Relay]bool)
	var lastErr error
	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 && m.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}

		relay, err := m.selectRelay(tried)
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		tried[relay] = true

		start := time.Now()
		raw, err := m.doRequest(ctx, relay, fasthttp.MethodPost, sendPath, body)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			relay.metrics.RecordFailure()
			m.checkCircuitBreaker(relay)
			logger.Warn("mail relay request failed", "relay", relay.name, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		relay.metrics.RecordSuccess(latency)

		var resp RelayResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("failed to unmarshal relay response: %w", err)
		}
		if resp.Status != StatusAccepted {
			return fmt.Errorf("%w: %s", ErrRejected, resp.ErrorMsg)
		}

		logger.Info("mail accepted by relay", "message_id", msg.ID, "relay", relay.name, "latency_ms", latency)
		return nil
	}

	return fmt.Errorf("mail relay failed after %d attempts: %w", len(tried), lastErr)
}

func (m *RelayMailer) doRequest(ctx context.Context, relay *Relay, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(relay.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.config.Timeout)
	}
	if err := relay.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK && status != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, resp.Body())
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (m *RelayMailer) checkCircuitBreaker(relay *Relay) {
	fails := relay.metrics.ConsecutiveFails.Load()
	if fails < int32(m.config.CircuitBreakerThreshold) {
		return
	}

	relay.setState(StateCircuitOpen)
	relay.circuitOpenUntil.Store(m.now().Add(m.config.CircuitBreakerTimeout).UnixMilli())
	logger.Warn("mail relay circuit opened", "relay", relay.name, "consecutive_fails", fails, "timeout", m.config.CircuitBreakerTimeout)
}

func (m *RelayMailer) healthChecker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performHealthChecks()
		case <-m.stopCh:
			return
		}
	}
}

func (m *RelayMailer) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	for _, relay := range m.relays {
		old := relay.State()
		if old == StateCircuitOpen {
			continue
		}

		next := StateUnhealthy
		if m.checkRelayHealth(ctx, relay) {
			next = StateHealthy
		}
		if next != old {
			relay.setState(next)
			logger.Info("mail relay state changed", "relay", relay.name, "old_state", old.String(), "new_state", next.String())
		}
	}
}

func (m *RelayMailer) checkRelayHealth(ctx context.Context, relay *Relay) bool {
	raw, err := m.doRequest(ctx, relay, fasthttp.MethodGet, healthPath, nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

type RelayStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	ConsecutiveFails int32
}

// Stats returns per relay statistics, best score first.
func (m *RelayMailer) Stats() []RelayStats {
	now := m.now()
	stats := make([]RelayStats, 0, len(m.relays))
	for _, r := range m.relays {
		stats = append(stats, RelayStats{
			Name:             r.name,
			URL:              r.url,
			State:            r.State().String(),
			Score:            r.Score(now),
			TotalRequests:    r.metrics.TotalRequests.Load(),
			FailedReqs:       r.metrics.FailedReqs.Load(),
			SuccessRate:      r.metrics.SuccessRate(),
			AvgLatencyMs:     r.metrics.AvgLatencyMs(),
			ConsecutiveFails: r.metrics.ConsecutiveFails.Load(),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

func (m *RelayMailer) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	return nil
}
