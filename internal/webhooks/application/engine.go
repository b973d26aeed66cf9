package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

const (
	UserAgent      = "SkinInsight-Webhook/1.0"
	maxBodyDrain   = 64 << 10
	defaultTimeout = 10 * time.Second
)

// DefaultBackoff is the wait before each retry. Its length is the retry limit.
var DefaultBackoff = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// EngineConfig tunes delivery.
type EngineConfig struct {
	Timeout          time.Duration
	Backoff          []time.Duration
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// DefaultEngineConfig returns the production settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Timeout:          defaultTimeout,
		Backoff:          DefaultBackoff,
		BreakerThreshold: 5,
		BreakerCooldown:  time.Minute,
	}
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) EngineOption {
	return func(e *Engine) {
		e.client = client
	}
}

// WithSleeper replaces the retry sleeper.
func WithSleeper(sleep Sleeper) EngineOption {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithEngineClock overrides the time source used for log timestamps and latency.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEngineMetrics records delivery metrics.
func WithEngineMetrics(metrics observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// Engine delivers analysis results to account webhooks with bounded retries.
// Deliveries outlive the caller's context and stop only when the engine is
// closed.
type Engine struct {
	configs  domain.ConfigRepository
	logs     domain.LogRepository
	client   *http.Client
	validate *validator.Validate
	config   EngineConfig
	sleep    Sleeper
	now      func() time.Time
	metrics  observability.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
	closed   bool

	shutdown context.Context
	stop     context.CancelFunc
	inflight sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(configs domain.ConfigRepository, logs domain.LogRepository, config EngineConfig, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Backoff == nil {
		config.Backoff = DefaultBackoff
	}

	shutdown, stop := context.WithCancel(context.Background())
	e := &Engine{
		configs:  configs,
		logs:     logs,
		client:   &http.Client{},
		validate: NewPayloadValidator(),
		config:   config,
		sleep:    sleepContext,
		now:      time.Now,
		metrics:  observability.NoopMetrics{},
		logger:   logger.With("component", "webhooks"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[int]),
		shutdown: shutdown,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewPayloadValidator returns a validator that reports fields by their JSON
// names.
func NewPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Close cancels in-flight deliveries and waits for them to return.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.stop()
	e.mu.Unlock()

	e.inflight.Wait()
	return nil
}

// Deliver posts the payload to the account's webhook. It returns true once
// the endpoint accepted it. Skipped deliveries (invalid payload, missing or
// disabled configuration, invalid URL, non-retryable response) return false
// with a nil error; a *DeliveryError is returned when retries are exhausted.
func (e *Engine) Deliver(ctx context.Context, accountID string, payload domain.Payload) (bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrEngineClosed
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stopAfter := context.AfterFunc(e.shutdown, cancel)
	defer stopAfter()

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode payload: %w", err)
	}
	d := &delivery{
		engine:     e,
		accountID:  accountID,
		deliveryID: uuid.NewString(),
		body:       body,
	}
	logger := e.logger.With("account_id", accountID, "delivery_id", d.deliveryID)

	if err := e.validate.Struct(payload); err != nil {
		d.record(ctx, attempt{reason: "Invalid webhook payload: " + describeValidation(err)})
		logger.WarnContext(ctx, "webhook payload rejected", "error", err)
		return false, nil
	}

	cfg, err := e.configs.Find(ctx, accountID)
	if errors.Is(err, domain.ErrConfigNotFound) {
		d.record(ctx, attempt{reason: domain.ErrConfigNotFound.Error()})
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load webhook config: %w", err)
	}
	if !cfg.Deliverable() {
		d.record(ctx, attempt{reason: domain.ErrWebhookDisabled.Error()})
		return false, nil
	}
	target, err := domain.ValidateURL(cfg.URL)
	if err != nil {
		d.record(ctx, attempt{reason: domain.ErrInvalidURL.Error()})
		logger.WarnContext(ctx, "webhook URL rejected", "url", cfg.URL)
		return false, nil
	}

	breaker := e.breaker(accountID)
	maxRetries := len(e.config.Backoff)

	for retry := 0; ; retry++ {
		a := d.post(ctx, breaker, target.String(), retry)

		switch {
		case a.err == nil:
			a.success = true
			d.record(ctx, a)
			e.metrics.Counter(observability.MetricWebhookDeliveries, 1, observability.T("outcome", "delivered"))
			logger.InfoContext(ctx, "webhook delivered", "retry_count", retry, "status_code", a.statusCode)
			return true, nil

		case ctx.Err() != nil:
			a.reason = "delivery aborted: " + ctx.Err().Error()
			d.record(context.WithoutCancel(ctx), a)
			return false, &DeliveryError{AccountID: accountID, DeliveryID: d.deliveryID, Attempts: retry + 1, Err: ctx.Err(), Cause: a.err}

		case errors.Is(a.err, gobreaker.ErrOpenState) || errors.Is(a.err, gobreaker.ErrTooManyRequests):
			a.reason = domain.ErrCircuitOpen.Error()
			d.record(ctx, a)
			e.metrics.Counter(observability.MetricWebhookCircuitOpen, 1)
			logger.WarnContext(ctx, "webhook circuit open", "retry_count", retry)
			return false, &DeliveryError{AccountID: accountID, DeliveryID: d.deliveryID, Attempts: retry + 1, Err: domain.ErrCircuitOpen}

		case IsRetryable(a.err) && retry < maxRetries:
			a.reason = fmt.Sprintf("%s - retrying (%d/%d)", a.err.Error(), retry+1, maxRetries)
			d.record(ctx, a)
			logger.WarnContext(ctx, "webhook attempt failed", "retry_count", retry, "status_code", a.statusCode, "error", a.err)
			if err := e.sleep(ctx, e.config.Backoff[retry]); err != nil {
				return false, &DeliveryError{AccountID: accountID, DeliveryID: d.deliveryID, Attempts: retry + 1, StatusCode: a.statusCode, Err: err, Cause: a.err}
			}

		case IsRetryable(a.err):
			a.reason = a.err.Error()
			d.record(ctx, a)
			e.metrics.Counter(observability.MetricWebhookDeliveries, 1, observability.T("outcome", "exhausted"))
			logger.ErrorContext(ctx, "webhook retries exhausted", "retry_count", retry, "status_code", a.statusCode, "error", a.err)
			return false, &DeliveryError{
				AccountID:  accountID,
				DeliveryID: d.deliveryID,
				Attempts:   retry + 1,
				StatusCode: a.statusCode,
				Err:        domain.ErrRetriesExhausted,
				Cause:      a.err,
			}

		default:
			a.reason = a.err.Error()
			d.record(ctx, a)
			e.metrics.Counter(observability.MetricWebhookDeliveries, 1, observability.T("outcome", "rejected"))
			logger.WarnContext(ctx, "webhook rejected", "status_code", a.statusCode, "error", a.err)
			return false, nil
		}
	}
}

// Send posts an arbitrary body once, without retries or audit logging. It is
// used for endpoint tests.
func (e *Engine) Send(ctx context.Context, target string, body any) (int, error) {
	u, err := domain.ValidateURL(target)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode body: %w", err)
	}
	return e.do(ctx, u.String(), uuid.NewString(), 0, data)
}

func (e *Engine) breaker(accountID string) *gobreaker.CircuitBreaker[int] {
	if e.config.BreakerThreshold == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[accountID]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "webhook:" + accountID,
		MaxRequests: 1,
		Timeout:     e.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.config.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	e.breakers[accountID] = breaker
	return breaker
}

func (e *Engine) do(ctx context.Context, target, deliveryID string, retry int, body []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-ID", deliveryID)
	req.Header.Set("X-Retry-Count", strconv.Itoa(retry))

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &TransportError{Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

type attempt struct {
	success    bool
	retry      int
	statusCode int
	duration   time.Duration
	reason     string
	err        error
}

type delivery struct {
	engine     *Engine
	accountID  string
	deliveryID string
	body       []byte
}

func (d *delivery) post(ctx context.Context, breaker *gobreaker.CircuitBreaker[int], target string, retry int) attempt {
	e := d.engine
	start := e.now()

	call := func() (int, error) {
		return e.do(ctx, target, d.deliveryID, retry, d.body)
	}

	var (
		status int
		err    error
	)
	if breaker != nil {
		status, err = breaker.Execute(call)
	} else {
		status, err = call()
	}

	a := attempt{retry: retry, statusCode: status, duration: e.now().Sub(start), err: err}
	e.metrics.Counter(observability.MetricWebhookAttempts, 1)
	e.metrics.Timing(observability.MetricWebhookLatency, a.duration)
	return a
}

func (d *delivery) record(ctx context.Context, a attempt) {
	e := d.engine
	entry := domain.LogEntry{
		ID:              uuid.New(),
		AccountID:       d.accountID,
		DeliveryID:      d.deliveryID,
		Success:         a.success,
		Timestamp:       e.now().UTC(),
		Error:           a.reason,
		StatusCode:      a.statusCode,
		RetryCount:      a.retry,
		RequestDuration: a.duration,
		Payload:         d.body,
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "failed to append webhook log",
			"account_id", d.accountID,
			"delivery_id", d.deliveryID,
			"error", err,
		)
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Payload.")
		parts = append(parts, field+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
