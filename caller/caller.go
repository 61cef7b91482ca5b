package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skillsenselab/meshkit/breaker"
	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/registry"
	"github.com/skillsenselab/meshkit/telemetry"
)

const defaultTimeout = 10 * time.Second

// InstancePicker is the slice of the registry the caller depends on.
// *registry.Registry satisfies it.
type InstancePicker interface {
	Pick(serviceName string) (registry.ServiceInstance, error)
}

// Config configures the resilient caller.
type Config struct {
	// Timeout bounds a single call when the per-call timeout is zero.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Scheme is the URL scheme for downstream calls.
	Scheme string `yaml:"scheme" mapstructure:"scheme"`
	// Breaker is the template applied to each lazily-created
	// per-downstream breaker.
	Breaker breaker.Config `yaml:"breaker" mapstructure:"breaker"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	c.Breaker.ApplyDefaults()
}

// Response is the result of a successful remote call.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the flattened response headers.
	Headers map[string]string
	// Body is the raw response body.
	Body []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Caller performs guarded remote calls to named services. One breaker is
// created lazily per downstream service name; breakers are owned by the
// calling side and never shared across Caller instances.
type Caller struct {
	picker     InstancePicker
	httpClient *http.Client
	cfg        Config
	metrics    *telemetry.Metrics
	log        *logger.Logger

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// New creates a resilient caller on top of the given registry view.
func New(picker InstancePicker, cfg Config, metrics *telemetry.Metrics, log *logger.Logger) *Caller {
	cfg.ApplyDefaults()
	return &Caller{
		picker: picker,
		// The transport owns connection pooling; per-call deadlines come
		// from the request context, not the client.
		httpClient: &http.Client{},
		cfg:        cfg,
		metrics:    metrics,
		log:        log.WithComponent("caller"),
		breakers:   make(map[string]*breaker.Breaker),
	}
}

// Call performs a guarded remote call to one healthy instance of the
// named service. payload is JSON-encoded as the request body when
// non-nil; timeout <= 0 falls back to the configured default.
func (c *Caller) Call(ctx context.Context, serviceName, endpoint, method string, payload interface{}, timeout time.Duration) (*Response, error) {
	cb := c.breakerFor(serviceName)

	if !cb.Allow() {
		// Fail fast: no registry lookup, no network attempt.
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, serviceName)
	}

	inst, err := c.picker.Pick(serviceName)
	if err != nil {
		cb.RecordFailure()
		return nil, fmt.Errorf("%w: %s", ErrNoHealthyInstance, serviceName)
	}

	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.doRequest(callCtx, inst, serviceName, endpoint, method, payload)
	elapsed := time.Since(start)

	// Latency is observed on both paths so operators can see rising
	// latency even while a circuit is flapping.
	c.metrics.ObserveLatency(ctx, serviceName, elapsed)

	if err != nil {
		cb.RecordFailure()
		c.metrics.RecordError(ctx, serviceName)
		c.log.Warn("remote call failed", logger.Fields(
			logger.FieldTarget, serviceName,
			"endpoint", endpoint,
			logger.FieldDuration, elapsed.Milliseconds(),
			logger.FieldError, err.Error(),
		))
		return nil, err
	}

	cb.RecordSuccess()
	c.metrics.RecordRequest(ctx, serviceName)
	return resp, nil
}

// BreakerState returns the current breaker state for a downstream, and
// whether a breaker exists for it yet.
func (c *Caller) BreakerState(serviceName string) (breaker.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[serviceName]
	if !ok {
		return breaker.StateClosed, false
	}
	return cb.State(), true
}

// BreakerStates returns the state of every breaker created so far.
func (c *Caller) BreakerStates() map[string]breaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]breaker.State, len(c.breakers))
	for name, cb := range c.breakers {
		out[name] = cb.State()
	}
	return out
}

// breakerFor returns the breaker guarding serviceName, creating it on
// first use from the configured template.
func (c *Caller) breakerFor(serviceName string) *breaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[serviceName]; ok {
		return cb
	}

	cfg := c.cfg.Breaker
	cfg.Name = serviceName
	cfg.OnStateChange = func(name string, from, to breaker.State) {
		c.metrics.RecordBreakerState(context.Background(), name, to.GaugeValue())
		c.log.Info("breaker state changed", logger.Fields(
			logger.FieldTarget, name,
			"from", from.String(),
			"to", to.String(),
		))
	}
	cb := breaker.New(cfg)
	c.breakers[serviceName] = cb
	return cb
}

// doRequest issues the HTTP request and classifies failures.
func (c *Caller) doRequest(ctx context.Context, inst registry.ServiceInstance, serviceName, endpoint, method string, payload interface{}) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &CallError{Service: serviceName, Reason: ReasonConnection, Err: fmt.Errorf("encode payload: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s://%s/%s", c.cfg.Scheme, inst.Addr(), strings.TrimPrefix(endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &CallError{Service: serviceName, Reason: ReasonConnection, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CallError{Service: serviceName, Reason: ReasonTimeout, Err: err}
		}
		return nil, &CallError{Service: serviceName, Reason: ReasonConnection, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &CallError{Service: serviceName, Reason: ReasonConnection, Err: fmt.Errorf("read response body: %w", err)}
	}

	if httpResp.StatusCode >= 400 {
		return nil, &CallError{
			Service:    serviceName,
			Reason:     ReasonStatus,
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    flattenHeaders(httpResp.Header),
		Body:       respBody,
	}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
