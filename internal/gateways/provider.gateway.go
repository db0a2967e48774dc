package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitchly/engagement-tracker/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available provider endpoints")
)

// SendRequest is the payload posted to the messaging provider for a
// single outbound invitation, reminder or save-the-date.
type SendRequest struct {
	TenantID    int64  `json:"tenant_id"`
	RecipientID int64  `json:"recipient_id"`
	Channel     string `json:"channel"`
	To          string `json:"to"`
	TemplateID  string `json:"template_id,omitempty"`
	Body        string `json:"body,omitempty"`
}

// SendResponse carries the provider-issued message SID. The SID is the
// correlation key every later delivery callback refers back to.
type SendResponse struct {
	MessageSID string    `json:"message_sid"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	ErrorMsg   string    `json:"error_message,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type StatusResponse struct {
	MessageSID string `json:"message_sid"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code,omitempty"`
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func NewEndpointMetrics() *EndpointMetrics {
	return &EndpointMetrics{}
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type EndpointState int

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

// Endpoint is one provider base URL. The provider exposes a primary
// region plus fallbacks; the client scores them and prefers the best.
type Endpoint struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	state            atomic.Int32
	weight           atomic.Int32
	lastHealthCheck  atomic.Int64
	circuitOpenUntil atomic.Int64
}

func NewEndpoint(name, url string, weight int, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		name:    name,
		url:     url,
		client:  client,
		metrics: NewEndpointMetrics(),
	}
	e.state.Store(int32(StateHealthy))
	e.weight.Store(int32(weight))
	return e
}

func (e *Endpoint) GetState() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(state EndpointState) {
	e.state.Store(int32(state))
}

func (e *Endpoint) IsAvailable() bool {
	state := e.GetState()
	if state == StateCircuitOpen {
		openUntil := e.circuitOpenUntil.Load()
		if time.Now().Unix() < openUntil {
			return false
		}
		// Circuit window elapsed, allow a probe request.
		e.SetState(StateDegraded)
		return true
	}
	return state != StateUnhealthy
}

// CalculateScore combines configured weight with observed success rate
// and latency. Higher is better.
func (e *Endpoint) CalculateScore() float64 {
	if !e.IsAvailable() {
		return 0
	}

	score := float64(e.weight.Load())
	score *= e.metrics.SuccessRate()

	if avg := e.metrics.AvgLatencyMs(); avg > 0 {
		score *= 1000.0 / float64(1000+avg)
	}

	if e.GetState() == StateDegraded {
		score *= 0.5
	}

	return score
}

type ClientConfig struct {
	Endpoints               map[string]EndpointConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type EndpointConfig struct {
	URL    string
	Weight int
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:                 10 * time.Second,
		MaxRetries:              2,
		RetryDelay:              200 * time.Millisecond,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// Client talks to the outbound messaging provider. It retries across
// endpoints, opens the circuit on repeated failures and keeps
// per-endpoint performance counters.
type Client struct {
	endpoints []*Endpoint
	config    *ClientConfig
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one provider endpoint is required")
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     512,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}

	client := &Client{
		config: config,
		stopCh: make(chan struct{}),
	}

	for name, ec := range config.Endpoints {
		client.endpoints = append(client.endpoints, NewEndpoint(name, ec.URL, ec.Weight, httpClient))
	}
	sort.Slice(client.endpoints, func(i, j int) bool {
		return client.endpoints[i].name < client.endpoints[j].name
	})

	client.wg.Add(1)
	go client.healthChecker()

	logger.Info("Provider client initialized", "endpoints", len(client.endpoints), "timeout", config.Timeout)

	return client, nil
}

// SelectBestEndpoint picks the best scoring available endpoint.
func (c *Client) SelectBestEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Endpoint
	var bestScore float64

	for _, ep := range c.endpoints {
		if !ep.IsAvailable() {
			continue
		}
		score := ep.CalculateScore()
		if score > bestScore {
			bestScore = score
			best = ep
		}
	}

	if best == nil {
		return nil, ErrNoAvailableEndpoints
	}

	logger.Debug("Selected provider endpoint", "endpoint", best.name, "score", bestScore)

	return best, nil
}

// Send posts a single outbound message. On success the response carries
// the provider-issued message SID.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		ep, err := c.SelectBestEndpoint()
		if err != nil {
			lastErr = err
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, ep, "POST", "/api/v1/messages", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			ep.metrics.RecordFailure()
			c.checkCircuitBreaker(ep)

			logger.Warn("Send failed, retrying", "error", err, "endpoint", ep.name, "attempt", attempt+1)

			lastErr = err
			continue
		}

		ep.metrics.RecordSuccess(latency)

		var resp SendResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		logger.Info("Message accepted by provider",
			"message_sid", resp.MessageSID,
			"tenant_id", req.TenantID,
			"recipient_id", req.RecipientID,
			"channel", req.Channel,
			"endpoint", ep.name,
			"latency_ms", latency)

		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// GetStatus queries the provider for the current delivery status of a
// previously accepted message.
func (c *Client) GetStatus(ctx context.Context, messageSID string) (*StatusResponse, error) {
	ep, err := c.SelectBestEndpoint()
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/messages/%s", messageSID)
	response, err := c.doRequest(ctx, ep, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, ep *Endpoint, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := ep.url + path
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := ep.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(ep *Endpoint) {
	consecutiveFails := ep.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		ep.SetState(StateCircuitOpen)
		openUntil := time.Now().Add(c.config.CircuitBreakerTimeout).Unix()
		ep.circuitOpenUntil.Store(openUntil)

		logger.Warn("Circuit breaker opened", "endpoint", ep.name, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	endpoints := make([]*Endpoint, len(c.endpoints))
	copy(endpoints, c.endpoints)
	c.mu.RUnlock()

	for _, ep := range endpoints {
		healthy := c.checkEndpointHealth(ctx, ep)
		ep.lastHealthCheck.Store(time.Now().Unix())

		oldState := ep.GetState()
		newState := oldState

		if healthy {
			if oldState == StateUnhealthy || oldState == StateDegraded {
				newState = StateHealthy
			}
		} else {
			newState = StateUnhealthy
		}

		if newState != oldState {
			ep.SetState(newState)
			logger.Info("Endpoint state changed", "endpoint", ep.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

func (c *Client) checkEndpointHealth(ctx context.Context, ep *Endpoint) bool {
	response, err := c.doRequest(ctx, ep, "GET", "/health", nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &health); err != nil {
		return false
	}

	return health.Status == "healthy"
}

// EndpointStats is a point-in-time snapshot used by the stats endpoint.
type EndpointStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func (c *Client) GetEndpointStats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		stats = append(stats, EndpointStats{
			Name:             ep.name,
			URL:              ep.url,
			State:            stateString(ep.GetState()),
			Score:            ep.CalculateScore(),
			TotalRequests:    ep.metrics.TotalRequests.Load(),
			SuccessfulReqs:   ep.metrics.SuccessfulReqs.Load(),
			FailedReqs:       ep.metrics.FailedReqs.Load(),
			SuccessRate:      ep.metrics.SuccessRate(),
			AvgLatencyMs:     ep.metrics.AvgLatencyMs(),
			LastLatencyMs:    ep.metrics.LastLatencyMs.Load(),
			ConsecutiveFails: ep.metrics.ConsecutiveFails.Load(),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})

	return stats
}

// Close stops background workers.
func (c *Client) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	logger.Info("Provider client closed")
	return nil
}

func stateString(state EndpointState) string {
	switch state {
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
