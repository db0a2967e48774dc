package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hitchly/engagement-tracker/internal/webhook"
)

// SendMessageRequest mirrors what the dispatcher posts for one outbound
// invitation or reminder.
type SendMessageRequest struct {
	TenantID    int64  `json:"tenant_id"`
	RecipientID int64  `json:"recipient_id"`
	Channel     string `json:"channel" binding:"required"`
	To          string `json:"to" binding:"required"`
	TemplateID  string `json:"template_id"`
	Body        string `json:"body"`
}

// SendMessageResponse acknowledges acceptance. The minted SID is the
// correlation key for every later status callback.
type SendMessageResponse struct {
	MessageSID string    `json:"message_sid"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	ErrorMsg   string    `json:"error_message,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type StatusCheckResponse struct {
	MessageSID string `json:"message_sid"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code,omitempty"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockProvider simulates the hosted messaging provider: it accepts
// sends, mints SIDs and calls the tracker back with signed
// delivered/read/failed status updates.
type MockProvider struct {
	deliveryRate float64
	readRate     float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	callbackURL  string
	authToken    string
	client       *http.Client
	rng          *rand.Rand
}

func NewMockProvider(deliveryRate, readRate float64, minDelay, maxDelay time.Duration, callbackURL, authToken string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		readRate:     readRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		callbackURL:  callbackURL,
		authToken:    authToken,
		client:       &http.Client{Timeout: 10 * time.Second},
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) mintSID() string {
	return "SM" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// simulateLifecycle walks one accepted message through its status
// transitions and reports each over the signed callback channel.
func (m *MockProvider) simulateLifecycle(sid string, req *SendMessageRequest) {
	time.Sleep(m.randomDelay())

	if !m.chance(m.deliveryRate) {
		code := m.randomErrorCode()
		log.Warn().
			Str("message_sid", sid).
			Str("to", req.To).
			Str("error_code", code).
			Msg("Message delivery failed")
		m.postCallback(sid, "failed", code)
		return
	}

	log.Info().
		Str("message_sid", sid).
		Str("to", req.To).
		Str("channel", req.Channel).
		Msg("Message delivered")
	m.postCallback(sid, "delivered", "")

	// Read receipts only exist on chat channels.
	if req.Channel == "whatsapp" && m.chance(m.readRate) {
		time.Sleep(m.randomDelay())
		m.postCallback(sid, "read", "")
	}
}

// postCallback sends one form-encoded status update, signed the same
// way the tracker verifies it.
func (m *MockProvider) postCallback(sid, status, errorCode string) {
	if m.callbackURL == "" {
		return
	}

	params := map[string]string{
		"MessageSid":    sid,
		"MessageStatus": status,
	}
	if errorCode != "" {
		params["ErrorCode"] = errorCode
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequest(http.MethodPost, m.callbackURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error().Err(err).Str("message_sid", sid).Msg("Failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(webhook.SignatureHeader, webhook.ComputeSignature(m.authToken, m.callbackURL, params))

	resp, err := m.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("message_sid", sid).Str("status", status).Msg("Callback delivery failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	log.Info().
		Str("message_sid", sid).
		Str("status", status).
		Int("response", resp.StatusCode).
		Msg("Callback delivered")
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) chance(rate float64) bool {
	return m.rng.Float64() < rate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"30003", // unreachable handset
		"30004", // blocked by recipient
		"30005", // unknown destination
		"30008", // delivery failure
		"63016", // outside template window
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

// SendMessage handles single message send requests
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	sid := h.provider.mintSID()

	log.Info().
		Str("message_sid", sid).
		Str("to", req.To).
		Str("channel", req.Channel).
		Str("template_id", req.TemplateID).
		Msg("Accepted message send request")

	go h.provider.simulateLifecycle(sid, &req)

	c.JSON(http.StatusAccepted, SendMessageResponse{
		MessageSID: sid,
		Status:     "queued",
		AcceptedAt: time.Now().UTC(),
	})
}

// GetStatus handles delivery status check requests
func (h *Handler) GetStatus(c *gin.Context) {
	sid := c.Param("message_sid")

	if sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "message_sid is required",
		})
		return
	}

	response := StatusCheckResponse{MessageSID: sid}
	if h.provider.chance(h.provider.deliveryRate) {
		response.Status = "delivered"
	} else {
		response.Status = "failed"
		response.ErrorCode = "30008"
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing provider behaviour at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
		ReadRate     *float64 `json:"read_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil && *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
		h.provider.deliveryRate = *config.DeliveryRate
		log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
	}
	if config.ReadRate != nil && *config.ReadRate >= 0 && *config.ReadRate <= 1.0 {
		h.provider.readRate = *config.ReadRate
		log.Info().Float64("rate", *config.ReadRate).Msg("Updated read rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.provider.deliveryRate,
		"read_rate":     h.provider.readRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/messages", handler.SendMessage)
		v1.GET("/messages/:message_sid", handler.GetStatus)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	readRate := getEnvFloat("READ_RATE", 0.7)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)
	callbackURL := getEnv("CALLBACK_URL", "")
	authToken := getEnv("WEBHOOK_AUTH_TOKEN", "")

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Float64("read_rate", readRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("callback_url", callbackURL).
		Msg("Starting Mock Messaging Provider")

	provider := NewMockProvider(deliveryRate, readRate, minDelay, maxDelay, callbackURL, authToken)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

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

	// Graceful shutdown
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

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
