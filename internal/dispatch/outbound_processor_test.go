package dispatch

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	gateway "github.com/hitchly/engagement-tracker/internal/gateways"
	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/internal/queue"
)

type mockSentRecorder struct {
	mock.Mock
}

func (m *mockSentRecorder) RecordMessageSent(ctx context.Context, tenantID, recipientID int64, kind model.EventType, channel model.Channel, sid, templateID string, adminTriggered bool) (*model.TrackingEvent, error) {
	args := m.Called(ctx, tenantID, recipientID, kind, channel, sid, templateID, adminTriggered)
	if ev := args.Get(0); ev != nil {
		return ev.(*model.TrackingEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func startProviderStub(t *testing.T, sends *atomic.Int64, fail bool) (*gateway.Client, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			sends.Add(1)
			if fail {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				return
			}
			body, _ := json.Marshal(gateway.SendResponse{
				MessageSID: "SM-stub-0042",
				Status:     "queued",
				AcceptedAt: time.Now().UTC(),
			})
			ctx.SetStatusCode(fasthttp.StatusAccepted)
			ctx.SetBody(body)
		},
	}
	go srv.Serve(ln)

	config := gateway.DefaultClientConfig()
	config.MaxRetries = 0
	config.Timeout = time.Second
	config.Endpoints = map[string]gateway.EndpointConfig{
		"stub": {URL: "http://" + ln.Addr().String(), Weight: 100},
	}

	client, err := gateway.NewClient(config)
	require.NoError(t, err)

	return client, func() {
		client.Close()
		ln.Close()
	}
}

func invitationJob(t *testing.T, id string) *queue.Message {
	t.Helper()

	data, err := json.Marshal(model.OutboundMessage{
		TenantID:    7,
		RecipientID: 42,
		Kind:        model.EventInvitationSent,
		Channel:     model.ChannelWhatsApp,
		To:          "+15550001111",
		TemplateID:  "tmpl-invite-gold",
	})
	require.NoError(t, err)

	return &queue.Message{ID: id, Data: data, Timestamp: time.Now()}
}

func TestOutboundProcessor_Process(t *testing.T) {
	var sends atomic.Int64
	client, stop := startProviderStub(t, &sends, false)
	defer stop()

	idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())

	tracker := &mockSentRecorder{}
	tracker.On("RecordMessageSent", mock.Anything, int64(7), int64(42), model.EventInvitationSent, model.ChannelWhatsApp, "SM-stub-0042", "tmpl-invite-gold", false).
		Return(&model.TrackingEvent{ID: 1, MessageSID: "SM-stub-0042"}, nil)

	p := NewOutboundProcessor(client, tracker, idem)

	err := p.Process(context.Background(), invitationJob(t, "1690000000000-0"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), sends.Load())
	tracker.AssertExpectations(t)

	processed, err := idem.IsProcessed(context.Background(), "1690000000000-0")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestOutboundProcessor_Process_AlreadyProcessed(t *testing.T) {
	var sends atomic.Int64
	client, stop := startProviderStub(t, &sends, false)
	defer stop()

	idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	tracker := &mockSentRecorder{}
	p := NewOutboundProcessor(client, tracker, idem)

	// First delivery of the stream entry.
	tracker.On("RecordMessageSent", mock.Anything, int64(7), int64(42), model.EventInvitationSent, model.ChannelWhatsApp, "SM-stub-0042", "tmpl-invite-gold", false).
		Return(&model.TrackingEvent{ID: 1}, nil).Once()
	require.NoError(t, p.Process(context.Background(), invitationJob(t, "1690000000001-0")))

	// Redelivery of the same entry must not send again.
	require.NoError(t, p.Process(context.Background(), invitationJob(t, "1690000000001-0")))
	assert.Equal(t, int64(1), sends.Load())
	tracker.AssertExpectations(t)
}

func TestOutboundProcessor_Process_ProviderFailure(t *testing.T) {
	var sends atomic.Int64
	client, stop := startProviderStub(t, &sends, true)
	defer stop()

	idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	tracker := &mockSentRecorder{}
	p := NewOutboundProcessor(client, tracker, idem)

	err := p.Process(context.Background(), invitationJob(t, "1690000000002-0"))
	require.Error(t, err)
	tracker.AssertNotCalled(t, "RecordMessageSent")

	count, err := idem.GetRetryCount(context.Background(), "1690000000002-0")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOutboundProcessor_Process_MalformedPayload(t *testing.T) {
	var sends atomic.Int64
	client, stop := startProviderStub(t, &sends, false)
	defer stop()

	idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
	tracker := &mockSentRecorder{}
	p := NewOutboundProcessor(client, tracker, idem)

	msg := &queue.Message{ID: "1690000000003-0", Data: []byte("{not json"), Timestamp: time.Now()}
	err := p.Process(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, int64(0), sends.Load())
}
