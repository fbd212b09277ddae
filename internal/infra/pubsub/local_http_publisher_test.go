package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"usermgmt/config"
	"usermgmt/internal/domain/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestLocalHTTPPublisher_PublishAccountEvent(t *testing.T) {
	var (
		received  PubSubPushMessage
		requestID string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get("X-Request-Id")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, discardLogger())
	event := &service.AccountEvent{
		RequestID:  "req-1",
		Type:       service.EventUserRegistered,
		UserID:     "user-1",
		Email:      "test@example.com",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, publisher.PublishAccountEvent(context.Background(), event))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, localSubscription, received.Subscription)
	assert.NotEmpty(t, received.Message.MessageID)
	assert.Equal(t, map[string]string{
		"event_type": service.EventUserRegistered,
		"user_id":    "user-1",
		"request_id": "req-1",
	}, received.Message.Attributes)

	data, err := base64.StdEncoding.DecodeString(received.Message.Data)
	require.NoError(t, err)

	var decoded service.AccountEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, event.UserID, decoded.UserID)
	assert.Equal(t, event.Email, decoded.Email)
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
}

func TestLocalHTTPPublisher_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, discardLogger())

	err := publisher.PublishAccountEvent(context.Background(), &service.AccountEvent{Type: service.EventUserDeleted, UserID: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewEventPublisher(t *testing.T) {
	newParams := func(t *testing.T, cfg *config.PubSubConfig) PublisherParams {
		return PublisherParams{
			Lc:     fxtest.NewLifecycle(t),
			Config: &config.Config{PubSub: cfg},
			Logger: discardLogger(),
		}
	}

	t.Run("not configured is no-op", func(t *testing.T) {
		publisher, err := NewEventPublisher(newParams(t, nil))
		require.NoError(t, err)
		assert.IsType(t, &noopPublisher{}, publisher)
		assert.NoError(t, publisher.PublishAccountEvent(context.Background(), &service.AccountEvent{}))
	})

	t.Run("local registers close hook", func(t *testing.T) {
		params := newParams(t, &config.PubSubConfig{Provider: config.PubSubProviderLocal, LocalEndpoint: "http://localhost:1"})
		publisher, err := NewEventPublisher(params)
		require.NoError(t, err)
		assert.IsType(t, &localHTTPPublisher{}, publisher)
		lc := params.Lc.(*fxtest.Lifecycle)
		lc.RequireStart().RequireStop()
	})

	t.Run("local without endpoint", func(t *testing.T) {
		_, err := NewEventPublisher(newParams(t, &config.PubSubConfig{Provider: config.PubSubProviderLocal}))
		assert.Error(t, err)
	})

	t.Run("google without project", func(t *testing.T) {
		_, err := NewEventPublisher(newParams(t, &config.PubSubConfig{Provider: config.PubSubProviderGoogle, TopicID: "t"}))
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEventPublisher(newParams(t, &config.PubSubConfig{Provider: "kafka"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown pubsub provider")
	})
}
