package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestText(t *testing.T) {
	tests := []struct {
		eventType string
		payload   map[string]any
		want      string
	}{
		{"payment_held", map[string]any{"pet_name": "Rex"}, "Payment for Rex is held in escrow until the handover is confirmed."},
		{"adoption_request_status_changed", map[string]any{"pet_name": "Rex", "status": "payment_pending"}, "Your adoption request for Rex is now payment pending."},
		{"dispute_resolved", map[string]any{"outcome": "favor_adopter"}, "The dispute on the adoption of your pet was resolved: favor adopter."},
		{"something_else", nil, "something else"},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.eventType, tt.payload))
		})
	}
}

func TestHTTPNotifier(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/notify", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	user := uuid.New()
	n := NewHTTPNotifier(srv.URL, zap.NewNop())
	require.NoError(t, n.Send(context.Background(), Message{UserID: user, EventType: "payment_held", Text: "hi"}))
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, "hi", got.Text)
}
