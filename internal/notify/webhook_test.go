package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidymail/tidymail/internal/email"
)

func TestWebhookNotify(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL}, zerolog.New(io.Discard))
	err := n.Notify(context.Background(), &email.Email{
		ID:      "42",
		From:    "boss@company.com",
		Subject: "numbers",
		Body:    "see attached",
		Date:    "Mon, 16 Mar 2025 10:00:00 +0000",
	})
	require.NoError(t, err)

	assert.Equal(t, "email.matched", got["event"])
	assert.Equal(t, "Important Email: numbers", got["title"])
	payload, ok := got["email"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "42", payload["id"])
	assert.Equal(t, "boss@company.com", payload["from"])
}

func TestWebhookNotifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL}, zerolog.New(io.Discard))
	err := n.Notify(context.Background(), &email.Email{ID: "1", Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSummaryTruncatesLongBodies(t *testing.T) {
	long := make([]byte, 2*previewBytes)
	for i := range long {
		long[i] = 'a'
	}
	subject, body := summary(&email.Email{Subject: "big one", Body: string(long)})

	assert.Equal(t, "Important Email: big one", subject)
	assert.Less(t, len(body), len(long), "body preview is capped")
	assert.Contains(t, body, "...")
}
