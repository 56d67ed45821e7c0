package publisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookStatusClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{name: "ok", status: http.StatusOK, wantCode: OutcomeSuccess},
		{name: "created", status: http.StatusCreated, wantCode: OutcomeSuccess},
		{name: "rate limited", status: http.StatusTooManyRequests, wantCode: OutcomeTransient},
		{name: "request timeout", status: http.StatusRequestTimeout, wantCode: OutcomeTransient},
		{name: "server error", status: http.StatusBadGateway, wantCode: OutcomeTransient},
		{name: "rejected", status: http.StatusUnprocessableEntity, wantCode: OutcomePermanent},
		{name: "bad request", status: http.StatusBadRequest, wantCode: OutcomePermanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
				}
				if r.Header.Get("X-Request-ID") == "" {
					t.Error("missing X-Request-ID")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			pub := NewWebhookPublisher("test", srv.URL)
			outcome := pub.Publish(context.Background(), &Payload{PostID: 1, Text: "hello"})
			if outcome.Code != tt.wantCode {
				t.Fatalf("Code = %s, want %s (detail: %s)", outcome.Code, tt.wantCode, outcome.Detail)
			}
		})
	}
}

func TestWebhookTimeoutIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	pub := NewWebhookPublisher("test", srv.URL)
	outcome := pub.Publish(ctx, &Payload{PostID: 1, Text: "hello"})
	if outcome.Code != OutcomeTransient {
		t.Fatalf("Code = %s, want %s", outcome.Code, OutcomeTransient)
	}
}

func TestWebhookUnreachableIsTransient(t *testing.T) {
	t.Parallel()
	pub := NewWebhookPublisher("test", "http://127.0.0.1:1")
	outcome := pub.Publish(context.Background(), &Payload{PostID: 1, Text: "hello"})
	if outcome.Code != OutcomeTransient {
		t.Fatalf("Code = %s, want %s", outcome.Code, OutcomeTransient)
	}
}
