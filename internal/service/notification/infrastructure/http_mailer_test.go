package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/notification/domain"
)

func TestHTTPMailer_Send(t *testing.T) {
	var (
		got  sendRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewHTTPMailer(httpclient.NewClient(noop.NewTracerProvider().Tracer("test")), srv.URL, "key-1", "orders@shop.test")
	err := m.Send(context.Background(), &domain.Email{To: "ada@example.com", Subject: "Order confirmation #o-1", Body: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, sendRequest{From: "orders@shop.test", To: "ada@example.com", Subject: "Order confirmation #o-1", Text: "hello"}, got)
}

func TestHTTPMailer_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewHTTPMailer(httpclient.NewClient(noop.NewTracerProvider().Tracer("test")), srv.URL, "", "orders@shop.test")
	err := m.Send(context.Background(), &domain.Email{To: "ada@example.com"})

	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}
