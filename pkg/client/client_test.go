package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"marsfeed/pkg/config"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/ratelimit"
)

func newTestClient(log logger.Logger) *Client {
	return NewClient(config.HTTPConfig{UserAgent: "marsfeed-test", Timeout: 5 * time.Second}, nil, log)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "marsfeed-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer server.Close()

	var doc map[string]interface{}
	err := newTestClient(logger.NewNopLogger()).GetJSON(context.Background(), server.URL, &doc)

	require.NoError(t, err)
	assert.Equal(t, "FeatureCollection", doc["type"])
}

func TestGetJSONParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	var doc map[string]interface{}
	err := newTestClient(log).GetJSON(context.Background(), server.URL, &doc)

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeParsing, typed.Type)
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		expected errs.ErrorType
	}{
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(logger.NewNopLogger()).Get(context.Background(), server.URL)

			var typed *errs.Error
			require.True(t, errors.As(err, &typed))
			assert.Equal(t, tt.expected, typed.Type)
			assert.Equal(t, tt.status, typed.Code)
		})
	}
}

func TestDownload(t *testing.T) {
	payload := []byte("\x89PNG fake frame")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := newTestClient(logger.NewNopLogger()).Download(context.Background(), server.URL+"/a.png", &buf)

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestNetworkErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(logger.NewNopLogger()).Get(context.Background(), url)

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeNetwork, typed.Type)
}

func TestLimiterCancellation(t *testing.T) {
	limiter := ratelimit.NewRequestLimiter(0.001, 1)
	require.True(t, limiter.Allow())
	c := NewClient(config.HTTPConfig{Timeout: time.Second}, limiter, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "http://127.0.0.1:1/never")
	assert.Error(t, err)
}
