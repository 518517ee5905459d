package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, retries int, maxBytes int64) (*Client, *Counter, *logger.TestLogger) {
	t.Helper()
	counter := &Counter{}
	log := logger.NewTestLogger()
	client := New(Options{
		Source:        "met",
		Timeout:       2 * time.Second,
		SearchRetries: retries,
		MaxImageBytes: maxBytes,
		Counter:       counter,
		Logger:        log,
		Backoff:       &retry.ConstantBackoff{Delay: time.Millisecond},
	})
	return client, counter, log
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"total": 2, "objectIDs": [1, 2]}`))
	}))
	defer server.Close()

	client, counter, _ := newTestClient(t, 2, 0)

	var out struct {
		Total     int   `json:"total"`
		ObjectIDs []int `json:"objectIDs"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, []int{1, 2}, out.ObjectIDs)
	assert.Equal(t, 1, counter.Value())
	assert.Equal(t, 1, client.Requests())
}

func TestGetJSONRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, counter, log := newTestClient(t, 2, 0)

	var out map[string]interface{}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, counter.Value())
	assert.True(t, log.HasMessage("retrying operation"))
}

func TestGetJSONGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _, _ := newTestClient(t, 1, 0)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSONStatusKinds(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   errs.Kind
	}{
		{http.StatusUnauthorized, "", errs.KindCredentials},
		{http.StatusForbidden, "", errs.KindCredentials},
		{http.StatusNotFound, "", errs.KindPermanent},
		{http.StatusOK, "{invalid json", errs.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+tt.body, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _, _ := newTestClient(t, 3, 0)
			var out map[string]interface{}
			err := client.GetJSON(context.Background(), server.URL, &out)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Equal(t, int32(1), calls.Load(), "non-transient errors must not be retried")
		})
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpegbytes"))
		case "/big.jpg":
			w.Write([]byte(strings.Repeat("x", 64)))
		case "/withheld.jpg":
			w.WriteHeader(http.StatusForbidden)
		case "/flaky.jpg":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, counter, _ := newTestClient(t, 5, 32)
	ctx := context.Background()

	data, contentType, err := client.Fetch(ctx, server.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
	assert.Equal(t, "image/jpeg", contentType)

	_, _, err = client.Fetch(ctx, server.URL+"/big.jpg")
	assert.True(t, errs.Is(err, errs.KindNotAnImage))

	_, _, err = client.Fetch(ctx, server.URL+"/withheld.jpg")
	assert.True(t, errs.Is(err, errs.KindPermanent))

	before := counter.Value()
	_, _, err = client.Fetch(ctx, server.URL+"/flaky.jpg")
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, before+1, counter.Value(), "image fetches are never retried")
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _, _ := newTestClient(t, 0, 0)
	_, _, err := client.Fetch(context.Background(), url+"/gone.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}

func TestNilCounter(t *testing.T) {
	var c *Counter
	c.Add()
	assert.Equal(t, 0, c.Value())
}

func TestRedact(t *testing.T) {
	assert.Equal(t,
		"https://api.example.org/object?apikey=REDACTED&page=2",
		redact("https://api.example.org/object?apikey=secret&page=2"))
	assert.Equal(t, "https://api.example.org/search?q=landscape", redact("https://api.example.org/search?q=landscape"))
}

func TestNetworkErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _, log := newTestClient(t, 0, 0)
	var out map[string]interface{}
	err := client.GetJSON(context.Background(), url+"/collection?key=hunter2", &out)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	for _, msg := range log.GetMessages() {
		if u, ok := msg.Fields["url"].(string); ok {
			assert.NotContains(t, u, "hunter2")
		}
	}
}

func TestGetJSONOnceDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, counter, _ := newTestClient(t, 2, 0)

	var out map[string]interface{}
	err := client.GetJSONOnce(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, counter.Value())
}

func TestFetchLogHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("imagebytes"))
	}))
	defer server.Close()

	client, _, log := newTestClient(t, 0, 0)
	_, _, err := client.Fetch(context.Background(), server.URL+"/img.jpg?apikey=hunter2")
	require.NoError(t, err)

	require.True(t, log.HasMessage("image downloaded"))
	for _, msg := range log.GetMessages() {
		if u, ok := msg.Fields["url"].(string); ok {
			assert.NotContains(t, u, "hunter2")
		}
	}
}
