package ably_test

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ably/ably-rest-go/ably"
	"github.com/ably/ably-rest-go/ably/ablytest"
	"github.com/stretchr/testify/require"
)

const testKey = "app.key:secret"

// newClient builds a client sending its requests to mock.
func newClient(t *testing.T, mock *ablytest.MockTransport, options ...ably.ClientOption) *ably.REST {
	t.Helper()
	opts := []ably.ClientOption{
		ably.WithHTTPClient(mock.Client()),
		ably.WithLogHandler(ablytest.DiscardLogger),
		ably.WithLogLevel(ably.LogNone),
	}
	client, err := ably.NewREST(append(opts, options...)...)
	require.NoError(t, err)
	return client
}

// timeoutError is a transport failure reported as a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func readBody(t *testing.T, req *http.Request) []byte {
	t.Helper()
	if req.Body == nil {
		return nil
	}
	p, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	return p
}

func tokenResponse(token string, expires time.Time) ablytest.Response {
	return ablytest.JSON(map[string]interface{}{
		"token":   token,
		"keyName": "app.key",
		"issued":  expires.Add(-time.Hour).UnixMilli(),
		"expires": expires.UnixMilli(),
	})
}
