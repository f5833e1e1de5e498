package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func fetch(t *testing.T, h *Health, path string) (int, statusResponse) {
	t.Helper()
	e := echo.New()
	h.Register(e)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, echo.MIMEApplicationJSON, w.Header().Get(echo.HeaderContentType))
	return w.Code, body
}

func runTimes(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLive_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("check1", time.Second, passingCheck())
	h.AddLivenessCheck("check2", time.Second, passingCheck())

	status, body := fetch(t, h, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLive_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))
	runTimes(h.liveness[0], 3)

	status, body := fetch(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLive_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, failingCheck("temporary"))
	runTimes(h.liveness[0], 2)

	status, _ := fetch(t, h, "/livez")
	assert.Equal(t, http.StatusOK, status)
}

func TestWithThresholds(t *testing.T) {
	h := New()
	h.AddLivenessCheck("strict", time.Second, failingCheck("down"), WithThresholds(1, 2))
	c := h.liveness[0]

	runTimes(c, 1)
	assert.False(t, c.isHealthy())

	c.fn = passingCheck()
	runTimes(c, 1)
	assert.False(t, c.isHealthy(), "one pass is below the success threshold")
	runTimes(c, 1)
	assert.True(t, c.isHealthy())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		checks     map[string]CheckFunc
		wantStatus int
		wantChecks []string
	}{
		{
			name:       "ready and passing",
			ready:      true,
			checks:     map[string]CheckFunc{"postgres": passingCheck()},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not marked ready",
			ready:      false,
			checks:     map[string]CheckFunc{"postgres": passingCheck()},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: []string{"_readiness"},
		},
		{
			name:  "one of two failing",
			ready: true,
			checks: map[string]CheckFunc{
				"postgres": passingCheck(),
				"kafka":    failingCheck("no brokers"),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: []string{"kafka"},
		},
		{
			name:       "no checks",
			ready:      true,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, fn := range tt.checks {
				h.AddReadinessCheck(name, time.Second, fn)
			}
			for _, c := range h.readiness {
				runTimes(c, 3)
			}
			h.SetReady(tt.ready)

			status, body := fetch(t, h, "/readyz")
			assert.Equal(t, tt.wantStatus, status)
			for _, name := range tt.wantChecks {
				assert.Contains(t, body.Checks, name)
			}
			assert.Len(t, body.Checks, len(tt.wantChecks))
		})
	}
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passingCheck())

	assert.False(t, h.IsReady(), "should not be ready before SetReady")
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]

	runTimes(c, 3)
	assert.False(t, c.isHealthy())

	failing = false
	runTimes(c, 1)
	assert.True(t, c.isHealthy())
}

func TestCheckLastErrorStored(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("timeout"))
	c := h.liveness[0]

	assert.Nil(t, c.lastError())
	runTimes(c, 1)
	assert.EqualError(t, c.lastError(), "timeout")
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := h.readiness[0]

	runTimes(c, 1)
	assert.ErrorIs(t, c.lastError(), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutine", time.Second, passingCheck())
	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	e := echo.New()
	h.Register(e)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(fakePinger{})(context.Background()))

	err := PingCheck(fakePinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestKafkaCheck_NoBrokers(t *testing.T) {
	err := KafkaCheck(nil)(context.Background())
	assert.EqualError(t, err, "no kafka brokers configured")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
