package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = make(map[string]string)
			return d.Obj(func(d *jx.Decoder, name string) error {
				msg, err := d.Str()
				body.Checks[name] = msg
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func runN(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		runs       int
		wantStatus int
		wantBody   string
	}{
		{"healthy before first run", 0, http.StatusOK, "ok"},
		{"below threshold", failureThreshold - 1, http.StatusOK, "ok"},
		{"at threshold", failureThreshold, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("db", time.Second, failing("connection refused"))
			runN(h.liveness[0], tt.runs)

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decodeStatus(t, w)
			assert.Equal(t, tt.wantBody, body.Status)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "connection refused", body.Checks["db"])
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing())

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	w = serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_OneFailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("postgres", time.Second, passing())
	h.AddReadinessCheck("cache", time.Second, failing("timeout"))
	runN(h.readiness[1], failureThreshold)

	w := serve(h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, map[string]string{"cache": "timeout"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestProbe_Recovers(t *testing.T) {
	var (
		mu   sync.Mutex
		fail = true
	)
	p := newProbe("flaky", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("down")
		}
		return nil
	})

	runN(p, failureThreshold)
	_, failed := p.failure()
	require.True(t, failed)

	mu.Lock()
	fail = false
	mu.Unlock()
	runN(p, successThreshold)
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestStartAndStop(t *testing.T) {
	h := New()
	calls := make(chan struct{}, 16)
	h.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("check did not run")
	}
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddLivenessCheck("live", time.Second, passing())
	h.AddReadinessCheck("ready", time.Second, passing())
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				serve(h.LiveEndpoint)
				serve(h.ReadyEndpoint)
				h.IsReady()
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(ctx))
	assert.ErrorContains(t, PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))(ctx), "refused")

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
