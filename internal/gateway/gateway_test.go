package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/fittrack/internal/logger"
)

// Upstream that echoes what it received
type fakeUpstream struct {
	name string

	mu       sync.Mutex
	requests []*http.Request
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r.Clone(context.Background()))
	u.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(u.name + " " + r.Method + " " + r.URL.Path))
}

func (u *fakeUpstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *fakeUpstream) last(t *testing.T) *http.Request {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()

	require.NotEmpty(t, u.requests, "upstream should get request")
	return u.requests[len(u.requests)-1]
}

type limiterFunc func(ctx context.Context, q Quota, client string) (Decision, error)

func (f limiterFunc) Allow(ctx context.Context, q Quota, client string) (Decision, error) {
	return f(ctx, q, client)
}

type testGateway struct {
	url     string
	users   *fakeUpstream
	workout *fakeUpstream
	metrics *Metrics
}

func newTestGateway(t *testing.T, lim limiter, trustProxy bool) testGateway {
	t.Helper()

	users := &fakeUpstream{name: "users"}
	usersSrv := httptest.NewServer(users)
	t.Cleanup(usersSrv.Close)

	workout := &fakeUpstream{name: "workout"}
	workoutSrv := httptest.NewServer(workout)
	t.Cleanup(workoutSrv.Close)

	metrics := NewMetrics()
	g, err := New(Config{
		ID:                "gw-test",
		UserServiceURL:    usersSrv.URL,
		WorkoutServiceURL: workoutSrv.URL,
		TrustProxy:        trustProxy,
	}, lim, metrics, logger.NewNoOpLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)

	return testGateway{url: srv.URL, users: users, workout: workout, metrics: metrics}
}

func request(t *testing.T, method string, url string, headers ...string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func redisLimiter(t *testing.T) *Limiter {
	_, rdb := newTestRedis(t)
	return NewLimiter(rdb)
}

// Text exposition of gateway metrics, as the internal metrics server serves it
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestGateway_New(t *testing.T) {
	for name, cfg := range map[string]Config{
		"no id":           {UserServiceURL: "http://u", WorkoutServiceURL: "http://w"},
		"bad user url":    {ID: "gw", UserServiceURL: "u", WorkoutServiceURL: "http://w"},
		"no workout url":  {ID: "gw", UserServiceURL: "http://u"},
		"bad workout url": {ID: "gw", UserServiceURL: "http://u", WorkoutServiceURL: "://w"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, nil, NewMetrics(), logger.NewNoOpLogger())
			require.Error(t, err)
		})
	}
}

func TestGateway_Routing(t *testing.T) {
	t.Parallel()

	t.Run("routes by prefix", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		for path, want := range map[string]string{
			"/api/auth/login":             "users POST /api/auth/login",
			"/api/user/profile":           "users POST /api/user/profile",
			"/api/workout/workouts/stats": "workout POST /api/workout/workouts/stats",
		} {
			resp, body := request(t, http.MethodPost, gw.url+path)
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
			require.Equal(t, want, body)
		}
	})

	t.Run("upstream gets gateway id and forwarded headers", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, _ := request(t, http.MethodGet, gw.url+"/api/workout/workouts?page=2", "Cookie", "accessToken=abc")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		got := gw.workout.last(t)
		assert.Equal(t, "gw-test", got.Header.Get(GatewayIDHeader))
		assert.Equal(t, "127.0.0.1", got.Header.Get("X-Forwarded-For"))
		assert.Equal(t, "page=2", got.URL.RawQuery)
		assert.Equal(t, "accessToken=abc", got.Header.Get("Cookie"))
	})

	t.Run("untrusted forwarded header is dropped", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, _ := request(t, http.MethodGet, gw.url+"/api/user/profile", "X-Forwarded-For", "1.2.3.4")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "127.0.0.1", gw.users.last(t).Header.Get("X-Forwarded-For"))
	})

	t.Run("trusted forwarded header is kept", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), true)

		resp, _ := request(t, http.MethodGet, gw.url+"/api/user/profile", "X-Forwarded-For", "1.2.3.4")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "1.2.3.4, 127.0.0.1", gw.users.last(t).Header.Get("X-Forwarded-For"))
	})

	t.Run("unknown route", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, body := request(t, http.MethodGet, gw.url+"/api/unknown")

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.JSONEq(t, `
			{
				"error": "Route not found",
				"message": "The endpoint GET /api/unknown does not exist",
				"gateway": "gw-test",
				"availableRoutes": ["GET /health", "/api/auth/*", "/api/user/*", "/api/workout/*"]
			}`, body)
	})

	t.Run("metrics not served publicly", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, body := request(t, http.MethodGet, gw.url+"/metrics")

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Contains(t, body, `"error":"Route not found"`)
		require.Contains(t, scrape(t, gw.metrics), `gateway_requests_total{route="unmatched",status="404"} 1`)
	})

	t.Run("upstream down", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		downURL := down.URL
		down.Close()

		metrics := NewMetrics()
		g, err := New(Config{ID: "gw-test", UserServiceURL: downURL, WorkoutServiceURL: downURL}, redisLimiter(t), metrics, logger.NewNoOpLogger())
		require.NoError(t, err)
		srv := httptest.NewServer(g.Handler())
		defer srv.Close()

		resp, body := request(t, http.MethodPost, srv.URL+"/api/auth/login")

		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.JSONEq(t, `{"error": "User service temporarily unavailable", "gateway": "gw-test"}`, body)

		require.Contains(t, scrape(t, metrics), `gateway_upstream_errors_total{service="user"} 1`)
	})

	t.Run("health", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, body := request(t, http.MethodGet, gw.url+"/health")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, `"status":"OK"`)
		require.Contains(t, body, `"gateway":"gw-test"`)
	})

	t.Run("security headers", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), false)

		resp, _ := request(t, http.MethodGet, gw.url+"/api/user/profile")

		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
	})
}

func TestGateway_RateLimit(t *testing.T) {
	t.Parallel()

	t.Run("general quota", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), true)

		for i := 1; i <= 100; i++ {
			resp, _ := request(t, http.MethodGet, gw.url+"/api/workout/workouts", "X-Forwarded-For", "10.0.0.1")
			require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
		}

		resp, body := request(t, http.MethodGet, gw.url+"/api/workout/workouts", "X-Forwarded-For", "10.0.0.1")
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.JSONEq(t, `{"error": "Too many requests from this IP, please try again later.", "gateway": "gw-test"}`, body)
		assert.Equal(t, "100", resp.Header.Get("RateLimit-Limit"))
		assert.Equal(t, "0", resp.Header.Get("RateLimit-Remaining"))
		assert.Equal(t, "900", resp.Header.Get("Retry-After"))
		assert.Equal(t, 100, gw.workout.count(), "rejected request doesn't reach upstream")

		// Other client is not affected
		resp, _ = request(t, http.MethodGet, gw.url+"/api/workout/workouts", "X-Forwarded-For", "10.0.0.2")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "99", resp.Header.Get("RateLimit-Remaining"))

		metricsBody := scrape(t, gw.metrics)
		require.Contains(t, metricsBody, `gateway_rate_limited_total{quota="general"} 1`)
		require.Contains(t, metricsBody, `gateway_requests_total{route="workout",status="429"} 1`)
	})

	t.Run("auth quota", func(t *testing.T) {
		gw := newTestGateway(t, redisLimiter(t), true)

		for i := 1; i <= 20; i++ {
			resp, _ := request(t, http.MethodPost, gw.url+"/api/auth/login", "X-Forwarded-For", "10.0.0.1")
			require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
		}

		resp, body := request(t, http.MethodPost, gw.url+"/api/auth/login", "X-Forwarded-For", "10.0.0.1")
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.JSONEq(t, `{"error": "Too many authentication attempts from this IP, please try again later.", "gateway": "gw-test"}`, body)
		assert.Equal(t, "20", resp.Header.Get("RateLimit-Limit"))

		// Auth quota doesn't apply to other paths
		resp, _ = request(t, http.MethodGet, gw.url+"/api/user/profile", "X-Forwarded-For", "10.0.0.1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics path is limited like any other", func(t *testing.T) {
		var calls atomic.Int32
		lim := limiterFunc(func(_ context.Context, q Quota, _ string) (Decision, error) {
			calls.Add(1)
			return Decision{Allowed: false, Limit: q.Limit, Reset: time.Minute}, nil
		})
		gw := newTestGateway(t, lim, false)

		resp, body := request(t, http.MethodGet, gw.url+"/metrics")

		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.NotContains(t, body, "gateway_requests_total")
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		lim := limiterFunc(func(context.Context, Quota, string) (Decision, error) {
			return Decision{}, errors.New("redis is down")
		})
		gw := newTestGateway(t, lim, false)

		resp, body := request(t, http.MethodPost, gw.url+"/api/auth/login")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, strings.HasPrefix(body, "users"))
		require.Empty(t, resp.Header.Get("RateLimit-Limit"))
	})

	t.Run("client is peer address without trusted proxy", func(t *testing.T) {
		var (
			mu      sync.Mutex
			clients []string
		)
		lim := limiterFunc(func(_ context.Context, q Quota, client string) (Decision, error) {
			mu.Lock()
			defer mu.Unlock()
			clients = append(clients, client)
			return Decision{Allowed: true, Limit: q.Limit, Remaining: q.Limit}, nil
		})
		gw := newTestGateway(t, lim, false)

		resp, _ := request(t, http.MethodGet, gw.url+"/health", "X-Forwarded-For", "1.2.3.4")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []string{"127.0.0.1"}, clients)
	})
}
