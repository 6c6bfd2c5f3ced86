// Package gateway is the single entry point of fittrack: it rate limits clients
// and proxies requests to the user and workout services by path prefix.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nkiryanov/fittrack/internal/apperrors"
	"github.com/nkiryanov/fittrack/internal/handlers/middleware"
	"github.com/nkiryanov/fittrack/internal/handlers/render"
	"github.com/nkiryanov/fittrack/internal/logger"
)

const (
	GatewayIDHeader = "X-Gateway-ID"

	authPrefix = "/api/auth/"

	routeHealth    = "health"
	routeUnmatched = "unmatched"
)

type limiter interface {
	Allow(ctx context.Context, q Quota, client string) (Decision, error)
}

type Config struct {
	// Sent to clients and upstreams so responses can be traced to the instance
	ID string

	UserServiceURL    string
	WorkoutServiceURL string

	// Take client address from X-Forwarded-For. Only behind a trusted load balancer
	TrustProxy bool
}

type upstream struct {
	name     string
	title    string
	prefixes []string
	proxy    *httputil.ReverseProxy
}

type Gateway struct {
	id         string
	trustProxy bool

	upstreams []*upstream
	limiter   limiter
	metrics   *Metrics
	log       logger.Logger
}

type errorResponse struct {
	Error           string   `json:"error"`
	Message         string   `json:"message,omitempty"`
	Gateway         string   `json:"gateway"`
	AvailableRoutes []string `json:"availableRoutes,omitempty"`
}

var availableRoutes = []string{
	"GET /health",
	"/api/auth/*",
	"/api/user/*",
	"/api/workout/*",
}

func New(cfg Config, lim limiter, metrics *Metrics, l logger.Logger) (*Gateway, error) {
	if cfg.ID == "" {
		return nil, errors.New("gateway id must not be empty")
	}

	g := &Gateway{
		id:         cfg.ID,
		trustProxy: cfg.TrustProxy,
		limiter:    lim,
		metrics:    metrics,
		log:        l.With("gateway", cfg.ID),
	}

	for _, u := range []struct {
		name     string
		title    string
		rawURL   string
		prefixes []string
	}{
		{"user", "User service", cfg.UserServiceURL, []string{"/api/auth/", "/api/user/"}},
		{"workout", "Workout service", cfg.WorkoutServiceURL, []string{"/api/workout/"}},
	} {
		target, err := url.Parse(u.rawURL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid %s url %q", u.name, u.rawURL)
		}

		up := &upstream{name: u.name, title: u.title, prefixes: u.prefixes}
		up.proxy = g.newProxy(target, up)
		g.upstreams = append(g.upstreams, up)
	}

	return g, nil
}

// Public handler. Metrics are not part of it, serve Metrics.Handler on an internal address
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", g.handleHealth())
	for _, up := range g.upstreams {
		for _, prefix := range up.prefixes {
			mux.Handle(prefix, up.proxy)
		}
	}
	mux.Handle("/", g.handleNotFound())

	var h http.Handler = mux
	h = g.rateLimit(h)
	h = g.observe(h)
	h = middleware.LoggerMiddleware(g.log)(h)
	h = securityHeaders(h)
	return h
}

func (g *Gateway) newProxy(target *url.URL, up *upstream) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if g.trustProxy {
				pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
			}
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Set(GatewayIDHeader, g.id)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			err = fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, err)
			g.log.Error("proxy failed", "service", up.name, "uri", r.RequestURI, "error", err)
			g.metrics.upstreamErrInc(up.name)

			render.JSONWithStatus(w, errorResponse{
				Error:   up.title + " temporarily unavailable",
				Gateway: g.id,
			}, http.StatusBadGateway)
		},
	}
}

func (g *Gateway) handleHealth() http.Handler {
	type response struct {
		Status    string    `json:"status"`
		Gateway   string    `json:"gateway"`
		Timestamp time.Time `json:"timestamp"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "OK", Gateway: g.id, Timestamp: time.Now().UTC()})
	})
}

func (g *Gateway) handleNotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSONWithStatus(w, errorResponse{
			Error:           "Route not found",
			Message:         fmt.Sprintf("The endpoint %s %s does not exist", r.Method, r.URL.Path),
			Gateway:         g.id,
			AvailableRoutes: availableRoutes,
		}, http.StatusNotFound)
	})
}

// Count request against general quota, and against auth quota on auth paths
// Limiter failure lets the request through
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		quotas := []Quota{GeneralQuota}
		if strings.HasPrefix(r.URL.Path, authPrefix) {
			quotas = append(quotas, AuthQuota)
		}

		client := g.clientIP(r)
		for _, q := range quotas {
			d, err := g.limiter.Allow(r.Context(), q, client)
			if err != nil {
				g.log.Warn("rate limiter unavailable, request let through", "quota", q.Name, "error", err)
				continue
			}

			setRateLimitHeaders(w, d)
			if !d.Allowed {
				g.log.Info("request rejected", "quota", q.Name, "client", client, "error", apperrors.ErrRateLimited)
				g.metrics.rateLimitedInc(q.Name)

				w.Header().Set("Retry-After", strconv.Itoa(seconds(d.Reset)))
				render.JSONWithStatus(w, errorResponse{Error: q.Message, Gateway: g.id}, http.StatusTooManyRequests)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		g.metrics.observeRequest(g.route(r.URL.Path), rec.Status(), time.Since(start).Seconds())
	})
}

// Metrics label of the path, bounded set of values
func (g *Gateway) route(path string) string {
	if path == "/health" {
		return routeHealth
	}

	for _, up := range g.upstreams {
		for _, prefix := range up.prefixes {
			if strings.HasPrefix(path, prefix) {
				return up.name
			}
		}
	}
	return routeUnmatched
}

// Address requests are counted by
// X-Forwarded-For first hop when proxy is trusted, peer address otherwise
func (g *Gateway) clientIP(r *http.Request) string {
	if g.trustProxy {
		if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("RateLimit-Reset", strconv.Itoa(seconds(d.Reset)))
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
