// Package guard wraps protected page handlers. Nothing of a wrapped page is
// served until an authorization decision is reached, and the decision is
// recomputed on every request so a session revoked after a page was first
// served redirects on the next interaction.
package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/internhub/go-portal-gate/gate"
)

// Decision is the outcome of evaluating a gate status against a page's role
// requirement. It is derived state, computed fresh on every evaluation.
type Decision int

const (
	// DecisionPending means the gate has not finished initializing; no
	// redirect decision may be made yet.
	DecisionPending Decision = iota
	// DecisionAllow renders the protected content.
	DecisionAllow
	// DecisionRedirectLogin sends an unauthenticated visitor to the login
	// entry point.
	DecisionRedirectLogin
	// DecisionRedirectStudent sends a non-admin away from an admin page.
	DecisionRedirectStudent
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectStudent:
		return "redirect_student"
	}
	return "unknown"
}

// Evaluate computes the authorization decision for a page. Denial for the
// wrong role is a defined redirect, not an error.
func Evaluate(status gate.Status, requireAdmin bool) Decision {
	if status.Loading {
		return DecisionPending
	}
	if !status.IsAuthenticated {
		return DecisionRedirectLogin
	}
	if requireAdmin && !status.IsAdmin {
		return DecisionRedirectStudent
	}
	return DecisionAllow
}

// Authorizer is the slice of the gate the guard reads. The guard never
// mutates the session; it only consumes decisions.
type Authorizer interface {
	Status() gate.Status
	Wait(ctx context.Context) error
}

// Metrics receives guard decision counts.
type Metrics interface {
	GuardDecision(decision string)
}

type nopMetrics struct{}

func (nopMetrics) GuardDecision(string) {}

const (
	defaultLoginPath   = "/login"
	defaultStudentHome = "/student"
	defaultReadyWait   = 3 * time.Second
)

// Guard gates protected routes against the auth gate.
type Guard struct {
	authorizer  Authorizer
	loginPath   string
	studentHome string
	readyWait   time.Duration
	logger      zerolog.Logger
	metrics     Metrics
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath overrides the login entry point.
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// WithStudentHome overrides the default student landing page.
func WithStudentHome(path string) Option {
	return func(g *Guard) {
		g.studentHome = path
	}
}

// WithReadyWait bounds how long a request waits for the gate to finish
// initializing before being served the loading page.
func WithReadyWait(d time.Duration) Option {
	return func(g *Guard) {
		g.readyWait = d
	}
}

// WithLogger sets the guard's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMetrics sets the decision counter sink.
func WithMetrics(m Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New creates a Guard reading decisions from authorizer.
func New(authorizer Authorizer, options ...Option) (*Guard, error) {
	if authorizer == nil {
		return nil, errors.New("[guard.New] authorizer is required")
	}

	g := &Guard{
		authorizer:  authorizer,
		loginPath:   defaultLoginPath,
		studentHome: defaultStudentHome,
		readyWait:   defaultReadyWait,
		logger:      zerolog.Nop(),
		metrics:     nopMetrics{},
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Protect wraps a handler, enforcing authentication and, when requireAdmin is
// set, the admin role.
func (g *Guard) Protect(requireAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), g.readyWait)
			defer cancel()
			_ = g.authorizer.Wait(ctx)

			decision := Evaluate(g.authorizer.Status(), requireAdmin)
			g.metrics.GuardDecision(decision.String())

			switch decision {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionRedirectLogin:
				g.logger.Debug().Str("path", r.URL.Path).Msg("unauthenticated, redirecting to login")
				http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
			case DecisionRedirectStudent:
				g.logger.Debug().Str("path", r.URL.Path).Msg("admin required, redirecting to student home")
				http.Redirect(w, r, g.studentHome, http.StatusSeeOther)
			default:
				serveLoading(w)
			}
		})
	}
}

// serveLoading renders a neutral placeholder that retries shortly. Protected
// content is never written while the decision is pending.
func serveLoading(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><html><body><div class="loading-spinner" aria-busy="true">Loading&hellip;</div></body></html>`))
}
