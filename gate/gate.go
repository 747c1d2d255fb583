// Package gate is the single source of truth for who the current user is and
// whether they can be trusted right now.
//
// The gate restores a cached session from the store, trusts it immediately so
// pages render without waiting on the network, and re-validates the token in
// the background. Any verification failure revokes the session and clears the
// store: on doubt, the user is anonymous.
package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/internhub/go-portal-gate/portalapi"
	"github.com/internhub/go-portal-gate/session"
)

// State is the gate's position in its per-process lifecycle.
type State int

const (
	// StateInitializing is the initial state while the stored session is
	// being restored or, when no cached user record exists, verified.
	StateInitializing State = iota
	// StateProvisional is an authenticated state based on cached identity
	// that has not yet been confirmed by the backend.
	StateProvisional
	// StateConfirmed is the stable authenticated state.
	StateConfirmed
	// StateAnonymous means no trusted session exists.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateProvisional:
		return "provisional"
	case StateConfirmed:
		return "confirmed"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Status is a snapshot of the gate's decision at a point in time. Loading is
// true only while the gate is still Initializing; consumers making redirect
// decisions must wait for Loading to clear first.
type Status struct {
	State           State
	Loading         bool
	IsAuthenticated bool
	IsAdmin         bool
	Role            session.Role
	User            *session.User
}

// Metrics receives gate outcome counts. internal/metrics implements it; the
// zero gate uses a no-op.
type Metrics interface {
	LoginAttempt(success bool)
	Verification(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) LoginAttempt(bool)   {}
func (nopMetrics) Verification(string) {}

const defaultVerifyTimeout = 10 * time.Second

// Gate owns the session lifecycle.
type Gate struct {
	store    session.Store
	verifier Verifier

	logger        zerolog.Logger
	metrics       Metrics
	verifyTimeout time.Duration
	nowTime       func() time.Time

	lock    sync.Mutex
	state   State
	token   string
	user    *session.User
	gen     uint64 // bumped on login/logout/refresh so stale verifications are dropped
	loading bool
	readyCh chan struct{}
	started bool

	subsLock sync.Mutex
	subs     map[int]chan Status
	nextSub  int

	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// Option configures a Gate.
type Option func(*Gate)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

// WithVerifyTimeout bounds the background token verification call. On expiry
// the verification counts as failed and the session is revoked.
func WithVerifyTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.verifyTimeout = d
	}
}

// WithLogger sets the gate's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics sets the outcome counter sink.
func WithMetrics(m Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a Gate. Start must be called before the gate reports anything
// other than Loading.
func New(store session.Store, verifier Verifier, options ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("[gate.New] session store is required")
	}
	if verifier == nil {
		return nil, errors.New("[gate.New] verifier is required")
	}

	g := &Gate{
		store:         store,
		verifier:      verifier,
		logger:        zerolog.Nop(),
		metrics:       nopMetrics{},
		verifyTimeout: defaultVerifyTimeout,
		nowTime:       time.Now,
		state:         StateInitializing,
		loading:       true,
		readyCh:       make(chan struct{}),
		subs:          make(map[int]chan Status),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Start restores the stored session and kicks off background verification.
// It returns once the cached decision is available; it only blocks on the
// network when a token exists without a usable cached user record.
func (g *Gate) Start(ctx context.Context) {
	g.lock.Lock()
	if g.started {
		g.lock.Unlock()
		return
	}
	g.started = true
	g.bgCtx, g.bgCancel = context.WithCancel(context.WithoutCancel(ctx))
	g.lock.Unlock()

	g.restore()
}

// restore reads the store and applies the optimistic-then-verify sequence.
func (g *Gate) restore() {
	token, user, err := g.store.Load()
	if err != nil {
		// Store failures never surface to consumers; they degrade to an
		// anonymous session.
		g.logger.Error().Err(err).Msg("session store unreadable")
		token, user = "", nil
	}

	g.lock.Lock()
	if token == "" {
		g.setStateLocked(StateAnonymous, "", nil)
		g.lock.Unlock()
		return
	}

	gen := g.gen
	if user != nil && user.Role != "" {
		// Optimistic adoption: trust the cached identity now, confirm in the
		// background. A revoked token is honored for at most one round trip.
		g.setStateLocked(StateProvisional, token, user)
		g.lock.Unlock()
		go g.verify(gen, token)
		return
	}

	// Token without a trustworthy cached record: stay loading until the
	// backend answers. A cached record with no role must not authorize
	// role-gated content, so it is treated the same as no record.
	g.state = StateInitializing
	g.token = token
	g.user = nil
	g.lock.Unlock()
	go g.verify(gen, token)
}

// verify re-validates token against the backend and applies the outcome,
// unless the session changed underneath it (logout, new login) in which case
// the result is discarded.
func (g *Gate) verify(gen uint64, token string) {
	outcome, verified := g.runVerification(token)

	g.lock.Lock()
	defer g.lock.Unlock()

	if gen != g.gen {
		g.logger.Debug().Str("outcome", outcome).Msg("discarding stale verification result")
		return
	}

	g.metrics.Verification(outcome)

	if verified == nil {
		g.logger.Info().Str("outcome", outcome).Msg("token verification failed, revoking session")
		if err := g.store.Clear(); err != nil {
			g.logger.Error().Err(err).Msg("failed clearing session store")
		}
		g.setStateLocked(StateAnonymous, "", nil)
		return
	}

	user := &session.User{
		ID:   verified.ID,
		Name: verified.Name,
		Role: session.ParseRole(string(verified.Role)),
	}
	// Preserve the identifier slot recorded at login when the backend does
	// not echo one back.
	switch {
	case verified.Email != "":
		user.Email = verified.Email
	case verified.Username != "":
		user.Username = verified.Username
	case g.user != nil:
		user.Email = g.user.Email
		user.Username = g.user.Username
	}

	if err := g.store.Save(token, user); err != nil {
		g.logger.Error().Err(err).Msg("failed persisting refreshed session")
	}
	g.setStateLocked(StateConfirmed, token, user)
}

// runVerification performs the network call, short-circuiting tokens that
// are demonstrably expired. Returns a nil user for any failure.
func (g *Gate) runVerification(token string) (string, *portalapi.VerifiedUser) {
	if tokenExpired(token, g.nowTime()) {
		return "expired", nil
	}

	ctx, cancel := context.WithTimeout(g.bgCtx, g.verifyTimeout)
	defer cancel()

	verified, err := g.verifier.VerifyToken(ctx, token)
	switch {
	case err == nil:
		return "confirmed", verified
	case errors.Is(err, portalapi.TokenInvalidErr):
		return "rejected", nil
	default:
		// Unreachable backend counts as failure: fail-closed.
		return "unreachable", nil
	}
}

// Login authenticates with the backend. Identifiers containing '@' are sent
// as an email, anything else as a username. On success the session is
// persisted and the gate is Confirmed; on failure nothing changes and the
// error carries a user-displayable message.
func (g *Gate) Login(ctx context.Context, identifier, password string) (session.Role, error) {
	creds := portalapi.Credentials{Password: password}
	isEmail := strings.Contains(identifier, "@")
	if isEmail {
		creds.Email = identifier
	} else {
		creds.Username = identifier
	}

	result, err := g.verifier.Login(ctx, creds)
	if err != nil {
		g.metrics.LoginAttempt(false)
		return "", errors.Wrap(err, "[Gate.Login]")
	}

	role := session.ParseRole(result.Role)
	user := &session.User{
		ID:   result.StudentID,
		Name: result.Name,
		Role: role,
	}
	if isEmail {
		user.Email = identifier
	} else {
		user.Username = identifier
	}

	g.lock.Lock()
	g.gen++
	if err := g.store.Save(result.Token, user); err != nil {
		// The session is still valid in memory for this run.
		g.logger.Error().Err(err).Msg("failed persisting session after login")
	}
	g.setStateLocked(StateConfirmed, result.Token, user)
	g.lock.Unlock()

	g.metrics.LoginAttempt(true)
	g.logger.Info().Str("role", string(role)).Msg("login succeeded")
	return role, nil
}

// Logout clears the session. It never touches the network and always
// succeeds locally.
func (g *Gate) Logout() {
	g.lock.Lock()
	g.gen++
	if err := g.store.Clear(); err != nil {
		g.logger.Error().Err(err).Msg("failed clearing session store on logout")
	}
	g.setStateLocked(StateAnonymous, "", nil)
	g.lock.Unlock()

	g.logger.Info().Msg("logged out")
}

// Refresh re-reads the store and re-runs the restore sequence. Exposed for
// consumers that learn of out-of-band session changes (another process
// writing the store).
func (g *Gate) Refresh() {
	g.lock.Lock()
	if !g.started {
		g.lock.Unlock()
		return
	}
	g.gen++
	// Re-arm the loading gate so Status stays in step with Initializing and
	// consumers hold their redirect decisions until the re-check resolves.
	if !g.loading {
		g.loading = true
		g.readyCh = make(chan struct{})
		g.state = StateInitializing
		g.notify(g.statusLocked())
	}
	g.lock.Unlock()
	g.restore()
}

// Status returns the current decision snapshot.
func (g *Gate) Status() Status {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.statusLocked()
}

// Wait blocks until the gate has left Initializing or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.lock.Lock()
	ready := g.readyCh
	loading := g.loading
	g.lock.Unlock()

	if !loading {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of status snapshots emitted on every state
// change, and a cancel function. Slow consumers miss intermediate updates
// rather than blocking the gate.
func (g *Gate) Subscribe() (<-chan Status, func()) {
	g.subsLock.Lock()
	defer g.subsLock.Unlock()

	id := g.nextSub
	g.nextSub++
	ch := make(chan Status, 8)
	g.subs[id] = ch

	cancel := func() {
		g.subsLock.Lock()
		defer g.subsLock.Unlock()
		if _, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// TokenSource exposes the live session token as an oauth2 token source for
// authenticated API calls.
func (g *Gate) TokenSource() oauth2.TokenSource {
	return &gateTokenSource{gate: g}
}

// Close stops background verification work.
func (g *Gate) Close() {
	g.lock.Lock()
	cancel := g.bgCancel
	g.lock.Unlock()
	if cancel != nil {
		cancel()
	}
}

// setStateLocked applies a transition and notifies subscribers. Callers hold
// g.lock.
func (g *Gate) setStateLocked(state State, token string, user *session.User) {
	g.state = state
	g.token = token
	g.user = user
	if state != StateInitializing && g.loading {
		g.loading = false
		close(g.readyCh)
	}
	g.notify(g.statusLocked())
}

func (g *Gate) statusLocked() Status {
	var user *session.User
	if g.user != nil {
		u := *g.user
		user = &u
	}
	authenticated := (g.state == StateProvisional || g.state == StateConfirmed) && g.user != nil
	status := Status{
		State:           g.state,
		Loading:         g.loading,
		IsAuthenticated: authenticated,
		User:            user,
	}
	if authenticated {
		status.Role = g.user.Role
		status.IsAdmin = g.user.Role == session.RoleAdmin
	}
	return status
}

func (g *Gate) notify(status Status) {
	g.subsLock.Lock()
	defer g.subsLock.Unlock()
	for _, ch := range g.subs {
		select {
		case ch <- status:
		default:
		}
	}
}

type gateTokenSource struct {
	gate *Gate
}

func (ts *gateTokenSource) Token() (*oauth2.Token, error) {
	ts.gate.lock.Lock()
	token := ts.gate.token
	ts.gate.lock.Unlock()

	if token == "" {
		return nil, errors.New("[gateTokenSource.Token] no active session")
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// tokenExpired reports whether raw is a JWT whose expiry has already passed.
// Opaque tokens and JWTs without an exp claim always go to the backend for
// the verdict; this is only a shortcut for the unambiguous case.
func tokenExpired(raw string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
