package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/internhub/go-portal-gate/gate"
	"github.com/internhub/go-portal-gate/gate/verifierfakes"
	"github.com/internhub/go-portal-gate/portalapi"
	"github.com/internhub/go-portal-gate/session"
	"github.com/internhub/go-portal-gate/session/storefakes"
)

const (
	testToken    = "abc"
	testEmail    = "a@b.com"
	testPassword = "secret"
)

type testFixture struct {
	store    *storefakes.FakeStore
	verifier *verifierfakes.FakeVerifier
	gate     *gate.Gate
}

func setupTestFixture(t *testing.T, options ...gate.Option) *testFixture {
	t.Helper()

	store := storefakes.NewFakeStore()
	verifier := verifierfakes.NewFakeVerifier()

	g, err := gate.New(store, verifier, options...)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	return &testFixture{store: store, verifier: verifier, gate: g}
}

func adminUser() *session.User {
	return &session.User{ID: "1", Name: "Ada", Role: session.RoleAdmin}
}

func waitForState(t *testing.T, g *gate.Gate, want gate.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.Status().State == want
	}, time.Second, 5*time.Millisecond)
}

func TestGate_NoStoredTokenInitializesAnonymous(t *testing.T) {
	f := setupTestFixture(t)

	f.gate.Start(context.Background())

	status := f.gate.Status()
	require.False(t, status.Loading, "gate must never stay stuck loading")
	require.False(t, status.IsAuthenticated)
	require.Equal(t, gate.StateAnonymous, status.State)
	require.Zero(t, f.verifier.VerifyTokenCallCount())
}

func TestGate_OptimisticAdoptionBeforeVerifyResolves(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(testToken, adminUser())

	release := make(chan struct{})
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return &portalapi.VerifiedUser{ID: "1", Name: "Ada", Role: session.RoleAdmin}, nil
	}

	f.gate.Start(context.Background())

	// The cached identity is trusted before the network call resolves.
	status := f.gate.Status()
	require.False(t, status.Loading)
	require.True(t, status.IsAuthenticated)
	require.True(t, status.IsAdmin)
	require.Equal(t, gate.StateProvisional, status.State)

	close(release)
	waitForState(t, f.gate, gate.StateConfirmed)

	// The refreshed identity is persisted back.
	require.GreaterOrEqual(t, f.store.SaveCallCount, 1)
	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, testToken, token)
	require.Equal(t, session.RoleAdmin, user.Role)
}

func TestGate_VerificationFailureRevokesPreviouslyTrustedSession(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(testToken, adminUser())

	release := make(chan struct{})
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return nil, errors.Wrap(portalapi.TokenInvalidErr, "expired")
	}

	f.gate.Start(context.Background())
	require.True(t, f.gate.Status().IsAuthenticated)

	close(release)
	waitForState(t, f.gate, gate.StateAnonymous)

	require.False(t, f.gate.Status().IsAuthenticated)
	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestGate_VerifyEndpointErrorFailsClosed(t *testing.T) {
	// Cached admin session, verification endpoint answers 404: the session
	// is revoked and the store emptied.
	f := setupTestFixture(t)
	f.store.Seed(testToken, adminUser())

	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		return nil, errors.Wrapf(portalapi.UnexpectedStatusErr, "status 404")
	}

	f.gate.Start(context.Background())
	waitForState(t, f.gate, gate.StateAnonymous)

	status := f.gate.Status()
	require.False(t, status.IsAuthenticated)
	require.False(t, status.IsAdmin)

	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestGate_TokenWithoutCachedUserStaysLoadingUntilVerified(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(testToken, nil)

	release := make(chan struct{})
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return &portalapi.VerifiedUser{ID: "2", Name: "Stu", Role: session.RoleStudent}, nil
	}

	f.gate.Start(context.Background())

	status := f.gate.Status()
	require.True(t, status.Loading)
	require.False(t, status.IsAuthenticated, "unverified token must not authorize")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, f.gate.Wait(ctx))

	close(release)
	waitForState(t, f.gate, gate.StateConfirmed)

	status = f.gate.Status()
	require.False(t, status.Loading)
	require.True(t, status.IsAuthenticated)
	require.Equal(t, session.RoleStudent, status.Role)
	require.NoError(t, f.gate.Wait(context.Background()))
}

func TestGate_CachedUserWithoutRoleDoesNotAuthorize(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(testToken, &session.User{ID: "1", Name: "Ada"})

	release := make(chan struct{})
	defer close(release)
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return nil, errors.Wrap(portalapi.TokenInvalidErr, "rejected")
	}

	f.gate.Start(context.Background())

	status := f.gate.Status()
	require.True(t, status.Loading)
	require.False(t, status.IsAuthenticated)
	require.False(t, status.IsAdmin)
}

func TestGate_LoginIdentifierShapes(t *testing.T) {
	t.Run("email-shaped identifier is sent as email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.gate.Start(context.Background())
		f.verifier.LoginStub = func(_ context.Context, creds portalapi.Credentials) (*portalapi.LoginResult, error) {
			return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A", Role: "student"}, nil
		}

		_, err := f.gate.Login(context.Background(), "user@example.com", "pw")
		require.NoError(t, err)

		creds := f.verifier.LoginArgsForCall(0)
		require.Equal(t, "user@example.com", creds.Email)
		require.Empty(t, creds.Username)
		require.Equal(t, "pw", creds.Password)
	})

	t.Run("plain identifier is sent as username", func(t *testing.T) {
		f := setupTestFixture(t)
		f.gate.Start(context.Background())
		f.verifier.LoginStub = func(_ context.Context, creds portalapi.Credentials) (*portalapi.LoginResult, error) {
			return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A", Role: "student"}, nil
		}

		_, err := f.gate.Login(context.Background(), "plainuser", "pw")
		require.NoError(t, err)

		creds := f.verifier.LoginArgsForCall(0)
		require.Empty(t, creds.Email)
		require.Equal(t, "plainuser", creds.Username)
	})
}

func TestGate_LoginSuccessConfirmsAndPersists(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())

	f.verifier.LoginStub = func(context.Context, portalapi.Credentials) (*portalapi.LoginResult, error) {
		return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A", Role: "admin"}, nil
	}

	role, err := f.gate.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, session.RoleAdmin, role)

	status := f.gate.Status()
	require.True(t, status.IsAuthenticated)
	require.True(t, status.IsAdmin)
	require.Equal(t, gate.StateConfirmed, status.State)

	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, "t1", token)
	require.Equal(t, &session.User{ID: "5", Name: "A", Role: session.RoleAdmin, Email: testEmail}, user)
}

func TestGate_LoginDefaultsMissingRoleToStudent(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())

	f.verifier.LoginStub = func(context.Context, portalapi.Credentials) (*portalapi.LoginResult, error) {
		return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A"}, nil
	}

	role, err := f.gate.Login(context.Background(), "plainuser", testPassword)
	require.NoError(t, err)
	require.Equal(t, session.RoleStudent, role)

	status := f.gate.Status()
	require.True(t, status.IsAuthenticated)
	require.False(t, status.IsAdmin)
}

func TestGate_LoginFailurePropagatesAndMutatesNothing(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())

	f.verifier.LoginStub = func(context.Context, portalapi.Credentials) (*portalapi.LoginResult, error) {
		return nil, &portalapi.CredentialsError{Message: "wrong password"}
	}

	_, err := f.gate.Login(context.Background(), testEmail, "bad")
	require.Error(t, err)
	require.True(t, errors.Is(err, portalapi.InvalidCredentialsErr))

	var credErr *portalapi.CredentialsError
	require.True(t, errors.As(err, &credErr))
	require.Equal(t, "wrong password", credErr.Message)

	require.Zero(t, f.store.SaveCallCount)
	require.False(t, f.gate.Status().IsAuthenticated)
}

func TestGate_LogoutAlwaysClearsStore(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())

	f.verifier.LoginStub = func(context.Context, portalapi.Credentials) (*portalapi.LoginResult, error) {
		return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A"}, nil
	}
	_, err := f.gate.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.gate.Logout()

	status := f.gate.Status()
	require.False(t, status.IsAuthenticated)
	require.Equal(t, gate.StateAnonymous, status.State)

	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)

	// Logging out again is harmless.
	f.gate.Logout()
	require.False(t, f.gate.Status().IsAuthenticated)
}

func TestGate_StaleVerificationResultIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(testToken, adminUser())

	release := make(chan struct{})
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return &portalapi.VerifiedUser{ID: "1", Name: "Ada", Role: session.RoleAdmin}, nil
	}

	f.gate.Start(context.Background())
	require.True(t, f.gate.Status().IsAuthenticated)

	// The user logs out while the verification is still in flight.
	f.gate.Logout()
	close(release)

	// The late success must not resurrect the session.
	time.Sleep(50 * time.Millisecond)
	status := f.gate.Status()
	require.False(t, status.IsAuthenticated)
	require.Equal(t, gate.StateAnonymous, status.State)
	require.Zero(t, f.store.SaveCallCount)
}

func TestGate_ExpiredJWTRevokesWithoutNetworkCall(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": now.Add(-time.Hour).Unix(),
	})
	raw, err := expired.SignedString([]byte("test-key"))
	require.NoError(t, err)

	f := setupTestFixture(t, gate.WithNowTime(func() time.Time { return now }))
	f.store.Seed(raw, adminUser())

	f.gate.Start(context.Background())
	waitForState(t, f.gate, gate.StateAnonymous)

	require.Zero(t, f.verifier.VerifyTokenCallCount())
	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestGate_VerificationTimeoutRevokesSession(t *testing.T) {
	f := setupTestFixture(t, gate.WithVerifyTimeout(30*time.Millisecond))
	f.store.Seed(testToken, adminUser())

	// The backend never answers; the bounded context is the only way out.
	f.verifier.VerifyTokenStub = func(ctx context.Context, _ string) (*portalapi.VerifiedUser, error) {
		<-ctx.Done()
		return nil, errors.Wrapf(portalapi.UnreachableErr, "%v", ctx.Err())
	}

	f.gate.Start(context.Background())
	require.True(t, f.gate.Status().IsAuthenticated, "cached identity is trusted while the check runs")

	waitForState(t, f.gate, gate.StateAnonymous)

	require.False(t, f.gate.Status().IsAuthenticated)
	token, user, err := f.store.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Nil(t, user)
}

func TestGate_RefreshReEntersLoadingForUnverifiedToken(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())
	require.Equal(t, gate.StateAnonymous, f.gate.Status().State)

	// Another process wrote a bare token; the consumer asks for a re-check.
	f.store.Seed(testToken, nil)
	release := make(chan struct{})
	f.verifier.VerifyTokenStub = func(context.Context, string) (*portalapi.VerifiedUser, error) {
		<-release
		return &portalapi.VerifiedUser{ID: "2", Name: "Stu", Role: session.RoleStudent}, nil
	}

	f.gate.Refresh()

	status := f.gate.Status()
	require.Equal(t, gate.StateInitializing, status.State)
	require.True(t, status.Loading, "pending re-check must report loading, not anonymous")
	require.False(t, status.IsAuthenticated)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, f.gate.Wait(ctx))

	close(release)
	waitForState(t, f.gate, gate.StateConfirmed)
	require.NoError(t, f.gate.Wait(context.Background()))
	require.Equal(t, session.RoleStudent, f.gate.Status().Role)
}

func TestGate_SubscribeDeliversTransitions(t *testing.T) {
	f := setupTestFixture(t)
	ch, cancel := f.gate.Subscribe()
	defer cancel()

	f.gate.Start(context.Background())

	select {
	case status := <-ch:
		require.Equal(t, gate.StateAnonymous, status.State)
		require.False(t, status.Loading)
	case <-time.After(time.Second):
		t.Fatal("no status update received")
	}
}

func TestGate_TokenSourceTracksSession(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.Start(context.Background())
	ts := f.gate.TokenSource()

	_, err := ts.Token()
	require.Error(t, err, "anonymous gate has no token")

	f.verifier.LoginStub = func(context.Context, portalapi.Credentials) (*portalapi.LoginResult, error) {
		return &portalapi.LoginResult{Token: "t1", StudentID: "5", Name: "A"}, nil
	}
	_, err = f.gate.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "t1", token.AccessToken)

	f.gate.Logout()
	_, err = ts.Token()
	require.Error(t, err)
}
