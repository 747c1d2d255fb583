package verifierfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/internhub/go-portal-gate/gate"
	"github.com/internhub/go-portal-gate/portalapi"
)

var _ gate.Verifier = (*FakeVerifier)(nil)

// FakeVerifier records calls and delegates to stub functions so tests can
// script backend behavior, including blocking until released.
type FakeVerifier struct {
	lock sync.Mutex

	LoginStub       func(ctx context.Context, creds portalapi.Credentials) (*portalapi.LoginResult, error)
	VerifyTokenStub func(ctx context.Context, token string) (*portalapi.VerifiedUser, error)

	loginArgs  []portalapi.Credentials
	verifyArgs []string
}

func NewFakeVerifier() *FakeVerifier {
	return &FakeVerifier{}
}

func (fv *FakeVerifier) Login(ctx context.Context, creds portalapi.Credentials) (*portalapi.LoginResult, error) {
	fv.lock.Lock()
	fv.loginArgs = append(fv.loginArgs, creds)
	stub := fv.LoginStub
	fv.lock.Unlock()

	if stub == nil {
		return nil, errors.New("not stubbed")
	}
	return stub(ctx, creds)
}

func (fv *FakeVerifier) VerifyToken(ctx context.Context, token string) (*portalapi.VerifiedUser, error) {
	fv.lock.Lock()
	fv.verifyArgs = append(fv.verifyArgs, token)
	stub := fv.VerifyTokenStub
	fv.lock.Unlock()

	if stub == nil {
		return nil, errors.New("not stubbed")
	}
	return stub(ctx, token)
}

func (fv *FakeVerifier) LoginCallCount() int {
	fv.lock.Lock()
	defer fv.lock.Unlock()
	return len(fv.loginArgs)
}

func (fv *FakeVerifier) LoginArgsForCall(i int) portalapi.Credentials {
	fv.lock.Lock()
	defer fv.lock.Unlock()
	return fv.loginArgs[i]
}

func (fv *FakeVerifier) VerifyTokenCallCount() int {
	fv.lock.Lock()
	defer fv.lock.Unlock()
	return len(fv.verifyArgs)
}

func (fv *FakeVerifier) VerifyTokenArgsForCall(i int) string {
	fv.lock.Lock()
	defer fv.lock.Unlock()
	return fv.verifyArgs[i]
}
