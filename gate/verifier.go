package gate

import (
	"context"

	"github.com/internhub/go-portal-gate/portalapi"
)

// Verifier is the slice of the portal backend the gate depends on: issuing a
// token from credentials and re-validating a held token. portalapi.Client
// satisfies it.
type Verifier interface {
	Login(ctx context.Context, creds portalapi.Credentials) (*portalapi.LoginResult, error)
	VerifyToken(ctx context.Context, token string) (*portalapi.VerifiedUser, error)
}

var _ Verifier = (*portalapi.Client)(nil)
