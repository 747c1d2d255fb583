package portalapi

import "errors"

var (
	InvalidCredentialsErr   = errors.New("invalid credentials")
	TokenInvalidErr         = errors.New("token rejected")
	UnreachableErr          = errors.New("portal backend unreachable")
	UnexpectedStatusErr     = errors.New("unexpected response status")
	RegistrationRejectedErr = errors.New("registration rejected")
)

// CredentialsError is a login rejection carrying the backend's
// human-readable message, suitable for display to the user.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string {
	return e.Message
}

func (e *CredentialsError) Unwrap() error {
	return InvalidCredentialsErr
}

// RegistrationError is a refused application carrying the backend's
// human-readable message.
type RegistrationError struct {
	Message string
}

func (e *RegistrationError) Error() string {
	return e.Message
}

func (e *RegistrationError) Unwrap() error {
	return RegistrationRejectedErr
}
