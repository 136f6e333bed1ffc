package auth

import "errors"

var (
	// ErrMissingCredentials indicates the request carried no usable credential.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials indicates the credential was not recognized.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired indicates the key or token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed indicates a bearer token could not be parsed.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrForbidden indicates an authenticated identity lacks the required role.
	ErrForbidden = errors.New("auth: access denied")
)
