package domain

import "errors"

var (
	ErrInvalidPhone   = errors.New("invalid_phone")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrAuth           = errors.New("auth_failed")
	ErrNetwork        = errors.New("network_error")
	ErrGateway        = errors.New("gateway_error")
	ErrMalformedToken = errors.New("malformed_token")
)
