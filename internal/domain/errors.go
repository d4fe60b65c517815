package domain

import "errors"

// Delivery errors. Handlers map them to HTTP statuses through a fixed table;
// everything except ErrMalformedRange and ErrNoSessionsAvailable is reported
// to the caller as a generic "not found".
var (
	ErrInvalidLink         = errors.New("invalid link")
	ErrUnauthorized        = errors.New("hash mismatch")
	ErrObjectNotFound      = errors.New("object not found")
	ErrMalformedRange      = errors.New("malformed range")
	ErrNoSessionsAvailable = errors.New("no backend sessions available")
	ErrBackendUnreachable  = errors.New("backend unreachable")
	ErrNoDirectURL         = errors.New("backend has no direct url for object")
)
