// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates the backend rejected a login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates an authenticated call was refused because the
	// token is missing, expired or invalid. Callers deauthenticate on it.
	ErrUnauthorized = errors.New("session expired or invalid")

	// ErrForbidden indicates the identity may not perform the call.
	ErrForbidden = errors.New("forbidden")

	// ErrBackendUnavailable indicates a transport failure, a 5xx response, or
	// an open circuit.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status    int
	Message   string
	RiskLevel RiskLevel

	// kind is the sentinel this response classifies as, if any.
	kind error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel classification to errors.Is.
func (e *APIError) Unwrap() error {
	return e.kind
}

// MessageOf returns the server-provided message carried by err, or fallback
// when err carries none.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// RiskLevelOf returns the server-provided risk level carried by err, or
// fallback when err carries none.
func RiskLevelOf(err error, fallback RiskLevel) RiskLevel {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RiskLevel != "" {
		return apiErr.RiskLevel
	}
	return fallback
}
