// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Backend failure kinds. Use errors.Is against these sentinels.
var (
	ErrTimeout     = errors.New("llm backend timeout")
	ErrRateLimited = errors.New("llm backend rate limited")
	ErrMalformed   = errors.New("llm backend malformed response")
	ErrUnavailable = errors.New("llm backend unavailable")
)

// BackendError is the error type returned by every LLMClient in this package.
//
// # Fields
//
//   - Kind: One of ErrTimeout, ErrRateLimited, ErrMalformed, ErrUnavailable.
//   - Provider: Adapter name, e.g. "openai".
//   - Err: Underlying cause, may be nil.
type BackendError struct {
	Kind     error
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

// Is reports whether target is the error's Kind.
func (e *BackendError) Is(target error) bool {
	return target == e.Kind
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// classify wraps err as a *BackendError, deriving the kind from context
// state and the HTTP status code when one is known (0 otherwise).
func classify(ctx context.Context, provider string, status int, err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	kind := ErrUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = ErrTimeout
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = ErrTimeout
	}
	return &BackendError{Kind: kind, Provider: provider, Err: err}
}

func malformed(provider string, err error) error {
	return &BackendError{Kind: ErrMalformed, Provider: provider, Err: err}
}
