// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"fmt"
	"time"
)

// NetworkError wraps connectivity and timeout failures talking to the
// debrid backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("debrid %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool {
	_, ok := target.(*NetworkError)
	return ok
}

// AuthError indicates a missing or rejected API key.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("debrid %s: authentication failed, invalid or missing API key", e.Op)
}

func (e *AuthError) Is(target error) bool {
	_, ok := target.(*AuthError)
	return ok
}

// NotFoundError indicates the hash or torrent id is absent from the
// account's library.
type NotFoundError struct {
	Hash string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("torrent %s not found in debrid library", e.ID)
	}
	return fmt.Sprintf("hash %s not found in debrid library", e.Hash)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// RateLimitError indicates the backend is throttling requests.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("debrid rate limited, retry after %s", e.RetryAfter)
	}
	return "debrid rate limited"
}

func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// AddError indicates a failed add-to-cache call: invalid hash, auth
// failure, or quota exhaustion. It is surfaced to the caller for an
// explicit retry rather than retried automatically.
type AddError struct {
	Hash   string
	Reason string
	Err    error
}

func (e *AddError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("add %s to debrid cache failed: %s", e.Hash, e.Reason)
	}
	return fmt.Sprintf("add %s to debrid cache failed: %v", e.Hash, e.Err)
}

func (e *AddError) Unwrap() error { return e.Err }

func (e *AddError) Is(target error) bool {
	_, ok := target.(*AddError)
	return ok
}

// ResolveError indicates URL resolution failed. NotReady marks the
// expected "backend still preparing the file" case, which callers poll
// rather than treat as fatal.
type ResolveError struct {
	Hash     string
	NotReady bool
	// RetryIn hints when a delayed link should become ready.
	RetryIn time.Duration
	Err     error
}

func (e *ResolveError) Error() string {
	if e.NotReady {
		if e.RetryIn > 0 {
			return fmt.Sprintf("stream for %s not ready, retry in %s", e.Hash, e.RetryIn)
		}
		return fmt.Sprintf("stream for %s not ready yet", e.Hash)
	}
	return fmt.Sprintf("resolve stream for %s failed: %v", e.Hash, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func (e *ResolveError) Is(target error) bool {
	_, ok := target.(*ResolveError)
	return ok
}
