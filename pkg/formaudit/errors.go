// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"errors"
	"fmt"
)

// ErrNotFound marks the absence of a remote artifact (a spreadsheet in
// source control, a warehouse view). Adapters wrap it with context; the
// audit engine converts it into report entries and never propagates it
// past its own boundary.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err is an ErrNotFound wrap.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ParseError reports a structurally invalid form definition: missing
// sheet, missing columns, or bytes that are not a spreadsheet at all.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing form: %s: %v", e.Reason, e.Err)
	}
	return "parsing form: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
