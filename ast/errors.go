// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrCode identifies the kind of diagnostic a pass produced. The reserved
// codes match the compiler's diagnostic contract.
type ErrCode string

const (
	UndefinedRuleErr     ErrCode = "E-UNDEFINED-RULE"
	DuplicateRuleErr     ErrCode = "E-DUPLICATE-RULE"
	UnknownAnnotationErr ErrCode = "E-UNKNOWN-ANNOTATION"
	EmptyGrammarErr      ErrCode = "E-EMPTY-GRAMMAR"
	InvalidRangeErr      ErrCode = "E-INVALID-RANGE"
	TypeConflictErr      ErrCode = "E-TYPE-CONFLICT"
	ParseErr             ErrCode = "E-PARSE"
	InternalErr          ErrCode = "E-INTERNAL"
)

// Error is a single diagnostic produced by the bootstrap parser or a
// compiler pass: {code, message, location}. Fatal errors abort the
// pipeline; non-fatal ones (e.g. an unknown annotation) are reported but
// do not prevent emission.
type Error struct {
	Code     ErrCode
	Location *Location
	Message  string
	Fatal    bool
}

func (e *Error) Error() string {
	if e.Location == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Code, e.Message)
}

// NewError returns a new diagnostic. fatal controls whether the owning
// pass should abort the pipeline after collecting the rest of its
// diagnostics.
func NewError(code ErrCode, fatal bool, loc *Location, f string, a ...interface{}) *Error {
	return &Error{Code: code, Location: loc, Message: fmt.Sprintf(f, a...), Fatal: fatal}
}

// WrapError folds an underlying cause (e.g. a bootstrap parse failure)
// into a fatal grammar diagnostic whose Message is "<message>: <cause>".
// Only the text is kept: the cause value itself is not retained, so
// errors.Cause and errors.Is do not reach it through the returned *Error.
func WrapError(code ErrCode, loc *Location, cause error, f string, a ...interface{}) *Error {
	wrapped := errors.Wrap(cause, fmt.Sprintf(f, a...))
	return &Error{Code: code, Location: loc, Message: wrapped.Error(), Fatal: true}
}

// Errors is a collection of diagnostics produced during parsing or
// compiling.
type Errors []*Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no error(s)"
	}
	if len(e) == 1 {
		return fmt.Sprintf("1 error occurred: %v", e[0].Error())
	}
	s := make([]string, len(e))
	for i, err := range e {
		s[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n%s", len(e), strings.Join(s, "\n"))
}

// Fatal reports whether any diagnostic in e is fatal.
func (e Errors) Fatal() bool {
	for _, err := range e {
		if err.Fatal {
			return true
		}
	}
	return false
}

// IsError returns true if err is an AST diagnostic with the given code.
func IsError(code ErrCode, err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
