// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import "fmt"

// Position is a single point in grammar source text.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Location records a span of grammar source text, from Start (inclusive)
// to End (exclusive). File may be empty when the grammar was not read from
// a named file.
type Location struct {
	File  string
	Start Position
	End   Position
	Text  string
}

// NewLocation returns a new Location spanning [start, end) in file.
func NewLocation(file string, start, end Position, text string) *Location {
	return &Location{File: file, Start: start, End: end, Text: text}
}

// Errorf returns a new error value with a message prefixed by this
// location's position.
func (l *Location) Errorf(f string, a ...interface{}) error {
	return fmt.Errorf("%s", l.Format(f, a...))
}

// Format returns a string prefixed with "file:line:col: " (or "line:col: "
// when File is empty) followed by the formatted message.
func (l *Location) Format(f string, a ...interface{}) string {
	msg := fmt.Sprintf(f, a...)
	if l == nil {
		return msg
	}
	if l.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", l.File, l.Start.Line, l.Start.Column, msg)
	}
	return fmt.Sprintf("%d:%d: %s", l.Start.Line, l.Start.Column, msg)
}

func (l *Location) String() string {
	if l == nil {
		return "<unknown location>"
	}
	if l.File != "" {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Start.Line, l.Start.Column)
	}
	return fmt.Sprintf("%d:%d", l.Start.Line, l.Start.Column)
}
