// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringRendering(t *testing.T) {
	tests := []struct {
		tpe  Type
		want string
	}{
		{NewString(), "string"},
		{NewUndefined(), "undefined"},
		{NewNull(), "null"},
		{NewAny(), "any"},
		{NewUnknown(), "unknown"},
		{NewNamed("Expr"), "Expr"},
		{NewArray(NewString()), "Array<string>"},
		{NewTuple(NewString(), NewNull()), "[string, null]"},
		{Or(NewString(), NewNull()), "string | null"},
		{NewArray(Or(NewString(), NewNull())), "Array<string | null>"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.tpe.String())
	}
	assert.Equal(t, "???", Sprint(nil))
}

func TestOrFlattensAndDeduplicates(t *testing.T) {
	u := Or(NewString(), Or(NewNull(), NewString()), NewString())
	assert.Equal(t, "string | null", u.String())

	assert.Equal(t, "string", Or(NewString(), NewString()).String())
	assert.Equal(t, "unknown", Or().String())
}

func TestNullable(t *testing.T) {
	assert.Equal(t, "string | null", Nullable(NewString()).String())
	// Already-nullable types do not double up.
	assert.Equal(t, "string | null", Nullable(Nullable(NewString())).String())
}

func TestIsUnknown(t *testing.T) {
	assert.True(t, IsUnknown(NewUnknown()))
	assert.True(t, IsUnknown(nil))
	assert.True(t, IsUnknown(NewArray(NewUnknown())))
	assert.True(t, IsUnknown(NewTuple(NewString(), NewUnknown())))
	assert.True(t, IsUnknown(Or(NewString(), NewUnknown())))
	assert.False(t, IsUnknown(NewTuple(NewString(), NewNull())))
}

func TestGeneralizeReplacesUnknownWithAny(t *testing.T) {
	got := Generalize(NewTuple(NewString(), NewArray(NewUnknown()), Or(NewUnknown(), NewNull())))
	assert.Equal(t, "[string, Array<any>, any | null]", got.String())
	assert.False(t, IsUnknown(got))
}
