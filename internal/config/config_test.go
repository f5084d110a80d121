// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanis/pegjs/compile"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, compile.FormatBare, opts.Format)
	assert.Equal(t, compile.OutputSource, opts.Output)
	assert.False(t, opts.Tokenizer)
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pegc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: esm\nparameters: [debug, fast]\ntokenizer: true\n"), 0o644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path, true))
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, compile.FormatESM, opts.Format)
	assert.Equal(t, []string{"debug", "fast"}, opts.Parameters)
	assert.True(t, opts.Tokenizer)
	// Unset keys keep their defaults.
	assert.Equal(t, compile.OutputSource, opts.Output)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), false))
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), true))
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pegc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: esm\n"), 0o644))

	t.Setenv("PEGC_FORMAT", "commonjs")
	t.Setenv("PEGC_PARAMETERS", "a, b,")
	t.Setenv("PEGC_TRACE", "true")

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path, true))
	require.NoError(t, cfg.LoadEnv())
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, compile.FormatCommonJS, opts.Format)
	assert.Equal(t, []string{"a", "b"}, opts.Parameters)
	assert.True(t, opts.Trace)
}

func TestInvalidEnvBool(t *testing.T) {
	t.Setenv("PEGC_TOKENIZER", "maybe")
	cfg := Default()
	require.Error(t, cfg.LoadEnv())
}

func TestInvalidEnumRejected(t *testing.T) {
	cfg := Default()
	cfg.Format = "umd"
	_, err := cfg.Options()
	require.Error(t, err)
}
