// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd implements the pegc command line interface: the thin layer
// that reads grammar files, assembles compile options, drives the
// pipeline, and renders diagnostics. All compilation logic lives in the
// bootstrap, compile, and emit packages.
package cmd

import (
	"os"
	"path"

	"github.com/spf13/cobra"
)

// RootCommand is the base CLI command that all subcommands are added to.
var RootCommand = &cobra.Command{
	Use:   path.Base(os.Args[0]),
	Short: "PEG parser compiler",
	Long:  "pegc compiles PEG grammars into self-contained JavaScript parser modules.",
}
