// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"os"
	"strings"

	"github.com/mitchellh/cli"
	"golang.org/x/term"
)

type StrataUI struct {
	cli.Ui
	Format string
}

var TermWidth uint = 80

func init() {
	width, _, err := term.GetSize(int(os.Stdin.Fd()))
	if err == nil && width > 0 {
		TermWidth = uint(width)
	}
}

// UiWriter adapts a cli.Ui into an io.Writer so loggers can write through
// its error stream.
type UiWriter struct {
	Ui cli.Ui
}

func (w *UiWriter) Write(p []byte) (int, error) {
	w.Ui.Error(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
