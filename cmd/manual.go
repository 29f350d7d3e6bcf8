package cmd

import (
	"io"
	"os"

	"golang.org/x/term"

	"connpulse/internal/core"
	"connpulse/util"
)

const prompt = "connpulse> "

// replIO returns the manual-mode line source and output.  On a
// terminal stdin goes raw and term.Terminal provides line editing and
// history; the logger is redirected through it so lines stay intact.
// Otherwise commands are read line by line, which suits scripts.
func replIO(logger *util.Logger) (core.LineReader, io.Writer, func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return core.NewLineReader(os.Stdin), stdout, func() {}, nil
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, nil, err
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, prompt)
	logger.SetOutput(t)

	restore := func() {
		term.Restore(fd, old) //nolint:errcheck
		logger.SetOutput(os.Stderr)
	}
	return t, t, restore, nil
}
