package terminal

import (
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// LineReader is the subset of *readline.Instance the walkthrough needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

func NewReadline() (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:              "> ",
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
}

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt)
}
