// Package ui is the console surface: code prompt, transfer progress and the
// browse view.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"trebleshot/pkg/utils"
)

// Prompter reads answers from the user. Lines are read by one goroutine so a
// cancelled prompt does not lose the next answer.
type Prompter struct {
	in    io.Reader
	out   io.Writer
	lines chan string
	once  sync.Once
}

// NewPrompter creates a prompter reading from in and writing questions to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, lines: make(chan string)}
}

func (p *Prompter) start() {
	p.once.Do(func() {
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- strings.TrimSpace(scanner.Text())
			}
		}()
	})
}

// InputCode asks for the session code until a valid one is entered
func (p *Prompter) InputCode(ctx context.Context) (string, error) {
	p.start()

	for {
		fmt.Fprint(p.out, "Enter code from sender: ")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case code, ok := <-p.lines:
			if !ok {
				return "", io.ErrUnexpectedEOF
			}
			if utils.IsValidCode(code) {
				return code, nil
			}
			fmt.Fprintf(p.out, "Invalid code. The code has %d letters or digits.\n", utils.SessionCodeLength)
		}
	}
}
