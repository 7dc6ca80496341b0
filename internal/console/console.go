// Package console implements the uploader's logging and confirmation ports on a terminal
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Auto answers for confirmation prompts
const (
	AnswerAsk = ""
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// Environment writes upload progress to out and reads prompt answers from in
type Environment struct {
	mu     sync.Mutex
	out    io.Writer
	in     *bufio.Reader
	answer string

	promptStyle lipgloss.Style
	answerStyle lipgloss.Style
}

// New creates an Environment. answer is AnswerYes or AnswerNo to confirm or
// decline every prompt without reading input; in may be nil in that case.
func New(out io.Writer, in io.Reader, answer string) *Environment {
	r := lipgloss.NewRenderer(out)
	env := &Environment{
		out:    out,
		answer: answer,
		promptStyle: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		answerStyle: r.NewStyle().
			Foreground(lipgloss.Color("244")),
	}
	if in != nil {
		env.in = bufio.NewReader(in)
	}
	return env
}

// Log prints message. Without newline the cursor stays on the line so the
// next message continues it.
func (e *Environment) Log(message string, newline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if newline {
		fmt.Fprintln(e.out, message)
		return
	}
	fmt.Fprint(e.out, message+" ")
}

// Ask prints prompt and returns true only for a "y" or "yes" answer
func (e *Environment) Ask(prompt string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	question := e.promptStyle.Render(prompt) + " [y/N] "

	switch e.answer {
	case AnswerYes:
		fmt.Fprintln(e.out, question+e.answerStyle.Render(AnswerYes))
		return true
	case AnswerNo:
		fmt.Fprintln(e.out, question+e.answerStyle.Render(AnswerNo))
		return false
	}

	fmt.Fprint(e.out, question)
	if e.in == nil {
		fmt.Fprintln(e.out)
		return false
	}

	response, err := e.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintln(e.out)
		return false
	}
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(e.out)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
