// Package cli implements the workflowctl commands: validating and drawing
// YAML workflow definitions, and an interactive playground that fires their
// events against an in-memory instance.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/manifoldco/promptui"
)

var errEmptyInput = errors.New("you must enter something")

// Prompter asks the user for input. Terminal is the interactive one.
type Prompter interface {
	Confirm(label string) (bool, error)
	String(label string) (string, error)
	Select(label string, choices []string) (string, error)
}

// Terminal prompts through promptui.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func (t Terminal) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     t.Stdin,
		Stdout:    t.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (t Terminal) String(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if len(s) == 0 {
				return errEmptyInput
			}

			return nil
		},
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}

	return prompt.Run()
}

func (t Terminal) Select(label string, choices []string) (string, error) {
	sel := &promptui.Select{
		Label:  label,
		Items:  choices,
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	return value, nil
}

// parseValue turns playground input into a bool, an int or a float when it
// looks like one, so expression guards can compare it.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}

	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}

	return raw
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
