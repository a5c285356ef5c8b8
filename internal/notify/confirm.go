package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// Prompt describes a confirmation request shown before destructive actions.
type Prompt struct {
	Title   string
	Message string
	Kind    Level
}

// Confirmer asks the user to confirm an action.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Always answers every prompt with the same value (used for --yes).
type Always bool

func (a Always) Confirm(context.Context, Prompt) (bool, error) { return bool(a), nil }

// Form asks on the terminal with a huh confirm field. It is meant for
// one-shot CLI commands, not for use while the TUI host is running.
type Form struct {
	Affirmative string
	Negative    string
}

func (f Form) Confirm(ctx context.Context, p Prompt) (bool, error) {
	yes, no := f.Affirmative, f.Negative
	if yes == "" {
		yes = "Yes"
	}
	if no == "" {
		no = "No"
	}

	var ok bool
	field := huh.NewConfirm().
		Title(p.Title).
		Description(p.Message).
		Affirmative(yes).
		Negative(no).
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm %q: %w", p.Title, err)
	}
	return ok, nil
}
