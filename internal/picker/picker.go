// Package picker runs the interactive prompts of a practice round.
package picker

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rehearse-cli/rehearse/internal/questions"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

// QuestionSource is the part of the session the picker drives.
type QuestionSource interface {
	SelectRandomQuestion() (questions.Question, error)
	SetQuestion(q questions.Question) error
}

// Action is a choice in the question menu.
type Action string

const (
	ActionAnswer Action = "answer"
	ActionReroll Action = "reroll"
	ActionList   Action = "list"
)

// Picker prompts on in/out. Non-terminal input switches huh to accessible
// mode so prompts work over pipes.
type Picker struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// New returns a Picker reading from in and writing to out.
func New(in io.Reader, out io.Writer) *Picker {
	p := &Picker{in: in, out: out}
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		p.accessible = true
	}
	return p
}

// ChooseQuestion draws a random question and lets the user re-roll it or
// pick one from list until they accept. The accepted question is set on src.
func (p *Picker) ChooseQuestion(src QuestionSource, list *questions.List) (questions.Question, error) {
	q, err := src.SelectRandomQuestion()
	if err != nil {
		return "", err
	}

	for {
		var action Action
		if err := p.run(huh.NewSelect[Action]().
			Title(fmt.Sprintf("Question: %s", q)).
			Options(actionOptions()...).
			Value(&action)); err != nil {
			return "", err
		}

		switch action {
		case ActionAnswer:
			return q, nil
		case ActionReroll:
			if q, err = src.SelectRandomQuestion(); err != nil {
				return "", err
			}
		case ActionList:
			chosen := q
			if err := p.run(huh.NewSelect[questions.Question]().
				Title("Pick a question").
				Options(questionOptions(list)...).
				Value(&chosen)); err != nil {
				return "", err
			}
			if err := src.SetQuestion(chosen); err != nil {
				return "", err
			}
			q = chosen
		}
	}
}

func (p *Picker) run(field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(p.in).
		WithOutput(p.out).
		WithAccessible(p.accessible)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func actionOptions() []huh.Option[Action] {
	return []huh.Option[Action]{
		huh.NewOption("Answer this question", ActionAnswer),
		huh.NewOption("Get another random question", ActionReroll),
		huh.NewOption("Choose from the list", ActionList),
	}
}

func questionOptions(list *questions.List) []huh.Option[questions.Question] {
	all := list.All()
	opts := make([]huh.Option[questions.Question], 0, len(all))
	for _, q := range all {
		opts = append(opts, huh.NewOption(q.String(), q))
	}
	return opts
}
