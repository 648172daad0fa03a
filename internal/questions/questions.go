// Package questions holds the fixed, ordered list of interview prompts and
// picks one of them uniformly at random.
package questions

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// Question is a single interview prompt.
type Question string

// String returns the prompt text.
func (q Question) String() string { return string(q) }

// ErrEmptyList is returned when a question list has no usable entries.
var ErrEmptyList = errors.New("question list is empty")

var builtin = []Question{
	"Introduce yourself",
	"Explain a project you worked on",
	"Explain any movie",
}

// List is an immutable, non-empty, ordered set of questions.
type List struct {
	items []Question
}

// Default returns the built-in question list.
func Default() *List {
	return &List{items: append([]Question(nil), builtin...)}
}

// New builds a List from the given prompts. Blank entries are dropped; at
// least one prompt must remain.
func New(prompts []string) (*List, error) {
	items := make([]Question, 0, len(prompts))
	for _, p := range prompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items = append(items, Question(p))
	}
	if len(items) == 0 {
		return nil, ErrEmptyList
	}
	return &List{items: items}, nil
}

// Len returns the number of questions.
func (l *List) Len() int { return len(l.items) }

// At returns the question at index i.
func (l *List) At(i int) Question { return l.items[i] }

// All returns a copy of the questions in order.
func (l *List) All() []Question {
	return append([]Question(nil), l.items...)
}

// Random picks a question uniformly over the index range. A nil r uses the
// package-level generator.
func (l *List) Random(r *rand.Rand) Question {
	if r == nil {
		return l.items[rand.IntN(len(l.items))]
	}
	return l.items[r.IntN(len(l.items))]
}
