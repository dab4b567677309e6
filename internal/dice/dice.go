// Package dice parses and bounds compact roll notation such as "2d6+3".
package dice

import (
	"errors"
	"regexp"
	"strconv"
)

const (
	// MaxCount is the largest number of dice a single roll may request.
	MaxCount = 100
	// MaxSides is the largest die a single roll may request.
	MaxSides = 1000
)

var (
	ErrInvalidNotation = errors.New("invalid dice notation")
	ErrInvalidDice     = errors.New("dice count and sides must be at least 1")
	ErrTooManyDice     = errors.New("too many dice (max 100)")
	ErrTooManySides    = errors.New("too many sides (max 1000)")
)

var notationRe = regexp.MustCompile(`^(\d+)[dD](\d+)([+-]\d+)?$`)

// Notation is a single parsed dice term.
type Notation struct {
	Count    int
	Sides    int
	Modifier int
}

// Parse parses NdS, NdS+M or NdS-M. Anything else (several terms, keep/drop,
// advantage, surrounding whitespace) is rejected rather than partially parsed.
func Parse(s string) (Notation, bool) {
	m := notationRe.FindStringSubmatch(s)
	if m == nil {
		return Notation{}, false
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return Notation{}, false
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Notation{}, false
	}

	var mod int
	if m[3] != "" {
		mod, err = strconv.Atoi(m[3])
		if err != nil {
			return Notation{}, false
		}
	}

	return Notation{Count: count, Sides: sides, Modifier: mod}, true
}

// Validate checks the bounds a roll request must stay within.
func Validate(n Notation) error {
	if n.Count < 1 || n.Sides < 1 {
		return ErrInvalidDice
	}
	if n.Count > MaxCount {
		return ErrTooManyDice
	}
	if n.Sides > MaxSides {
		return ErrTooManySides
	}
	return nil
}

func ParseAndValidate(s string) (Notation, error) {
	n, ok := Parse(s)
	if !ok {
		return Notation{}, ErrInvalidNotation
	}
	if err := Validate(n); err != nil {
		return Notation{}, err
	}
	return n, nil
}

// String returns the canonical form, e.g. "2d6+3" or "1d20".
func (n Notation) String() string {
	s := strconv.Itoa(n.Count) + "d" + strconv.Itoa(n.Sides)
	switch {
	case n.Modifier > 0:
		s += "+" + strconv.Itoa(n.Modifier)
	case n.Modifier < 0:
		s += strconv.Itoa(n.Modifier)
	}
	return s
}
