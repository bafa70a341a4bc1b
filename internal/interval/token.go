package interval

import (
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
)

// MaxDays bounds the day count of a token so that applying it to any
// realistic anchor stays inside the calendar range civil.Date can represent.
const MaxDays = 36600

type Direction int

const (
	Before Direction = iota
	After
)

func (d Direction) String() string {
	if d == Before {
		return "before"
	}
	return "after"
}

// Token is a parsed offset such as "T-15" or "D+7". Letter and Width are
// kept only so that String reproduces the original text, zero padding
// included; the sign alone decides Direction.
type Token struct {
	Letter    byte
	Direction Direction
	Days      int
	Width     int
}

type InvalidTokenError struct {
	Token  string
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid interval token %q: %s", e.Token, e.Reason)
}

// Parse accepts the grammar ^[TD][+-]\d+$. Both letters accept both signs.
func Parse(token string) (Token, error) {
	if len(token) < 3 {
		return Token{}, &InvalidTokenError{Token: token, Reason: "too short"}
	}

	letter := token[0]
	if letter != 'T' && letter != 'D' {
		return Token{}, &InvalidTokenError{Token: token, Reason: "must start with T or D"}
	}

	var dir Direction
	switch token[1] {
	case '-':
		dir = Before
	case '+':
		dir = After
	default:
		return Token{}, &InvalidTokenError{Token: token, Reason: "sign must be + or -"}
	}

	digits := token[2:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Token{}, &InvalidTokenError{Token: token, Reason: "day count must be decimal digits"}
		}
	}

	days, err := strconv.Atoi(digits)
	if err != nil || days > MaxDays {
		return Token{}, &InvalidTokenError{Token: token, Reason: fmt.Sprintf("day count exceeds %d", MaxDays)}
	}

	return Token{Letter: letter, Direction: dir, Days: days, Width: len(digits)}, nil
}

func (t Token) String() string {
	sign := '+'
	if t.Direction == Before {
		sign = '-'
	}
	return fmt.Sprintf("%c%c%0*d", t.Letter, sign, t.Width, t.Days)
}

// Offset returns the signed day delta relative to the anchor.
func (t Token) Offset() int {
	if t.Direction == Before {
		return -t.Days
	}
	return t.Days
}

func (t Token) Apply(anchor civil.Date) civil.Date {
	return anchor.AddDays(t.Offset())
}

// ParseAll parses tokens in order and reports the first failure.
func ParseAll(tokens []string) ([]Token, error) {
	parsed := make([]Token, 0, len(tokens))
	for _, raw := range tokens {
		t, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, t)
	}
	return parsed, nil
}
