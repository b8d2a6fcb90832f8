// Package expression implements the set-algebra language residency
// definitions combine their named sets with: alphanumeric operands, the
// binary operators "n" (intersection), "U" (union) and "-" (difference),
// and explicit parenthesized grouping.
package expression

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrMalformed is returned when an expression string does not scan into an
// operand/operator shape at all.
var ErrMalformed = errors.New("malformed expression")

const (
	OperatorIntersection = "n"
	OperatorUnion        = "U"
	OperatorDifference   = "-"
)

// IsOperator reports whether a standalone token is one of the three binary
// operators.
func IsOperator(token string) bool {
	switch token {
	case OperatorIntersection, OperatorUnion, OperatorDifference:
		return true
	}
	return false
}

// Parsed is the immutable result of one parse: three views over the same
// token stream.
type Parsed struct {
	// Postfix holds the expression in operand-operand-operator order, ready
	// for stack evaluation.
	Postfix []string

	// Operands holds each distinct operand token in first-use order.
	Operands []string

	// Raw holds every token including parentheses, in source order. The
	// validator counts closed groups over it.
	Raw []string
}

// OperandSet returns the operands as a membership map.
func (p *Parsed) OperandSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Operands))
	for _, op := range p.Operands {
		set[op] = struct{}{}
	}
	return set
}

// Parse tokenizes and parses one expression string. It is a pure function:
// every call derives all three views from a single scan, so there is no
// parser state to reset between expressions.
//
// Unmatched parentheses are deliberately not a parse error. The parser
// recovers a postfix ordering from what is there and leaves the imbalance to
// the validator, which detects it on the raw token stream.
func Parse(expression string) (*Parsed, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrMalformed)
	}

	parsed := &Parsed{Raw: tokens}

	seen := make(map[string]struct{})
	var operators []string

	// Shunting-yard with a single precedence level. expectOperand tracks the
	// operand/operator alternation the grammar requires.
	expectOperand := true
	for _, token := range tokens {
		switch {
		case token == "(":
			if !expectOperand {
				return nil, fmt.Errorf("%w: group opened after an operand", ErrMalformed)
			}
			operators = append(operators, token)
		case token == ")":
			if expectOperand {
				return nil, fmt.Errorf("%w: group closed after an operator", ErrMalformed)
			}
			for len(operators) > 0 && operators[len(operators)-1] != "(" {
				parsed.Postfix = append(parsed.Postfix, operators[len(operators)-1])
				operators = operators[:len(operators)-1]
			}
			if len(operators) > 0 {
				operators = operators[:len(operators)-1]
			}
		case IsOperator(token):
			if expectOperand {
				return nil, fmt.Errorf("%w: operator %q has no left operand", ErrMalformed, token)
			}
			for len(operators) > 0 && operators[len(operators)-1] != "(" {
				parsed.Postfix = append(parsed.Postfix, operators[len(operators)-1])
				operators = operators[:len(operators)-1]
			}
			operators = append(operators, token)
			expectOperand = true
		default:
			if !expectOperand {
				return nil, fmt.Errorf("%w: operand %q follows another operand", ErrMalformed, token)
			}
			parsed.Postfix = append(parsed.Postfix, token)
			if _, ok := seen[token]; !ok {
				seen[token] = struct{}{}
				parsed.Operands = append(parsed.Operands, token)
			}
			expectOperand = false
		}
	}
	if expectOperand {
		return nil, fmt.Errorf("%w: expression ends on an operator", ErrMalformed)
	}

	for len(operators) > 0 {
		top := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		if top == "(" {
			// Unmatched opener, surfaced by the validator's group count.
			continue
		}
		parsed.Postfix = append(parsed.Postfix, top)
	}

	return parsed, nil
}

func tokenize(expression string) ([]string, error) {
	var tokens []string
	var word []rune

	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}

	for _, r := range expression {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '(' || r == ')' || r == '-':
			flush()
			tokens = append(tokens, string(r))
		case r >= '0' && r <= '9' || unicode.IsLetter(r):
			word = append(word, r)
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrMalformed, r)
		}
	}
	flush()

	return tokens, nil
}
