package expression

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kunthar/zops-audience/pkg/setstore"
)

var (
	// ErrStackUnderflow is returned when the postfix stack runs out of
	// tokens mid-operator. A validated expression never trips it.
	ErrStackUnderflow = errors.New("evaluation stack underflow")

	// ErrUnknownOperand is returned when an operand has no backing key in
	// the key map.
	ErrUnknownOperand = errors.New("operand has no backing set key")
)

const evalKeyPrefix = "zops:audience:eval:"

// Evaluate consumes a postfix stack, combining the operand sets through the
// store and returning the key holding the final result. keyMap must hold a
// backing store key for every leaf operand; each operator node materializes
// a fresh synthetic key which is registered into keyMap as it is produced.
//
// Intermediate keys are not cleaned up here. Callers bound their lifetime
// with their own TTL policy.
func Evaluate(ctx context.Context, store setstore.SetStore, postfix []string, keyMap map[string]string) (string, error) {
	stack := append([]string(nil), postfix...)

	key, rest, err := evaluate(ctx, store, stack, keyMap)
	if err != nil {
		return "", err
	}
	if len(rest) != 0 {
		return "", fmt.Errorf("%d tokens left after evaluation", len(rest))
	}
	return key, nil
}

func evaluate(ctx context.Context, store setstore.SetStore, stack []string, keyMap map[string]string) (string, []string, error) {
	if len(stack) == 0 {
		return "", nil, ErrStackUnderflow
	}

	token := stack[len(stack)-1]
	rest := stack[:len(stack)-1]

	if !IsOperator(token) {
		key, ok := keyMap[token]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownOperand, token)
		}
		return key, rest, nil
	}

	// The right operand sits on top of the stack. Difference is not
	// commutative, so the order must survive the recursion.
	right, rest, err := evaluate(ctx, store, rest, keyMap)
	if err != nil {
		return "", nil, err
	}
	left, rest, err := evaluate(ctx, store, rest, keyMap)
	if err != nil {
		return "", nil, err
	}

	synthetic := uuid.NewString()
	dest := evalKeyPrefix + synthetic
	keyMap[synthetic] = dest

	switch token {
	case OperatorIntersection:
		_, err = store.InterStore(ctx, dest, left, right)
	case OperatorUnion:
		_, err = store.UnionStore(ctx, dest, left, right)
	case OperatorDifference:
		_, err = store.DiffStore(ctx, dest, left, right)
	default:
		err = fmt.Errorf("%w: %q", setstore.ErrUnknownOperator, token)
	}
	if err != nil {
		return "", nil, err
	}

	return dest, rest, nil
}
