package expression

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePostfixOrdering(t *testing.T) {
	parsed, err := Parse("(a U b) - (c n d)")
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "U", "c", "d", "n", "-"}, parsed.Postfix)
	require.Equal(t, []string{"a", "b", "c", "d"}, parsed.Operands)
	require.Equal(t, []string{"(", "a", "U", "b", ")", "-", "(", "c", "n", "d", ")"}, parsed.Raw)
}

func TestParseSingleOperand(t *testing.T) {
	parsed, err := Parse("visitors2024")
	require.NoError(t, err)

	require.Equal(t, []string{"visitors2024"}, parsed.Postfix)
	require.Equal(t, []string{"visitors2024"}, parsed.Operands)
}

func TestParseWithoutSpacesAroundDifference(t *testing.T) {
	parsed, err := Parse("a-b")
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "-"}, parsed.Postfix)
}

func TestParseRepeatedOperandListedOnce(t *testing.T) {
	parsed, err := Parse("(a U b) n a")
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "U", "a", "n"}, parsed.Postfix)
	require.Equal(t, []string{"a", "b"}, parsed.Operands)
}

func TestParseMalformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"   ",
		"n",
		"-",
		"a U",
		"U a",
		"a b",
		"a U U b",
		"(a U) b",
		"a (n b)",
		"a ! b",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseUnbalancedParensIsNotAParseError(t *testing.T) {
	// Imbalance is the validator's job; the parser still recovers a postfix
	// ordering.
	parsed, err := Parse("a U (b U c")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "U", "U"}, parsed.Postfix)
}
