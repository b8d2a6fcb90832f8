package expression

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedExpressions(t *testing.T) {
	for _, tc := range []struct {
		expression string
		sets       []string
	}{
		{"a", []string{"a"}},
		{"a n b", []string{"a", "b"}},
		{"a - b", []string{"a", "b"}},
		{"(a U b) - c", []string{"a", "b", "c"}},
		{"a U (b U c)", []string{"a", "b", "c"}},
		{"(a U b) - (c n d)", []string{"a", "b", "c", "d"}},
		{"((a U b) - c) n d", []string{"a", "b", "c", "d"}},
		{"(a U b) - (c - (d n e))", []string{"a", "b", "c", "d", "e"}},
	} {
		t.Run(tc.expression, func(t *testing.T) {
			parsed, err := Parse(tc.expression)
			require.NoError(t, err)
			require.True(t, Validate(tc.sets, parsed))
		})
	}
}

func TestValidateRejectsAmbiguousChains(t *testing.T) {
	for _, expression := range []string{
		"a n b n c",
		"a - b - c",
		"a U b U c",
		"a U b - c",
		"(a U b n c) - d",
	} {
		t.Run(expression, func(t *testing.T) {
			parsed, err := Parse(expression)
			require.NoError(t, err)

			names := parsed.Operands
			require.False(t, Validate(names, parsed))
		})
	}
}

func TestValidateRejectsMismatchedOperandSets(t *testing.T) {
	parsed, err := Parse("a n c")
	require.NoError(t, err)

	require.False(t, Validate([]string{"a", "b"}, parsed))
	require.False(t, Validate([]string{"a"}, parsed))
	require.False(t, Validate([]string{"a", "b", "c"}, parsed))
	require.True(t, Validate([]string{"a", "c"}, parsed))
}

func TestValidateRejectsUnterminatedGroup(t *testing.T) {
	parsed, err := Parse("a U (b U c")
	require.NoError(t, err)

	require.Equal(t, -1, countParenGroups(parsed.Raw))
	require.False(t, Validate([]string{"a", "b", "c"}, parsed))
}

func TestValidateRejectsGratuitousGrouping(t *testing.T) {
	// A group around the whole expression leaves more groups than inner
	// operators.
	parsed, err := Parse("(a n b)")
	require.NoError(t, err)
	require.False(t, Validate([]string{"a", "b"}, parsed))
}

func TestCountParenGroups(t *testing.T) {
	for _, tc := range []struct {
		expression string
		want       int
	}{
		{"a", 0},
		{"a n b", 0},
		{"(a U b) - (c n d)", 2},
		{"((a U b) - c) n d", 2},
		{"a U (b U c", -1},
		{") a U b (", -1},
	} {
		parsed, err := Parse(tc.expression)
		if tc.expression == ") a U b (" {
			// Not parseable; count over hand-built tokens instead.
			require.Error(t, err)
			require.Equal(t, -1, countParenGroups([]string{")", "a", "U", "b", "("}))
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, countParenGroups(parsed.Raw), tc.expression)
	}
}

// TestValidateAcceptsGeneratedExpressions builds random expressions straight
// from the grammar with 1 to 4 distinct operands, grouping every combination
// except the outermost one, and checks they all validate.
func TestValidateAcceptsGeneratedExpressions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	operators := []string{"n", "U", "-"}

	for i := 0; i < 200; i++ {
		count := 1 + rng.Intn(4)
		names := make([]string, count)
		terms := make([]string, count)
		for j := range names {
			names[j] = fmt.Sprintf("s%d", j)
			terms[j] = names[j]
		}

		// Fold terms pairwise in random order; wrap each intermediate in
		// parens except the last fold, which becomes the outermost operator.
		for len(terms) > 1 {
			i1 := rng.Intn(len(terms))
			left := terms[i1]
			terms = append(terms[:i1], terms[i1+1:]...)
			i2 := rng.Intn(len(terms))
			right := terms[i2]

			combined := left + " " + operators[rng.Intn(len(operators))] + " " + right
			if len(terms) > 1 {
				combined = "(" + combined + ")"
			}
			terms[i2] = combined
		}

		expression := terms[0]
		parsed, err := Parse(expression)
		require.NoError(t, err, expression)
		require.True(t, Validate(names, parsed), expression)

		ops := 0
		for _, token := range parsed.Postfix {
			if IsOperator(token) {
				ops++
			}
		}
		require.Equal(t, count, ops+1, expression)
	}
}
