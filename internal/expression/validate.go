package expression

// Validate runs the three structural checks on a parsed expression against
// the set names a residency declares:
//
//  1. the operands used are exactly the declared set names,
//  2. there is exactly one more operand than operator, and
//  3. the parenthesis grouping is balanced and consistent with the operator
//     count.
//
// Only an expression passing all three may be handed to Evaluate.
func Validate(setNames []string, parsed *Parsed) bool {
	if !operandsMatch(setNames, parsed) {
		return false
	}

	operators := 0
	operands := 0
	for _, token := range parsed.Postfix {
		if IsOperator(token) {
			operators++
		} else {
			operands++
		}
	}
	if operators+1 != operands {
		return false
	}

	groups := countParenGroups(parsed.Raw)
	if groups < 0 {
		return false
	}
	if operators == 0 {
		return groups == 0
	}

	// Every operator except the outermost one needs its own group, which is
	// what rejects ambiguous unparenthesized chains like "a n b n c".
	return groups == operators-1
}

func operandsMatch(setNames []string, parsed *Parsed) bool {
	declared := make(map[string]struct{}, len(setNames))
	for _, name := range setNames {
		declared[name] = struct{}{}
	}
	used := parsed.OperandSet()
	if len(declared) != len(used) {
		return false
	}
	for name := range declared {
		if _, ok := used[name]; !ok {
			return false
		}
	}
	return true
}

// countParenGroups walks the raw token stream and counts fully closed
// parenthesis groups. It returns -1 when the stream ends with an open group
// or closes a group that was never opened.
func countParenGroups(raw []string) int {
	depth := 0
	closed := 0
	for _, token := range raw {
		switch token {
		case "(":
			depth++
		case ")":
			if depth <= 0 {
				return -1
			}
			depth--
			closed++
		}
	}
	if depth != 0 {
		return -1
	}
	return closed
}
