package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// CachedPuzzle is a puzzle kept in the offline store with an obfuscated solution.
type CachedPuzzle struct {
	ID              string
	Question        string
	EncodedSolution string
	CachedAt        time.Time
}

// ParseAnswer coerces a raw answer to an integer from its leading digits, so "5", " 5", "05",
// "5.0" and "5 apples" are the same answer. An answer without leading digits is rejected.
func ParseAnswer(answer string) (int, bool) {
	answer = strings.TrimLeftFunc(answer, unicode.IsSpace)

	end := 0
	if end < len(answer) && (answer[end] == '+' || answer[end] == '-') {
		end++
	}
	digits := end
	for end < len(answer) && answer[end] >= '0' && answer[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.Atoi(answer[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Check reports whether the answer matches the solution by numeric equality.
func (p Puzzle) Check(answer string) bool {
	n, ok := ParseAnswer(answer)
	return ok && n == p.Solution
}
