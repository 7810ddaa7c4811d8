package formula

import (
	"regexp"
	"strconv"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// word is a maximal run of ASCII word characters [A-Za-z0-9_] in a
// template, with byte offsets. A word starting with a letter is an
// identifier.
type word struct {
	Text  string
	Start int
	End   int
}

func (w word) isIdentifier() bool {
	return isAlpha(rune(w.Text[0]))
}

// scanWords splits s into words. Everything between words, including
// non-ASCII letters, is a separator.
func scanWords(s string) []word {
	var words []word
	start := -1
	for i := 0; i < len(s); i++ {
		if isWordChar(rune(s[i])) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, word{Text: s[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, word{Text: s[start:], Start: start, End: len(s)})
	}
	return words
}

var resultRefPattern = regexp.MustCompile(`^r[0-9]+$`)

// IsResultRef reports whether name refers to the result of an earlier row,
// i.e. it is "r" followed by digits only.
func IsResultRef(name string) bool {
	return resultRefPattern.MatchString(name)
}

// isReservedName reports whether name starts with "r" and a digit. Such
// names are never free variables, even when they are not exact result
// references like "r1x".
func isReservedName(name string) bool {
	return len(name) > 1 && name[0] == 'r' && isDigit(rune(name[1]))
}

// ResultRef returns the name under which row index i (zero-based) publishes
// its value.
func ResultRef(i int) string {
	return "r" + strconv.Itoa(i+1)
}

// ExtractVariables returns the free variables of expression: identifiers
// that are neither predefined nor start with "r" and a digit, de-duplicated in
// order of first occurrence. A nil predicate treats no name as predefined.
func ExtractVariables(expression string, predefined Predicate) []string {
	set := linkedhashset.New()
	collectVariables(set, expression, predefined)
	return setToStrings(set)
}

// VariablesInUse returns the union of the free variables of all templates,
// in order of first occurrence across rows.
func VariablesInUse(templates []string, predefined Predicate) []string {
	set := linkedhashset.New()
	for _, t := range templates {
		collectVariables(set, t, predefined)
	}
	return setToStrings(set)
}

func collectVariables(set *linkedhashset.Set, expression string, predefined Predicate) {
	for _, w := range scanWords(expression) {
		if !w.isIdentifier() || isReservedName(w.Text) {
			continue
		}
		if predefined != nil && predefined.IsPredefined(w.Text) {
			continue
		}
		set.Add(w.Text)
	}
}

func setToStrings(set *linkedhashset.Set) []string {
	names := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		names = append(names, v.(string))
	}
	return names
}
