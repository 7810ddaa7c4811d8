package formula

import (
	"strings"

	"golang.org/x/net/html"
)

// CSS classes of highlighted tokens
const (
	ClassFunction        = "highlight-function"
	ClassConstant        = "highlight-constant"
	ClassResult          = "highlight-result"
	ClassResultFocused   = "highlight-result-focused"
	ClassVariable        = "highlight-variable"
	ClassVariableFocused = "highlight-variable-focused"
)

// Focus names the variable and result reference to emphasize, if any.
type Focus struct {
	Variable string
	Result   string
}

// Highlight renders template as HTML with every function, constant,
// result reference and variable wrapped in a span carrying its class.
// Classification follows ExtractVariables, so exactly the names it reports
// are marked as variables. All other text is escaped.
func Highlight(template string, table *SymbolTable, focus Focus) string {
	var b strings.Builder
	last := 0
	for _, w := range scanWords(template) {
		b.WriteString(html.EscapeString(template[last:w.Start]))
		last = w.End
		class := classify(w, table, focus)
		if class == "" {
			b.WriteString(html.EscapeString(w.Text))
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(w.Text) // ASCII word characters only
		b.WriteString(`</span>`)
	}
	b.WriteString(html.EscapeString(template[last:]))
	return b.String()
}

func classify(w word, table *SymbolTable, focus Focus) string {
	if !w.isIdentifier() {
		return ""
	}
	if table != nil {
		if sym, ok := table.Lookup(w.Text); ok {
			if sym.IsFunction() {
				return ClassFunction
			}
			return ClassConstant
		}
	}
	if IsResultRef(w.Text) {
		if focus.Result == w.Text {
			return ClassResultFocused
		}
		return ClassResult
	}
	if isReservedName(w.Text) {
		return ""
	}
	if focus.Variable == w.Text {
		return ClassVariableFocused
	}
	return ClassVariable
}

// VariableAtCursor returns the run of ASCII letters and digits touching
// rune position pos in value, e.g. to focus the variable being edited.
func VariableAtCursor(value string, pos int) (string, bool) {
	runes := []rune(value)
	if pos < 0 || pos > len(runes) {
		return "", false
	}
	start, end := pos, pos
	for start > 0 && isAlphaNumeric(runes[start-1]) {
		start--
	}
	for end < len(runes) && isAlphaNumeric(runes[end]) {
		end++
	}
	if start == end {
		return "", false
	}
	return string(runes[start:end]), true
}
