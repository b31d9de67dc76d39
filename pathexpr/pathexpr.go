// Package pathexpr parses and evaluates the path expressions used by
// provider mappings, e.g. `properties.provisioningState` or
// `tags['catalog.owner']`.
package pathexpr

import (
	"fmt"
	"strings"

	"github.com/azure/resource-graph-catalog-ingester/value"
)

// Expression is a parsed path. It is a value type and safe to copy.
type Expression struct {
	text     string
	segments []string
}

type SyntaxError struct {
	Expression string
	Offset     int
	Message    string
}

func (err *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path expression %q at offset %d: %s", err.Expression, err.Offset, err.Message)
}

// Parse splits text on '.' outside of bracket-quoted segments. A segment
// written as ['...'] or ["..."] is taken verbatim, which allows keys that
// contain '.', '/' or other punctuation.
func Parse(text string) (Expression, error) {
	if text == "" {
		return Expression{}, &SyntaxError{Expression: text, Offset: 0, Message: "empty expression"}
	}

	segments := []string{}
	var current strings.Builder
	// pendingSegment is set when a '.' has been consumed and a segment must follow.
	pendingSegment := true
	afterBracket := false

	for i := 0; i < len(text); {
		char := text[i]
		switch {
		case char == '.':
			if afterBracket {
				afterBracket = false
			} else {
				if current.Len() == 0 {
					return Expression{}, &SyntaxError{Expression: text, Offset: i, Message: "empty segment"}
				}
				segments = append(segments, current.String())
				current.Reset()
			}
			pendingSegment = true
			i++

		case char == '[':
			if current.Len() > 0 {
				segments = append(segments, current.String())
				current.Reset()
			}
			key, next, err := parseBracket(text, i)
			if err != nil {
				return Expression{}, err
			}
			segments = append(segments, key)
			pendingSegment = false
			afterBracket = true
			i = next

		default:
			if afterBracket {
				return Expression{}, &SyntaxError{Expression: text, Offset: i, Message: "expected '.' or '[' after ']'"}
			}
			current.WriteByte(char)
			pendingSegment = false
			i++
		}
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	} else if pendingSegment {
		return Expression{}, &SyntaxError{Expression: text, Offset: len(text), Message: "empty segment"}
	}

	return Expression{text: text, segments: segments}, nil
}

// parseBracket reads a quoted key starting at the '[' found at offset start.
// It returns the key and the offset just past the closing ']'.
func parseBracket(text string, start int) (string, int, error) {
	quoteOffset := start + 1
	if quoteOffset >= len(text) {
		return "", 0, &SyntaxError{Expression: text, Offset: start, Message: "unterminated bracket"}
	}
	quote := text[quoteOffset]
	if quote != '\'' && quote != '"' {
		return "", 0, &SyntaxError{Expression: text, Offset: quoteOffset, Message: "bracket segments must be quoted"}
	}

	closing := strings.IndexByte(text[quoteOffset+1:], quote)
	if closing < 0 {
		return "", 0, &SyntaxError{Expression: text, Offset: quoteOffset, Message: "unterminated quote"}
	}
	keyEnd := quoteOffset + 1 + closing
	key := text[quoteOffset+1 : keyEnd]

	if keyEnd+1 >= len(text) || text[keyEnd+1] != ']' {
		return "", 0, &SyntaxError{Expression: text, Offset: keyEnd + 1, Message: "unterminated bracket"}
	}
	return key, keyEnd + 2, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(text string) Expression {
	expr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return expr
}

// FromSegments builds an expression without going through the textual form.
func FromSegments(segments ...string) Expression {
	copied := make([]string, len(segments))
	copy(copied, segments)
	return Expression{segments: copied}
}

func (expr Expression) Segments() []string {
	copied := make([]string, len(expr.segments))
	copy(copied, expr.segments)
	return copied
}

func (expr Expression) String() string {
	if expr.text != "" {
		return expr.text
	}
	var builder strings.Builder
	for i, segment := range expr.segments {
		if strings.ContainsAny(segment, ".[]'\"/") || segment == "" {
			if strings.Contains(segment, "'") {
				fmt.Fprintf(&builder, `["%s"]`, segment)
			} else {
				fmt.Fprintf(&builder, "['%s']", segment)
			}
			continue
		}
		if i > 0 {
			builder.WriteByte('.')
		}
		builder.WriteString(segment)
	}
	return builder.String()
}

// Resolve walks v one segment at a time. It reports false when a segment is
// missing or an intermediate value is not an Object; an explicit Null at the
// end of the path is returned with true.
func Resolve(v value.Value, expr Expression) (value.Value, bool) {
	current := v
	for _, segment := range expr.segments {
		next, ok := current.Get(segment)
		if !ok {
			return value.Null(), false
		}
		current = next
	}
	return current, true
}

// ResolveString parses text and resolves it against v in one step.
func ResolveString(v value.Value, text string) (value.Value, bool, error) {
	expr, err := Parse(text)
	if err != nil {
		return value.Null(), false, err
	}
	resolved, ok := Resolve(v, expr)
	return resolved, ok, nil
}
