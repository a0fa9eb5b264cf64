package render

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vantos-systems/workorder-engine/internal/lexer"
)

// MaxTemplateLen bounds template length, mirroring the evaluator's bound on
// predicate length — the renderer walks untrusted text too.
const MaxTemplateLen = 8192

// Mode selects how a substituted value is formatted.
type Mode int

const (
	// ModeRaw substitutes the value's string form verbatim. Used only for
	// log/message payloads, never SQL.
	ModeRaw Mode = iota
	// ModeSQLLiteral substitutes a SQL literal: quoted/escaped strings,
	// decimal numbers, TRUE/FALSE, NULL.
	ModeSQLLiteral
	// ModeIdentifier rejects the rendered value unless it matches
	// [A-Za-z_][A-Za-z0-9_]*.
	ModeIdentifier
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Context resolves `{name}` occurrences during rendering.
type Context interface {
	Lookup(name string) (value any, found bool)
}

// Param is one (name, value) pair captured, in left-to-right occurrence
// order, while rendering a template into its parameterized form.
type Param struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Render substitutes every `{name}` in tmpl with its context value, per mode.
// An unknown variable fails the render with ErrMissingVariable.
func Render(tmpl string, ctx Context, mode Mode) (string, error) {
	return render(tmpl, ctx, mode, false)
}

// RenderTolerant behaves like Render(tmpl, ctx, ModeRaw) except a `{name}`
// whose key is absent from ctx is left as the literal placeholder text
// instead of failing — the one tolerated case, for RETURN_ERROR messages,
// so operators still receive a message even with a missing key.
func RenderTolerant(tmpl string, ctx Context) (string, error) {
	return render(tmpl, ctx, ModeRaw, true)
}

// Identifier validates s as a bare SQL identifier without performing any
// substitution — used to check `table` and `output_fields` entries that are
// not themselves templates.
func Identifier(s string) (string, error) {
	if !identifierPattern.MatchString(s) {
		return "", newError(ErrInvalidIdentifier, s)
	}
	return s, nil
}

func render(tmpl string, ctx Context, mode Mode, missingAsLiteral bool) (string, error) {
	if len(tmpl) > MaxTemplateLen {
		return "", newError(ErrOversizeInput, "")
	}

	placeholders, err := lexer.ScanPlaceholders(tmpl)
	if err != nil {
		return "", newError(ErrControlCharacter, err.Error())
	}

	var sb strings.Builder
	last := 0
	for _, ph := range placeholders {
		sb.WriteString(tmpl[last:ph.Start])

		v, found := ctx.Lookup(ph.Name)
		if !found {
			if missingAsLiteral {
				sb.WriteString(tmpl[ph.Start:ph.End])
				last = ph.End
				continue
			}
			return "", newError(ErrMissingVariable, ph.Name)
		}

		lit, err := formatValue(v, mode)
		if err != nil {
			return "", err
		}
		sb.WriteString(lit)
		last = ph.End
	}
	sb.WriteString(tmpl[last:])
	out := sb.String()

	if mode == ModeIdentifier {
		if !identifierPattern.MatchString(out) {
			return "", newError(ErrInvalidIdentifier, out)
		}
	}
	return out, nil
}

// RenderParameterized substitutes each `{name}` in tmpl with a positional
// "?" placeholder and returns the list of (name, value) pairs that were
// substituted, in left-to-right occurrence order. The values are the raw
// context values, suitable for parameterized execution.
func RenderParameterized(tmpl string, ctx Context) (string, []Param, error) {
	if len(tmpl) > MaxTemplateLen {
		return "", nil, newError(ErrOversizeInput, "")
	}
	placeholders, err := lexer.ScanPlaceholders(tmpl)
	if err != nil {
		return "", nil, newError(ErrControlCharacter, err.Error())
	}

	var sb strings.Builder
	var params []Param
	last := 0
	for _, ph := range placeholders {
		sb.WriteString(tmpl[last:ph.Start])
		v, found := ctx.Lookup(ph.Name)
		if !found {
			return "", nil, newError(ErrMissingVariable, ph.Name)
		}
		sb.WriteString("?")
		params = append(params, Param{Name: ph.Name, Value: v})
		last = ph.End
	}
	sb.WriteString(tmpl[last:])
	return sb.String(), params, nil
}

// FormatSQLLiteral exposes the sql_literal formatting of a single value —
// used to verify that substituting a record's Parameters into its
// TemplateSQL positionally reproduces RenderedSQL.
func FormatSQLLiteral(v any) (string, error) {
	return sqlLiteral(v)
}

func formatValue(v any, mode Mode) (string, error) {
	switch mode {
	case ModeSQLLiteral:
		return sqlLiteral(v)
	default:
		return rawString(v), nil
	}
}

func rawString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func sqlLiteral(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case string:
		if lexer.HasControlChar(t) {
			return "", newError(ErrControlCharacter, t)
		}
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	default:
		return "", newError(ErrInvalidIdentifier, "")
	}
}
