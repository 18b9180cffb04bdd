// Package compose turns a script path, an ordered set of argument
// values, and an optional pre-command into a single shell command
// string. Composition is a pure function of its inputs; no escaping
// beyond whitespace quoting is performed, so callers own the safety of
// untrusted values.
package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadValue is returned when a supplied value cannot be rendered as
// a command-line token (nested lists, objects, and the like).
var ErrBadValue = errors.New("value cannot be rendered as a command-line argument")

// Interpreter is the command used to invoke target scripts.
const Interpreter = "python"

// Arg is one name/value pair. Args are a slice, not a map, so the
// order the caller supplied survives into the composed command.
type Arg struct {
	Name  string
	Value any
}

// Plan is the intermediate composition result: pre-command statements
// that must succeed in order, the script invocation tokens, and an
// optional leading comment. Built once per launch and immediately
// rendered to a string.
type Plan struct {
	Preamble []string
	Script   string
	Tokens   []string
	Comment  string
}

// Build assembles a Plan. Pre-command text is split on line breaks
// with blank lines dropped; each statement runs only if the previous
// one succeeded. Arguments with absent or empty values are omitted
// entirely rather than emitted as empty flags.
func Build(scriptPath string, args []Arg, preCommand, comment string) (*Plan, error) {
	plan := &Plan{Script: scriptPath, Comment: comment}

	for _, line := range strings.Split(preCommand, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			plan.Preamble = append(plan.Preamble, line)
		}
	}

	for _, a := range args {
		tokens, err := renderValue(a.Name, a.Value)
		if err != nil {
			return nil, fmt.Errorf("argument --%s: %w", a.Name, err)
		}
		plan.Tokens = append(plan.Tokens, tokens...)
	}

	return plan, nil
}

// String renders the plan to one line-oriented shell command.
func (p *Plan) String() string {
	var parts []string
	if len(p.Preamble) > 0 {
		parts = append(parts, strings.Join(p.Preamble, " && "), "&&")
	}

	invocation := Interpreter + " " + p.Script
	if len(p.Tokens) > 0 {
		invocation += " " + strings.Join(p.Tokens, " ")
	}
	parts = append(parts, invocation)

	cmd := strings.Join(parts, " ")
	if p.Comment != "" {
		return "# " + p.Comment + "\n" + cmd
	}
	return cmd
}

// Command builds and renders in one step.
func Command(scriptPath string, args []Arg, preCommand, comment string) (string, error) {
	plan, err := Build(scriptPath, args, preCommand, comment)
	if err != nil {
		return "", err
	}
	return plan.String(), nil
}

// renderValue converts one value into zero or more command tokens.
// A boolean true becomes a bare flag; false, nil, and empty strings
// vanish. Lists emit the flag once followed by each element.
func renderValue(name string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return []string{"--" + name}, nil
		}
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{"--" + name, quoteIfNeeded(v)}, nil
	case json.Number:
		return []string{"--" + name, v.String()}, nil
	case int:
		return []string{"--" + name, fmt.Sprintf("%d", v)}, nil
	case int64:
		return []string{"--" + name, fmt.Sprintf("%d", v)}, nil
	case float64:
		return []string{"--" + name, formatFloat(v)}, nil
	case []string:
		return renderList(name, toAnySlice(v))
	case []any:
		return renderList(name, v)
	default:
		return nil, ErrBadValue
	}
}

// renderList emits a multi-value argument: the flag once, then each
// element as its own token. Nested composites are rejected.
func renderList(name string, elems []any) ([]string, error) {
	if len(elems) == 0 {
		return nil, nil
	}
	tokens := []string{"--" + name}
	for _, e := range elems {
		switch v := e.(type) {
		case string:
			tokens = append(tokens, quoteIfNeeded(v))
		case json.Number:
			tokens = append(tokens, v.String())
		case int:
			tokens = append(tokens, fmt.Sprintf("%d", v))
		case int64:
			tokens = append(tokens, fmt.Sprintf("%d", v))
		case float64:
			tokens = append(tokens, formatFloat(v))
		case bool:
			tokens = append(tokens, fmt.Sprintf("%t", v))
		default:
			return nil, ErrBadValue
		}
	}
	return tokens, nil
}

// quoteIfNeeded wraps a string containing whitespace in single quotes
// so it survives shell word splitting as one token.
func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return "'" + s + "'"
	}
	return s
}

// formatFloat renders a float without scientific notation and without
// a trailing ".0" for whole numbers, matching how values were typed.
func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
