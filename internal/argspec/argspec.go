// Package argspec infers a Python script's command-line interface by
// scanning its source for argparse declarations. The scan is regex-level
// by design: target scripts are not executed, and a partial schema is
// preferable to refusing to run.
package argspec

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoParser is returned when the source contains no ArgumentParser
// construction at all. Distinct from a script that declares zero
// arguments, which yields an empty (valid) result.
var ErrNoParser = errors.New("no ArgumentParser found in script; make sure your script uses argparse")

// ValueType classifies a parameter's value. The names match what
// argparse-based scripts declare, so they round-trip through the API
// unchanged.
type ValueType string

const (
	TypeString ValueType = "str"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
)

// Parameter is one inferred command-line parameter. Fields the scan
// could not recover are left at their zero value; only Name is
// mandatory for a candidate to survive extraction.
type Parameter struct {
	Name     string    `json:"name"`
	Short    string    `json:"short,omitempty"`
	Type     ValueType `json:"type"`
	Action   string    `json:"action,omitempty"` // "true" or "false" for store_true/store_false flags
	Default  any       `json:"default,omitempty"`
	Required bool      `json:"required"`
	Choices  []string  `json:"choices,omitempty"`
	NArgs    string    `json:"nargs,omitempty"`
	Multiple bool      `json:"multiple,omitempty"`
	Help     string    `json:"help,omitempty"`
}

var (
	parserVarRe = regexp.MustCompile(`(\w+)\s*=\s*argparse\.ArgumentParser`)
	nameRe      = regexp.MustCompile(`['"](--[\w-]+)['"]`)
	shortRe     = regexp.MustCompile(`['"](-[a-zA-Z]+)['"]`)
	actionRe    = regexp.MustCompile(`action\s*=\s*['"]store_(true|false)['"]`)
	typeRe      = regexp.MustCompile(`type\s*=\s*(\w+)`)
	helpRe      = regexp.MustCompile(`help\s*=\s*['"]([^'"]+)['"]`)
	defaultRe   = regexp.MustCompile(`default\s*=\s*([^,)]+)`)
	requiredRe  = regexp.MustCompile(`required\s*=\s*(True|False)`)
	choicesRe   = regexp.MustCompile(`choices\s*=\s*\[((?s).*?)\]`)
	nargsRe     = regexp.MustCompile(`nargs\s*=\s*['"]?([+*?]|\d+)['"]?`)
)

// Extract scans source text for argparse declarations and returns the
// parameters it can recover. The first `X = argparse.ArgumentParser`
// binding names the scan anchor; every `X.add_argument(...)` call is
// one candidate, parsed independently so a malformed declaration never
// aborts the rest. Candidates without a recognizable flag name are
// skipped, as are duplicates of an already-seen name.
func Extract(source string) ([]Parameter, error) {
	if !strings.Contains(source, "ArgumentParser") {
		return nil, ErrNoParser
	}

	parserVar := "parser"
	if m := parserVarRe.FindStringSubmatch(source); m != nil {
		parserVar = m[1]
	}

	callRe := regexp.MustCompile(regexp.QuoteMeta(parserVar) + `\.add_argument\s*\(((?s).*?)\)`)

	var params []Parameter
	seen := make(map[string]bool)
	for _, m := range callRe.FindAllStringSubmatch(source, -1) {
		p, ok := parseCandidate(m[1])
		if !ok || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		params = append(params, p)
	}
	return params, nil
}

// ExtractFile reads a script from disk and extracts its parameters.
func ExtractFile(path string) ([]Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script not found: %s", path)
		}
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return Extract(string(data))
}

// parseCandidate extracts one Parameter from the argument text of a
// single add_argument call. Every field is best-effort: a field that
// fails to parse is simply absent from the result.
func parseCandidate(argStr string) (Parameter, bool) {
	var p Parameter

	nm := nameRe.FindStringSubmatch(argStr)
	if nm == nil {
		return p, false
	}
	p.Name = nm[1]

	if sm := shortRe.FindStringSubmatch(argStr); sm != nil && sm[1] != p.Name {
		p.Short = sm[1]
	}

	// Boolean flag actions take priority over an explicit type keyword.
	// store_true flags default to false, store_false flags to true.
	if am := actionRe.FindStringSubmatch(argStr); am != nil {
		p.Type = TypeBool
		p.Action = am[1]
		p.Default = am[1] == "false"
	} else if tm := typeRe.FindStringSubmatch(argStr); tm != nil {
		p.Type = mapType(tm[1])
	} else {
		p.Type = TypeString
	}

	if hm := helpRe.FindStringSubmatch(argStr); hm != nil {
		p.Help = hm[1]
	}

	if p.Default == nil {
		if dm := defaultRe.FindStringSubmatch(argStr); dm != nil {
			p.Default = sniffLiteral(dm[1])
		}
	}

	if rm := requiredRe.FindStringSubmatch(argStr); rm != nil {
		p.Required = rm[1] == "True"
	}

	if cm := choicesRe.FindStringSubmatch(argStr); cm != nil {
		p.Choices = splitChoices(cm[1])
	}

	if nmrk := nargsRe.FindStringSubmatch(argStr); nmrk != nil {
		p.NArgs = nmrk[1]
		if p.NArgs == "+" || p.NArgs == "*" {
			p.Multiple = true
		}
	}

	return p, true
}

// mapType converts an argparse type keyword to a ValueType. Unknown
// keywords (custom callables, Path, etc.) degrade to string, which is
// always renderable.
func mapType(word string) ValueType {
	switch word {
	case "int":
		return TypeInt
	case "float":
		return TypeFloat
	case "bool":
		return TypeBool
	case "str":
		return TypeString
	default:
		return TypeString
	}
}

// sniffLiteral types a default-value literal: quoted text is a string,
// bare true/false a bool, a numeric literal with a decimal point a
// float, a plain numeric literal an int. Anything else is kept as the
// raw source text rather than dropped.
func sniffLiteral(raw string) any {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') {
		return strings.Trim(raw, `'"`)
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	bare := strings.NewReplacer(".", "", "-", "").Replace(raw)
	if bare != "" && isDigits(bare) {
		if strings.Contains(raw, ".") {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				return f
			}
		} else if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return raw
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitChoices parses the body of a bracketed choices list, preserving
// order and unwrapping quotes. Elements are split on commas; nested
// brackets are not handled (the scan is deliberately shallow).
func splitChoices(body string) []string {
	parts := strings.Split(body, ",")
	choices := make([]string, 0, len(parts))
	for _, part := range parts {
		c := strings.Trim(strings.TrimSpace(part), `'"`)
		if c != "" {
			choices = append(choices, c)
		}
	}
	return choices
}
