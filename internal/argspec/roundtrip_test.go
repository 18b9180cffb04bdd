package argspec_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptdeck/scriptdeck/internal/argspec"
	"github.com/scriptdeck/scriptdeck/internal/compose"
)

// Composing a command from a script's extracted defaults must produce
// flags the script itself would accept: every rendered flag re-appears
// in the schema, and default values render without loss.
func TestComposeFromExtractedDefaults(t *testing.T) {
	source := `
import argparse

parser = argparse.ArgumentParser(description='train')
parser.add_argument('--data-dir', type=str, default='/data', help='dataset root')
parser.add_argument('--epochs', type=int, default=10)
parser.add_argument('--lr', type=float, default=0.001)
parser.add_argument('--resume', action='store_true')
parser.add_argument('--shuffle', action='store_false')
parser.add_argument('--model', choices=['cnn', 'rnn'], default='cnn')
`
	params, err := argspec.Extract(source)
	require.NoError(t, err)
	require.Len(t, params, 6)

	var args []compose.Arg
	for _, p := range params {
		if p.Default == nil {
			continue
		}
		args = append(args, compose.Arg{
			Name:  strings.TrimLeft(p.Name, "-"),
			Value: p.Default,
		})
	}

	plan, err := compose.Build("/work/train.py", args, "", "")
	require.NoError(t, err)

	// String/int/float defaults render as "--flag value"; the
	// store_true default (false) is omitted, the store_false default
	// (true) renders as a bare flag.
	assert.Contains(t, plan.Tokens, "--data-dir")
	assert.Contains(t, plan.Tokens, "/data")
	assert.Contains(t, plan.Tokens, "--epochs")
	assert.Contains(t, plan.Tokens, "10")
	assert.Contains(t, plan.Tokens, "--lr")
	assert.Contains(t, plan.Tokens, "0.001")
	assert.NotContains(t, plan.Tokens, "--resume")
	assert.Contains(t, plan.Tokens, "--shuffle")
	assert.Contains(t, plan.Tokens, "cnn")

	// Every flag token the composition emitted exists in the schema.
	byName := map[string]argspec.Parameter{}
	for _, p := range params {
		byName[p.Name] = p
	}
	for _, tok := range plan.Tokens {
		if len(tok) > 2 && tok[:2] == "--" {
			_, ok := byName[tok]
			assert.True(t, ok, "composed flag %s missing from schema", tok)
		}
	}
}

// Rendering an extracted default and re-declaring it in Python source
// yields the same typed default on a second extraction pass.
func TestDefaultsSurviveReExtraction(t *testing.T) {
	cases := []struct {
		name    string
		literal string
		want    any
	}{
		{"string", "'adam'", "adam"},
		{"int", "32", 32},
		{"float", "0.5", 0.5},
		{"negative int", "-1", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := fmt.Sprintf(`
import argparse
parser = argparse.ArgumentParser()
parser.add_argument('--opt', default=%s)
`, tc.literal)
			params, err := argspec.Extract(source)
			require.NoError(t, err)
			require.Len(t, params, 1)
			first := params[0].Default

			// Re-declare using the rendered value and extract again.
			rendered := fmt.Sprintf("%v", first)
			if _, isStr := first.(string); isStr {
				rendered = "'" + rendered + "'"
			}
			source2 := fmt.Sprintf(`
import argparse
parser = argparse.ArgumentParser()
parser.add_argument('--opt', default=%s)
`, rendered)
			params2, err := argspec.Extract(source2)
			require.NoError(t, err)
			require.Len(t, params2, 1)

			assert.Equal(t, tc.want, first)
			assert.Equal(t, first, params2[0].Default)
		})
	}
}
