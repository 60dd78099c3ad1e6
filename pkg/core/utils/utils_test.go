package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overrideDoc struct {
	Name   string                        `json:"name"`
	Values map[string]map[string]float64 `json:"values"`
}

func TestSmartParse(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "Valid JSON",
			input: `{"name": "base", "values": {"0": {"2025": 5}}}`,
		},
		{
			name:  "Needs repair",
			input: `{name: 'base', values: {"0": {"2025": 5,},},}`,
		},
		{
			name: "Hjson with comments",
			input: `{
				# growth scenario
				name: base
				values: {
					"0": { "2025": 5 }
				}
			}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var doc overrideDoc
			_, err := SmartParse(tc.input, &doc)
			require.NoError(t, err)
			assert.Equal(t, "base", doc.Name)
			assert.Equal(t, 5.0, doc.Values["0"]["2025"])
		})
	}
}

func TestParseHJSON(t *testing.T) {
	out, err := ParseHJSON("{\n  // comment\n  growth: 3.5\n}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"growth": 3.5}`, out)
}

func TestRenderMarkdown_Table(t *testing.T) {
	md := "# Conto economico\n\n| Voce | 2025 |\n|---|---:|\n| Ricavi | 1.030.000 |\n"
	html, err := RenderMarkdown(md)
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "<table>"))
	assert.True(t, strings.Contains(html, "<h1>Conto economico</h1>"))
}
