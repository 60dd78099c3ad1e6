package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerDoc = `{
	"2023": {"RI01": 800000},
	"2024": {"RI01": 1000000, "RI21": 400000, "RI25": 100000, "RI31": 20000, "RI32": 350000, "RI33": 170000}
}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "plan.db"))
	t.Setenv("RUN_CACHE_DIR", filepath.Join(dir, "runs"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ENGINE_CONFIG", "")

	path := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(ledgerDoc), 0644))
	return path
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-client", "acme", "-horizon", "5", "-format", "markdown"})
	require.NoError(t, err)
	assert.Equal(t, "acme", opts.client)
	assert.Equal(t, 5, opts.horizon)
	assert.Equal(t, "markdown", opts.format)

	_, err = parseFlags([]string{"-horizon", "5"})
	assert.ErrorContains(t, err, "-client")

	_, err = parseFlags([]string{"-client", "acme", "-format", "pdf"})
	assert.ErrorContains(t, err, "pdf")
}

func TestRun_ImportAndProject(t *testing.T) {
	ledger := setupEnv(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-client", "acme", "-import", ledger, "-horizon", "1"}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Business plan acme 2024-2025"))
	assert.Contains(t, text, "| Voce")
	assert.Contains(t, text, "1.250.000")
}

func TestRun_OverridesAndScenario(t *testing.T) {
	ledger := setupEnv(t)
	overrides := filepath.Join(filepath.Dir(ledger), "prudente.json")
	require.NoError(t, os.WriteFile(overrides, []byte(`{"sales_growth": {"2025": 10}}`), 0644))

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-client", "acme", "-import", ledger,
		"-overrides", overrides, "-save-scenario", "prudente", "-horizon", "1",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1.100.000")

	out.Reset()
	err = run(context.Background(), []string{"-client", "acme", "-scenario", "prudente", "-format", "markdown"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "# Business plan acme 2024-2025 (prudente)")
	assert.Contains(t, out.String(), "1.100.000")
}

func TestRun_ImportCSV(t *testing.T) {
	dir := filepath.Dir(setupEnv(t))
	path := filepath.Join(dir, "bilanci.csv")
	csv := "cliente,anno,codice,descrizione,importo\n" +
		"acme,2023,RI01,Ricavi,800000\n" +
		"acme,2024,RI01,Ricavi,1000000\n" +
		"acme,2024,RI21,Impianti,400000\n" +
		"acme,2024,RI25,Magazzino,100000\n" +
		"acme,2024,RI31,Banca,20000\n" +
		"acme,2024,RI32,Patrimonio,350000\n" +
		"acme,2024,RI33,Mutui,170000\n" +
		"beta,2024,RI01,Ricavi,500000\n" +
		"beta,2024,RI21,Impianti,300000\n" +
		"beta,2024,RI32,Patrimonio,300000\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-client", "acme", "-import", path, "-horizon", "1"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1.250.000")

	out.Reset()
	err = run(context.Background(), []string{"-client", "beta", "-horizon", "1"}, &out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "Business plan beta 2024-2025"))

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("cliente,anno\nacme,2024\n"), 0644))
	err = run(context.Background(), []string{"-client", "acme", "-import", bad}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "importo")
}

func TestRun_WritesHTMLFile(t *testing.T) {
	ledger := setupEnv(t)
	target := filepath.Join(filepath.Dir(ledger), "plan.html")

	var out bytes.Buffer
	err := run(context.Background(), []string{"-client", "acme", "-import", ledger, "-format", "html", "-out", target}, &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<table>")
}

func TestRun_Errors(t *testing.T) {
	setupEnv(t)

	err := run(context.Background(), []string{"-client", "nobody"}, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(context.Background(), []string{"-client", "acme", "-history", "2023,abc"}, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(context.Background(), []string{"-client", "acme", "-overrides", "missing.json"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "read overrides")
}

func TestParseYears(t *testing.T) {
	years, err := parseYears("2022, 2023,,2024")
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023, 2024}, years)

	years, err = parseYears("")
	require.NoError(t, err)
	assert.Nil(t, years)
}
