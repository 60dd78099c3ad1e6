// Command bizplan runs a business plan projection from the command line and
// prints the statements.
//
//	bizplan -import ledger.json -client acme
//	bizplan -import bilanci.csv -client acme
//	bizplan -client acme -horizon 5 -overrides prudente.hjson -format html -out plan.html
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"bizplan/pkg/config"
	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/pipeline"
	"bizplan/pkg/core/report"
	"bizplan/pkg/core/store"
	"bizplan/pkg/core/utils"
	"bizplan/pkg/logger"
)

type options struct {
	client        string
	baseYear      int
	horizon       int
	history       string
	scenario      string
	overridesFile string
	saveScenario  string
	importFile    string
	format        string
	out           string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "bizplan: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("bizplan", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.client, "client", "", "client identifier (required)")
	fs.IntVar(&opts.baseYear, "base", 0, "base year (default: latest stored year)")
	fs.IntVar(&opts.horizon, "horizon", 0, "years to project (default: scenario or engine horizon)")
	fs.StringVar(&opts.history, "history", "", "comma separated history years (default: all up to base)")
	fs.StringVar(&opts.scenario, "scenario", "", "saved scenario to start from")
	fs.StringVar(&opts.overridesFile, "overrides", "", "JSON or Hjson override document")
	fs.StringVar(&opts.saveScenario, "save-scenario", "", "save -overrides and -horizon under this scenario name")
	fs.StringVar(&opts.importFile, "import", "", "ledger to import before running: JSON, Hjson or a cliente,anno,codice,importo CSV")
	fs.StringVar(&opts.format, "format", report.FormatText, "output format: text, markdown or html")
	fs.StringVar(&opts.out, "out", "", "write the report to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.client == "" {
		return nil, errors.New("-client is required")
	}
	switch opts.format {
	case report.FormatText, report.FormatMarkdown, report.FormatHTML:
	default:
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	repo, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer repo.Close()

	orchestrator := pipeline.NewOrchestrator(repo, cfg.Pipeline(), log)

	if opts.importFile != "" {
		if err := importLedger(ctx, repo, opts.client, opts.importFile, log); err != nil {
			return err
		}
	}

	var overrides assumption.Overrides
	if opts.overridesFile != "" {
		data, err := os.ReadFile(opts.overridesFile)
		if err != nil {
			return fmt.Errorf("read overrides: %w", err)
		}
		if overrides, err = assumption.DecodeOverrides(data, orchestrator.Catalog()); err != nil {
			return err
		}
		if err := overrides.Validate(); err != nil {
			return err
		}
	}

	if opts.saveScenario != "" {
		sc := &store.Scenario{
			Client:    opts.client,
			Name:      opts.saveScenario,
			Overrides: overrides,
			Horizon:   opts.horizon,
		}
		if err := repo.SaveScenario(ctx, sc); err != nil {
			return err
		}
		log.Info().Str("scenario", sc.Name).Str("id", sc.ID).Msg("scenario saved")
	}

	history, err := parseYears(opts.history)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, pipeline.Request{
		Client:       opts.client,
		BaseYear:     opts.baseYear,
		Horizon:      opts.horizon,
		HistoryYears: history,
		Scenario:     opts.scenario,
		Overrides:    overrides,
	})
	if err != nil {
		return err
	}

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}
	if err := report.WritePlan(w, result, orchestrator.Catalog(), opts.format); err != nil {
		return err
	}

	for _, s := range result.Status {
		if !s.Converged {
			log.Warn().Int("year", s.Year).Int("iterations", s.Iterations).Msg("interest did not converge")
		}
	}
	return nil
}

// importLedger loads a JSON or Hjson ledger for client. A .csv file carries
// its own cliente column and every client found in it is imported.
func importLedger(ctx context.Context, repo store.Repository, client, path string, log zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	ledgers := map[string]lineitem.Ledger{}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if ledgers, err = store.DecodeLedgerCSV(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("parse ledger %s: %w", path, err)
		}
	} else {
		var ledger lineitem.Ledger
		if _, err := utils.SmartParse(string(data), &ledger); err != nil {
			return fmt.Errorf("parse ledger %s: %w", path, err)
		}
		ledgers[client] = ledger
	}

	for name, ledger := range ledgers {
		if err := store.ImportLedger(ctx, repo, name, ledger); err != nil {
			return err
		}
		log.Info().Str("client", name).Ints("years", ledger.Years()).Msg("ledger imported")
	}
	return nil
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}
