// Package pipeline runs a complete business plan for one client: history
// load, historical averages, assumption resolution, projection, identity
// validation and statement reclassification.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/history"
	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/projection"
	"bizplan/pkg/core/reclass"
	"bizplan/pkg/core/store"
	"bizplan/pkg/core/validate"
)

var (
	// ErrNoHistory is returned when the client has no stored year to project from.
	ErrNoHistory = errors.New("no historical data")
	// ErrValidationFailed is returned in strict mode when an identity check fails.
	ErrValidationFailed = errors.New("projection failed identity validation")
)

// Repository is the storage the orchestrator reads from. store.SQLite and
// store.Postgres implement it.
type Repository interface {
	history.Source
	Years(ctx context.Context, client string) ([]int, error)
	LoadScenario(ctx context.Context, client, name string) (*store.Scenario, error)
}

// ValidationConfig defines thresholds and behavior for identity validation.
type ValidationConfig struct {
	EnableStrictValidation bool    `json:"strict"`                // If true, a failed check fails the run
	Tolerance              float64 `json:"tolerance"`             // Allowed gap for balance, equity and cash-flow checks
	OutlierThresholdPct    float64 `json:"outlier_threshold_pct"` // Historical sales movement flagged as suspicious
}

// Config holds the orchestrator settings.
type Config struct {
	Params         projection.Params
	DefaultHorizon int
	Validation     ValidationConfig
}

// DefaultConfig returns default engine params, a 3-year horizon and
// non-strict validation at 0.01 tolerance.
func DefaultConfig() Config {
	return Config{
		Params:         projection.DefaultParams(),
		DefaultHorizon: 3,
		Validation: ValidationConfig{
			Tolerance:           0.01,
			OutlierThresholdPct: 50,
		},
	}
}

// Request describes one plan run.
type Request struct {
	Client       string               `json:"client"`
	BaseYear     int                  `json:"base_year,omitempty"`     // 0 = latest stored year
	Horizon      int                  `json:"horizon,omitempty"`       // 0 = scenario or default horizon
	HistoryYears []int                `json:"history_years,omitempty"` // empty = every stored year up to BaseYear
	Scenario     string               `json:"scenario,omitempty"`      // saved overrides to start from
	Overrides    assumption.Overrides `json:"overrides,omitempty"`     // applied on top of the scenario
}

// YearStatus is the convergence outcome of one projected year.
type YearStatus struct {
	Year       int     `json:"year"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Interest   float64 `json:"interest"`
}

// Result is the output of a plan run.
type Result struct {
	RunID        string                            `json:"run_id"`
	Client       string                            `json:"client"`
	Scenario     string                            `json:"scenario,omitempty"`
	BaseYear     int                               `json:"base_year"`
	Years        []int                             `json:"years"`
	HistoryYears []int                             `json:"history_years"`
	Averages     assumption.HistoricalAverages     `json:"averages"`
	Assumptions  map[int]map[assumption.ID]float64 `json:"assumptions"`
	Ledger       lineitem.Ledger                   `json:"ledger"`
	Status       []YearStatus                      `json:"status"`
	Validation   []*validate.LinkageReport         `json:"validation"`
	Outliers     []*validate.OutlierCheck          `json:"outliers,omitempty"`
	SalesGrowth  []*validate.YoYResult             `json:"sales_growth"`
	SalesCAGR    float64                           `json:"sales_cagr"`
	Statements   []reclass.Table                   `json:"statements"`
	Duration     time.Duration                     `json:"duration"`
}

// StatementYears returns the base year followed by the projected years.
func (r *Result) StatementYears() []int {
	return append([]int{r.BaseYear}, r.Years...)
}

// Statement returns the reclassified table with the given key.
func (r *Result) Statement(key string) (reclass.Table, bool) {
	for _, t := range r.Statements {
		if t.Key == key {
			return t, true
		}
	}
	return reclass.Table{}, false
}

// Orchestrator manages the end-to-end flow of a plan run.
type Orchestrator struct {
	repo       Repository
	catalog    *assumption.Catalog
	model      *reclass.Model
	aggregator *history.Aggregator
	engine     *projection.Engine
	cache      *store.RunCache
	config     Config
	log        zerolog.Logger
}

// NewOrchestrator creates an orchestrator over repo with the embedded
// catalog and statement structures.
func NewOrchestrator(repo Repository, config Config, log zerolog.Logger) *Orchestrator {
	if config.DefaultHorizon <= 0 {
		config.DefaultHorizon = DefaultConfig().DefaultHorizon
	}
	if config.Validation.Tolerance <= 0 {
		config.Validation.Tolerance = DefaultConfig().Validation.Tolerance
	}
	if config.Validation.OutlierThresholdPct <= 0 {
		config.Validation.OutlierThresholdPct = DefaultConfig().Validation.OutlierThresholdPct
	}

	catalog := assumption.MustDefaultCatalog()
	return &Orchestrator{
		repo:       repo,
		catalog:    catalog,
		model:      reclass.MustDefaultModel(),
		aggregator: history.NewAggregator(catalog, log),
		engine:     projection.NewEngine(config.Params, log),
		config:     config,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// SetRunCache enables caching of run results.
func (o *Orchestrator) SetRunCache(cache *store.RunCache) {
	o.cache = cache
}

// Catalog returns the assumption catalog in use.
func (o *Orchestrator) Catalog() *assumption.Catalog { return o.catalog }

// Model returns the statement structures in use.
func (o *Orchestrator) Model() *reclass.Model { return o.model }

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.config }

// AvailableYears lists the stored years of client, ascending.
func (o *Orchestrator) AvailableYears(ctx context.Context, client string) ([]int, error) {
	years, err := o.repo.Years(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("list years for %q: %w", client, err)
	}
	return years, nil
}

// BaseYear returns the most recent stored year of client.
func (o *Orchestrator) BaseYear(ctx context.Context, client string) (int, error) {
	years, err := o.AvailableYears(ctx, client)
	if err != nil {
		return 0, err
	}
	if len(years) == 0 {
		return 0, fmt.Errorf("%w for %q", ErrNoHistory, client)
	}
	return years[len(years)-1], nil
}

// Averages loads the history of client over years (every stored year when
// empty) and returns the historical averages.
func (o *Orchestrator) Averages(ctx context.Context, client string, years []int) (assumption.HistoricalAverages, error) {
	if len(years) == 0 {
		var err error
		if years, err = o.AvailableYears(ctx, client); err != nil {
			return nil, err
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoHistory, client)
	}
	ledger, err := o.aggregator.LoadHistory(ctx, o.repo, client, years)
	if err != nil {
		return nil, err
	}
	return o.aggregator.ComputeAverages(ledger, years), nil
}

// Run executes the full plan for req.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("client", req.Client).Logger()

	// 1. Base year and history window
	stored, err := o.AvailableYears(ctx, req.Client)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoHistory, req.Client)
	}
	base := req.BaseYear
	if base == 0 {
		base = stored[len(stored)-1]
	}
	if !containsYear(stored, base) {
		return nil, fmt.Errorf("%w: base year %d not stored for %q", ErrNoHistory, base, req.Client)
	}
	histYears := historyWindow(stored, req.HistoryYears, base)

	// 2. History and averages
	hist, err := o.aggregator.LoadHistory(ctx, o.repo, req.Client, histYears)
	if err != nil {
		return nil, err
	}
	averages := o.aggregator.ComputeAverages(hist, histYears)
	outliers := validate.HistoricalOutliers(hist, o.config.Validation.OutlierThresholdPct)
	for _, check := range outliers {
		log.Warn().Int("year", check.Year).Str("item", check.Item).Msg(check.Reason)
	}

	// 3. Overrides: scenario first, request on top
	overrides := assumption.Overrides{}
	horizon := req.Horizon
	if req.Scenario != "" {
		sc, err := o.repo.LoadScenario(ctx, req.Client, req.Scenario)
		if err != nil {
			return nil, fmt.Errorf("load scenario %q: %w", req.Scenario, err)
		}
		overrides = sc.Overrides.Clone()
		if horizon == 0 {
			horizon = sc.Horizon
		}
	}
	for id, byYear := range req.Overrides {
		for y, v := range byYear {
			overrides.Set(id, y, v)
		}
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = o.config.DefaultHorizon
	}

	pctx := projection.NewContext(req.Client, base, horizon)
	years := pctx.Years()
	fallback := assumption.NewResolver(o.catalog, averages, nil)
	overrides = alignOverrides(overrides, years, func(id assumption.ID) float64 {
		return fallback.Resolve(id, 1)
	})

	// 4. Projection
	resolver := assumption.NewResolver(o.catalog, averages, overrides)
	driver := projection.NewDriver(o.engine, pctx, resolver)
	if err := driver.Seed(hist.Year(base)); err != nil {
		return nil, err
	}
	projected, err := driver.ProjectAll()
	if err != nil {
		return nil, err
	}

	ledger := lineitem.Ledger{}
	for y, l := range hist {
		ledger[y] = l
	}
	for y, l := range projected {
		ledger[y] = l
	}

	result := &Result{
		RunID:        runID,
		Client:       req.Client,
		Scenario:     req.Scenario,
		BaseYear:     base,
		Years:        years,
		HistoryYears: histYears,
		Averages:     averages,
		Assumptions:  make(map[int]map[assumption.ID]float64, len(years)),
		Ledger:       ledger,
		Outliers:     outliers,
	}
	for i, y := range years {
		result.Assumptions[y] = resolver.Drivers(i + 1).Map()
	}
	for _, r := range driver.Results() {
		result.Status = append(result.Status, YearStatus{
			Year:       r.Year,
			Iterations: r.Iterations,
			Converged:  r.Converged,
			Interest:   r.Interest,
		})
	}

	// 5. Validation
	result.Validation = validate.ValidateProjection(o.model, ledger, years, o.config.Validation.Tolerance)
	if len(result.Validation) > 0 {
		if gap := result.Validation[0].CashFlow.OpeningGap; math.Abs(gap) > o.config.Validation.Tolerance {
			log.Warn().Int("year", base).Float64("gap", gap).Msg("base year balance sheet does not balance; first year reconciled against implied PFN")
		}
	}
	for _, r := range result.Validation {
		if !r.AllPassed {
			log.Warn().Int("year", r.Year).Strs("failed", r.FailedChecks).Msg("identity check failed")
		}
	}
	if o.config.Validation.EnableStrictValidation && !validate.AllPassed(result.Validation) {
		return nil, fmt.Errorf("%w for %q", ErrValidationFailed, req.Client)
	}

	// 6. Statements
	for _, st := range o.model.Statements() {
		table, err := o.model.Build(st.Key, ledger, result.StatementYears())
		if err != nil {
			return nil, err
		}
		result.Statements = append(result.Statements, table)
	}

	result.SalesGrowth = validate.SalesGrowth(ledger, result.StatementYears())
	result.SalesCAGR = validate.SalesCAGR(ledger, result.StatementYears())

	result.Duration = time.Since(start)
	o.saveRun(result, log)

	log.Info().
		Int("base_year", base).
		Int("horizon", horizon).
		Float64("sales_cagr", result.SalesCAGR).
		Dur("duration", result.Duration).
		Msg("plan completed")
	return result, nil
}

// LoadRun returns a cached run by id.
func (o *Orchestrator) LoadRun(id string) (*Result, error) {
	if o.cache == nil {
		return nil, fmt.Errorf("%w: run cache disabled", store.ErrRunNotFound)
	}
	entry, err := o.cache.Get(id)
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(entry.Data, &result); err != nil {
		return nil, fmt.Errorf("decode cached run %s: %w", id, err)
	}
	return &result, nil
}

func (o *Orchestrator) saveRun(result *Result, log zerolog.Logger) {
	if o.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode run for cache")
		return
	}
	entry := &store.RunEntry{
		ID:       result.RunID,
		Client:   result.Client,
		Scenario: result.Scenario,
		Data:     data,
	}
	if err := o.cache.Save(entry); err != nil {
		log.Warn().Err(err).Msg("failed to cache run")
	}
}

// historyWindow returns the requested years that are stored and not after
// base, always including base. With no request every stored year up to base
// is used.
func historyWindow(stored, requested []int, base int) []int {
	var out []int
	if len(requested) == 0 {
		for _, y := range stored {
			if y <= base {
				out = append(out, y)
			}
		}
		return out
	}
	for _, y := range requested {
		if y <= base && containsYear(stored, y) && !containsYear(out, y) {
			out = append(out, y)
		}
	}
	if !containsYear(out, base) {
		out = append(out, base)
	}
	sort.Ints(out)
	return out
}

// alignOverrides keeps only override years inside the horizon and fills the
// remaining horizon years of every overridden assumption with fill.
func alignOverrides(o assumption.Overrides, years []int, fill func(assumption.ID) float64) assumption.Overrides {
	out := assumption.Overrides{}
	for id, byYear := range o {
		for _, y := range years {
			if v, ok := byYear[y]; ok {
				out.Set(id, y, v)
			}
		}
	}
	out.Complete(years, fill)
	return out
}

func containsYear(years []int, y int) bool {
	for _, v := range years {
		if v == y {
			return true
		}
	}
	return false
}
