// Package pipeline runs a spreadsheet through every stage: read, infer,
// map, convert, validate, resolve the identifier, drop internal and
// existing duplicates and, when asked, insert the new rows.
//
// Stages run strictly in order on one goroutine; only the duplicate filter
// may fan out. Expected failures end the run with Success=false and a
// message in Errors, never with a panic or a returned error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/dedup"
	"github.com/JonMunkholm/sheetload/internal/inference"
	"github.com/JonMunkholm/sheetload/internal/keys"
	"github.com/JonMunkholm/sheetload/internal/logging"
	"github.com/JonMunkholm/sheetload/internal/matcher"
	"github.com/JonMunkholm/sheetload/internal/source"
	"github.com/JonMunkholm/sheetload/internal/validate"
	"github.com/google/uuid"
)

const (
	insertCheckInterval = 100
	maxLoggedFailures   = 10
)

// Request describes one run.
type Request struct {
	// Path is read through the pipeline's source unless Data is set.
	Path  string
	Sheet string
	Data  *core.Table

	Schema string
	Table  string

	RowLimit int
	Insert   bool

	// Keep and Strategy override the configured policies when set.
	Keep     dedup.KeepPolicy
	Strategy matcher.Strategy

	// Mappings pins sheet columns to destination columns by name. Columns
	// not named here are matched by similarity.
	Mappings map[string]string

	OnProgress func(Progress)
}

// Result is everything a run produced. Stages that did not run leave their
// fields zero.
type Result struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path,omitempty"`
	Sheet  string `json:"sheet,omitempty"`
	Schema string `json:"schema"`
	Table  string `json:"table"`

	SourceRows   int                    `json:"source_rows"`
	Columns      []core.SourceColumn    `json:"columns,omitempty"`
	Mappings     []core.ColumnMapping   `json:"mappings,omitempty"`
	MappingStats matcher.Stats          `json:"mapping_stats"`
	Validation   *core.ValidationResult `json:"validation,omitempty"`
	Identifier   *core.UniqueIdentifier `json:"identifier,omitempty"`
	Conversions  int                    `json:"conversion_failures"`
	Filter       *core.FilterResult     `json:"filter,omitempty"`

	InternalRemoved int `json:"internal_removed"`
	Inserted        int `json:"inserted"`
	InsertFailed    int `json:"insert_failed"`

	Success  bool          `json:"success"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`

	// Rows are the converted rows that survived filtering.
	Rows *core.Table `json:"-"`

	started time.Time
}

// Pipeline wires the stages to one catalog and one source. It holds no
// per-run state and is safe for concurrent use.
type Pipeline struct {
	catalog    core.Catalog
	source     core.Source
	opts       Options
	inferencer *inference.Inferencer
	validator  *validate.Validator
	resolver   *keys.Resolver
	filter     *dedup.Filter
}

// New creates a Pipeline. src may be nil when every request carries Data.
func New(catalog core.Catalog, src core.Source, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinApplyConfidence <= 0 {
		opts.MinApplyConfidence = matcher.DefaultMinConfidence
	}
	if opts.Keep == "" {
		opts.Keep = dedup.KeepFirst
	}
	return &Pipeline{
		catalog:    catalog,
		source:     src,
		opts:       opts,
		inferencer: inference.New(opts.Inference),
		validator:  validate.New(opts.Validator),
		resolver:   keys.NewResolver(catalog),
		filter:     dedup.NewFilter(catalog, opts.Dedup),
	}
}

// Run executes every stage on the whole sheet.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	ctx, cancel, res := p.begin(ctx, req)
	defer cancel()

	t, err := p.read(ctx, req)
	if err != nil {
		p.fail(ctx, res, err)
		return p.finish(ctx, req, res)
	}
	p.process(ctx, req, t, res)
	return p.finish(ctx, req, res)
}

// PreviewResult is a dry run on the first PreviewRows rows, with the
// duplicate count projected to the whole sheet.
type PreviewResult struct {
	*Result
	TotalRows           int     `json:"total_rows"`
	SampleRows          int     `json:"sample_rows"`
	DuplicateRate       float64 `json:"duplicate_rate"`
	ProjectedDuplicates int     `json:"projected_duplicates"`
	ProjectedNew        int     `json:"projected_new"`
}

// Preview runs every stage except insert on a sample of the sheet.
func (p *Pipeline) Preview(ctx context.Context, req Request) *PreviewResult {
	req.Insert = false
	ctx, cancel, res := p.begin(ctx, req)
	defer cancel()

	pr := &PreviewResult{Result: res}
	t, err := p.read(ctx, req)
	if err != nil {
		p.fail(ctx, res, err)
		p.finish(ctx, req, res)
		return pr
	}

	pr.TotalRows = t.Len()
	sample := t.Head(PreviewRows)
	pr.SampleRows = sample.Len()

	p.process(ctx, req, sample, res)
	p.finish(ctx, req, res)

	pr.ProjectedNew = pr.TotalRows
	if f := res.Filter; f != nil && f.Success && f.OriginalCount > 0 {
		pr.DuplicateRate = float64(f.DuplicateCount) / float64(f.OriginalCount)
		pr.ProjectedDuplicates = int(float64(pr.TotalRows) * pr.DuplicateRate)
		pr.ProjectedNew = pr.TotalRows - pr.ProjectedDuplicates
	}
	return pr
}

func (p *Pipeline) begin(ctx context.Context, req Request) (context.Context, context.CancelFunc, *Result) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)

	res := &Result{
		RunID:   runID,
		Path:    req.Path,
		Sheet:   req.Sheet,
		Schema:  req.Schema,
		Table:   req.Table,
		Success: true,
		started: time.Now(),
	}

	logging.FromContext(ctx).Info("pipeline started",
		"path", req.Path,
		"sheet", req.Sheet,
		"schema", req.Schema,
		"table", req.Table,
		"insert", req.Insert,
	)
	notify(req, Progress{RunID: runID, Phase: PhaseReading})
	return ctx, cancel, res
}

func (p *Pipeline) read(ctx context.Context, req Request) (*core.Table, error) {
	if req.Data != nil {
		if req.RowLimit > 0 {
			return req.Data.Head(req.RowLimit), nil
		}
		return req.Data, nil
	}
	if p.source == nil {
		return nil, errors.New("read sheet: no source configured")
	}
	return p.source.ReadSheet(ctx, req.Path, req.Sheet, req.RowLimit)
}

func (p *Pipeline) process(ctx context.Context, req Request, t *core.Table, res *Result) {
	log := logging.FromContext(ctx)

	res.SourceRows = t.Len()
	t = source.DropEmptyColumns(t)
	if t.Len() == 0 {
		p.fail(ctx, res, fmt.Errorf("%w: the sheet has a header but no data rows", source.ErrEmptySheet))
		return
	}

	notify(req, Progress{RunID: res.RunID, Phase: PhaseInferring, TotalRows: t.Len()})
	res.Columns = p.inferencer.InferTable(t)

	dest, err := p.catalog.GetColumns(ctx, req.Schema, req.Table)
	if err != nil {
		p.fail(ctx, res, err)
		return
	}

	notify(req, Progress{RunID: res.RunID, Phase: PhaseMapping, TotalRows: t.Len()})
	mopts := p.opts.Matcher
	if req.Strategy != "" {
		mopts.Strategy = req.Strategy
	}
	res.Mappings, err = matcher.New(mopts).MatchFixed(res.Columns, dest, req.Mappings)
	if err != nil {
		p.fail(ctx, res, err)
		return
	}
	p.checkMappings(res, dest)
	res.MappingStats = matcher.Statistics(res.Mappings)

	applied := matcher.Apply(t, res.Mappings, p.opts.MinApplyConfidence)
	if len(applied.Columns) == 0 {
		p.fail(ctx, res, fmt.Errorf("no columns mapped: no column of the sheet matched a column of %s.%s", req.Schema, req.Table))
		return
	}
	if unmapped := unmappedColumns(res.Mappings, p.opts.MinApplyConfidence); len(unmapped) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d columns were not mapped and will be ignored: %s", len(unmapped), strings.Join(unmapped, ", ")))
	}

	notify(req, Progress{RunID: res.RunID, Phase: PhaseValidating, TotalRows: t.Len()})
	converted, bad := Convert(applied, dest)
	res.Conversions = bad
	res.Validation = p.validator.Validate(ctx, converted, dest)

	notify(req, Progress{RunID: res.RunID, Phase: PhaseFiltering, TotalRows: t.Len()})
	id, err := p.resolver.Resolve(ctx, req.Schema, req.Table)
	if err != nil {
		p.fail(ctx, res, err)
		return
	}
	res.Identifier = id

	rows := converted
	if id != nil {
		kept, removed, err := dedup.RemoveInternal(rows, id.Columns, p.keep(req))
		switch {
		case err != nil:
			// The filter reports the missing key columns.
			log.Debug("internal dedup skipped", "error", err)
		case removed > 0:
			rows = kept
			res.InternalRemoved = removed
			res.Warnings = append(res.Warnings, fmt.Sprintf("removed %d duplicate rows within the sheet", removed))
		}
	}

	res.Filter = p.filter.Filter(ctx, req.Schema, req.Table, id, rows)
	res.Warnings = append(res.Warnings, res.Filter.Warnings...)
	if !res.Filter.Success {
		res.Success = false
		res.Errors = append(res.Errors, res.Filter.Errors...)
		return
	}
	res.Rows = res.Filter.Rows

	if !req.Insert {
		return
	}
	if !res.Validation.Valid {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf(
			"validation failed: error rate %.1f%% is above the allowed maximum; nothing was inserted",
			res.Validation.ErrorRate*100))
		return
	}
	p.insert(ctx, req, res)
}

func (p *Pipeline) checkMappings(res *Result, dest []core.DestinationColumn) {
	srcByName := make(map[string]core.SourceColumn, len(res.Columns))
	for _, c := range res.Columns {
		srcByName[c.Name] = c
	}
	destByName := make(map[string]core.DestinationColumn, len(dest))
	for _, d := range dest {
		destByName[d.Name] = d
	}
	for i := range res.Mappings {
		m := &res.Mappings[i]
		if !m.Mapped() {
			continue
		}
		src, ok := srcByName[m.Source]
		d, dok := destByName[m.Destination]
		if !ok || !dok {
			continue
		}
		for _, problem := range matcher.CheckMapping(m, src, d) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s -> %s: %s", m.Source, m.Destination, problem))
		}
	}
}

func (p *Pipeline) insert(ctx context.Context, req Request, res *Result) {
	log := logging.FromContext(ctx)
	rows := res.Rows
	total := rows.Len()
	notify(req, Progress{RunID: res.RunID, Phase: PhaseInserting, TotalRows: total})

	for i := 0; i < total; i++ {
		if i%insertCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				res.Success = false
				res.Errors = append(res.Errors, fmt.Sprintf("insert stopped after %d of %d rows: %v", i, total, err))
				return
			}
			notify(req, Progress{RunID: res.RunID, Phase: PhaseInserting, TotalRows: total, CurrentRow: i,
				Inserted: res.Inserted, Failed: res.InsertFailed})
		}

		ok, err := p.catalog.InsertRow(ctx, req.Schema, req.Table, insertValues(rows, i))
		if err != nil || !ok {
			res.InsertFailed++
			if res.InsertFailed <= maxLoggedFailures {
				log.Warn("insert failed", "row", i, "error", err)
			}
			continue
		}
		res.Inserted++
	}

	if res.InsertFailed > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d rows failed to insert", res.InsertFailed, total))
	}
}

func (p *Pipeline) keep(req Request) dedup.KeepPolicy {
	if req.Keep != "" {
		return req.Keep
	}
	return p.opts.Keep
}

func (p *Pipeline) fail(ctx context.Context, res *Result, err error) {
	res.Success = false
	res.Errors = append(res.Errors, err.Error())
	logging.FromContext(ctx).Error("pipeline stage failed", "error", err)
}

func (p *Pipeline) finish(ctx context.Context, req Request, res *Result) *Result {
	if err := ctx.Err(); err != nil && res.Success {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("run aborted: %v", err))
	}
	res.Duration = time.Since(res.started)

	final := Progress{RunID: res.RunID, Phase: PhaseComplete, TotalRows: res.SourceRows,
		Inserted: res.Inserted, Failed: res.InsertFailed}
	if !res.Success {
		final.Phase = PhaseFailed
		final.Error = strings.Join(res.Errors, "; ")
	}
	notify(req, final)

	args := []any{
		"success", res.Success,
		"rows", res.SourceRows,
		"mapped", res.MappingStats.Mapped,
		"inserted", res.Inserted,
		"insert_failed", res.InsertFailed,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if res.Filter != nil {
		args = append(args, "new", res.Filter.NewCount, "existing", res.Filter.DuplicateCount)
	}
	logging.FromContext(ctx).Info("pipeline complete", args...)
	return res
}

func unmappedColumns(mappings []core.ColumnMapping, minConfidence float64) []string {
	var out []string
	for _, m := range mappings {
		if !m.Mapped() || m.Confidence <= minConfidence {
			out = append(out, m.Source)
		}
	}
	return out
}
