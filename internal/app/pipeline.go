// Package app wires the catalog stages into one publish run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/atd-data-tech/socrata-metadata-pub/internal/catalog"
	"github.com/atd-data-tech/socrata-metadata-pub/internal/config"
	"github.com/atd-data-tech/socrata-metadata-pub/internal/enrich"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/core"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/io/local"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/redact"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// Stage is a state of a run.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageClassify  Stage = "classify"
	StageFlatten   Stage = "flatten"
	StageEnrich    Stage = "enrich"
	StagePublish   Stage = "publish"
	StagePublished Stage = "published"
	StageFailed    Stage = "failed"
)

const (
	triggerNext = "next"
	triggerFail = "fail"
)

// StageError reports the stage that aborted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %s", e.Stage, redact.Secrets(e.Err.Error()))
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunReport summarizes one run.
type RunReport struct {
	RunID string
	State Stage

	PublicAssets int
	FullAssets   int
	Selected     int
	Records      int
	Datasets     int
	Counted      int
	CountFailed  int
	Published    int

	Duration time.Duration
}

// Pipeline runs extract, classify, flatten, enrich and publish in sequence.
type Pipeline struct {
	cfg    config.Config
	logger zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger}
}

// run carries the data handed from one stage to the next.
type run struct {
	report RunReport
	logger zerolog.Logger

	publicView []socrata.RawAsset
	fullView   []socrata.RawAsset
	selected   []catalog.ClassifiedAsset
	records    []catalog.OutputRecord
}

// Publish runs the pipeline and replaces the destination dataset with the result.
func (p *Pipeline) Publish(ctx context.Context) (RunReport, error) {
	client, err := p.newClient()
	if err != nil {
		return RunReport{State: StageFailed}, fmt.Errorf("publish client: %w", err)
	}
	defer client.Close()
	return p.Run(ctx, &ReplaceSink{Replacer: client, ResourceID: p.cfg.ResourceID})
}

// Preview runs the pipeline and writes the rows that would be published to w as CSV.
func (p *Pipeline) Preview(ctx context.Context, w io.Writer) (RunReport, error) {
	return p.Run(ctx, local.CSVSink[catalog.OutputRecord]{
		W:      w,
		Header: catalog.Columns.Names(),
		Row:    catalog.OutputRecord.CSVRow,
	})
}

// Run executes every stage and hands the final records to sink. Any stage error
// aborts the run before sink is reached.
func (p *Pipeline) Run(ctx context.Context, sink core.OutputAdapter[catalog.OutputRecord]) (RunReport, error) {
	start := time.Now()
	r := &run{report: RunReport{RunID: uuid.NewString()}}
	r.logger = p.logger.With().Str("run", r.report.RunID).Logger()

	stages := map[Stage]func(context.Context, *run) error{
		StageExtract:  p.extract,
		StageClassify: p.classify,
		StageFlatten:  p.flatten,
		StageEnrich:   p.enrich,
		StagePublish: func(ctx context.Context, r *run) error {
			if err := sink.Store(ctx, r.records); err != nil {
				return err
			}
			r.report.Published = len(r.records)
			return nil
		},
	}

	sm := newMachine()
	r.logger.Info().
		Str("catalog_domain", p.cfg.CatalogDomain).
		Str("resource_id", p.cfg.ResourceID).
		Int("workers", p.cfg.Workers).
		Dur("batch_timeout", p.cfg.BatchTimeout).
		Bool("fail_fast", p.cfg.FailFast).
		Msg("run start")

	var runErr error
	for {
		stage := sm.MustState().(Stage)
		if stage == StagePublished || stage == StageFailed {
			break
		}
		stageStart := time.Now()
		r.logger.Debug().Str("stage", string(stage)).Msg("stage start")
		if err := stages[stage](ctx, r); err != nil {
			runErr = &StageError{Stage: stage, Err: err}
			r.logger.Error().Str("stage", string(stage)).Str("error", redact.Secrets(err.Error())).
				Dur("duration", time.Since(stageStart)).Msg("stage failed")
			if ferr := sm.Fire(triggerFail); ferr != nil {
				return r.report, errors.Join(runErr, ferr)
			}
			continue
		}
		r.logger.Info().Str("stage", string(stage)).Dur("duration", time.Since(stageStart)).Msg("stage done")
		if err := sm.Fire(triggerNext); err != nil {
			return r.report, fmt.Errorf("advance from %s: %w", stage, err)
		}
	}

	r.report.State = sm.MustState().(Stage)
	r.report.Duration = time.Since(start)
	if runErr != nil {
		return r.report, runErr
	}
	r.logger.Info().
		Int("published", r.report.Published).
		Int("row_counts_failed", r.report.CountFailed).
		Dur("duration", r.report.Duration).
		Msg("run done")
	return r.report, nil
}

func newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StageExtract)
	order := []Stage{StageExtract, StageClassify, StageFlatten, StageEnrich, StagePublish, StagePublished}
	for i, st := range order[:len(order)-1] {
		sm.Configure(st).
			Permit(triggerNext, order[i+1]).
			Permit(triggerFail, StageFailed)
	}
	sm.Configure(StagePublished)
	sm.Configure(StageFailed)
	return sm
}

func (p *Pipeline) newClient() (*socrata.Client, error) {
	return socrata.NewClient(socrata.Config{
		CatalogURL: p.cfg.CatalogHost,
		DataURL:    p.cfg.CountHost,
		PublishURL: p.cfg.PublishHost,
		Username:   p.cfg.Username,
		Password:   p.cfg.Password,
		AppToken:   p.cfg.AppToken,
		Timeout:    p.cfg.RequestTimeout,
	})
}

// extract fetches the anonymous and the authenticated catalog views concurrently.
func (p *Pipeline) extract(ctx context.Context, r *run) error {
	client, err := p.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	publicView := p.catalogView(client, false, r.logger)
	fullView := p.catalogView(client, true, r.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.publicView, err = publicView.Load(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.fullView, err = fullView.Load(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	r.report.PublicAssets = len(r.publicView)
	r.report.FullAssets = len(r.fullView)
	r.logger.Info().Int("public", r.report.PublicAssets).Int("full", r.report.FullAssets).Msg("catalog views fetched")
	return nil
}

// catalogView loads one view of the catalog and warns when CatalogLimit truncated it.
func (p *Pipeline) catalogView(client *socrata.Client, authenticated bool, logger zerolog.Logger) core.InputAdapter[socrata.RawAsset] {
	view := "public"
	if authenticated {
		view = "full"
	}
	return core.LoadFunc[socrata.RawAsset](func(ctx context.Context) ([]socrata.RawAsset, error) {
		resp, err := client.SearchCatalog(ctx, p.cfg.CatalogDomain, p.cfg.CatalogLimit, authenticated)
		if err != nil {
			return nil, fmt.Errorf("%s catalog view: %w", view, err)
		}
		if resp.ResultSetSize > len(resp.Results) {
			logger.Warn().
				Str("view", view).
				Int("returned", len(resp.Results)).
				Int("available", resp.ResultSetSize).
				Int("limit", p.cfg.CatalogLimit).
				Msg("catalog view truncated by limit")
		}
		return resp.Results, nil
	})
}

func (p *Pipeline) classify(_ context.Context, r *run) error {
	r.selected = catalog.Filter(catalog.Classify(r.publicView, r.fullView), p.cfg.OwnerID, p.cfg.CategoryName)
	r.report.Selected = len(r.selected)
	r.logger.Info().Int("selected", r.report.Selected).Str("owner_id", p.cfg.OwnerID).
		Str("category", p.cfg.CategoryName).Msg("assets selected")
	return nil
}

func (p *Pipeline) flatten(_ context.Context, r *run) error {
	records, err := catalog.FlattenAll(r.selected, catalog.DatasetURLs{
		Public:  p.cfg.PublicBaseURL,
		Private: p.cfg.PrivateBaseURL,
	})
	if err != nil {
		return err
	}
	r.records = records
	r.report.Records = len(records)
	return nil
}

// enrich owns a dedicated client so the count connection pool lives for this stage only.
func (p *Pipeline) enrich(ctx context.Context, r *run) error {
	client, err := p.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	records, summary, err := enrich.RowCounts(ctx, r.records, client, enrich.Options{
		Workers:        p.cfg.Workers,
		RequestTimeout: p.cfg.RequestTimeout,
		BatchTimeout:   p.cfg.BatchTimeout,
		RateLimitRPS:   p.cfg.RateLimitRPS,
		FailFast:       p.cfg.FailFast,
	}, r.logger)
	r.report.Datasets = summary.Requested
	if err != nil {
		return err
	}
	r.records = records
	r.report.Counted = summary.Counted
	r.report.CountFailed = summary.Failed

	ev := r.logger.Info()
	if summary.Err != nil {
		ev = r.logger.Warn().Str("errors", redact.Secrets(summary.Err.Error()))
	}
	ev.Int("datasets", summary.Requested).Int("counted", summary.Counted).Int("failed", summary.Failed).
		Dur("duration", summary.Duration).Msg("row counts fetched")
	return nil
}
