package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelguard/guardian/pkg/api"
)

// backfillRun carries windows, the sample verdict, and outcome counts
// across the backfill flow's actions
type backfillRun struct {
	DataSource string             `json:"-"`
	Windows    []Window           `json:"-"`
	Sample     *SampleReport      `json:"-"`
	Counts     api.ManifestCounts `json:"-"`
	Status     api.FlowStatus     `json:"-"`
}

func backfillRunOf(act *api.Action) (*backfillRun, error) {
	run, ok := act.Params[runParam].(*backfillRun)
	if !ok {
		return nil, fmt.Errorf("%w: no backfill context bound to action",
			api.ErrValidation)
	}
	return run, nil
}

// BulkBackfill runs the windowed backfill flow: partition the dataset,
// optionally validate a sample, execute windows with bounded
// parallelism, and always record a manifest of what was attempted.
// Terminal status is completed when failures stay within tolerance,
// completed_with_errors otherwise
func (f *Flows) BulkBackfill(
	ctx context.Context, req *api.BulkBackfillRequest,
) (*api.FlowResponse, error) {
	if req.DataSource == "" || req.TargetModel == "" {
		return nil, fmt.Errorf(
			"%w: data_source and target_model are required",
			api.ErrValidation)
	}
	windowSize := req.WindowSize
	if windowSize <= 0 {
		windowSize = 1000
	}
	total := req.TotalRecords
	if total <= 0 {
		total = recordCount(req.DataSource)
	}

	run := &backfillRun{DataSource: req.DataSource}
	actions := []*api.Action{
		{
			Kind: api.ActionPlanIngestion,
			Params: api.Params{
				"total_records": total,
				"window_size":   windowSize,
				runParam:        run,
			},
			Status: api.ActionPending,
		},
	}
	if req.ValidateSample {
		actions = append(actions, &api.Action{
			Kind:   api.ActionValidateSample,
			Params: api.Params{runParam: run},
			Status: api.ActionPending,
		})
	}
	actions = append(actions,
		&api.Action{
			Kind: api.ActionExecuteBackfill,
			Params: api.Params{
				"target": req.TargetModel,
				runParam: run,
			},
			Status: api.ActionPending,
		},
		&api.Action{
			Kind:        api.ActionRecordManifest,
			Params:      api.Params{runParam: run},
			Status:      api.ActionPending,
			Independent: true,
		},
	)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowBulkBackfill,
		Actions:       actions,
	}
	res, err := f.run(ctx, plan)
	if err != nil {
		return nil, err
	}

	// A backfill that ran all windows reports the tolerance verdict
	if res.Status == api.FlowCompleted && run.Status != "" {
		res.Status = run.Status
	}
	res.Detail = map[string]any{
		"sample": run.Sample,
		"counts": run.Counts,
	}
	return res, nil
}

func (f *Flows) handlePlanIngestion(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	run, err := backfillRunOf(act)
	if err != nil {
		return nil, err
	}

	total, _ := act.Params["total_records"].(int)
	size, _ := act.Params["window_size"].(int)
	run.Windows = PlanWindows(total, size)
	return map[string]any{
		"total_records": total,
		"window_size":   size,
		"windows":       len(run.Windows),
	}, nil
}

// handleValidateSample fails the flow when the sampled data falls below
// the parse threshold so the backfill never proceeds as if validated
func (f *Flows) handleValidateSample(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	run, err := backfillRunOf(act)
	if err != nil {
		return nil, err
	}

	run.Sample = ValidateSample(run.DataSource, f.opts.SampleSize)
	if !run.Sample.SampleValid {
		return nil, &api.AdapterError{
			Service: "engine",
			Op:      "validate_sample",
			Message: fmt.Sprintf(
				"sample validation failed: %d of %d records invalid",
				run.Sample.InvalidRecords, run.Sample.SampleSize),
		}
	}
	return run.Sample, nil
}

func (f *Flows) handleExecuteBackfill(
	ctx context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	run, err := backfillRunOf(act)
	if err != nil {
		return nil, err
	}

	engine := NewBackfill(
		f.opts.BackfillParallelism, f.windowProcessor(run.DataSource),
	)
	run.Counts = engine.Execute(ctx, run.Windows)

	if WithinTolerance(run.Counts, f.opts.BackfillTolerance) {
		run.Status = api.FlowCompleted
	} else {
		run.Status = api.FlowCompletedDirty
	}
	return run.Counts, nil
}

// handleRecordManifest always runs, even on partial failure, so the
// audit trail of what was attempted survives
func (f *Flows) handleRecordManifest(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	run, err := backfillRunOf(act)
	if err != nil {
		return nil, err
	}

	status := run.Status
	if status == "" {
		status = api.FlowFailed
	}
	manifest, err := f.manifests.Record(ctx, cid, status, run.Counts)
	if err != nil {
		return nil, err
	}

	f.store.Append(&api.MemoryEntry{
		EventType:     api.EventManifest,
		CorrelationID: cid,
		Payload:       manifest,
	})
	return manifest, nil
}

// windowProcessor validates the window's slice of the data source.
// Records that fail to parse against the header are counted as failed
func (f *Flows) windowProcessor(dataSource string) WindowFunc {
	lines := strings.Split(strings.TrimSpace(dataSource), "\n")
	var header []string
	var records []string
	if len(lines) > 0 {
		header = strings.Split(lines[0], ",")
		records = lines[1:]
	}

	return func(ctx context.Context, w Window) (api.WindowCounts, error) {
		if err := ctx.Err(); err != nil {
			return api.WindowCounts{}, err
		}

		counts := api.WindowCounts{Window: w.ID, Records: w.Records}
		for i := 0; i < w.Records; i++ {
			at := w.Offset + i
			if at >= len(records) {
				break
			}
			record := records[at]
			if strings.TrimSpace(record) == "" ||
				len(strings.Split(record, ",")) != len(header) {
				counts.Failed++
			}
		}
		return counts, nil
	}
}

func recordCount(dataSource string) int {
	lines := strings.Split(strings.TrimSpace(dataSource), "\n")
	if len(lines) <= 1 {
		return 0
	}
	return len(lines) - 1
}
