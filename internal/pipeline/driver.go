package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dex-cli/internal/model"
)

// EntityProcessor processes one identity.
type EntityProcessor interface {
	Process(ctx context.Context, dexNo int) model.Outcome
}

// Recorder persists per-identity outcomes to run history.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome model.EntityOutcome) error
}

// DriverOptions bounds a run.
type DriverOptions struct {
	MaxID  int
	SkipTo int
	// RunID tags recorded outcomes; required when a Recorder is set.
	RunID string
}

// Driver iterates the identity space in order.
type Driver struct {
	processor EntityProcessor
	log       *RunLog
	recorder  Recorder
	opts      DriverOptions
	now       func() time.Time
}

// NewDriver creates a Driver. recorder may be nil.
func NewDriver(processor EntityProcessor, log *RunLog, recorder Recorder, opts DriverOptions) *Driver {
	if opts.MaxID <= 0 {
		opts.MaxID = model.MaxDexNo
	}
	if opts.SkipTo < 1 {
		opts.SkipTo = 1
	}
	return &Driver{
		processor: processor,
		log:       log,
		recorder:  recorder,
		opts:      opts,
		now:       time.Now,
	}
}

// Run processes identities 1..MaxID. Identities below SkipTo are reported
// NO_UPDATE without touching any collaborator. Entity failures never stop
// the loop; context cancellation does, between identities, and the
// interrupted identity is left for the next run.
func (d *Driver) Run(ctx context.Context) (model.RunSummary, error) {
	var summary model.RunSummary
	log := zap.L().With(zap.String("run_id", d.opts.RunID))
	log.Info("pipeline: run starting",
		zap.Int("max_id", d.opts.MaxID),
		zap.Int("skip_to", d.opts.SkipTo),
	)

	for id := 1; id <= d.opts.MaxID; id++ {
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline: run interrupted", zap.Int("resume_from", id))
			return summary, err
		}

		var out model.Outcome
		if id < d.opts.SkipTo {
			out = model.Outcome{DexNo: id, Status: model.StatusNoUpdate}
		} else {
			out = d.processor.Process(ctx, id)
			if ctx.Err() != nil {
				log.Warn("pipeline: run interrupted", zap.Int("resume_from", id))
				return summary, ctx.Err()
			}
		}

		if err := d.report(ctx, out); err != nil {
			return summary, err
		}
		summary.Add(out)
	}

	log.Info("pipeline: run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("success", summary.Success),
		zap.Int("warning", summary.Warning),
		zap.Int("failure", summary.Failure),
		zap.Int("no_update", summary.NoUpdate),
		zap.Int("written", summary.Written),
	)
	return summary, nil
}

func (d *Driver) report(ctx context.Context, out model.Outcome) error {
	if d.log != nil {
		if err := d.log.Append(out); err != nil {
			return eris.Wrapf(err, "pipeline: report %d", out.DexNo)
		}
	}

	fields := []zap.Field{
		zap.Int("dex_no", out.DexNo),
		zap.String("name", out.Name),
		zap.String("status", string(out.Status)),
	}
	if len(out.Degraded) > 0 {
		fields = append(fields, zap.Strings("degraded", out.Degraded))
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	zap.L().Info("pipeline: processed", fields...)

	if d.recorder == nil {
		return nil
	}
	if err := d.recorder.RecordOutcome(ctx, out.ToEntityOutcome(d.opts.RunID, d.now().UTC())); err != nil {
		zap.L().Warn("pipeline: record outcome", zap.Int("dex_no", out.DexNo), zap.Error(err))
	}
	return nil
}
