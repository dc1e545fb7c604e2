package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/scraper/zhszjj"
	"github.com/summerlia/zhuhaibay/storage"
	"github.com/summerlia/zhuhaibay/utils"
)

// ErrRefreshInProgress is returned by RunRefresh when another run is active.
var ErrRefreshInProgress = errors.New("refresh already in progress")

const (
	outcomeSuccess = "success"

	// feedStart is the first row of the upstream window; start is 1-based.
	feedStart = 1
)

// RefresherDeps wires a Refresher. Archive and Metrics are optional.
type RefresherDeps struct {
	Fetcher  zhszjj.Fetcher
	Store    storage.SnapshotStore
	Archive  storage.SnapshotArchive
	Metrics  *Metrics
	Logger   *utils.Logger
	PageSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Refresher drives fetch, parse, validate, persist and verify. At most one
// run is active at a time; extra requests are rejected, not queued.
type Refresher struct {
	fetcher   zhszjj.Fetcher
	parser    *zhszjj.Parser
	validator *Validator
	store     storage.SnapshotStore
	archive   storage.SnapshotArchive
	metrics   *Metrics
	logger    *utils.Logger
	pageSize  int
	now       func() time.Time

	status *statusTracker
	wg     sync.WaitGroup
}

// NewRefresher creates an idle Refresher.
func NewRefresher(d RefresherDeps) *Refresher {
	if d.Logger == nil {
		d.Logger = utils.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.PageSize <= 0 {
		d.PageSize = 1000
	}
	return &Refresher{
		fetcher:   d.Fetcher,
		parser:    zhszjj.NewParser(d.Logger),
		validator: NewValidator(d.Logger),
		store:     d.Store,
		archive:   d.Archive,
		metrics:   d.Metrics,
		logger:    d.Logger,
		pageSize:  d.PageSize,
		now:       d.Now,
		status:    newStatusTracker(d.Now),
	}
}

// Status returns a copy of the current refresh status.
func (r *Refresher) Status() models.RefreshStatus {
	return r.status.snapshot()
}

// StartRefresh launches a background run. When a run is already active it
// returns false together with that run's status.
func (r *Refresher) StartRefresh() (bool, models.RefreshStatus) {
	runID := uuid.NewString()
	ok, st := r.status.begin(runID)
	if !ok {
		r.logger.Warn("[refresh] rejected trigger: run %s still active", st.RunID)
		return false, st
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the trigger: a started run is never cancelled.
		_, _ = r.run(context.Background(), runID)
	}()
	return true, st
}

// RunRefresh runs the pipeline in the caller's goroutine.
func (r *Refresher) RunRefresh(ctx context.Context) (*models.Snapshot, error) {
	runID := uuid.NewString()
	if ok, st := r.status.begin(runID); !ok {
		return nil, fmt.Errorf("%w (run %s)", ErrRefreshInProgress, st.RunID)
	}
	return r.run(ctx, runID)
}

// Wait blocks until any background run started by StartRefresh has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) run(ctx context.Context, runID string) (snap *models.Snapshot, err error) {
	start := time.Now()
	r.metrics.started()
	r.logger.Info("[refresh] run %s started", runID)

	defer func() {
		if p := recover(); p != nil {
			snap, err = nil, fmt.Errorf("refresh panicked: %v", p)
		}

		outcome := outcomeSuccess
		if err != nil {
			outcome = models.ErrorKind(err)
			r.logger.Error("[refresh] run %s failed (%s): %v", runID, outcome, err)
			r.status.finish(nil, err)
		} else {
			r.logger.Info("[refresh] run %s done: %d projects, %d units in %v",
				runID, snap.TotalProjects, snap.TotalAvailableUnits, time.Since(start).Round(time.Millisecond))
			r.status.finish(&models.RefreshResult{
				Projects: snap.TotalProjects,
				Units:    snap.TotalAvailableUnits,
			}, nil)
		}
		r.metrics.finished(outcome, time.Since(start))
	}()

	return r.pipeline(ctx)
}

func (r *Refresher) pipeline(ctx context.Context) (*models.Snapshot, error) {
	r.status.step(StepFetch, fmt.Sprintf("fetching up to %d listings", r.pageSize))
	payload, err := r.fetcher.Fetch(ctx, feedStart, r.pageSize)
	if err != nil {
		return nil, err
	}

	r.status.step(StepParse, fmt.Sprintf("parsing %s payload", payload.Kind))
	parsed, err := r.parser.Parse(payload)
	if err != nil {
		return nil, err
	}
	r.status.logf("parsed %d records, skipped %d", len(parsed.Records), parsed.Skipped)

	r.status.step(StepValidate, "validating project names")
	kept, rejected := r.validator.Filter(parsed.Records)
	r.metrics.rejectedRecords(rejected)
	r.status.logf("kept %d records, rejected %d", len(kept), rejected)

	snap, err := Aggregate(kept, r.now())
	if err != nil {
		return nil, fmt.Errorf("%d parsed, %d rejected: %w", len(parsed.Records), rejected, err)
	}

	r.status.step(StepPersist, fmt.Sprintf("saving snapshot %s: %d projects, %d units",
		snap.Timestamp, snap.TotalProjects, snap.TotalAvailableUnits))
	if err := r.store.WriteSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrPersistenceWrite, err)
	}

	if r.archive != nil {
		if err := r.archive.Append(snap); err != nil {
			r.logger.Warn("[refresh] csv archive: %v", err)
			r.status.logf("archive failed (ignored): %v", err)
		}
	}

	r.status.step(StepVerify, "reading back latest snapshot")
	if err := r.verify(ctx, snap); err != nil {
		return nil, err
	}
	r.metrics.persisted(snap.TotalProjects, snap.TotalAvailableUnits)

	return snap, nil
}

// verify reads the latest snapshot back once and compares unit totals.
func (r *Refresher) verify(ctx context.Context, written *models.Snapshot) error {
	got, err := r.store.ReadLatestSnapshot(ctx)
	if err != nil {
		return &models.VerifyMismatchError{ExpectedUnits: written.TotalAvailableUnits, Err: err}
	}
	if got == nil {
		return &models.VerifyMismatchError{
			ExpectedUnits: written.TotalAvailableUnits,
			Err:           errors.New("store returned no snapshot"),
		}
	}
	if got.TotalAvailableUnits != written.TotalAvailableUnits {
		return &models.VerifyMismatchError{
			ExpectedUnits: written.TotalAvailableUnits,
			ActualUnits:   got.TotalAvailableUnits,
		}
	}
	return nil
}
