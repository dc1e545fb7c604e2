package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

var fixedNow = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	payload models.RawPayload
	err     error
	block   chan struct{}
	calls   atomic.Int32
	offset  atomic.Int32
	size    atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, offset, size int) (models.RawPayload, error) {
	f.calls.Add(1)
	f.offset.Store(int32(offset))
	f.size.Store(int32(size))
	if f.block != nil {
		<-f.block
	}
	return f.payload, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	writes   []*models.Snapshot
	writeErr error
	// readBack overrides what ReadLatestSnapshot returns.
	readBack func() (*models.Snapshot, error)
}

func (s *fakeStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, snap)
	return nil
}

func (s *fakeStore) ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if s.readBack != nil {
		return s.readBack()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return nil, nil
	}
	return s.writes[len(s.writes)-1], nil
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeStore) ReadSnapshotBefore(ctx context.Context, ts string) (*models.Snapshot, error) {
	return nil, nil
}
func (s *fakeStore) ListSnapshotSummaries(ctx context.Context) ([]models.SnapshotSummary, error) {
	return nil, nil
}
func (s *fakeStore) ListProjectNames(ctx context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) ReadProjectHistory(ctx context.Context, name string) ([]models.ProjectPoint, error) {
	return nil, nil
}
func (s *fakeStore) ReadLatestPerProject(ctx context.Context) ([]models.ProjectUnits, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

type failingArchive struct{ calls int }

func (a *failingArchive) Append(*models.Snapshot) error {
	a.calls++
	return errors.New("read-only filesystem")
}
func (a *failingArchive) Close() error { return nil }

// mixedPayload holds three real projects and two deny-listed names.
func mixedPayload() models.RawPayload {
	return models.JSONPayload(map[string]any{
		"data": []any{
			map[string]any{"projectName": "Sunrise Court", "availableUnits": float64(12)},
			map[string]any{"projectName": "20230040466", "availableUnits": float64(50)},
			map[string]any{"projectName": "Lakeview", "availableUnits": float64(7)},
			map[string]any{"projectName": "1栋", "availableUnits": float64(30)},
			map[string]any{"name": "Harbour One", "saleCount": float64(4)},
		},
	})
}

func newTestRefresher(f *fakeFetcher, s *fakeStore, m *Metrics) *Refresher {
	return NewRefresher(RefresherDeps{
		Fetcher:  f,
		Store:    s,
		Metrics:  m,
		Logger:   utils.Discard(),
		PageSize: 1000,
		Now:      func() time.Time { return fixedNow },
	})
}

func waitIdle(t *testing.T, r *Refresher) models.RefreshStatus {
	t.Helper()
	require.Eventually(t, func() bool { return !r.Status().IsRunning }, 5*time.Second, 10*time.Millisecond)
	return r.Status()
}

func TestRunRefreshEndToEnd(t *testing.T) {
	store := &fakeStore{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	fetcher := &fakeFetcher{payload: mixedPayload()}
	r := newTestRefresher(fetcher, store, metrics)

	snap, err := r.RunRefresh(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, fetcher.offset.Load(), "feed window starts at row 1")
	assert.EqualValues(t, 1000, fetcher.size.Load())
	assert.Equal(t, 3, snap.TotalProjects)
	assert.Equal(t, 12+7+4, snap.TotalAvailableUnits)
	assert.Equal(t, "2026-01-02T09:00:00.000000Z", snap.Timestamp)
	require.Equal(t, 1, store.writeCount())
	assert.Same(t, snap, store.writes[0])

	st := r.Status()
	assert.False(t, st.IsRunning)
	assert.Empty(t, st.Error)
	assert.Equal(t, StepDone, st.CurrentStep)
	require.NotNil(t, st.Result)
	assert.Equal(t, models.RefreshResult{Projects: 3, Units: 23}, *st.Result)
	require.NotNil(t, st.StartTime)
	require.NotNil(t, st.EndTime)
	assert.NotEmpty(t, st.RunID)
	assert.Contains(t, st.Logs[0], st.RunID)
	for _, line := range st.Logs {
		assert.True(t, strings.HasPrefix(line, "[09:00:00] "), "log line %q", line)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(outcomeSuccess)))
	assert.Equal(t, 23.0, testutil.ToFloat64(metrics.units))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.projects))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.rejected))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.inProgress))
}

func TestStartRefreshNetworkFailure(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{err: &models.NetworkError{
		URL: "https://fdcjy.zhszjj.com/presalelist",
		Err: errors.New("connection refused"),
	}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := newTestRefresher(fetcher, store, metrics)

	accepted, st := r.StartRefresh()
	require.True(t, accepted)
	assert.True(t, st.IsRunning)

	st = waitIdle(t, r)
	r.Wait()

	assert.False(t, st.IsRunning)
	assert.Contains(t, st.Error, "connection refused")
	assert.Equal(t, models.KindNetwork, st.ErrorKind)
	assert.Nil(t, st.Result)
	assert.True(t, strings.HasPrefix(st.CurrentStep, "failed: "), st.CurrentStep)
	assert.Zero(t, store.writeCount(), "no persistence after a failed fetch")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(models.KindNetwork)))
}

func TestStartRefreshSingleFlight(t *testing.T) {
	fetcher := &fakeFetcher{payload: mixedPayload(), block: make(chan struct{})}
	store := &fakeStore{}
	r := newTestRefresher(fetcher, store, nil)

	const callers = 8
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := r.StartRefresh(); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())

	ok, st := r.StartRefresh()
	assert.False(t, ok)
	assert.True(t, st.IsRunning)

	_, err := r.RunRefresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(fetcher.block)
	r.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.writeCount())
	assert.False(t, r.Status().IsRunning)

	// Idle again: the next trigger is accepted.
	fetcher.block = nil
	ok, _ = r.StartRefresh()
	assert.True(t, ok)
	r.Wait()
}

func TestRunRefreshFailures(t *testing.T) {
	tests := []struct {
		name     string
		payload  models.RawPayload
		store    *fakeStore
		kind     string
		sentinel error
		writes   int
	}{
		{
			name:     "unrecognised payload",
			payload:  models.JSONPayload(map[string]any{"message": "maintenance"}),
			store:    &fakeStore{},
			kind:     models.KindParseFormat,
			sentinel: models.ErrParseFormat,
		},
		{
			name: "everything rejected",
			payload: models.JSONPayload(map[string]any{"data": []any{
				map[string]any{"projectName": "20230040466", "availableUnits": float64(3)},
			}}),
			store:    &fakeStore{},
			kind:     models.KindNoUsableData,
			sentinel: models.ErrNoUsableData,
		},
		{
			name:     "store rejects write",
			payload:  mixedPayload(),
			store:    &fakeStore{writeErr: errors.New("database is locked")},
			kind:     models.KindPersistenceWrite,
			sentinel: models.ErrPersistenceWrite,
		},
		{
			name:    "read back disagrees",
			payload: mixedPayload(),
			store: &fakeStore{readBack: func() (*models.Snapshot, error) {
				return &models.Snapshot{TotalAvailableUnits: 1}, nil
			}},
			kind:   models.KindVerifyMismatch,
			writes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRefresher(&fakeFetcher{payload: tt.payload}, tt.store, nil)

			snap, err := r.RunRefresh(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.Equal(t, tt.kind, models.ErrorKind(err))
			assert.Equal(t, tt.writes, tt.store.writeCount())

			st := r.Status()
			assert.False(t, st.IsRunning)
			assert.Equal(t, tt.kind, st.ErrorKind)
			assert.Nil(t, st.Result)
		})
	}
}

func TestRunRefreshVerifyMismatchDetail(t *testing.T) {
	store := &fakeStore{readBack: func() (*models.Snapshot, error) {
		return &models.Snapshot{TotalAvailableUnits: 20}, nil
	}}
	r := newTestRefresher(&fakeFetcher{payload: mixedPayload()}, store, nil)

	_, err := r.RunRefresh(context.Background())
	var mismatch *models.VerifyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 23, mismatch.ExpectedUnits)
	assert.Equal(t, 20, mismatch.ActualUnits)
}

func TestArchiveFailureDoesNotFailRun(t *testing.T) {
	archive := &failingArchive{}
	r := NewRefresher(RefresherDeps{
		Fetcher: &fakeFetcher{payload: mixedPayload()},
		Store:   &fakeStore{},
		Archive: archive,
		Logger:  utils.Discard(),
		Now:     func() time.Time { return fixedNow },
	})

	_, err := r.RunRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, archive.calls)
	assert.Equal(t, StepDone, r.Status().CurrentStep)
}

func TestStatusStableWithoutRun(t *testing.T) {
	r := newTestRefresher(&fakeFetcher{payload: mixedPayload()}, &fakeStore{}, nil)

	first := r.Status()
	assert.Equal(t, StepIdle, first.CurrentStep)
	assert.NotNil(t, first.Logs)
	assert.Equal(t, first, r.Status())

	_, err := r.RunRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, r.Status(), r.Status())
}
