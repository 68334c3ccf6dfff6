package timer

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
	"github.com/emilianohg/cyclelog/internal/store/sqlitestore"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	issueA = models.Issue{ID: "issue-a", Title: "Fix login", Identifier: "ENG-1"}
	issueB = models.Issue{ID: "issue-b", Title: "Add report", Identifier: "ENG-2"}
)

func newTestEngine(t *testing.T, policy StartPolicy) (*Engine, *sqlitestore.Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(t0)

	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "timer.sqlite"), sqlitestore.Config{Clock: mock})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewEngine(s, policy, nil), s, mock
}

func TestStartTimer_RejectIfActive(t *testing.T) {
	e, s, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	id, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = e.StartTimer(ctx, "u1", issueB)
	assert.ErrorIs(t, err, ErrConflict)

	logs, err := s.ListLogs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, logs, 1, "rejected start must not create a log")
	assert.Equal(t, id, logs[0].ID)
	assert.Nil(t, logs[0].EndTime)
}

func TestStartTimer_OtherUsersIndependent(t *testing.T) {
	e, _, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	_, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)
	_, err = e.StartTimer(ctx, "u2", issueA)
	require.NoError(t, err)
}

func TestStartTimer_AutoStop(t *testing.T) {
	e, s, mock := newTestEngine(t, AutoStop)
	ctx := context.Background()

	first, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)

	mock.Add(20 * time.Minute)
	second, err := e.StartTimer(ctx, "u1", issueB)
	require.NoError(t, err)

	prev, err := s.Get(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, prev.EndTime)
	assert.True(t, prev.EndTime.Equal(t0.Add(20*time.Minute)))

	active, err := e.ActiveTimer(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second, active.ID)
	assert.Equal(t, "ENG-2", active.IssueIdentifier)
}

func TestStopTimer_Idempotent(t *testing.T) {
	e, s, mock := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	id, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)

	mock.Add(15 * time.Minute)
	require.NoError(t, e.StopTimer(ctx, id))

	first, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first.EndTime)

	mock.Add(time.Hour)
	require.NoError(t, e.StopTimer(ctx, id))

	second, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, first.EndTime.Equal(*second.EndTime), "end time must not move")
}

func TestStopTimer_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, RejectIfActive)

	err := e.StopTimer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateEstimate_RoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	id, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)

	require.NoError(t, e.UpdateEstimate(ctx, id, "25m"))
	l, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "25m", l.Estimate)

	require.NoError(t, e.UpdateEstimate(ctx, id, "not a duration"))
	l, err = e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "not a duration", l.Estimate)

	assert.ErrorIs(t, e.UpdateEstimate(ctx, "missing", "1h"), ErrNotFound)
}

func TestEstimates_Merge(t *testing.T) {
	e, _, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	require.NoError(t, e.SaveEstimates(ctx, "u1", models.EstimateMap{"A": 2}))
	require.NoError(t, e.SaveEstimates(ctx, "u1", models.EstimateMap{"B": 3}))

	got, err := e.LoadEstimates(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EstimateMap{"A": 2, "B": 3}, got)
}

func TestTimeSpentPerIssue(t *testing.T) {
	e, _, mock := newTestEngine(t, AutoStop)
	ctx := context.Background()

	a1, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)
	mock.Add(30 * time.Minute)
	require.NoError(t, e.StopTimer(ctx, a1))

	a2, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)
	mock.Add(15 * time.Minute)
	require.NoError(t, e.StopTimer(ctx, a2))

	_, err = e.StartTimer(ctx, "u1", issueB)
	require.NoError(t, err)
	mock.Add(time.Hour)

	spent, err := e.TimeSpentPerIssue(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"issue-a": 0.75}, spent)
}

func TestSerialSequences_SingleActive(t *testing.T) {
	for _, policy := range []StartPolicy{RejectIfActive, AutoStop} {
		t.Run(policy.String(), func(t *testing.T) {
			e, s, mock := newTestEngine(t, policy)
			ctx := context.Background()
			rng := rand.New(rand.NewSource(42))
			issues := []models.Issue{issueA, issueB}

			var started []string
			for i := 0; i < 60; i++ {
				mock.Add(time.Duration(rng.Intn(600)+1) * time.Second)

				if rng.Intn(2) == 0 || len(started) == 0 {
					id, err := e.StartTimer(ctx, "u1", issues[rng.Intn(len(issues))])
					if err != nil {
						require.ErrorIs(t, err, ErrConflict)
					} else {
						started = append(started, id)
					}
				} else {
					require.NoError(t, e.StopTimer(ctx, started[rng.Intn(len(started))]))
				}

				logs, err := s.ListLogs(ctx, "u1")
				require.NoError(t, err)
				require.NoError(t, CheckSingleActive(logs))
				for _, l := range logs {
					if l.EndTime != nil {
						require.False(t, l.EndTime.Before(l.StartTime))
					}
				}
			}
		})
	}
}

func TestConcurrentStarts(t *testing.T) {
	e, s, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.StartTimer(ctx, "u1", issueA)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)

	open, err := s.OpenLogs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestWatch(t *testing.T) {
	e, _, _ := newTestEngine(t, RejectIfActive)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	sub, err := e.Watch(ctx, "u1", func(s Snapshot, err error) {
		if assert.NoError(t, err) {
			snaps <- s
		}
	})
	require.NoError(t, err)
	defer sub.Cancel()

	initial := <-snaps
	assert.Nil(t, initial.Active)

	id, err := e.StartTimer(ctx, "u1", issueA)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case s := <-snaps:
			return s.Active != nil && s.Active.ID == id
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

type failingStore struct {
	store.Store
}

func (failingStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	return store.Unavailable("begin transaction", assert.AnError)
}

func (failingStore) OpenLogs(ctx context.Context, userID string) ([]models.TimeLog, error) {
	return nil, store.Unavailable("query open time logs", assert.AnError)
}

type noopSubscription struct{}

func (noopSubscription) Cancel() {}

func (failingStore) Subscribe(ctx context.Context, userID string, fn func([]models.TimeLog, error)) (store.Subscription, error) {
	fn(nil, store.Unavailable("list time logs", assert.AnError))
	return noopSubscription{}, nil
}

func TestStoreFailuresSurface(t *testing.T) {
	e := NewEngine(failingStore{}, RejectIfActive, nil)
	ctx := context.Background()

	_, err := e.StartTimer(ctx, "u1", issueA)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, err, assert.AnError)

	assert.ErrorIs(t, e.StopTimer(ctx, "x"), store.ErrUnavailable)

	_, err = e.ActiveTimer(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrUnavailable)

	var watchErr error
	sub, err := e.Watch(ctx, "u1", func(s Snapshot, err error) {
		assert.Nil(t, s.Active)
		watchErr = err
	})
	require.NoError(t, err)
	sub.Cancel()
	assert.ErrorIs(t, watchErr, store.ErrUnavailable)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RejectIfActive, p)

	p, err = ParsePolicy("auto_stop")
	require.NoError(t, err)
	assert.Equal(t, AutoStop, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)

	assert.Equal(t, "auto_stop", NewEngine(failingStore{}, p, nil).Policy().String())
}
