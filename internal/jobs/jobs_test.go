package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTracker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisTracker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisTracker(client, ttl)
}

func trackers(t *testing.T) map[string]Tracker {
	_, rt := newRedisTracker(t, time.Hour)
	return map[string]Tracker{
		"redis":  rt,
		"memory": NewMemoryTracker(time.Hour),
	}
}

func TestTrackerSaveGetList(t *testing.T) {
	ctx := context.Background()
	for name, tr := range trackers(t) {
		t.Run(name, func(t *testing.T) {
			older := New("job-1", []string{"a.csv"})
			older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			newer := New("job-2", []string{"b.csv", "c.csv"})
			newer.CreatedAt = older.CreatedAt.Add(time.Minute)

			require.NoError(t, tr.Save(ctx, older))
			require.NoError(t, tr.Save(ctx, newer))

			got, err := tr.Get(ctx, "job-2")
			require.NoError(t, err)
			assert.Equal(t, StatusQueued, got.Status)
			assert.Equal(t, []string{"b.csv", "c.csv"}, got.Files)

			_, err = tr.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err := tr.List(ctx, 10)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "job-2", list[0].ID)
			assert.Equal(t, "job-1", list[1].ID)

			list, err = tr.List(ctx, 1)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "job-2", list[0].ID)
		})
	}
}

func TestRedisTrackerExpires(t *testing.T) {
	ctx := context.Background()
	mr, tr := newRedisTracker(t, time.Minute)

	require.NoError(t, tr.Save(ctx, New("job-1", nil)))
	assert.Greater(t, mr.TTL("job:status:job-1"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err := tr.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTrackerListPrunesExpired(t *testing.T) {
	ctx := context.Background()
	mr, tr := newRedisTracker(t, time.Hour)

	require.NoError(t, tr.Save(ctx, New("job-1", nil)))
	require.NoError(t, tr.Save(ctx, New("job-2", nil)))
	mr.Del("job:status:job-1")

	list, err := tr.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "job-2", list[0].ID)

	members, err := mr.ZMembers("job:recent")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-2"}, members)
}

func TestMemoryTrackerExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewMemoryTracker(time.Minute)
	tr.now = func() time.Time { return now }

	require.NoError(t, tr.Save(ctx, New("job-1", nil)))
	_, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = tr.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := tr.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFinishStatus(t *testing.T) {
	tests := []struct {
		name string
		res  *pipeline.BatchResult
		err  error
		want Status
	}{
		{"completed", &pipeline.BatchResult{}, nil, StatusCompleted},
		{"cancelled", &pipeline.BatchResult{Cancelled: true}, pipeline.ErrCancelled, StatusCancelled},
		{"stopped", nil, pipeline.ErrStopped, StatusCancelled},
		{"aborted", &pipeline.BatchResult{Aborted: &domain.MissingRequiredColumnsWarning{File: "a.csv", Fields: []domain.Field{domain.FieldReach}}}, nil, StatusFailed},
		{"failed", nil, assert.AnError, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewMemoryTracker(time.Hour)
			rec, err := Track(context.Background(), tr, New("job", nil))
			require.NoError(t, err)
			rec.Finish(tt.res, tt.err)

			got, err := tr.Get(context.Background(), "job")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.True(t, got.Status.IsTerminal())
			assert.NotNil(t, got.FinishedAt)
		})
	}
}

func TestRecorderFollowsBatch(t *testing.T) {
	ctx := context.Background()
	_, tr := newRedisTracker(t, time.Hour)

	store, err := mapping.NewStore(mapping.DefaultTable())
	require.NoError(t, err)
	session, err := pipeline.NewSession(pipeline.Options{Mapping: store})
	require.NoError(t, err)
	session.Start()
	t.Cleanup(session.Stop)

	csv := "Post ID,Page name,Views,Reach\n1,Desk,10,5\n2,Desk,20,6\n"
	batch := pipeline.Batch{Files: []pipeline.Input{{Name: "a.csv", Data: []byte(csv)}, {Name: "b.csv", Data: []byte(csv)}}}

	rec, err := Track(ctx, tr, New("job-42", []string{"a.csv", "b.csv"}))
	require.NoError(t, err)
	rec.Hook(&batch)

	res, err := session.Process(ctx, batch)
	rec.Finish(res, err)
	require.NoError(t, err)

	got, err := tr.Get(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 2, got.FilesDone)
	require.Len(t, got.Provenance, 2)
	assert.Equal(t, 2, got.Provenance[1].Duplicates)
	require.NotNil(t, got.Result)
	assert.Equal(t, "job-42", got.Result.BatchID)
	assert.NotNil(t, got.StartedAt)
}
