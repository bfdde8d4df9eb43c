package inbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  map[string]error
}

func newMemStore(kv ...string) *memStore {
	m := &memStore{objects: map[string][]byte{}, getErr: map[string]error{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.objects[kv[i]] = []byte(kv[i+1])
	}
	return m
}

func (m *memStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[key]; err != nil {
		return nil, err
	}
	return m.objects[key], nil
}

func (m *memStore) Move(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[dst] = m.objects[src]
	delete(m.objects, src)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const export = "Post ID,Page name,Views,Reach\n1,Desk,10,5\n"

func newSession(t *testing.T) *pipeline.Session {
	t.Helper()
	store, err := mapping.NewStore(mapping.DefaultTable())
	require.NoError(t, err)
	s, err := pipeline.NewSession(pipeline.Options{Mapping: store})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestRunOnceFilesResults(t *testing.T) {
	store := newMemStore(
		"fb/incoming/b.csv", export,
		"fb/incoming/a.csv", export,
		"fb/incoming/broken.csv", "",
		"fb/incoming/notes.txt", "ignore me",
	)
	tracker := jobs.NewMemoryTracker(time.Hour)
	session := newSession(t)
	p := NewPoller(store, session, Config{Prefix: "fb", Jobs: tracker})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"fb/incoming/a.csv", "fb/incoming/b.csv", "fb/incoming/broken.csv"}, res.Files)
	assert.Equal(t, []string{"fb/incoming/a.csv", "fb/incoming/b.csv"}, res.Processed)
	assert.Equal(t, []string{"fb/incoming/broken.csv"}, res.Failed)

	assert.Equal(t, []string{
		"fb/failed/broken.csv",
		"fb/incoming/notes.txt",
		"fb/processed/a.csv",
		"fb/processed/b.csv",
	}, store.keys())

	// b.csv repeats a.csv's post.
	assert.Len(t, session.Posts(), 1)

	job, err := tracker.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, []string{"a.csv", "b.csv", "broken.csv"}, job.Files)

	assert.False(t, p.LastRunAt().IsZero())
	assert.Equal(t, res, p.LastResult())
	assert.False(t, p.IsRunning())
}

func TestRunOnceEmptyInbox(t *testing.T) {
	p := NewPoller(newMemStore("processed/x.csv", export), newSession(t), Config{})
	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Nil(t, p.LastResult())
}

func TestRunOnceUnreadableFile(t *testing.T) {
	store := newMemStore("incoming/a.csv", export, "incoming/b.csv", export)
	store.getErr["incoming/a.csv"] = errors.New("access denied")
	p := NewPoller(store, newSession(t), Config{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"incoming/a.csv"}, res.Failed)
	assert.Equal(t, []string{"incoming/b.csv"}, res.Processed)
}

type blockingProcessor struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProcessor) Process(ctx context.Context, batch pipeline.Batch) (*pipeline.BatchResult, error) {
	close(b.entered)
	<-b.release
	return nil, pipeline.ErrStopped
}

func TestRunOnceIsExclusive(t *testing.T) {
	proc := &blockingProcessor{entered: make(chan struct{}), release: make(chan struct{})}
	store := newMemStore("incoming/a.csv", export)
	p := NewPoller(store, proc, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := p.RunOnce(context.Background())
		done <- err
	}()
	<-proc.entered
	assert.True(t, p.IsRunning())

	_, err := p.ManualTrigger(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(proc.release)
	assert.ErrorIs(t, <-done, pipeline.ErrStopped)
	// Nothing was processed, so the file stays for the next run.
	assert.Equal(t, []string{"incoming/a.csv"}, store.keys())
	assert.Equal(t, []string{"incoming/a.csv"}, p.LastResult().Left)
}

func TestStartStop(t *testing.T) {
	store := newMemStore("incoming/a.csv", export)
	p := NewPoller(store, newSession(t), Config{Interval: time.Hour})
	p.Start()
	require.Eventually(t, func() bool {
		return p.LastResult() != nil
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()
	assert.Equal(t, []string{"processed/a.csv"}, store.keys())
}

type fakeS3 struct {
	objects map[string][]byte
	copies  []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.ToString(in.Key)]))}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies = append(f.copies, aws.ToString(in.CopySource))
	src := strings.TrimPrefix(aws.ToString(in.CopySource), "bucket/")
	src = strings.ReplaceAll(src, "%20", " ")
	f.objects[aws.ToString(in.Key)] = f.objects[src]
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{
		"in/incoming/z.csv":       []byte("z"),
		"in/incoming/my file.csv": []byte("a"),
		"in/incoming/empty.csv":   {},
		"other/incoming/x.csv":    []byte("x"),
	}}
	store := NewS3Store(client, "bucket")

	objs, err := store.List(ctx, "in/incoming/")
	require.NoError(t, err)
	assert.Equal(t, []Object{{Key: "in/incoming/my file.csv", Size: 1}, {Key: "in/incoming/z.csv", Size: 1}}, objs)

	data, err := store.Get(ctx, "in/incoming/z.csv")
	require.NoError(t, err)
	assert.Equal(t, "z", string(data))

	require.NoError(t, store.Move(ctx, "in/incoming/my file.csv", "in/processed/my file.csv"))
	assert.Equal(t, []string{"bucket/in/incoming/my%20file.csv"}, client.copies)
	assert.Equal(t, []byte("a"), client.objects["in/processed/my file.csv"])
	_, still := client.objects["in/incoming/my file.csv"]
	assert.False(t, still)
}
