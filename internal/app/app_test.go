package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredFields(t *testing.T) {
	fields, err := RequiredFields([]string{"reach", " views "})
	require.NoError(t, err)
	assert.Equal(t, []domain.Field{domain.FieldReach, domain.FieldViews}, fields)

	_, err = RequiredFields([]string{"posts_per_day"})
	assert.Error(t, err)

	fields, err = RequiredFields(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSessionOptions(t *testing.T) {
	store, err := mapping.NewStore(mapping.DefaultTable())
	require.NoError(t, err)

	cfg := config.Default().Pipeline
	cfg.DedupeScope = "file"
	cfg.Timezone = "Europe/Stockholm"
	cfg.DefaultMetrics = []string{"likes", "reach"}

	opts, err := SessionOptions(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, dedupe.ScopeFile, opts.Scope)
	assert.Equal(t, "Europe/Stockholm", opts.Engine.Location().String())
	assert.True(t, opts.Identity.MergeByName)
	assert.Equal(t, domain.NewFieldSet(domain.FieldLikes, domain.FieldReach), opts.Metrics)
	assert.Equal(t, 16, opts.QueueSize)

	tests := []struct {
		name   string
		mutate func(*config.PipelineConfig)
	}{
		{"bad scope", func(c *config.PipelineConfig) { c.DedupeScope = "forever" }},
		{"bad metric", func(c *config.PipelineConfig) { c.DefaultMetrics = []string{"hearts"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default().Pipeline
			tt.mutate(&c)
			_, err := SessionOptions(c, store)
			assert.Error(t, err)
		})
	}
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, string, string, interface{}) error {
	return errors.New("disk full")
}

func TestSaveSnapshots(t *testing.T) {
	mem := storage.NewMemory()
	hook := SaveSnapshots(mem, time.Second)
	hook(&pipeline.Snapshot{Summaries: []domain.AccountSummary{{Key: "a", Name: "Alfa"}}})

	var saved pipeline.Snapshot
	require.NoError(t, mem.Load(context.Background(), ResultsCategory, ResultsKey, &saved))
	require.Len(t, saved.Summaries, 1)
	assert.Equal(t, "Alfa", saved.Summaries[0].Name)

	assert.NotPanics(t, func() { SaveSnapshots(failingSaver{}, time.Second)(&pipeline.Snapshot{}) })
}
