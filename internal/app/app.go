// Package app turns configuration into the pipeline objects both commands
// run.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cgillinger/facebook-stats/internal/aggregate"
	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/identity"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
)

// Results are saved under this category and key after every change.
const (
	ResultsCategory = "results"
	ResultsKey      = "latest"
)

// RequiredFields parses the configured required field names. An empty list
// keeps the table's own required set.
func RequiredFields(names []string) ([]domain.Field, error) {
	var out []domain.Field
	for _, n := range names {
		f := domain.Field(strings.TrimSpace(n))
		if !f.IsMapped() {
			return nil, fmt.Errorf("required field %q is not a mapped field", n)
		}
		out = append(out, f)
	}
	return out, nil
}

// SessionOptions builds pipeline options from cfg around the mapping store.
func SessionOptions(cfg config.PipelineConfig, store *mapping.Store) (pipeline.Options, error) {
	scope, err := dedupe.ParseScope(cfg.DedupeScope)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		Mapping: store,
		Engine:  aggregate.NewEngine(cfg.Location()),
		Identity: identity.Options{
			MergeByName: cfg.MergeByName(),
			Classifier:  identity.NewClassifier(cfg.SyntheticEventPatterns...),
		},
		Scope:     scope,
		QueueSize: cfg.QueueSize,
	}
	if len(cfg.DefaultMetrics) > 0 {
		set, unknown := domain.ParseMetrics(cfg.DefaultMetrics)
		if len(unknown) > 0 {
			return pipeline.Options{}, fmt.Errorf("unknown default metrics: %s", strings.Join(unknown, ", "))
		}
		opts.Metrics = set
	}
	return opts, nil
}

// Saver is the storage call SaveSnapshots needs.
type Saver interface {
	Save(ctx context.Context, category, key string, v interface{}) error
}

// SaveSnapshots returns an OnSnapshot hook that writes each snapshot to
// results/latest. Failures are logged; the session carries on.
func SaveSnapshots(store Saver, timeout time.Duration) func(*pipeline.Snapshot) {
	return func(snap *pipeline.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := store.Save(ctx, ResultsCategory, ResultsKey, snap); err != nil {
			logger.Warn("latest results not saved", "error", err)
			return
		}
		logger.Debug("latest results saved", "accounts", len(snap.Summaries), "posts", len(snap.Posts))
	}
}
