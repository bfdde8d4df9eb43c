// Command fbstats runs local CSV exports through the statistics pipeline and
// prints the account view, the post view or the processing stats.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cgillinger/facebook-stats/internal/app"
	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/cgillinger/facebook-stats/internal/dedupe"
	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/export"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/cgillinger/facebook-stats/internal/storage"
	"github.com/cgillinger/facebook-stats/internal/view"
	"github.com/schollz/progressbar/v3"
)

type options struct {
	configPath string
	dataDir    string
	viewName   string
	format     string
	metrics    string
	sortKey    string
	dir        string
	account    string
	scope      string
	abort      bool
	quiet      bool
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fsFlags := flag.NewFlagSet("fbstats", flag.ContinueOnError)
	fsFlags.SetOutput(stderr)

	o := &options{}
	fsFlags.StringVar(&o.configPath, "config", "", "YAML config file")
	fsFlags.StringVar(&o.dataDir, "data", "", "local storage directory holding a saved mapping table")
	fsFlags.StringVar(&o.viewName, "view", "accounts", "accounts, posts or stats")
	fsFlags.StringVar(&o.format, "format", "json", "json, csv or xlsx")
	fsFlags.StringVar(&o.metrics, "metrics", "", "comma-separated metrics (default: configured selection)")
	fsFlags.StringVar(&o.sortKey, "sort", "", "field to sort by")
	fsFlags.StringVar(&o.dir, "dir", "asc", "asc or desc")
	fsFlags.StringVar(&o.account, "account", "", "only posts of this account key")
	fsFlags.StringVar(&o.scope, "scope", "", "duplicate scope: session or file")
	fsFlags.BoolVar(&o.abort, "abort-on-missing", false, "stop at the first file missing required columns")
	fsFlags.BoolVar(&o.quiet, "quiet", false, "no progress bar")
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	o.files = fsFlags.Args()
	if len(o.files) == 0 {
		return nil, errors.New("usage: fbstats [flags] export.csv [more.csv ...]")
	}
	switch o.viewName {
	case "accounts", "posts", "stats":
	default:
		return nil, fmt.Errorf("unknown view %q", o.viewName)
	}
	switch o.format {
	case "json", "csv", "xlsx":
	default:
		return nil, fmt.Errorf("unknown format %q", o.format)
	}
	if o.format != "json" && o.viewName == "stats" {
		return nil, errors.New("stats are only available as json")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetOutput(stderr)
	if level, ok := logger.ParseLevel(cfg.Logging.Level); ok {
		logger.SetLevel(level)
	}

	var selected domain.FieldSet
	if o.metrics != "" {
		set, unknown := domain.ParseMetrics(splitList(o.metrics))
		if len(unknown) > 0 {
			return fmt.Errorf("unknown metrics: %s", strings.Join(unknown, ", "))
		}
		selected = set
	}
	required, err := app.RequiredFields(cfg.Pipeline.RequiredFields)
	if err != nil {
		return err
	}
	store, err := mapping.NewStore(mapping.DefaultTable())
	if err != nil {
		return err
	}
	var docs mapping.Documents = storage.NewMemory()
	if o.dataDir != "" {
		local, err := storage.NewLocal(o.dataDir)
		if err != nil {
			return err
		}
		docs = local
	}
	if err := mapping.NewService(store, docs, nil).Load(ctx, required); err != nil {
		return err
	}

	sessionOpts, err := app.SessionOptions(cfg.Pipeline, store)
	if err != nil {
		return err
	}
	session, err := pipeline.NewSession(sessionOpts)
	if err != nil {
		return err
	}
	session.Start()
	defer session.Stop()

	batch, err := o.batch(cfg)
	if err != nil {
		return err
	}
	if !o.quiet {
		bar := progressbar.NewOptions(len(batch.Files),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
		batch.OnFile = func(p domain.FileProvenance) {
			bar.Describe(filepath.Base(p.FileName))
			_ = bar.Add(1)
		}
	}

	res, err := session.Process(ctx, batch)
	if err != nil {
		return err
	}
	for _, f := range res.Files {
		if f.Status != domain.FileProcessed {
			fmt.Fprintf(stderr, "%s: %s %s\n", f.FileName, f.Status, f.Error)
		}
	}

	snap := session.Snapshot(selected)
	if len(selected) == 0 {
		selected = domain.NewFieldSet(snap.Selected...)
	}
	return o.write(stdout, store.Current(), snap, selected, session)
}

func (o *options) batch(cfg *config.Config) (pipeline.Batch, error) {
	b := pipeline.Batch{AbortOnMissingRequired: o.abort || cfg.Pipeline.AbortOnMissingRequired}
	if o.scope != "" {
		scope, err := dedupe.ParseScope(o.scope)
		if err != nil {
			return b, err
		}
		b.Scope = scope
	}
	for _, path := range o.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return b, err
		}
		b.Files = append(b.Files, pipeline.Input{Name: filepath.Base(path), Data: data})
	}
	return b, nil
}

func (o *options) write(w io.Writer, table *mapping.Table, snap *pipeline.Snapshot, selected domain.FieldSet, session *pipeline.Session) error {
	dir := view.ParseDirection(o.dir)
	switch o.viewName {
	case "stats":
		return writeJSON(w, snap.Stats)
	case "posts":
		rows := view.Posts(view.FilterPosts(snap.Posts, domain.AccountKey(o.account)), snap.Summaries)
		view.SortPosts(rows, o.sortKey, dir, session.Engine().Location())
		if o.format != "json" {
			return export.PostsSheet(table, rows, selected).Write(w, export.Format(o.format))
		}
		return writeJSON(w, rows)
	}
	rows := view.Accounts(snap.Summaries)
	view.SortAccounts(rows, o.sortKey, dir)
	totals := view.Totals(snap.Summaries, selected)
	if o.format != "json" {
		return export.AccountsSheet(table, rows, totals, selected).Write(w, export.Format(o.format))
	}
	return writeJSON(w, map[string]interface{}{
		"accounts": rows,
		"totals":   totals,
		"selected": snap.Selected,
	})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("fbstats: ")
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}
}
