// Command connmatrixctl loads pairwise recordings into a store, computes
// a connectivity matrix with the selected analyzer, and renders it to the
// terminal or exports it as artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"connmatrix/internal/blob"
	"connmatrix/internal/config"
	"connmatrix/internal/core"
	"connmatrix/internal/infra/persistence/memory"
	"connmatrix/internal/infra/persistence/postgres"
	"connmatrix/internal/infra/persistence/sqlite"
	"connmatrix/internal/render"
	"connmatrix/pkg/domain"
	"connmatrix/plugins/connectivity"
	"connmatrix/plugins/dynamics"
	"connmatrix/plugins/strength"
)

var exitFunc = os.Exit

// experimentStore is satisfied by every persistence driver.
type experimentStore interface {
	domain.PairStore
	AddExperiment(ctx context.Context, exp domain.Experiment) error
}

type options struct {
	storeDriver string
	dbPath      string
	dsn         string
	importPath  string
	preset      string
	configPath  string
	analyzer    string
	field       string
	template    string
	projects    string
	acsf        string
	internals   string
	format      string
	metrics     string
	export      bool
	element     string
	summary     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("connmatrixctl", flag.ContinueOnError)
	fs.StringVar(&opts.storeDriver, "store", "memory", "pair store driver: memory, sqlite, postgres")
	fs.StringVar(&opts.dbPath, "db", "connmatrix.db", "sqlite database path")
	fs.StringVar(&opts.dsn, "dsn", "", "postgres DSN")
	fs.StringVar(&opts.importPath, "import", "", "experiments JSON file to load before computing")
	fs.StringVar(&opts.preset, "preset", "mouse", "built-in cell class preset: "+strings.Join(config.PresetNames(), ", "))
	fs.StringVar(&opts.configPath, "config", "", "cell class configuration JSON file (overrides -preset)")
	fs.StringVar(&opts.analyzer, "analyzer", "connectivity", "analyzer to run")
	fs.StringVar(&opts.field, "field", "", "result field to display (analyzer default when empty)")
	fs.StringVar(&opts.template, "template", "", "cell text template (analyzer default when empty)")
	fs.StringVar(&opts.projects, "projects", "", "comma-separated project filter")
	fs.StringVar(&opts.acsf, "acsf", "", "comma-separated ACSF filter")
	fs.StringVar(&opts.internals, "internals", "", "comma-separated internal solution filter")
	fs.StringVar(&opts.format, "format", "ansi", "grid output format: ansi, json, csv")
	fs.StringVar(&opts.metrics, "metrics", "expvar", "metrics backend: expvar, prometheus")
	fs.BoolVar(&opts.export, "export", false, "export results.json and grid.csv to the blob store")
	fs.StringVar(&opts.element, "element", "", "print drill-down for one element, as row,col")
	fs.BoolVar(&opts.summary, "summary", true, "print the analyzer summary after the grid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, cleanup, err := openStore(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.importPath != "" {
		if err := importExperiments(ctx, store, opts.importPath); err != nil {
			return err
		}
	}

	preset, err := loadPreset(opts)
	if err != nil {
		return err
	}

	registry := core.NewAnalyzerRegistry()
	for name, ctor := range map[string]core.AnalyzerConstructor{
		"connectivity": connectivity.New,
		"strength":     strength.New,
		"dynamics":     dynamics.New,
	} {
		if err := registry.Register(name, ctor); err != nil {
			return err
		}
	}

	recorder, err := metricsRecorder(opts.metrics)
	if err != nil {
		return err
	}
	svc := core.NewService(store, registry, core.WithMetrics(recorder))
	svc.SetClasses(preset.Classes)
	svc.SetFilter(domain.PairFilter{
		Projects:  splitList(opts.projects),
		ACSF:      splitList(opts.acsf),
		Internals: splitList(opts.internals),
	})
	if err := svc.SelectAnalyzers(opts.analyzer); err != nil {
		return err
	}
	if opts.field != "" {
		if err := svc.SelectField(opts.field); err != nil {
			return err
		}
	}
	if opts.template != "" {
		if err := svc.SetTemplate(opts.template); err != nil {
			return err
		}
	}

	grid, err := svc.Update(ctx)
	if err != nil {
		return err
	}
	if err := writeGrid(out, grid, opts.format); err != nil {
		return err
	}

	if opts.summary {
		summary, err := svc.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, summary)
	}

	if opts.element != "" {
		if err := printElement(ctx, out, svc, opts.element); err != nil {
			return err
		}
	}

	if opts.export {
		blobStore, err := blob.Open(ctx)
		if err != nil {
			return err
		}
		infos, err := svc.ExportArtifacts(ctx, blobStore)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Fprintf(out, "exported %s (%d bytes)\n", info.Key, info.Size)
		}
	}
	return nil
}

func openStore(opts options) (experimentStore, func(), error) {
	switch opts.storeDriver {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		s, err := sqlite.NewStore(opts.dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.NewStore(opts.dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", opts.storeDriver)
	}
}

func metricsRecorder(backend string) (core.MetricsRecorder, error) {
	switch backend {
	case "expvar":
		return core.NewExpvarMetricsRecorder(""), nil
	case "prometheus":
		return core.NewPrometheusMetricsRecorder(nil, "")
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", backend)
	}
}

func importExperiments(ctx context.Context, store experimentStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode import file %s: %w", path, err)
	}
	for _, exp := range snap.Experiments {
		if err := store.AddExperiment(ctx, exp); err != nil {
			return err
		}
	}
	return nil
}

func loadPreset(opts options) (config.Preset, error) {
	if opts.configPath != "" {
		return config.LoadFile(opts.configPath)
	}
	return config.PresetByName(opts.preset)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeGrid(out io.Writer, grid *render.Grid, format string) error {
	switch format {
	case "ansi":
		return render.WriteANSI(out, grid)
	case "json":
		return render.WriteJSON(out, grid)
	case "csv":
		return render.WriteCSV(out, grid)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printElement(ctx context.Context, out io.Writer, svc *core.Service, coord string) error {
	parts := strings.Split(coord, ",")
	if len(parts) != 2 {
		return fmt.Errorf("element must be row,col, got %q", coord)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("element row: %w", err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("element col: %w", err)
	}
	data, err := svc.ElementAt(ctx, row, col)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s -> %s (%s): %d pairs\n", data.Key.Pre, data.Key.Post, data.Field, len(data.Pairs))
	if lister, ok := svc.Analyzer().(interface {
		ConnectionList(domain.ClassPair) (string, error)
	}); ok {
		listing, err := lister.ConnectionList(data.Key)
		if err != nil {
			return err
		}
		fmt.Fprint(out, listing)
		return nil
	}
	for i, pair := range data.Pairs {
		fmt.Fprintf(out, "\t%s: %s -> %s = %v\n", pair.ExperimentID, pair.Pre.ID, pair.Post.ID, data.Values[i])
	}
	return nil
}
