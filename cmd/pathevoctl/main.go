package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"pathevo/internal/model"
	"pathevo/internal/stats"
	"pathevo/internal/storage"
	"pathevo/pkg/pathevo"
)

const (
	benchmarksDir = stats.DefaultArtifactDir
	exportsDir    = "exports"
	defaultDBPath = "pathevo.db"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "layouts":
		return runLayouts(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath: fs.String("db-path", defaultDBPath, "sqlite database path"),
	}
}

func (f storeFlags) client(logger *slog.Logger) (*pathevo.Client, error) {
	return pathevo.New(pathevo.Options{
		StoreKind:     *f.kind,
		DBPath:        *f.dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
	})
}

type runSelector struct {
	runID  *string
	latest *bool
}

func addRunSelector(fs *flag.FlagSet, what string) runSelector {
	return runSelector{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, fmt.Sprintf("show %s for the most recent run from run index", what)),
	}
}

func (s runSelector) validate(command string) error {
	if *s.runID != "" && *s.latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *s.runID == "" && !*s.latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	continuePopID := fs.String("continue-pop-id", "", "continue from persisted population snapshot id")
	layout := fs.String("layout", "", "built-in layout name (see layouts)")
	gridFile := fs.String("grid-file", "", "layout text file; overrides --layout")
	population := fs.Int("pop", 8, "population size")
	genomeLen := fs.Int("genome-len", 36, "moves per genome")
	minLen := fs.Int("min-len", 16, "shortest possible route length used by the finish score")
	incompleteWeight := fs.Float64("incomplete-weight", 0.5, "score weight of runs that never reach the finish")
	mutationThreshold := fs.Float64("mutation-threshold", 0.3, "agents at or below this fitness are mutated")
	strategy := fs.String("strategy", "mutate_then_crossover", "breeding strategy: mutate_then_crossover|mutate_only")
	orphans := fs.String("orphans", "drop", "first fit agent without a predecessor: drop|carry")
	policy := fs.String("policy", "unconditional", "replacement policy: unconditional|conditional|manual")
	ticksPerGen := fs.Int("ticks-per-gen", 20, "ticks per evaluation window")
	burst := fs.Int("burst", 1, "breeding steps per replacement")
	maxTicks := fs.Int("max-ticks", 1000, "ticks to run")
	stopWhenSolved := fs.Bool("stop-when-solved", false, "stop after the first window in which an agent reaches the finish")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "evaluation workers")
	verbose := fs.Bool("verbose", false, "log monitor events to stderr")
	quiet := fs.Bool("quiet", false, "do not print per-generation progress")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	flagValues := map[string]any{
		"run-id":             *runID,
		"continue-pop-id":    *continuePopID,
		"layout":             *layout,
		"grid-file":          *gridFile,
		"pop":                *population,
		"genome-len":         *genomeLen,
		"min-len":            *minLen,
		"incomplete-weight":  *incompleteWeight,
		"mutation-threshold": *mutationThreshold,
		"strategy":           *strategy,
		"orphans":            *orphans,
		"policy":             *policy,
		"ticks-per-gen":      *ticksPerGen,
		"burst":              *burst,
		"max-ticks":          *maxTicks,
		"stop-when-solved":   *stopWhenSolved,
		"seed":               *seed,
		"workers":            *workers,
	}

	var req pathevo.RunRequest
	if *configPath == "" {
		all := make(map[string]bool, len(flagValues))
		for name := range flagValues {
			all[name] = true
		}
		if err := overrideFromFlags(&req, all, flagValues); err != nil {
			return err
		}
	} else {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		req = loaded
		if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
			return err
		}
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if !*quiet {
		req.Progress = func(d model.GenerationDiagnostics) {
			fmt.Fprintf(stdout, "generation=%d tick=%s best_fitness=%.6f mean_fitness=%.6f finishers=%d wall_hits=%d\n",
				d.Generation,
				humanize.Comma(int64(d.Tick)),
				d.BestFitness,
				d.MeanFitness,
				d.Finishers,
				d.WallHits,
			)
		}
	}

	client, err := sf.client(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			fmt.Fprintf(stderr, "stopping run %s\n", req.RunID)
			_ = client.StopRun(req.RunID)
		case <-done:
		}
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run completed run_id=%s layout=%s pop=%d ticks=%s generation=%d seed=%d solved=%t stopped=%t elapsed=%s\n",
		summary.RunID,
		displayLayout(req),
		req.Population,
		humanize.Comma(int64(summary.Ticks)),
		summary.FinalGeneration,
		req.Seed,
		summary.Solved,
		summary.Stopped,
		time.Since(started).Round(time.Millisecond),
	)
	if summary.Best.Label != "" {
		fmt.Fprintf(stdout, "best label=%s fitness=%.6f outcome=%s path_len=%d path=%s\n",
			summary.Best.Label,
			summary.Best.Fitness,
			summary.Best.Outcome,
			summary.Best.PathLen,
			summary.Best.Path,
		)
	}
	fmt.Fprintf(stdout, "final_best_fitness=%.6f\n", summary.FinalBestFitness)
	fmt.Fprintf(stdout, "artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func displayLayout(req pathevo.RunRequest) string {
	switch {
	case req.Layout != "":
		return req.Layout
	case req.Grid != "":
		return "custom"
	default:
		return "default"
	}
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := pathevo.New(pathevo.Options{StoreKind: "memory", BenchmarksDir: benchmarksDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, pathevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(items)
	}

	for _, item := range items {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s age=%q layout=%s seed=%d pop=%d policy=%s ticks=%s generation=%d solved=%t final_best_fitness=%.6f\n",
			item.RunID,
			item.CreatedAtUTC,
			age(item.CreatedAtUTC),
			item.Layout,
			item.Seed,
			item.Population,
			item.Policy,
			humanize.Comma(int64(item.Ticks)),
			item.FinalGeneration,
			item.Solved,
			item.FinalBestFitness,
		)
	}
	return nil
}

func age(ts string) string {
	t, err := stats.ParseTimestamp(ts)
	if err != nil {
		return "unknown"
	}
	return humanize.Time(t)
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	sel := addRunSelector(fs, "lineage")
	limit := fs.Int("limit", 50, "max lineage records to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit lineage as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("lineage"); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, pathevo.LineageRequest{RunID: *sel.runID, Latest: *sel.latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	for _, rec := range lineage {
		donor := rec.Donor
		if donor == "" {
			donor = "-"
		}
		fmt.Fprintf(stdout, "generation=%d label=%s operation=%s donor=%s parent_fitness=%.6f\n",
			rec.Generation,
			rec.Label,
			rec.Operation,
			donor,
			rec.ParentFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sel := addRunSelector(fs, "fitness history")
	limit := fs.Int("limit", 0, "max windows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("fitness"); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, pathevo.FitnessHistoryRequest{RunID: *sel.runID, Latest: *sel.latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "window=%d best_fitness=%.6f\n", i+1, best)
	}
	summary := stats.Summarize(history)
	fmt.Fprintf(stdout, "windows=%d initial=%.6f final=%.6f improvement=%.6f mean=%.6f std=%.6f regressions=%d\n",
		summary.Windows,
		summary.InitialBest,
		summary.FinalBest,
		summary.Improvement,
		summary.BestMean,
		summary.BestStd,
		summary.Regressions,
	)
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	sel := addRunSelector(fs, "diagnostics")
	limit := fs.Int("limit", 0, "max windows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("diagnostics"); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, pathevo.DiagnosticsRequest{RunID: *sel.runID, Latest: *sel.latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Fprintln(stdout, "no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d tick=%s pop=%d best=%.6f mean=%.6f min=%.6f std=%.6f finishers=%d wall_hits=%d exhausted=%d breeding_steps=%d\n",
			d.Generation,
			humanize.Comma(int64(d.Tick)),
			d.PopulationSize,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.StdDevFitness,
			d.Finishers,
			d.WallHits,
			d.Exhausted,
			d.BreedingSteps,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	sel := addRunSelector(fs, "top agents")
	limit := fs.Int("limit", 5, "max top agents to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top agents as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("top"); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopAgents(ctx, pathevo.TopAgentsRequest{RunID: *sel.runID, Latest: *sel.latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(stdout, "no top agents")
		return nil
	}
	if *jsonOut {
		return writeJSON(top)
	}
	for _, item := range top {
		fmt.Fprintf(stdout, "rank=%d label=%s fitness=%.6f outcome=%s path_len=%d genome=%s\n",
			item.Rank,
			item.Label,
			item.Fitness,
			item.Outcome,
			item.PathLen,
			item.Genome,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	sel := addRunSelector(fs, "the path of a top agent")
	rank := fs.Int("rank", 1, "rank of the agent to draw")
	color := fs.String("color", "auto", "ANSI colors: auto|always|never")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("show"); err != nil {
		return err
	}
	useColor, err := colorEnabled(*color, stdout)
	if err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	item, err := client.Show(ctx, pathevo.ShowRequest{RunID: *sel.runID, Latest: *sel.latest, Rank: *rank})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run_id=%s layout=%s rank=%d label=%s fitness=%.6f outcome=%s path_len=%d\n",
		item.RunID,
		item.Layout,
		item.Agent.Rank,
		item.Agent.Label,
		item.Agent.Fitness,
		item.Agent.Outcome,
		item.Agent.PathLen,
	)
	fmt.Fprint(stdout, colorize(item.Rendered, useColor))
	return nil
}

func runLayouts(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("layouts", flag.ContinueOnError)
	draw := fs.Bool("draw", false, "print each layout")
	jsonOut := fs.Bool("json", false, "emit layouts as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := pathevo.New(pathevo.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	layouts, err := client.Layouts()
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(layouts)
	}
	for _, l := range layouts {
		minMoves := "unreachable"
		if l.Reachable {
			minMoves = strconv.Itoa(l.MinMoves)
		}
		fmt.Fprintf(stdout, "layout=%s size=%dx%d start=%s finish=%s min_moves=%s\n", l.Name, l.Width, l.Height, l.Start, l.Finish, minMoves)
		if *draw {
			fmt.Fprint(stdout, l.Text)
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sel := addRunSelector(fs, "artifacts")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("export"); err != nil {
		return err
	}

	client, err := pathevo.New(pathevo.Options{StoreKind: "memory", BenchmarksDir: benchmarksDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, pathevo.ExportRequest{RunID: *sel.runID, Latest: *sel.latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func writeJSON(value any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: pathevoctl <run|runs|lineage|fitness|diagnostics|top|show|layouts|export> [flags]", msg)
}
