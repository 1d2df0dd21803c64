package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"pathevo/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessSeriesFile  = "fitness_history.csv"
	diagnosticsFile    = "generation_diagnostics.json"
	topAgentsFile      = "top_agents.json"
	lineageFile        = "lineage.json"
	summaryFile        = "summary.json"
	fitnessPlotFile    = "fitness.png"
	timestampLayout    = "%Y-%m-%dT%H:%M:%SZ"
	DefaultArtifactDir = "benchmarks"
)

// RunConfig is the resolved configuration of one run as written to
// config.json.
type RunConfig struct {
	RunID                string  `json:"run_id"`
	ContinuePopulationID string  `json:"continue_population_id,omitempty"`
	InitialGeneration    int     `json:"initial_generation"`
	Layout               string  `json:"layout"`
	Grid                 string  `json:"grid"`
	PopulationSize       int     `json:"population_size"`
	GenomeLength         int     `json:"genome_length"`
	MinLen               int     `json:"min_len"`
	IncompleteWeight     float64 `json:"incomplete_weight"`
	MutationThreshold    float64 `json:"mutation_threshold"`
	Strategy             string  `json:"strategy"`
	Orphans              string  `json:"orphans"`
	Policy               string  `json:"policy"`
	TicksPerGeneration   int     `json:"ticks_per_generation"`
	BurstSize            int     `json:"burst_size"`
	MaxTicks             int     `json:"max_ticks"`
	StopWhenSolved       bool    `json:"stop_when_solved"`
	Seed                 int64   `json:"seed"`
	Workers              int     `json:"workers"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	TopAgents             []model.TopAgentRecord        `json:"top_agents"`
	Lineage               []model.LineageRecord         `json:"lineage"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Layout           string  `json:"layout"`
	PopulationSize   int     `json:"population_size"`
	Policy           string  `json:"policy"`
	Seed             int64   `json:"seed"`
	Ticks            int     `json:"ticks"`
	FinalGeneration  int     `json:"final_generation"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	Solved           bool    `json:"solved"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// Timestamp formats t as the UTC timestamp used in run records and the index.
func Timestamp(t time.Time) string {
	return strftime.Format(timestampLayout, t.UTC())
}

// ParseTimestamp reverses Timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return strftime.Parse(timestampLayout, s)
}

// WriteRunArtifacts writes every artifact of a run into baseDir/<run-id> and
// returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration, artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), nonNil(artifacts.GenerationDiagnostics)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topAgentsFile), nonNil(artifacts.TopAgents)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), nonNil(artifacts.Lineage)); err != nil {
		return "", err
	}
	summary := Summarize(artifacts.BestByGeneration)
	summary.RunID = artifacts.Config.RunID
	summary.Layout = artifacts.Config.Layout
	summary.FinalBest = artifacts.FinalBestFitness
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	if err := WriteFitnessPlot(filepath.Join(runDir, fitnessPlotFile), artifacts.Config.RunID, artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadTopAgents(baseDir, runID string) ([]model.TopAgentRecord, bool, error) {
	var top []model.TopAgentRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topAgentsFile), &top)
	return top, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

// WriteFitnessSeries writes one CSV row per evaluation window. Mean fitness
// and tick columns are filled when diagnostics line up with the series.
func WriteFitnessSeries(runDir string, bestByGeneration []float64, diagnostics []model.GenerationDiagnostics) error {
	file, err := os.Create(filepath.Join(runDir, fitnessSeriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"window", "generation", "tick", "best_fitness", "mean_fitness"}); err != nil {
		return err
	}
	aligned := len(diagnostics) == len(bestByGeneration)
	for i, best := range bestByGeneration {
		generation, tick, mean := "", "", ""
		if aligned {
			generation = strconv.Itoa(diagnostics[i].Generation)
			tick = strconv.Itoa(diagnostics[i].Tick)
			mean = strconv.FormatFloat(diagnostics[i].MeanFitness, 'f', -1, 64)
		}
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			generation,
			tick,
			strconv.FormatFloat(best, 'f', -1, 64),
			mean,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries returns the best fitness column of fitness_history.csv.
func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, fitnessSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	column := -1
	for i, name := range header {
		if name == "best_fitness" {
			column = i
		}
	}
	if column < 0 {
		return nil, false, fmt.Errorf("fitness series header has no best_fitness column")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ExportRunArtifacts copies the artifacts of one run into outDir/<run-id>.
// Optional files missing from the run are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, fitnessSeriesFile, diagnosticsFile, topAgentsFile, lineageFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{summaryFile, fitnessPlotFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
