package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the configuration and outcome of one evolution run.
type RunRecord struct {
	VersionedRecord
	ID                 string  `json:"id"`
	CreatedAtUTC       string  `json:"created_at_utc"`
	Layout             string  `json:"layout"`
	Grid               string  `json:"grid"`
	Seed               int64   `json:"seed"`
	PopulationSize     int     `json:"population_size"`
	GenomeLength       int     `json:"genome_length"`
	MinLen             int     `json:"min_len"`
	IncompleteWeight   float64 `json:"incomplete_weight"`
	MutationThreshold  float64 `json:"mutation_threshold"`
	Strategy           string  `json:"strategy"`
	Orphans            string  `json:"orphans"`
	Policy             string  `json:"policy"`
	TicksPerGeneration int     `json:"ticks_per_generation"`
	BurstSize          int     `json:"burst_size"`
	Ticks              int     `json:"ticks"`
	BreedingSteps      int     `json:"breeding_steps"`
	FinalGeneration    int     `json:"final_generation"`
	FinalBestFitness   float64 `json:"final_best_fitness"`
	Solved             bool    `json:"solved"`
}

// GenerationDiagnostics summarizes one evaluation window.
type GenerationDiagnostics struct {
	Generation       int     `json:"generation"`
	Tick             int     `json:"tick"`
	PopulationSize   int     `json:"population_size"`
	BestFitness      float64 `json:"best_fitness"`
	MeanFitness      float64 `json:"mean_fitness"`
	MinFitness       float64 `json:"min_fitness"`
	StdDevFitness    float64 `json:"stddev_fitness"`
	Finishers        int     `json:"finishers"`
	WallHits         int     `json:"wall_hits"`
	Exhausted        int     `json:"exhausted"`
	AnyReachedFinish bool    `json:"any_reached_finish"`
	BreedingSteps    int     `json:"breeding_steps"`
}

// AgentRecord is an agent with the result of its last assessment.
type AgentRecord struct {
	Label   string  `json:"label"`
	Genome  string  `json:"genome"`
	Fitness float64 `json:"fitness"`
	Outcome string  `json:"outcome"`
	PathLen int     `json:"path_len"`
	Path    string  `json:"path,omitempty"`
}

type TopAgentRecord struct {
	Rank int `json:"rank"`
	AgentRecord
}

// PopulationSnapshot is a stored generation that a later run can continue from.
type PopulationSnapshot struct {
	VersionedRecord
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Layout     string        `json:"layout"`
	Generation int           `json:"generation"`
	Agents     []AgentRecord `json:"agents"`
}

// LineageRecord tracks how one agent of a generation was derived.
type LineageRecord struct {
	Generation    int     `json:"generation"`
	Label         string  `json:"label"`
	Operation     string  `json:"operation"`
	Donor         string  `json:"donor,omitempty"`
	ParentFitness float64 `json:"parent_fitness"`
}
