package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pathevo/pkg/pathevo"
)

// loadRunRequestFromConfig reads a run config file. Unknown keys are
// ignored and a grid_file path is resolved against the config directory.
func loadRunRequestFromConfig(path string) (pathevo.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pathevo.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return pathevo.RunRequest{}, err
	}

	var req pathevo.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["continue_population_id"]); ok {
		req.ContinuePopulationID = v
	}
	if v, ok := asString(raw["layout"]); ok {
		req.Layout = v
	}
	if v, ok := asString(raw["grid"]); ok {
		req.Grid = v
	}
	if v, ok := asString(raw["grid_file"]); ok && v != "" {
		if !filepath.IsAbs(v) {
			v = filepath.Join(filepath.Dir(path), v)
		}
		text, err := readGridFile(v)
		if err != nil {
			return pathevo.RunRequest{}, err
		}
		req.Grid = text
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["genome_length"]); ok {
		req.GenomeLength = v
	}
	if v, ok := asInt(raw["min_len"]); ok {
		req.MinLen = v
	}
	if v, ok := asFloat64(raw["incomplete_weight"]); ok {
		req.IncompleteWeight = pathevo.Float64(v)
	}
	if v, ok := asFloat64(raw["mutation_threshold"]); ok {
		req.MutationThreshold = pathevo.Float64(v)
	}
	if v, ok := asString(raw["strategy"]); ok {
		req.Strategy = v
	}
	if v, ok := asString(raw["orphans"]); ok {
		req.Orphans = v
	}
	if v, ok := asString(raw["policy"]); ok {
		req.Policy = v
	} else if v, ok := asString(raw["replacement_policy"]); ok {
		req.Policy = v
	}
	if v, ok := asInt(raw["ticks_per_generation"]); ok {
		req.TicksPerGeneration = v
	}
	if v, ok := asInt(raw["burst_size"]); ok {
		req.BurstSize = v
	}
	if v, ok := asInt(raw["max_ticks"]); ok {
		req.MaxTicks = v
	}
	if v, ok := asBool(raw["stop_when_solved"]); ok {
		req.StopWhenSolved = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	return req, nil
}

func readGridFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read grid file: %w", err)
	}
	return string(data), nil
}

// overrideFromFlags copies the explicitly set flags over req.
func overrideFromFlags(req *pathevo.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "continue-pop-id":
			req.ContinuePopulationID = v.(string)
		case "layout":
			req.Layout = v.(string)
		case "grid-file":
			path := v.(string)
			if path == "" {
				continue
			}
			text, err := readGridFile(path)
			if err != nil {
				return err
			}
			req.Grid = text
		case "pop":
			req.Population = v.(int)
		case "genome-len":
			req.GenomeLength = v.(int)
		case "min-len":
			req.MinLen = v.(int)
		case "incomplete-weight":
			req.IncompleteWeight = pathevo.Float64(v.(float64))
		case "mutation-threshold":
			req.MutationThreshold = pathevo.Float64(v.(float64))
		case "strategy":
			req.Strategy = v.(string)
		case "orphans":
			req.Orphans = v.(string)
		case "policy":
			req.Policy = v.(string)
		case "ticks-per-gen":
			req.TicksPerGeneration = v.(int)
		case "burst":
			req.BurstSize = v.(int)
		case "max-ticks":
			req.MaxTicks = v.(int)
		case "stop-when-solved":
			req.StopWhenSolved = v.(bool)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		default:
			return fmt.Errorf("unsupported run flag: %s", name)
		}
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
