package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses the best-fitness series of a run.
type Summary struct {
	RunID       string  `json:"run_id"`
	Layout      string  `json:"layout"`
	Windows     int     `json:"windows"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
	// Regressions counts windows whose best fell below the previous window.
	Regressions int `json:"regressions"`
}

func Summarize(bestByGeneration []float64) Summary {
	s := Summary{Windows: len(bestByGeneration)}
	if len(bestByGeneration) == 0 {
		return s
	}
	s.InitialBest = bestByGeneration[0]
	s.FinalBest = bestByGeneration[len(bestByGeneration)-1]
	s.BestMax = floats.Max(bestByGeneration)
	s.BestMin = floats.Min(bestByGeneration)
	s.Improvement = s.FinalBest - s.InitialBest
	if len(bestByGeneration) > 1 {
		s.BestMean, s.BestStd = stat.MeanStdDev(bestByGeneration, nil)
	} else {
		s.BestMean = bestByGeneration[0]
	}
	for i := 1; i < len(bestByGeneration); i++ {
		if bestByGeneration[i] < bestByGeneration[i-1] {
			s.Regressions++
		}
	}
	return s
}
