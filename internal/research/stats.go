package research

import (
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/lookout/internal/domain"
)

// ScoreStats summarizes the overall scores across a batch's completed
// securities.
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// BatchScoreStats computes score statistics from a snapshot. Securities
// without an overall score are excluded.
func BatchScoreStats(snap ProgressSnapshot) ScoreStats {
	scores := overallScores(snap)
	if len(scores) == 0 {
		return ScoreStats{}
	}

	stats := ScoreStats{
		Mean:  stat.Mean(scores, nil),
		Min:   scores[0],
		Max:   scores[0],
		Count: len(scores),
	}
	if len(scores) > 1 {
		stats.StdDev = stat.StdDev(scores, nil)
	}
	for _, s := range scores {
		if s < stats.Min {
			stats.Min = s
		}
		if s > stats.Max {
			stats.Max = s
		}
	}
	return stats
}

func meanOverallScore(snap ProgressSnapshot) float64 {
	scores := overallScores(snap)
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

func overallScores(snap ProgressSnapshot) []float64 {
	var scores []float64
	for _, sec := range snap.Securities {
		if sec.Status != domain.JobCompleted || sec.Overall.Score == nil {
			continue
		}
		scores = append(scores, *sec.Overall.Score)
	}
	return scores
}
