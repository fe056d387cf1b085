// Package fraud scores credential batches for review. Scores are advisory:
// they are stored with the commitment and never block it.
package fraud

import (
	"strings"

	"nexuscred/internal/issuance/models"
)

// Heuristic contributes a penalty for one suspicion signal. Implementations
// must be pure functions of the batch and return a non-negative penalty.
type Heuristic interface {
	Name() string
	Penalty(batch models.CredentialBatch) float64
}

// Config holds the thresholds of the built-in heuristics.
type Config struct {
	LargeBatchThreshold int
	LargeBatchPenalty   float64
	UniformMinCount     int
	UniformPenalty      float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		LargeBatchThreshold: 500,
		LargeBatchPenalty:   0.05,
		UniformMinCount:     3,
		UniformPenalty:      0.3,
	}
}

// Assessment is a score plus the heuristics that fired.
type Assessment struct {
	Score     float64  `json:"score"`
	Triggered []string `json:"triggered,omitempty"`
}

// Scorer sums heuristic penalties into a score clamped to [0,1].
type Scorer struct {
	heuristics []Heuristic
}

// New builds a scorer with the built-in heuristics followed by extra.
func New(cfg Config, extra ...Heuristic) *Scorer {
	hs := []Heuristic{
		LargeBatch{Threshold: cfg.LargeBatchThreshold, Amount: cfg.LargeBatchPenalty},
		UniformGPA{MinCount: cfg.UniformMinCount, Amount: cfg.UniformPenalty},
	}
	return &Scorer{heuristics: append(hs, extra...)}
}

// Score returns the batch's risk score in [0,1].
func (s *Scorer) Score(batch models.CredentialBatch) float64 {
	return s.Assess(batch).Score
}

// Assess scores the batch and reports which heuristics contributed.
func (s *Scorer) Assess(batch models.CredentialBatch) Assessment {
	var a Assessment
	for _, h := range s.heuristics {
		p := h.Penalty(batch)
		if p <= 0 {
			continue
		}
		a.Score += p
		a.Triggered = append(a.Triggered, h.Name())
	}
	a.Score = clamp(a.Score)
	return a
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// LargeBatch fires when the batch has more than Threshold credentials.
type LargeBatch struct {
	Threshold int
	Amount    float64
}

func (LargeBatch) Name() string { return "large_batch" }

func (h LargeBatch) Penalty(batch models.CredentialBatch) float64 {
	if len(batch.Credentials) > h.Threshold {
		return h.Amount
	}
	return 0
}

// UniformGPA fires when more than MinCount credentials declare a "gpa" field
// (case-insensitive) and every declared value is textually identical. A
// credential declaring gpa more than once counts once.
type UniformGPA struct {
	MinCount int
	Amount   float64
}

func (UniformGPA) Name() string { return "uniform_gpa" }

func (h UniformGPA) Penalty(batch models.CredentialBatch) float64 {
	var (
		first    string
		seen     bool
		declared int
	)
	for _, c := range batch.Credentials {
		declares := false
		for _, f := range c.Fields {
			if !strings.EqualFold(f.Name, "gpa") {
				continue
			}
			if !seen {
				first, seen = f.Value, true
			} else if f.Value != first {
				return 0
			}
			declares = true
		}
		if declares {
			declared++
		}
	}
	if declared > h.MinCount {
		return h.Amount
	}
	return 0
}
