// Package ranker scores matches with BM25 using index-wide statistics, so a
// document scores the same regardless of which segment holds it.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/address"
)

const (
	k1 = 1.2
	b  = 0.75
)

// ScoredDoc is one ranked match.
type ScoredDoc struct {
	Address address.DocAddress `json:"address"`
	Score   float64            `json:"score"`
}

// RankParams are the index-wide figures BM25 needs.
type RankParams struct {
	TotalDocs uint64
	// AvgFieldLength is indexed by norm slot.
	AvgFieldLength []float64
}

// Scorer computes BM25 term weights for one index state.
type Scorer struct {
	params RankParams
}

func NewScorer(params RankParams) *Scorer {
	return &Scorer{params: params}
}

// TermWeight is the BM25 contribution of one term occurring termFreq times
// in a field of length fieldLen, where docFreq documents of the index
// contain the term.
func (s *Scorer) TermWeight(slot int, docFreq uint64, termFreq, fieldLen uint32) float64 {
	if termFreq == 0 {
		return 0
	}
	var avg float64
	if slot >= 0 && slot < len(s.params.AvgFieldLength) {
		avg = s.params.AvgFieldLength[slot]
	}
	return computeIDF(s.params.TotalDocs, docFreq) * computeTFNorm(float64(termFreq), float64(fieldLen), avg)
}

func computeIDF(totalDocs uint64, docFreq uint64) float64 {
	if docFreq > totalDocs {
		docFreq = totalDocs
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	lengthRatio := 1.0
	if avgDocLength > 0 {
		lengthRatio = docLength / avgDocLength
	}
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
