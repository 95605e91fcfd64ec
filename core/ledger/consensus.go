package ledger

import "sort"

// PriceProposal is one peer coordinator's contribution to price consensus,
// per §4.F.
type PriceProposal struct {
	PeerID string
	Value  float64
	Weight float64
}

// WeightedMedian computes the value whose cumulative ascending weight first
// reaches half of the total weight. With equal weights and two values it
// returns the lower, per §8's boundary behaviour.
func WeightedMedian(proposals []PriceProposal) float64 {
	if len(proposals) == 0 {
		return 0
	}
	sorted := make([]PriceProposal, len(proposals))
	copy(sorted, proposals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var total float64
	for _, p := range sorted {
		total += p.Weight
	}
	if total == 0 {
		return sorted[len(sorted)/2].Value
	}

	half := total / 2
	var cumulative float64
	for _, p := range sorted {
		cumulative += p.Weight
		if cumulative >= half {
			return p.Value
		}
	}
	return sorted[len(sorted)-1].Value
}
