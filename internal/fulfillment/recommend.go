package fulfillment

import "sort"

// Recommendation reason labels, one per heuristic source.
const (
	ReasonSameCategory = "same_category"
	ReasonCoPurchase   = "frequently_bought_together"
	ReasonAffinity     = "matches_your_interests"
	ReasonTrending     = "trending_now"
)

// ScoreSignal is one heuristic source's contribution for one candidate.
type ScoreSignal struct {
	ProductID string
	Score     float64
	Reason    string
}

// SameCategorySignal scores a candidate sharing the anchor product's category.
func SameCategorySignal(productID string) ScoreSignal {
	return ScoreSignal{ProductID: productID, Score: 3.0, Reason: ReasonSameCategory}
}

// CoPurchaseSignal scores a candidate by how many orders contained it
// together with the anchor product.
func CoPurchaseSignal(productID string, togetherCount int) ScoreSignal {
	return ScoreSignal{ProductID: productID, Score: 4.0 + 0.5*float64(togetherCount), Reason: ReasonCoPurchase}
}

// AffinitySignal scores a candidate in a category/brand the customer has
// bought from before. Only emitted when a customer is known.
func AffinitySignal(productID string, pastPurchases int) ScoreSignal {
	return ScoreSignal{ProductID: productID, Score: 2.0 + 0.3*float64(pastPurchases), Reason: ReasonAffinity}
}

// TrendingSignal scores a candidate by orders containing it over the
// trailing 30 days.
func TrendingSignal(productID string, recentOrders int) ScoreSignal {
	return ScoreSignal{ProductID: productID, Score: 1.0 + 0.1*float64(recentOrders), Reason: ReasonTrending}
}

// Recommendation is one ranked entry of the final list.
type Recommendation struct {
	ProductID string   `json:"product_id"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`
}

// CombineSignals sums all signals per product, adds the average-rating bonus
// (rating × 0.5), then sorts descending by score and truncates to limit.
// Ties break on product id so the ranking is deterministic.
func CombineSignals(signals []ScoreSignal, ratings map[string]float64, limit int) []Recommendation {
	totals := make(map[string]*Recommendation)
	order := make([]string, 0, len(signals))

	for _, sig := range signals {
		rec, ok := totals[sig.ProductID]
		if !ok {
			rec = &Recommendation{ProductID: sig.ProductID}
			totals[sig.ProductID] = rec
			order = append(order, sig.ProductID)
		}
		rec.Score += sig.Score
		rec.Reasons = append(rec.Reasons, sig.Reason)
	}

	ranked := make([]Recommendation, 0, len(order))
	for _, id := range order {
		rec := *totals[id]
		rec.Score += ratings[id] * 0.5
		rec.Score = round2(rec.Score)
		ranked = append(ranked, rec)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
