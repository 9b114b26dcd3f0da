package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/fulfillment-engine/internal/models"
)

func TestGetDynamicPrice_AppliesKnownFacts(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	reader.products["p1"] = neutralProduct("p1", 50.00, 40)
	reader.sold7d["p1"] = 15
	reader.loyalty["user-1"] = &models.LoyaltyStats{UserID: "user-1", TotalSpent: 600}

	quote, err := svc.GetDynamicPrice(context.Background(), "p1", "user-1")
	require.NoError(t, err)

	// 50 × 1.05 (high demand) × 0.95 (loyal) = 49.875 → 49.88.
	assert.Equal(t, "p1", quote.ProductID)
	assert.Equal(t, 50.00, quote.BasePrice)
	assert.Equal(t, 49.88, quote.DynamicPrice)
	require.Len(t, quote.Factors, 4)
	assert.Equal(t, "high_demand", quote.Factors[1].Label)
	assert.Equal(t, "loyal_customer", quote.Factors[2].Label)
}

func TestGetDynamicPrice_AnonymousUser(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	reader.products["p1"] = neutralProduct("p1", 50.00, 40)
	reader.sold7d["p1"] = 5

	quote, err := svc.GetDynamicPrice(context.Background(), "p1", "")
	require.NoError(t, err)

	assert.Equal(t, 50.00, quote.DynamicPrice)
	assert.Equal(t, "standard_customer", quote.Factors[2].Label)
}

func TestGetDynamicPrice_UnknownProduct(t *testing.T) {
	svc := newTestService(newFakeStore(), steadyReader(), &fakeEvents{})

	_, err := svc.GetDynamicPrice(context.Background(), "ghost", "")

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "product", notFound.Kind)
}

func TestGetDynamicPrice_InactiveProduct(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	product := neutralProduct("p1", 50.00, 40)
	product.IsActive = false
	reader.products["p1"] = product

	_, err := svc.GetDynamicPrice(context.Background(), "p1", "")

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetReorderReport_RanksByUrgency(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	reader.facts = []ProductSalesFact{
		{ProductID: "comfortable", CurrentStock: 200, UnitsSold30d: 30},
		{ProductID: "empty", CurrentStock: 0, UnitsSold30d: 90},
		{ProductID: "running-low", CurrentStock: 8, UnitsSold30d: 60},
	}

	report, err := svc.GetReorderReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report, 3)
	assert.Equal(t, "empty", report[0].ProductID)
	assert.Equal(t, UrgencyCritical, report[0].Urgency)
	assert.Equal(t, "running-low", report[1].ProductID)
	assert.Equal(t, "comfortable", report[2].ProductID)
	assert.Equal(t, UrgencyLow, report[2].Urgency)
}

func TestGetRecommendations_BlendsSources(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	reader.related = []string{"p2", "p3"}
	reader.together = []CoPurchaseFact{{ProductID: "p2", Count: 4}}
	reader.affinities = []AffinityFact{{ProductID: "p4", PastPurchases: 2}}
	reader.trending = []TrendingFact{
		{ProductID: "p1", Count: 50}, // the anchor itself never comes back
		{ProductID: "p3", Count: 10},
	}
	reader.ratings = map[string]float64{"p3": 4.0}

	recs, err := svc.GetRecommendations(context.Background(), "user-1", "p1", 10)
	require.NoError(t, err)

	// p2: 3.0 + (4.0+0.5×4) = 9.0; p3: 3.0 + (1.0+0.1×10) + 4.0×0.5 = 7.0;
	// p4: 2.0 + 0.3×2 = 2.6.
	require.Len(t, recs, 3)
	assert.Equal(t, "p2", recs[0].ProductID)
	assert.Equal(t, 9.0, recs[0].Score)
	assert.Equal(t, "p3", recs[1].ProductID)
	assert.Equal(t, 7.0, recs[1].Score)
	assert.Equal(t, "p4", recs[2].ProductID)

	for _, rec := range recs {
		assert.NotEqual(t, "p1", rec.ProductID)
	}
}

func TestGetRecommendations_AnonymousBrowsing(t *testing.T) {
	reader := steadyReader()
	svc := newTestService(newFakeStore(), reader, &fakeEvents{})

	reader.trending = []TrendingFact{{ProductID: "p9", Count: 20}}

	recs, err := svc.GetRecommendations(context.Background(), "", "", 5)
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, "p9", recs[0].ProductID)
	assert.Equal(t, []string{ReasonTrending}, recs[0].Reasons)
}

func TestGetRecommendations_NoSignals(t *testing.T) {
	svc := newTestService(newFakeStore(), steadyReader(), &fakeEvents{})

	recs, err := svc.GetRecommendations(context.Background(), "", "", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
