// Package matching computes composite match scores between supply and
// demand listings. Everything here is pure: identical inputs always give
// identical outputs, which the search cache relies on.
package matching

import "strings"

// Component weights. They must sum to 1.0 (checked by the test suite).
const (
	WeightSimilarity = 0.40
	WeightPrice      = 0.25
	WeightDistance   = 0.20
	WeightQuantity   = 0.15
)

// Distance.
const (
	// DistanceDecayFactor controls how fast the distance score falls off
	// towards the radius boundary: score = exp(-factor * d/radius).
	DistanceDecayFactor = 2.0
)

// Similarity.
const (
	fuzzyTokenThreshold  = 0.7
	containedTokenScore  = 0.85
	containedStringFloor = 0.7

	// A category match lifts similarity to at least the floor, then adds
	// the boost on top, capped at 1.
	CategorySimilarityFloor = 0.65
	CategoryBoost           = 0.15
)

// Price bands, expressed as candidate-price / budget ratios.
const (
	PriceUnderBudgetRatio  = 0.80
	PriceSlightlyOverRatio = 1.15
	PriceOverBudgetRatio   = 1.50
	PriceVeryCheapRatio    = 0.50

	PriceScoreBudgetUnknown   = 0.8
	PriceScoreNegotiable      = 0.7
	PriceScoreVeryCheap       = 0.95
	PriceScoreSlightlyOverMin = 0.6
	PriceScoreOverBudgetMin   = 0.3
	PriceScoreExpensive       = 0.15
)

// Quantity fulfillment bands.
const (
	QuantityFullRatio       = 1.0
	QuantityNearFullRatio   = 0.8
	QuantityPartialRatio    = 0.5
	QuantityLowPartialRatio = 0.2

	QuantityScoreFull       = 1.0
	QuantityScoreNearFull   = 0.9
	QuantityScorePartial    = 0.75
	QuantityScoreLowPartial = 0.5
	QuantityScoreVeryLow    = 0.3

	// Neutral score when units cannot be compared: compatibility is
	// unknown, so the component neither rewards nor punishes.
	QuantityScoreNeutral = 0.5
)

// Price labels.
const (
	PriceLabelBudgetUnknown  = "budget_unknown"
	PriceLabelNegotiable     = "price_negotiable"
	PriceLabelVeryAffordable = "very_affordable"
	PriceLabelUnderBudget    = "under_budget"
	PriceLabelWithinBudget   = "within_budget"
	PriceLabelSlightlyOver   = "slightly_over"
	PriceLabelOverBudget     = "over_budget"
	PriceLabelExpensive      = "expensive"
)

// Quantity labels.
const (
	QuantityLabelUnknown      = "unknown"
	QuantityLabelIncompatible = "incompatible_units"
	QuantityLabelFull         = "full_fulfillment"
	QuantityLabelNearFull     = "near_full"
	QuantityLabelPartial      = "partial"
	QuantityLabelLowPartial   = "low_partial"
	QuantityLabelVeryLow      = "very_low"
)

// Listing carries the scoring-relevant slice of a listing and its
// organisation's position. Price holds the per-unit price on the supply
// side and the max budget on the demand side.
type Listing struct {
	ItemName        string
	ItemDescription string
	CategoryName    string
	CategoryID      uint
	Price           float64
	Quantity        float64
	QuantityUnit    string
	Latitude        *float64
	Longitude       *float64
}

// Pair is one (source, candidate) scoring job. SourceIsSupply tells the
// scorer which side carries the price and which the budget.
type Pair struct {
	Source         Listing
	Candidate      Listing
	SourceIsSupply bool
	RadiusKm       float64
}

// Breakdown is the full scoring result for one pair.
type Breakdown struct {
	TotalScore      float64  `json:"total_score"`
	Similarity      float64  `json:"similarity"`
	Price           float64  `json:"price"`
	Distance        float64  `json:"distance"`
	Quantity        float64  `json:"quantity"`
	PriceLabel      string   `json:"price_label"`
	QuantityLabel   string   `json:"quantity_label"`
	FulfillmentPct  *float64 `json:"fulfillment_pct"`
	CategoryMatched bool     `json:"category_matched"`
	DistanceKm      *float64 `json:"distance_km"`
}

// Score computes the breakdown for one pair. The second return value is
// false when the candidate lies beyond the radius and must be excluded
// from results entirely; the boundary itself is inclusive.
func Score(p Pair) (Breakdown, bool) {
	var b Breakdown

	// Distance: a hard filter past the radius, a decaying score inside it.
	// Unknown coordinates degrade to score 0 without excluding.
	if p.Source.Latitude != nil && p.Source.Longitude != nil &&
		p.Candidate.Latitude != nil && p.Candidate.Longitude != nil {
		d := HaversineKm(*p.Source.Latitude, *p.Source.Longitude,
			*p.Candidate.Latitude, *p.Candidate.Longitude)
		if d > p.RadiusKm {
			return Breakdown{}, false
		}
		b.DistanceKm = &d
		b.Distance = distanceScore(d, p.RadiusKm)
	}

	b.CategoryMatched = categoryMatched(p.Source, p.Candidate)
	b.Similarity = similarityScore(p.Source, p.Candidate, b.CategoryMatched)
	b.Price, b.PriceLabel = priceScore(p)
	b.Quantity, b.QuantityLabel, b.FulfillmentPct = quantityScore(p.Source, p.Candidate)

	b.TotalScore = clamp01(
		b.Similarity*WeightSimilarity +
			b.Price*WeightPrice +
			b.Distance*WeightDistance +
			b.Quantity*WeightQuantity)
	return b, true
}

func categoryMatched(source, candidate Listing) bool {
	if source.CategoryID != 0 && source.CategoryID == candidate.CategoryID {
		return true
	}
	a := strings.ToLower(strings.TrimSpace(source.CategoryName))
	c := strings.ToLower(strings.TrimSpace(candidate.CategoryName))
	if a == "" || c == "" {
		return false
	}
	return a == c || strings.Contains(a, c) || strings.Contains(c, a)
}

// richText concatenates the fields that describe an item for similarity
// comparison.
func richText(l Listing) string {
	parts := []string{l.ItemName}
	if l.ItemDescription != "" {
		parts = append(parts, l.ItemDescription)
	}
	if l.CategoryName != "" {
		parts = append(parts, l.CategoryName)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func similarityScore(source, candidate Listing, catMatch bool) float64 {
	sim := StringSimilarity(richText(source), richText(candidate))
	if catMatch {
		if sim < CategorySimilarityFloor {
			sim = CategorySimilarityFloor
		}
		sim += CategoryBoost
	}
	return clamp01(sim)
}

// priceScore compares the supply side's price against the demand side's
// budget. Direction of the search does not change which is which.
func priceScore(p Pair) (float64, string) {
	supplyPrice, budget := p.Candidate.Price, p.Source.Price
	if p.SourceIsSupply {
		supplyPrice, budget = p.Source.Price, p.Candidate.Price
	}

	if budget <= 0 {
		return PriceScoreBudgetUnknown, PriceLabelBudgetUnknown
	}
	if supplyPrice <= 0 {
		return PriceScoreNegotiable, PriceLabelNegotiable
	}

	ratio := supplyPrice / budget
	switch {
	case ratio <= PriceVeryCheapRatio:
		// Suspiciously cheap scores slightly below full credit.
		return PriceScoreVeryCheap, PriceLabelVeryAffordable
	case ratio <= PriceUnderBudgetRatio:
		return 1.0, PriceLabelUnderBudget
	case ratio <= 1.0:
		return 1.0, PriceLabelWithinBudget
	case ratio <= PriceSlightlyOverRatio:
		// Linear decay 1.0 → 0.6 across the slightly-over band.
		frac := (ratio - 1.0) / (PriceSlightlyOverRatio - 1.0)
		return 1.0 - (1.0-PriceScoreSlightlyOverMin)*frac, PriceLabelSlightlyOver
	case ratio <= PriceOverBudgetRatio:
		// Linear decay 0.6 → 0.3 across the over-budget band.
		frac := (ratio - PriceSlightlyOverRatio) / (PriceOverBudgetRatio - PriceSlightlyOverRatio)
		return PriceScoreSlightlyOverMin - (PriceScoreSlightlyOverMin-PriceScoreOverBudgetMin)*frac, PriceLabelOverBudget
	default:
		return PriceScoreExpensive, PriceLabelExpensive
	}
}

// quantityScore rates how much of the source's quantity the candidate
// covers. Units must be comparable; otherwise the score stays neutral.
func quantityScore(source, candidate Listing) (float64, string, *float64) {
	if source.Quantity <= 0 || candidate.Quantity <= 0 {
		return QuantityScoreNeutral, QuantityLabelUnknown, nil
	}
	if !unitsComparable(source.QuantityUnit, candidate.QuantityUnit) {
		return QuantityScoreNeutral, QuantityLabelIncompatible, nil
	}

	sourceNorm := normalizeQuantity(source.Quantity, source.QuantityUnit)
	candNorm := normalizeQuantity(candidate.Quantity, candidate.QuantityUnit)
	if sourceNorm <= 0 {
		return QuantityScoreNeutral, QuantityLabelUnknown, nil
	}

	ratio := candNorm / sourceNorm
	pct := ratio * 100
	if pct > 100 {
		pct = 100
	}

	switch {
	case ratio >= QuantityFullRatio:
		return QuantityScoreFull, QuantityLabelFull, &pct
	case ratio >= QuantityNearFullRatio:
		return QuantityScoreNearFull, QuantityLabelNearFull, &pct
	case ratio >= QuantityPartialRatio:
		return QuantityScorePartial, QuantityLabelPartial, &pct
	case ratio >= QuantityLowPartialRatio:
		return QuantityScoreLowPartial, QuantityLabelLowPartial, &pct
	default:
		return QuantityScoreVeryLow, QuantityLabelVeryLow, &pct
	}
}
