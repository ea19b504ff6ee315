package pricing

import (
	"context"
	"math"

	"xpress/internal/types"
)

// Estimator is the external pricing collaborator.
type Estimator interface {
	Estimate(ctx context.Context, distanceKm float64, vehicleClass string, surge float64) (Estimate, error)
}

// TableEstimator prices from a static per-class rate table.
type TableEstimator struct {
	rates map[string]Rate
}

func NewTableEstimator(rates []Rate) *TableEstimator {
	m := make(map[string]Rate, len(rates))
	for _, r := range rates {
		m[r.VehicleClass] = r
	}
	return &TableEstimator{rates: m}
}

// DefaultRates is the reference fare schedule.
func DefaultRates() []Rate {
	return []Rate{
		{VehicleClass: "standard", BaseFare: 4500, PerKm: 1200, Currency: "PHP"},
		{VehicleClass: "comfort", BaseFare: 6000, PerKm: 1500, Currency: "PHP"},
		{VehicleClass: "xl", BaseFare: 7500, PerKm: 1800, Currency: "PHP"},
		{VehicleClass: "premium", BaseFare: 9000, PerKm: 2400, Currency: "PHP"},
	}
}

func (e *TableEstimator) Estimate(_ context.Context, distanceKm float64, vehicleClass string, surge float64) (Estimate, error) {
	rate, ok := e.rates[vehicleClass]
	if !ok {
		rate = e.rates["standard"]
	}
	if surge < 1.0 {
		surge = 1.0
	}
	base := rate.BaseFare + int64(math.Round(distanceKm*float64(rate.PerKm)))
	total := int64(math.Round(float64(base) * surge))
	return Estimate{
		BaseFare:        types.Money{Amount: base, Currency: rate.Currency},
		SurgeMultiplier: surge,
		Total:           types.Money{Amount: total, Currency: rate.Currency},
	}, nil
}
