package catastro

import (
	"math"
	"strings"
)

// usePrice maps a substring of the registry's uso field to a base price per
// square meter (simplified Spanish averages). Order matters: first match
// wins.
var usePrices = []struct {
	key   string
	price float64
}{
	{"residencial", 1200},
	{"comercial", 1500},
	{"industrial", 600},
	{"almacen", 400},
	{"oficina", 1400},
	{"garaje", 800},
}

const (
	defaultPricePerM2 = 1200 // residential
	defaultAgeYears   = 20
)

// EstimateReferenceValue computes a heuristic reference value for a registry
// record: built surface times a per-use base price, depreciated by age down
// to a floor of 50%. Returns nil when the registry reported no surface.
func EstimateReferenceValue(rec *PropertyRecord, currentYear int) *float64 {
	if rec == nil || rec.Superficie == nil {
		return nil
	}

	uso := "residencial"
	if rec.Uso != nil {
		uso = strings.ToLower(*rec.Uso)
	}
	basePrice := float64(defaultPricePerM2)
	for _, p := range usePrices {
		if strings.Contains(uso, p.key) {
			basePrice = p.price
			break
		}
	}

	age := defaultAgeYears
	if rec.AnioConstruccion != nil {
		age = currentYear - *rec.AnioConstruccion
	}
	depreciation := math.Max(0.5, 1-float64(age)*0.005)

	v := math.Round(*rec.Superficie * basePrice * depreciation)
	return &v
}
