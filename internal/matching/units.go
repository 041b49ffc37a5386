package matching

import "strings"

var massUnits = map[string]float64{
	"kg":         1,
	"kilogram":   1,
	"g":          0.001,
	"gram":       0.001,
	"mg":         0.000001,
	"milligram":  0.000001,
	"tonne":      1000,
	"ton":        1000,
	"metric ton": 1000,
}

var volumeUnits = map[string]float64{
	"l":          1,
	"litre":      1,
	"liter":      1,
	"ml":         0.001,
	"milliliter": 0.001,
	"millilitre": 0.001,
}

func canonicalUnit(unit string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s")
}

// unitsComparable reports whether two quantity units can be meaningfully
// compared: identical units, or both within the mass or volume family.
func unitsComparable(unit1, unit2 string) bool {
	if unit1 == "" || unit2 == "" {
		return false
	}
	u1, u2 := canonicalUnit(unit1), canonicalUnit(unit2)
	if u1 == u2 {
		return true
	}
	if _, ok1 := massUnits[u1]; ok1 {
		_, ok2 := massUnits[u2]
		return ok2
	}
	if _, ok1 := volumeUnits[u1]; ok1 {
		_, ok2 := volumeUnits[u2]
		return ok2
	}
	return false
}

// normalizeQuantity converts a quantity to its family base unit (kg for
// mass, l for volume). Unknown units pass through unchanged.
func normalizeQuantity(qty float64, unit string) float64 {
	u := canonicalUnit(unit)
	if factor, ok := massUnits[u]; ok {
		return qty * factor
	}
	if factor, ok := volumeUnits[u]; ok {
		return qty * factor
	}
	return qty
}
