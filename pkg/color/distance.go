package color

import "math"

// MinProximity is the lowest proximity count the calibration holds for.
const MinProximity = 20

// ClampProximity raises proximity counts below MinProximity to MinProximity.
func ClampProximity(p uint8) uint8 {
	if p < MinProximity {
		return MinProximity
	}
	return p
}

// ProximityToDistance estimates the distance in centimeters from a raw
// proximity count using the empirical power-law fit of the APDS-9960 at 2x
// proximity gain. The result spans roughly 6 to 25 cm.
func ProximityToDistance(p uint8) float64 {
	return 117.55 * math.Pow(float64(ClampProximity(p)), -0.51)
}
