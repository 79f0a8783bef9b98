package risk

import (
	"math"
	"time"
)

// recencyWeight discounts a cluster's case load by how long ago it was
// observed: weight halves every halfLife. Ages at or below zero count full.
func recencyWeight(age, halfLife time.Duration) float64 {
	if halfLife <= 0 || age <= 0 {
		return 1
	}
	return math.Pow(0.5, age.Seconds()/halfLife.Seconds())
}
