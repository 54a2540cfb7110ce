package attempt

import "math"

// scorePercent turns a correct count into a percentage of the responses
// actually recorded, rounded to two decimals. An attempt that answered
// nothing scores zero rather than dividing by zero.
func scorePercent(correct, answered int) float64 {
	if answered <= 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(answered)*10000) / 100
}
