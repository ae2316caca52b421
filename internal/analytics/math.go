package analytics

import "math"

// ratio divides num by den scaled by scale, returning nil when the
// denominator is zero. Callers must render nil as "not applicable", never
// as zero.
func ratio(num, den, scale float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den * scale
	return &v
}

// ctr computes a click-through-rate percentage from summed counts.
func ctr(clicks, impressions int64) *float64 {
	return ratio(float64(clicks), float64(impressions), 100)
}

// slope fits a least-squares line over equally spaced values and returns
// its per-step slope.
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// coefficientOfVariation returns stddev/mean, or nil when fewer than two
// values or a zero mean make it undefined.
func coefficientOfVariation(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return nil
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	cv := math.Sqrt(ss/float64(len(values))) / mean
	return &cv
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
