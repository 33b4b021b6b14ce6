package alex

// Model is a trained linear mapping from an i64 key to a predicted
// slot index, fit by ordinary least squares over (key, slot) pairs.
// Arithmetic is done entirely in f64 so a wide key range never
// overflows before the final clamp back to an int slot index.
type Model struct {
	Slope     float64
	Intercept float64
}

// Predict returns the slot a key maps to, clamped to [0, capacity-1].
func (m Model) Predict(key int64, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	slot := int(m.Slope*float64(key) + m.Intercept + 0.5) // round-half-up
	if slot < 0 {
		return 0
	}
	if slot >= capacity {
		return capacity - 1
	}
	return slot
}

// TrainOLS fits a Model over keys, where keys[i] is understood to map
// to slot i (i.e. its position in the sorted sequence). A single key
// produces a degenerate model (zero slope) that always predicts slot 0.
func TrainOLS(keys []int64) Model {
	n := len(keys)
	if n == 0 {
		return Model{}
	}
	if n == 1 {
		return Model{Slope: 0, Intercept: 0}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, k := range keys {
		x := float64(k)
		y := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		// All keys identical: cannot separate them by slope, fall
		// back to a flat model that always predicts the midpoint.
		return Model{Slope: 0, Intercept: nf / 2}
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf
	return Model{Slope: slope, Intercept: intercept}
}

// MaxAbsError returns the largest absolute difference between the
// model's predicted slot and each key's true slot (its index in the
// sorted keys slice), unclamped -- callers clamp separately when
// turning this into a search radius bounded by node capacity.
func MaxAbsError(model Model, keys []int64) int {
	maxErr := 0
	for i, k := range keys {
		predicted := int(model.Slope*float64(k) + model.Intercept + 0.5)
		diff := predicted - i
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			maxErr = diff
		}
	}
	return maxErr
}
