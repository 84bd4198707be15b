package sizer

// ConstantSizer always returns the same configured quantity, regardless of
// volatility. Grounded on
// original_source/src/backtester/util/position_sizer/no_position_sizer.py.
type ConstantSizer struct {
	Quantity float64
}

// NewConstantSizer creates a sizer returning quantity for every ticker.
func NewConstantSizer(quantity float64) *ConstantSizer {
	return &ConstantSizer{Quantity: quantity}
}

// GetPositionSize ignores its arguments and returns the configured quantity.
func (s *ConstantSizer) GetPositionSize(_, _ float64, _ int, _ string) (float64, bool) {
	return s.Quantity, true
}
