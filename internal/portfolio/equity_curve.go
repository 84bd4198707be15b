package portfolio

import (
	"strconv"
	"time"
)

// EquityPoint is one resampled row of the equity curve: the last holdings
// snapshot within the bucket, plus the period return and cumulative growth.
type EquityPoint struct {
	Timestamp    time.Time
	Total        float64
	Cash         float64
	Commissions  string
	BorrowCosts  string
	Order        string
	Slippage     string
	Return       float64
	EquityCurve  float64
}

// CreateEquityCurve resamples historicalHoldings to cfg.MetricsInterval:
// value/cash/total/margin take the bucket's last snapshot (pandas
// resample(...).last() equivalent), while commissions/borrow costs/order/
// slippage are summed/concatenated across every snapshot in the bucket so a
// trade mid-bucket isn't dropped just because it isn't the bucket's final
// tick. Then derives period returns and the cumulative equity curve via
// pct_change/cumprod over the resampled "total" series.
//
// Grounded on naive_portfolio.py's create_equity_curve/_form_dict.
func (p *Portfolio) CreateEquityCurve() []EquityPoint {
	p.mu.RLock()
	buckets := resample(p.historicalHoldings, p.cfg.MetricsInterval)
	p.mu.RUnlock()

	points := make([]EquityPoint, len(buckets))
	equity := 1.0
	for i, h := range buckets {
		ret := 0.0
		if i > 0 && buckets[i-1].Total != 0 {
			ret = (h.Total - buckets[i-1].Total) / buckets[i-1].Total
		}
		equity *= 1.0 + ret
		points[i] = EquityPoint{
			Timestamp:   h.Timestamp,
			Total:       h.Total,
			Cash:        h.Cash,
			Commissions: joinNonZero(h.Commissions),
			BorrowCosts: joinNonZero(h.BorrowCosts),
			Order:       h.Order,
			Slippage:    h.Slippage,
			Return:      ret,
			EquityCurve: equity,
		}
	}
	return points
}

// resample buckets snapshots by floor(timestamp/interval), taking the last
// snapshot seen in each bucket for value/cash/total/margin but summing
// Commissions/BorrowCosts and concatenating Order/Slippage across every
// snapshot in the bucket, matching _form_dict's "last" vs. join-non-zero
// reducers per field rather than dropping every non-final tick's trace.
func resample(snapshots []Holdings, interval time.Duration) []Holdings {
	if interval <= 0 || len(snapshots) == 0 {
		return append([]Holdings(nil), snapshots...)
	}

	var order []time.Time
	byBucket := make(map[time.Time]Holdings)
	for _, h := range snapshots {
		bucket := h.Timestamp.Truncate(interval)
		acc, ok := byBucket[bucket]
		if !ok {
			order = append(order, bucket)
			acc = h
			acc.Commissions = 0
			acc.BorrowCosts = 0
			acc.Order = ""
			acc.Slippage = ""
		}
		commissions := acc.Commissions
		borrowCosts := acc.BorrowCosts
		tradeOrder := acc.Order + h.Order
		slippage := acc.Slippage + h.Slippage

		acc = h
		acc.Commissions = commissions + h.Commissions
		acc.BorrowCosts = borrowCosts + h.BorrowCosts
		acc.Order = tradeOrder
		acc.Slippage = slippage
		byBucket[bucket] = acc
	}

	out := make([]Holdings, len(order))
	for i, b := range order {
		out[i] = byBucket[b]
	}
	return out
}

func joinNonZero(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
