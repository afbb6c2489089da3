package market

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// neutralPct is shown when a market carries no volume or price signal.
const neutralPct = 50

// Odds is the YES/NO split and volume of a market. YesPct + NoPct is always
// 100 and both lie in [0,100].
type Odds struct {
	YesPct      int     `json:"yesPct"`
	NoPct       int     `json:"noPct"`
	YesVolume   float64 `json:"yesVolume"`
	NoVolume    float64 `json:"noVolume"`
	TotalVolume float64 `json:"totalVolume"`
}

// ComputeOdds derives the odds for m. A nil market yields a neutral 50/50
// split with zero volume.
//
// Volumes take precedence; when there is no volume but the backend sent an
// explicit YES price, the split follows the price.
func ComputeOdds(m *domain.Market) Odds {
	if m == nil {
		return Odds{YesPct: neutralPct, NoPct: 100 - neutralPct}
	}

	yes := finiteOrZero(m.YesVolume)
	no := finiteOrZero(m.NoVolume)
	total := yes + no
	if m.TotalVolume != nil {
		total = finiteOrZero(*m.TotalVolume)
	}

	yesPct := neutralPct
	switch {
	case total > 0:
		yesPct = int(math.Round(yes / total * 100))
	case m.YesPrice != nil && !math.IsNaN(*m.YesPrice) && !math.IsInf(*m.YesPrice, 0):
		yesPct = int(math.Round(*m.YesPrice * 100))
	}
	yesPct = ClampPct(yesPct)

	return Odds{
		YesPct:      yesPct,
		NoPct:       100 - yesPct,
		YesVolume:   yes,
		NoVolume:    no,
		TotalVolume: total,
	}
}

// YesPrice returns the market's YES price in [0,1], falling back to the
// volume-weighted split when the backend sent no explicit price.
func YesPrice(m *domain.Market) float64 {
	if m != nil && m.YesPrice != nil && !math.IsNaN(*m.YesPrice) {
		return math.Min(1, math.Max(0, *m.YesPrice))
	}
	return float64(ComputeOdds(m).YesPct) / 100
}

// ClampPct bounds a percentage to [0,100].
func ClampPct(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FormatUSD renders v as US dollars with exactly two decimals and thousands
// separators, e.g. "$1,234.50" or "-$3.00".
func FormatUSD(v float64) string {
	d := decimal.NewFromFloat(finiteOrZero(v)).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	s := d.StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	return sign + "$" + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	out := digits[:head]
	for i := head; i < len(digits); i += 3 {
		out += "," + digits[i:i+3]
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
