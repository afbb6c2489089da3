package market

import (
	"github.com/shopspring/decimal"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// PositionValue is the mark-to-market value of p given the market's current
// YES price: shares times the price of the side held.
func PositionValue(p domain.Position, yesPrice float64) decimal.Decimal {
	price := decimal.NewFromFloat(yesPrice)
	if !p.Side {
		price = decimal.NewFromInt(1).Sub(price)
	}
	return price.Mul(decimal.NewFromFloat(p.Shares))
}

// PositionPnL is PositionValue minus the amount wagered.
func PositionPnL(p domain.Position, yesPrice float64) decimal.Decimal {
	return PositionValue(p, yesPrice).Sub(decimal.NewFromFloat(p.Amount))
}

// SettledPayout returns what a position paid once its market resolved: one
// dollar per share on the winning side, nothing otherwise.
func SettledPayout(p domain.Position, outcome bool) decimal.Decimal {
	if p.Side != outcome {
		return decimal.Zero
	}
	return decimal.NewFromFloat(p.Shares)
}
