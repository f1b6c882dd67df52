package loyalty

import (
	"math"

	"pos-system/internal/domain"
)

// Defaults mirror the service configuration: 1 point earned per currency
// unit spent, 100 points redeemed per unit of discount.
const (
	DefaultPointsPerUnit = 1.0
	DefaultRedeemRate    = 100
)

// Calculator holds the conversion rates. Reconcile is a pure function of
// its inputs, so running it on the terminal at checkout and again on the
// server (or on a sync retry) yields the same result as long as the stored
// order payload is reused verbatim.
type Calculator struct {
	PointsPerUnit float64
	RedeemRate    int
}

func NewCalculator(pointsPerUnit float64, redeemRate int) Calculator {
	if pointsPerUnit <= 0 {
		pointsPerUnit = DefaultPointsPerUnit
	}
	if redeemRate <= 0 {
		redeemRate = DefaultRedeemRate
	}
	return Calculator{PointsPerUnit: pointsPerUnit, RedeemRate: redeemRate}
}

// Quote is the reconciled outcome for one order.
type Quote struct {
	PointsRedeemed int     `json:"points_redeemed"`
	Discount       float64 `json:"discount"`
	FinalTotal     float64 `json:"final_total"`
	PointsEarned   int     `json:"points_earned"`
	// NetPoints is the balance delta the server applies: earned minus
	// redeemed, negative when more is redeemed than earned back.
	NetPoints int `json:"net_points"`
}

// MaxRedeemable caps redemption at the account balance and at the number
// of points that would zero out the subtotal. Guests can redeem nothing.
func (c Calculator) MaxRedeemable(subtotal float64, account *domain.LoyaltyAccount) int {
	if account == nil {
		return 0
	}
	limit := int(math.Floor(subtotal * float64(c.RedeemRate)))
	if limit < 0 {
		limit = 0
	}
	if account.PointsBalance < limit {
		return account.PointsBalance
	}
	return limit
}

// Reconcile clamps the requested redemption into [0, MaxRedeemable],
// applies the discount and computes points earned from the discounted
// total. For guest orders (nil account) the earned calculation is skipped
// entirely, not just zeroed: there is no account to accrue to.
func (c Calculator) Reconcile(subtotal float64, pointsToRedeem int, account *domain.LoyaltyAccount) Quote {
	if pointsToRedeem < 0 {
		pointsToRedeem = 0
	}
	if max := c.MaxRedeemable(subtotal, account); pointsToRedeem > max {
		pointsToRedeem = max
	}

	discount := float64(pointsToRedeem) / float64(c.RedeemRate)
	finalTotal := subtotal - discount
	if finalTotal < 0 {
		finalTotal = 0
	}

	q := Quote{PointsRedeemed: pointsToRedeem, Discount: discount, FinalTotal: finalTotal}
	if account != nil {
		q.PointsEarned = int(math.Floor(finalTotal * c.PointsPerUnit))
		q.NetPoints = q.PointsEarned - pointsToRedeem
	}
	return q
}
