package domain

import (
	"github.com/shopspring/decimal"

	pricing "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

var (
	two         = decimal.NewFromInt(2)
	convergence = decimal.New(1, -12)
	probeScale  = decimal.New(1, -6) // spot price probe: 1e-6 of the input reserve
)

// maxIterations bounds the Newton iterations for the invariant solvers.
const maxIterations = 255

// StableSwap models amplified peg-asset pools (Curve style). The invariant D
// and the post-trade output balance are solved with Newton iteration rather
// than a closed form.
type StableSwap struct{}

// Family implements Model.
func (StableSwap) Family() pricing.VenueFamily { return pricing.FamilyStableSwap }

// PriceImpact simulates swapping reserve index 0 for index 1 under the
// StableSwap invariant. Spot price is measured with an infinitesimal probe
// trade and stays near 1 for balanced peg assets.
func (m StableSwap) PriceImpact(pool pricing.PoolState, amountIn, maxImpact decimal.Decimal) (*PriceImpactResult, error) {
	if err := checkTrade(m, pool, amountIn); err != nil {
		return nil, err
	}

	amountInAfterFee := applyFee(amountIn, pool.FeeRate)

	d, err := computeD(pool.Reserves, pool.Amplification)
	if err != nil {
		return nil, err
	}

	newIn := pool.Reserves[0].Add(amountInAfterFee)
	newOut, err := solveY(0, 1, newIn, pool.Reserves, pool.Amplification, d)
	if err != nil {
		return nil, err
	}
	amountOut := pool.Reserves[1].Sub(newOut)

	priceBefore, err := spotProbe(pool.Reserves, pool.Amplification, d)
	if err != nil {
		return nil, err
	}

	after := make([]decimal.Decimal, len(pool.Reserves))
	copy(after, pool.Reserves)
	after[0] = newIn
	after[1] = newOut
	priceAfter, err := spotProbe(after, pool.Amplification, d)
	if err != nil {
		return nil, err
	}

	effective := amountOut.Div(amountInAfterFee)

	return impactResult(amountIn, amountOut, priceBefore, priceAfter, effective, maxImpact), nil
}

// spotProbe measures the marginal exchange rate with a trade of 1e-6 of the
// input reserve.
func spotProbe(reserves []decimal.Decimal, amp, d decimal.Decimal) (decimal.Decimal, error) {
	eps := reserves[0].Mul(probeScale)
	y, err := solveY(0, 1, reserves[0].Add(eps), reserves, amp, d)
	if err != nil {
		return decimal.Zero, err
	}
	return reserves[1].Sub(y).Div(eps), nil
}

// computeD solves the StableSwap invariant D by Newton iteration:
//
//	D = (Ann*S + n*D_P) * D / ((Ann-1)*D + (n+1)*D_P)
//	D_P = D^(n+1) / (n^n * prod(x))
func computeD(reserves []decimal.Decimal, amp decimal.Decimal) (decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(len(reserves)))

	s := decimal.Zero
	for _, x := range reserves {
		s = s.Add(x)
	}
	if s.IsZero() {
		return decimal.Zero, nil
	}

	ann := amp.Mul(nPowN(len(reserves)))
	d := s

	for i := 0; i < maxIterations; i++ {
		dP := d
		for _, x := range reserves {
			dP = dP.Mul(d).Div(x.Mul(n))
		}

		prev := d
		num := ann.Mul(s).Add(dP.Mul(n)).Mul(d)
		den := ann.Sub(one).Mul(d).Add(n.Add(one).Mul(dP))
		d = num.Div(den)

		if d.Sub(prev).Abs().LessThanOrEqual(convergence) {
			return d, nil
		}
	}

	return decimal.Zero, apperror.Validation(apperror.CodeSolverDiverged, "invariant D")
}

// solveY finds the balance of reserve j that keeps the invariant D when
// reserve i is set to x, again by Newton iteration:
//
//	y = (y^2 + c) / (2y + b - D)
func solveY(i, j int, x decimal.Decimal, reserves []decimal.Decimal, amp, d decimal.Decimal) (decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(len(reserves)))
	ann := amp.Mul(nPowN(len(reserves)))

	c := d
	sum := decimal.Zero
	for k, xk := range reserves {
		if k == j {
			continue
		}
		if k == i {
			xk = x
		}
		sum = sum.Add(xk)
		c = c.Mul(d).Div(xk.Mul(n))
	}
	c = c.Mul(d).Div(ann.Mul(n))
	b := sum.Add(d.Div(ann))

	y := d
	for it := 0; it < maxIterations; it++ {
		prev := y
		y = y.Mul(y).Add(c).Div(two.Mul(y).Add(b).Sub(d))

		if y.Sub(prev).Abs().LessThanOrEqual(convergence) {
			return y, nil
		}
	}

	return decimal.Zero, apperror.Validation(apperror.CodeSolverDiverged, "output balance y")
}

// nPowN returns n^n for small pool sizes.
func nPowN(n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	nd := decimal.NewFromInt(int64(n))
	for i := 0; i < n; i++ {
		result = result.Mul(nd)
	}
	return result
}
