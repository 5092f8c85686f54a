// Package promotion implements the two-phase promotion engine: a pure
// function that mutates an Order's lines and totals in place while
// preserving the per-line and per-order price invariants.
//
// Grounded on hermes/tools/promotion_tools.py (original_source) for the
// discount arithmetic and phase ordering, adapted into idiomatic Go over
// decimal.Decimal (see signalmachine-accounting-agent's rule_engine.go /
// ledger.go for the pure-function-over-decimal idiom this follows).
package promotion

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/shopspring/decimal"

	"github.com/hermesflow/hermes/internal/domain"
)

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
)

// Apply applies specs to order's created lines, mutating lines and totals
// in place, and returns the same Order for chaining. It is idempotent:
// applying Apply a second time to an already-promoted order gives the same
// result, because every created line's UnitPrice is reset to BasePrice and
// the total discount is recomputed from zero before any spec is applied.
// Within one call, a line matched by several specs is discounted by each
// in turn, each one working on the UnitPrice the previous one left.
func Apply(order *domain.Order, specs []domain.PromotionSpec) *domain.Order {
	totalDiscount := decimal.Zero

	// Reset per-line promotion markers on created lines so repeated
	// application starts from BasePrice, not from a previously-discounted
	// UnitPrice. This is what makes Apply idempotent.
	for i := range order.Lines {
		l := &order.Lines[i]
		if l.Status != domain.OrderLineCreated {
			continue
		}
		l.UnitPrice = l.BasePrice
		l.PromotionApplied = false
		l.PromotionDescription = ""
		l.Promotion = nil
		l.Recompute()
	}

	orderProductIDs := make(map[string]struct{}, len(order.Lines))
	for _, l := range order.Lines {
		if l.Status == domain.OrderLineCreated {
			orderProductIDs[l.ProductID] = struct{}{}
		}
	}

	// Phase A: combination promotions.
	for specIdx := range specs {
		spec := specs[specIdx]
		if spec.Conditions.ProductCombination == nil {
			continue
		}
		if !subsetOf(spec.Conditions.ProductCombination, orderProductIDs) {
			continue
		}

		for i := range order.Lines {
			l := &order.Lines[i]
			if l.Status != domain.OrderLineCreated {
				continue
			}
			if !targetsLine(spec.Effects.ApplyDiscount, l.ProductID) {
				continue
			}
			discount := applyDiscount(l, spec.Effects.ApplyDiscount)
			totalDiscount = totalDiscount.Add(discount)
			if spec.Effects.FreeGift != nil {
				appendGift(l, *spec.Effects.FreeGift)
			}
			if spec.Effects.ApplyDiscount != nil || spec.Effects.FreeGift != nil {
				l.PromotionApplied = true
				l.Promotion = &spec
			}
			l.Recompute()
		}
	}

	// Phase B: per-line promotions, skipping lines already touched by
	// phase A to avoid double application.
	for i := range order.Lines {
		l := &order.Lines[i]
		if l.Status != domain.OrderLineCreated || l.PromotionApplied {
			continue
		}

		for specIdx := range specs {
			spec := specs[specIdx]
			if spec.Conditions.ProductCombination != nil {
				continue
			}
			if spec.Conditions.MinQuantity == nil || l.Quantity < *spec.Conditions.MinQuantity {
				continue
			}
			if ok, err := appliesEveryMatches(spec.Conditions.AppliesEvery, l.Quantity); err != nil || !ok {
				continue
			}
			if !targetsLine(spec.Effects.ApplyDiscount, l.ProductID) {
				continue
			}

			discount := applyDiscount(l, spec.Effects.ApplyDiscount)
			totalDiscount = totalDiscount.Add(discount)

			if spec.Effects.FreeItems != nil {
				totalDiscount = totalDiscount.Add(applyFreeItems(l, *spec.Effects.FreeItems))
			}
			if spec.Effects.FreeGift != nil {
				appendGift(l, *spec.Effects.FreeGift)
			}
			if spec.Effects.ApplyDiscount != nil || spec.Effects.FreeItems != nil || spec.Effects.FreeGift != nil {
				l.PromotionApplied = true
				l.Promotion = &spec
			}
			l.Recompute()
		}
	}

	order.TotalDiscount = totalDiscount
	order.RecomputeStatus()
	return order
}

// appliesEveryMatches gates a "free every Nth unit" style condition
// (applies_every), evaluated with expr-lang over the line's quantity
// rather than a hand-rolled modulo check, matching the teacher's
// condition-expression idiom (evaluateCondition in
// internal/application/executor/graph.go) for this one genuinely
// data-driven predicate. A nil AppliesEvery always matches.
func appliesEveryMatches(appliesEvery *int, quantity int) (bool, error) {
	if appliesEvery == nil {
		return true, nil
	}
	if *appliesEvery <= 0 {
		return false, fmt.Errorf("applies_every must be positive, got %d", *appliesEvery)
	}

	program, err := expr.Compile("quantity % appliesEvery == 0", expr.AsBool())
	if err != nil {
		return false, err
	}
	result, err := expr.Run(program, map[string]any{"quantity": quantity, "appliesEvery": *appliesEvery})
	if err != nil {
		return false, err
	}
	matched, _ := result.(bool)
	return matched, nil
}

func subsetOf(required []string, present map[string]struct{}) bool {
	for _, id := range required {
		if _, ok := present[id]; !ok {
			return false
		}
	}
	return true
}

func targetsLine(discount *domain.DiscountSpec, productID string) bool {
	if discount == nil {
		// A spec with no discount (e.g. free-gift-only) targets every line
		// the caller passes in: in phase A every created line of a matched
		// combination spec, in phase B a line whose min_quantity matched.
		return true
	}
	return discount.ToProductID == nil || *discount.ToProductID == productID
}

// applyDiscount applies discount.Type to line's current UnitPrice (which is
// BasePrice for the first discount after Apply's reset before phase A) and
// returns the total discount amount across the line's quantity.
func applyDiscount(line *domain.OrderLine, discount *domain.DiscountSpec) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}

	qty := decimal.NewFromInt(int64(line.Quantity))

	switch discount.Type {
	case domain.DiscountPercentage:
		discountAmount := line.UnitPrice.Mul(discount.Amount).Div(hundred)
		line.UnitPrice = line.UnitPrice.Sub(discountAmount)
		line.PromotionDescription = fmt.Sprintf("%s%% discount applied", discount.Amount.String())
		return discountAmount.Mul(qty)

	case domain.DiscountFixed:
		discountAmount := decimal.Min(discount.Amount, line.UnitPrice)
		line.UnitPrice = line.UnitPrice.Sub(discountAmount)
		line.PromotionDescription = fmt.Sprintf("$%s discount applied", discount.Amount.String())
		return discountAmount.Mul(qty)

	case domain.DiscountBogoHalf:
		if line.Quantity < 2 {
			return decimal.Zero
		}
		discountedItems := decimal.NewFromInt(int64(line.Quantity / 2))
		discountPerItem := line.BasePrice.Mul(half)
		totalItemDiscount := discountPerItem.Mul(discountedItems)

		totalOriginal := line.BasePrice.Mul(qty)
		totalAfterDiscount := totalOriginal.Sub(totalItemDiscount)
		line.UnitPrice = totalAfterDiscount.Div(qty)
		line.PromotionDescription = fmt.Sprintf("Buy one, get one 50%% off (saved $%s)", totalItemDiscount.StringFixed(2))
		return totalItemDiscount

	default:
		return decimal.Zero
	}
}

// applyFreeItems discounts line by min(k, quantity) free units, leaving
// UnitPrice scaled so that TotalPrice reflects only the paid units, and
// returns the total discount across the line.
func applyFreeItems(line *domain.OrderLine, k int) decimal.Decimal {
	if line.Quantity == 0 {
		return decimal.Zero
	}
	freeCount := k
	if freeCount > line.Quantity {
		freeCount = line.Quantity
	}
	qty := decimal.NewFromInt(int64(line.Quantity))
	free := decimal.NewFromInt(int64(freeCount))

	discountPerItem := line.UnitPrice.Mul(free).Div(qty)
	line.UnitPrice = line.UnitPrice.Sub(discountPerItem)
	line.PromotionDescription = fmt.Sprintf("Buy %d, get %d free", line.Quantity-freeCount, freeCount)
	return discountPerItem.Mul(qty)
}

func appendGift(line *domain.OrderLine, gift string) {
	if line.PromotionDescription != "" {
		line.PromotionDescription = fmt.Sprintf("%s + Free gift: %s", line.PromotionDescription, gift)
	} else {
		line.PromotionDescription = fmt.Sprintf("Free gift: %s", gift)
	}
}
