package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesflow/hermes/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(i int) *int { return &i }

func newLine(productID, price string, qty int) domain.OrderLine {
	l := domain.OrderLine{
		ProductID: productID,
		Quantity:  qty,
		BasePrice: d(price),
		UnitPrice: d(price),
		Status:    domain.OrderLineCreated,
	}
	l.Recompute()
	return l
}

func TestApplyPercentageDiscount(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("QTP5432", "29.00", 1)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{MinQuantity: intPtr(1)},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountPercentage, Amount: d("25"), ToProductID: strPtr("QTP5432"),
		}},
	}}

	Apply(order, specs)

	assert.True(t, order.Lines[0].UnitPrice.Equal(d("21.75")))
	assert.True(t, order.Lines[0].TotalPrice.Equal(d("21.75")))
	assert.True(t, order.Lines[0].PromotionApplied)
	assert.True(t, order.TotalDiscount.Equal(d("7.25")))
}

func TestApplyBogoHalf(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("CBG9876", "24.00", 2)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{MinQuantity: intPtr(2)},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountBogoHalf, Amount: d("50"), ToProductID: strPtr("CBG9876"),
		}},
	}}

	Apply(order, specs)

	assert.True(t, order.TotalDiscount.Equal(d("12")))
	assert.True(t, order.TotalPrice.Equal(d("36")))
	assert.True(t, order.Lines[0].UnitPrice.Equal(d("18")))
}

func TestApplyBogoHalfSingleQuantityNoDiscount(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("CBG9876", "24.00", 1)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{MinQuantity: intPtr(2)},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountBogoHalf, Amount: d("50"),
		}},
	}}

	Apply(order, specs)

	assert.False(t, order.Lines[0].PromotionApplied)
	assert.True(t, order.TotalDiscount.IsZero())
}

func TestApplyCombinationPromotion(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{
		newLine("PLV8765", "42.00", 1),
		newLine("PLD9876", "49.00", 1),
	}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{ProductCombination: []string{"PLV8765", "PLD9876"}},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountPercentage, Amount: d("50"), ToProductID: strPtr("PLD9876"),
		}},
	}}

	Apply(order, specs)

	assert.True(t, order.Lines[0].UnitPrice.Equal(d("42.00")), "untouched line")
	assert.True(t, order.Lines[1].UnitPrice.Equal(d("24.50")))
	assert.True(t, order.TotalDiscount.Equal(d("24.50")))
	assert.True(t, order.TotalPrice.Equal(d("66.50")))
}

func TestApplyCombinationMissingProductNoEffect(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("PLV8765", "42.00", 1)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{ProductCombination: []string{"PLV8765", "PLD9876"}},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountPercentage, Amount: d("50"),
		}},
	}}

	Apply(order, specs)

	assert.False(t, order.Lines[0].PromotionApplied)
	assert.True(t, order.TotalDiscount.IsZero())
}

func TestApplyIsIdempotent(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("QTP5432", "29.00", 1)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{MinQuantity: intPtr(1)},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountPercentage, Amount: d("25"), ToProductID: strPtr("QTP5432"),
		}},
	}}

	Apply(order, specs)
	firstUnitPrice := order.Lines[0].UnitPrice
	firstDiscount := order.TotalDiscount

	Apply(order, specs)

	assert.True(t, order.Lines[0].UnitPrice.Equal(firstUnitPrice))
	assert.True(t, order.TotalDiscount.Equal(firstDiscount))
}

func TestApplyOrderInvariants(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{
		newLine("AAA0001", "10.00", 3),
		{ProductID: "BBB0002", Status: domain.OrderLineOutOfStock, Quantity: 1, BasePrice: d("5.00"), UnitPrice: d("5.00")},
	}}
	Apply(order, nil)

	require.Len(t, order.Lines, 2)
	for _, l := range order.Lines {
		if l.Status == domain.OrderLineCreated {
			assert.True(t, l.TotalPrice.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
		}
	}
	assert.True(t, order.TotalDiscount.GreaterThanOrEqual(decimal.Zero))
	assert.Equal(t, domain.OrderStatusPartiallyFulfilled, order.OverallStatus)
}

func strPtr(s string) *string { return &s }

func TestApplyAppliesEveryGatesOnQuantity(t *testing.T) {
	order := &domain.Order{Lines: []domain.OrderLine{newLine("AAA0001", "10.00", 3)}}
	specs := []domain.PromotionSpec{{
		Conditions: domain.PromotionConditions{MinQuantity: intPtr(1), AppliesEvery: intPtr(3)},
		Effects: domain.PromotionEffects{ApplyDiscount: &domain.DiscountSpec{
			Type: domain.DiscountFixed, Amount: d("5.00"),
		}},
	}}

	Apply(order, specs)
	assert.True(t, order.Lines[0].PromotionApplied)

	order2 := &domain.Order{Lines: []domain.OrderLine{newLine("AAA0001", "10.00", 2)}}
	Apply(order2, specs)
	assert.False(t, order2.Lines[0].PromotionApplied)
}

func TestAppliesEveryMatches(t *testing.T) {
	ok, err := appliesEveryMatches(intPtr(3), 6)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = appliesEveryMatches(intPtr(3), 7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = appliesEveryMatches(nil, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}
