package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry. Every field except Stock is process-lifetime
// immutable; Stock is mutated by the stock ledger under a single-writer
// discipline (see internal/catalog.StockLedger).
type Product struct {
	ProductID       string
	Name            string
	Description     string
	Category        Category
	ProductType     string
	Stock           int
	Seasons         map[Season]struct{}
	Price           decimal.Decimal
	Promotion       *PromotionSpec
	PromotionText   string
	Metadata        string
}

// HasSeason reports whether the product is sold in the given season.
func (p Product) HasSeason(s Season) bool {
	if _, ok := p.Seasons[SeasonAll]; ok {
		return true
	}
	_, ok := p.Seasons[s]
	return ok
}

// PromotionSpec is a declarative (conditions, effects) pair describing one
// discount or gift rule. Tagged for yaml.v3 so internal/config can load a
// promotions.yaml straight into a []PromotionSpec.
type PromotionSpec struct {
	Conditions PromotionConditions `yaml:"conditions"`
	Effects    PromotionEffects    `yaml:"effects"`
}

// PromotionConditions gates whether a PromotionSpec fires.
type PromotionConditions struct {
	MinQuantity        *int     `yaml:"min_quantity,omitempty"`
	AppliesEvery        *int     `yaml:"applies_every,omitempty"`
	ProductCombination []string `yaml:"product_combination,omitempty"`
}

// PromotionEffects describes what a fired PromotionSpec does to an order
// line.
type PromotionEffects struct {
	ApplyDiscount *DiscountSpec `yaml:"apply_discount,omitempty"`
	FreeItems     *int          `yaml:"free_items,omitempty"`
	FreeGift      *string       `yaml:"free_gift,omitempty"`
}

// DiscountSpec describes one discount shape applied to a line's unit price.
type DiscountSpec struct {
	Type        DiscountType    `yaml:"type"`
	Amount      decimal.Decimal `yaml:"amount"`
	ToProductID *string         `yaml:"to_product_id,omitempty"`
}
