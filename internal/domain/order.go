package domain

import "github.com/shopspring/decimal"

// AlternativeProduct is a substitute offered on an out-of-stock line.
type AlternativeProduct struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Stock     int
}

// OrderLine is one resolved, priced, stock-checked line of an Order.
//
// Invariant: TotalPrice == UnitPrice * Quantity after every mutation.
// Invariant: 0 <= UnitPrice <= BasePrice unless a non-discount effect (a
// free gift) was explicitly applied, which leaves price untouched.
type OrderLine struct {
	ProductID            string
	Description          string
	Quantity             int
	BasePrice            decimal.Decimal
	UnitPrice            decimal.Decimal
	TotalPrice           decimal.Decimal
	Status               OrderLineStatus
	StockAfter           int
	PromotionApplied     bool
	PromotionDescription string
	Promotion            *PromotionSpec
	Alternatives         []AlternativeProduct
}

// Recompute restores the invariant TotalPrice == UnitPrice * Quantity. It
// must be called after any mutation of UnitPrice or Quantity.
func (l *OrderLine) Recompute() {
	l.TotalPrice = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the Fulfiller's terminal output for one email.
//
// Invariants (see data model / testable properties):
//   - TotalPrice == sum of TotalPrice over lines with Status == created.
//   - TotalDiscount >= 0.
//   - OverallStatus agrees with line statuses: created iff all lines
//     created; out_of_stock iff all lines out_of_stock; partially_fulfilled
//     iff mixed; no_valid_products iff Lines is empty.
type Order struct {
	EmailID        string
	OverallStatus  OverallStatus
	Lines          []OrderLine
	TotalPrice     decimal.Decimal
	TotalDiscount  decimal.Decimal
	Message        string
	StockUpdated   bool
}

// RecomputeStatus derives OverallStatus from line statuses and recomputes
// TotalPrice as the sum of created lines' TotalPrice, per the data-model
// invariant. It does not touch TotalDiscount, which the promotion engine
// owns.
func (o *Order) RecomputeStatus() {
	if len(o.Lines) == 0 {
		o.OverallStatus = OrderStatusNoValidProducts
		o.TotalPrice = decimal.Zero
		return
	}

	created, outOfStock := 0, 0
	total := decimal.Zero
	for _, l := range o.Lines {
		switch l.Status {
		case OrderLineCreated:
			created++
			total = total.Add(l.TotalPrice)
		case OrderLineOutOfStock:
			outOfStock++
		}
	}

	switch {
	case created == len(o.Lines):
		o.OverallStatus = OrderStatusCreated
	case outOfStock == len(o.Lines):
		o.OverallStatus = OrderStatusOutOfStock
	default:
		o.OverallStatus = OrderStatusPartiallyFulfilled
	}
	o.TotalPrice = total
}
