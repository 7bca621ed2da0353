package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity is the largest quantity of identical items a single line may carry.
const MaxItemQuantity = 20

var (
	tenPercent    = decimal.RequireFromString("0.10")
	twentyPercent = decimal.RequireFromString("0.20")
)

// Sale represents a sales transaction in the system.
type Sale struct {
	ID           string          `json:"id"`
	SaleNumber   string          `json:"sale_number"`
	SaleDate     time.Time       `json:"sale_date"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Branch       string          `json:"branch"`
	Items        []SaleItem      `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Cancelled    bool            `json:"cancelled"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SaleItem is one product line within a sale.
type SaleItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	RatingRate  decimal.Decimal `json:"rating_rate"`
	RatingCount int             `json:"rating_count"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	Cancelled   bool            `json:"cancelled"`
}

// DiscountFor returns the discount fraction granted for quantity identical items.
func DiscountFor(quantity int) (decimal.Decimal, error) {
	switch {
	case quantity > MaxItemQuantity:
		return decimal.Zero, ErrRuleViolation
	case quantity >= 10:
		return twentyPercent, nil
	case quantity >= 4:
		return tenPercent, nil
	default:
		return decimal.Zero, nil
	}
}

// ApplyRules sets the item discount from its quantity and recomputes the line total.
// On a rule violation the item is left untouched.
func (i *SaleItem) ApplyRules() error {
	discount, err := DiscountFor(i.Quantity)
	if err != nil {
		return &RuleViolationError{ItemID: i.ID, Quantity: i.Quantity}
	}

	i.Discount = discount
	i.Total = decimal.NewFromInt(int64(i.Quantity)).
		Mul(i.UnitPrice).
		Mul(decimal.NewFromInt(1).Sub(discount))
	return nil
}

// ApplyRules applies the item rules in order and sets TotalAmount to the sum of
// every item total, cancelled items included. TotalAmount is only written when
// all items pass.
func (s *Sale) ApplyRules() error {
	total := decimal.Zero
	for idx := range s.Items {
		if err := s.Items[idx].ApplyRules(); err != nil {
			var rv *RuleViolationError
			if errors.As(err, &rv) {
				rv.Index = idx
			}
			return err
		}
		total = total.Add(s.Items[idx].Total)
	}
	s.TotalAmount = total
	return nil
}

// Clone returns a deep copy of the sale, so a prior version never aliases a new one.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	if s.Items != nil {
		c.Items = make([]SaleItem, len(s.Items))
		copy(c.Items, s.Items)
	}
	return &c
}
