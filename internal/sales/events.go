package sales

import "time"

// Kind tags the concrete type of a domain event.
type Kind string

const (
	KindSaleCreated   Kind = "sale.created"
	KindSaleModified  Kind = "sale.modified"
	KindSaleCancelled Kind = "sale.cancelled"
	KindItemCancelled Kind = "sale.item_cancelled"
)

// Kinds lists every event kind a sale can emit.
var Kinds = []Kind{KindSaleCreated, KindSaleModified, KindSaleCancelled, KindItemCancelled}

// Event is an immutable fact about a sale lifecycle transition.
type Event interface {
	Kind() Kind
	AggregateID() string
	OccurredAt() time.Time
}

// SaleCreated is published once a new sale has been stored.
type SaleCreated struct {
	SaleID     string
	OccurredOn time.Time
}

func (e SaleCreated) Kind() Kind            { return KindSaleCreated }
func (e SaleCreated) AggregateID() string   { return e.SaleID }
func (e SaleCreated) OccurredAt() time.Time { return e.OccurredOn }

// SaleModified is published on every successful update.
type SaleModified struct {
	SaleID     string
	OccurredOn time.Time
}

func (e SaleModified) Kind() Kind            { return KindSaleModified }
func (e SaleModified) AggregateID() string   { return e.SaleID }
func (e SaleModified) OccurredAt() time.Time { return e.OccurredOn }

// SaleCancelled is published when a sale goes from not cancelled to cancelled.
type SaleCancelled struct {
	SaleID     string
	OccurredOn time.Time
}

func (e SaleCancelled) Kind() Kind            { return KindSaleCancelled }
func (e SaleCancelled) AggregateID() string   { return e.SaleID }
func (e SaleCancelled) OccurredAt() time.Time { return e.OccurredOn }

// ItemCancelled is published when an existing item goes from not cancelled to cancelled.
type ItemCancelled struct {
	SaleID     string
	ItemID     string
	OccurredOn time.Time
}

func (e ItemCancelled) Kind() Kind            { return KindItemCancelled }
func (e ItemCancelled) AggregateID() string   { return e.SaleID }
func (e ItemCancelled) OccurredAt() time.Time { return e.OccurredOn }
