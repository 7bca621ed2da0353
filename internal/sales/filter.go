package sales

import (
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SaleFilter selects and orders a page of sales. Zero values mean "no filter".
type SaleFilter struct {
	MinSaleDate     time.Time
	MaxSaleDate     time.Time
	SaleNumber      string
	CustomerName    string
	Branch          string
	ItemDescription string
	ItemCategory    string
	Page            int
	PageSize        int
	// OrderBy is a comma separated list like "saleDate desc, totalAmount asc".
	OrderBy string
}

func (f SaleFilter) normalized() (page, size int) {
	page, size = f.Page, f.PageSize
	if page <= 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return page, size
}

// PagedResult is one page of sales plus the paging metadata.
type PagedResult struct {
	Data        []Sale `json:"data"`
	TotalItems  int64  `json:"total_items"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
}

// NewPagedResult computes TotalPages from total and size.
func NewPagedResult(data []Sale, total int64, page, size int) *PagedResult {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &PagedResult{
		Data:        data,
		TotalItems:  total,
		CurrentPage: page,
		TotalPages:  pages,
	}
}

// OrderClause is one parsed "field direction" pair of SaleFilter.OrderBy.
type OrderClause struct {
	Field string
	Desc  bool
}

type orderField struct {
	column  string
	compare func(a, b *Sale) int
}

var orderFields = map[string]orderField{
	"salenumber":   {"sale_number", func(a, b *Sale) int { return strings.Compare(a.SaleNumber, b.SaleNumber) }},
	"saledate":     {"sale_date", func(a, b *Sale) int { return a.SaleDate.Compare(b.SaleDate) }},
	"customername": {"customer_name", func(a, b *Sale) int { return strings.Compare(a.CustomerName, b.CustomerName) }},
	"branch":       {"branch", func(a, b *Sale) int { return strings.Compare(a.Branch, b.Branch) }},
	"totalamount":  {"total_amount", func(a, b *Sale) int { return a.TotalAmount.Cmp(b.TotalAmount) }},
	"cancelled":    {"cancelled", func(a, b *Sale) int { return compareBool(a.Cancelled, b.Cancelled) }},
}

// ParseOrderBy parses an order expression. An empty expression orders by sale date, newest first.
func ParseOrderBy(expr string) ([]OrderClause, error) {
	if strings.TrimSpace(expr) == "" {
		return []OrderClause{{Field: "saledate", Desc: true}}, nil
	}

	var clauses []OrderClause
	for _, part := range strings.Split(expr, ",") {
		tokens := strings.Fields(part)
		if len(tokens) == 0 || len(tokens) > 2 {
			return nil, orderByError("malformed clause '" + strings.TrimSpace(part) + "'")
		}
		field := strings.ToLower(tokens[0])
		if _, ok := orderFields[field]; !ok {
			return nil, orderByError("unknown field '" + tokens[0] + "'")
		}
		c := OrderClause{Field: field}
		if len(tokens) == 2 {
			switch strings.ToLower(tokens[1]) {
			case "asc":
			case "desc":
				c.Desc = true
			default:
				return nil, orderByError("unknown direction '" + tokens[1] + "'")
			}
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// Column returns the storage column the clause orders by.
func (c OrderClause) Column() string { return orderFields[c.Field].column }

// SQL renders the clause as an ORDER BY fragment.
func (c OrderClause) SQL() string {
	if c.Desc {
		return c.Column() + " DESC"
	}
	return c.Column() + " ASC"
}

func (c OrderClause) compare(a, b *Sale) int {
	r := orderFields[c.Field].compare(a, b)
	if c.Desc {
		return -r
	}
	return r
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func orderByError(msg string) error {
	return &ValidationError{Fields: []FieldViolation{{Field: "order_by", Message: msg}}}
}
