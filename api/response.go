package api

import (
	"time"

	"github.com/shopspring/decimal"

	"sales_service/internal/sales"
)

type saleResponse struct {
	ID           string          `json:"id"`
	SaleNumber   string          `json:"sale_number"`
	SaleDate     time.Time       `json:"sale_date"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Branch       string          `json:"branch"`
	Items        []itemResponse  `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Cancelled    bool            `json:"cancelled"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type itemResponse struct {
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

type pagedResponse struct {
	Data        []saleResponse `json:"data"`
	TotalItems  int64          `json:"total_items"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
}

func newSaleResponse(s *sales.Sale) saleResponse {
	out := saleResponse{
		ID:           s.ID,
		SaleNumber:   s.SaleNumber,
		SaleDate:     s.SaleDate,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerName,
		Branch:       s.Branch,
		Items:        make([]itemResponse, 0, len(s.Items)),
		TotalAmount:  s.TotalAmount,
		Cancelled:    s.Cancelled,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	for _, i := range s.Items {
		out.Items = append(out.Items, itemResponse{
			ID:          i.ID,
			ProductID:   i.ProductID,
			Title:       i.Title,
			Description: i.Description,
			Category:    i.Category,
			Image:       i.Image,
			RatingRate:  i.RatingRate,
			RatingCount: i.RatingCount,
			Quantity:    i.Quantity,
			UnitPrice:   i.UnitPrice,
			Discount:    i.Discount,
			Total:       i.Total,
			Cancelled:   i.Cancelled,
		})
	}
	return out
}

func newPagedResponse(p *sales.PagedResult) pagedResponse {
	out := pagedResponse{
		Data:        make([]saleResponse, 0, len(p.Data)),
		TotalItems:  p.TotalItems,
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
	}
	for i := range p.Data {
		out.Data = append(out.Data, newSaleResponse(&p.Data[i]))
	}
	return out
}
