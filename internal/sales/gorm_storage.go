package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type saleRecord struct {
	ID           string           `gorm:"primaryKey;size:36"`
	SaleNumber   string           `gorm:"size:50;not null;index"`
	SaleDate     time.Time        `gorm:"not null;index"`
	CustomerID   string           `gorm:"size:36;not null"`
	CustomerName string           `gorm:"size:100"`
	Branch       string           `gorm:"size:100;not null"`
	TotalAmount  decimal.Decimal  `gorm:"type:decimal(20,4)"`
	Cancelled    bool             `gorm:"not null"`
	Items        []saleItemRecord `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (saleRecord) TableName() string { return "sales" }

type saleItemRecord struct {
	ID          string          `gorm:"primaryKey;size:36"`
	SaleID      string          `gorm:"size:36;not null;index"`
	Position    int             `gorm:"not null"`
	ProductID   string          `gorm:"size:36;not null"`
	Title       string          `gorm:"size:200;not null"`
	Description string          `gorm:"type:text"`
	Category    string          `gorm:"size:100;index"`
	Image       string          `gorm:"size:500"`
	RatingRate  decimal.Decimal `gorm:"type:decimal(5,2)"`
	RatingCount int
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2)"`
	Discount    decimal.Decimal `gorm:"type:decimal(5,2)"`
	Total       decimal.Decimal `gorm:"type:decimal(20,4)"`
	Cancelled   bool            `gorm:"not null"`
}

func (saleItemRecord) TableName() string { return "sale_items" }

// GormStorage persists sales in a relational database through GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a GormStorage on top of an open connection.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// AutoMigrate creates or updates the sales and sale_items tables.
func (g *GormStorage) AutoMigrate() error {
	return g.db.AutoMigrate(&saleRecord{}, &saleItemRecord{})
}

func (g *GormStorage) Create(ctx context.Context, sale *Sale) (*Sale, error) {
	if sale.ID == "" {
		return nil, ErrEmptyID
	}
	rec := toRecord(sale)
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	return g.GetByID(ctx, sale.ID)
}

func (g *GormStorage) GetByID(ctx context.Context, id string) (*Sale, error) {
	var rec saleRecord
	err := g.db.WithContext(ctx).
		Preload("Items", orderedItems).
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load sale: %w", err)
	}
	return fromRecord(rec), nil
}

// Update replaces the sale row and all of its items in one transaction.
func (g *GormStorage) Update(ctx context.Context, id string, sale *Sale) error {
	rec := toRecord(sale)
	rec.ID = id
	for i := range rec.Items {
		rec.Items[i].SaleID = id
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&saleRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
			"sale_number":   rec.SaleNumber,
			"sale_date":     rec.SaleDate,
			"customer_id":   rec.CustomerID,
			"customer_name": rec.CustomerName,
			"branch":        rec.Branch,
			"total_amount":  rec.TotalAmount,
			"cancelled":     rec.Cancelled,
			"updated_at":    rec.UpdatedAt,
		})
		if res.Error != nil {
			return fmt.Errorf("update sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("sale_id = ?", id).Delete(&saleItemRecord{}).Error; err != nil {
			return fmt.Errorf("replace sale items: %w", err)
		}
		if len(rec.Items) == 0 {
			return nil
		}
		if err := tx.Create(&rec.Items).Error; err != nil {
			return fmt.Errorf("replace sale items: %w", err)
		}
		return nil
	})
}

func (g *GormStorage) Delete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sale_id = ?", id).Delete(&saleItemRecord{}).Error; err != nil {
			return fmt.Errorf("delete sale items: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&saleRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (g *GormStorage) GetPaged(ctx context.Context, filter SaleFilter) (*PagedResult, error) {
	order, err := ParseOrderBy(filter.OrderBy)
	if err != nil {
		return nil, err
	}
	page, size := filter.normalized()

	var total int64
	if err := g.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count sales: %w", err)
	}

	query := g.filtered(ctx, filter)
	for _, o := range order {
		query = query.Order(o.SQL())
	}
	var recs []saleRecord
	err = query.Order("id ASC").
		Preload("Items", orderedItems).
		Offset((page - 1) * size).
		Limit(size).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	data := make([]Sale, 0, len(recs))
	for _, rec := range recs {
		data = append(data, *fromRecord(rec))
	}
	return NewPagedResult(data, total, page, size), nil
}

func (g *GormStorage) filtered(ctx context.Context, filter SaleFilter) *gorm.DB {
	query := g.db.WithContext(ctx).Model(&saleRecord{})
	if !filter.MinSaleDate.IsZero() {
		query = query.Where("sale_date >= ?", filter.MinSaleDate)
	}
	if !filter.MaxSaleDate.IsZero() {
		query = query.Where("sale_date <= ?", filter.MaxSaleDate)
	}
	if filter.SaleNumber != "" {
		query = query.Where("sale_number LIKE ?", "%"+filter.SaleNumber+"%")
	}
	if filter.CustomerName != "" {
		query = query.Where("customer_name LIKE ?", "%"+filter.CustomerName+"%")
	}
	if filter.Branch != "" {
		query = query.Where("branch LIKE ?", "%"+filter.Branch+"%")
	}
	if filter.ItemDescription != "" {
		query = query.Where("id IN (?)", g.db.WithContext(ctx).Model(&saleItemRecord{}).
			Select("sale_id").Where("description LIKE ?", "%"+filter.ItemDescription+"%"))
	}
	if filter.ItemCategory != "" {
		query = query.Where("id IN (?)", g.db.WithContext(ctx).Model(&saleItemRecord{}).
			Select("sale_id").Where("category = ?", filter.ItemCategory))
	}
	return query
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func toRecord(s *Sale) saleRecord {
	rec := saleRecord{
		ID:           s.ID,
		SaleNumber:   s.SaleNumber,
		SaleDate:     s.SaleDate,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerName,
		Branch:       s.Branch,
		TotalAmount:  s.TotalAmount,
		Cancelled:    s.Cancelled,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Items:        make([]saleItemRecord, 0, len(s.Items)),
	}
	for pos, i := range s.Items {
		rec.Items = append(rec.Items, saleItemRecord{
			ID:          i.ID,
			SaleID:      s.ID,
			Position:    pos,
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
	return rec
}

func fromRecord(rec saleRecord) *Sale {
	s := &Sale{
		ID:           rec.ID,
		SaleNumber:   rec.SaleNumber,
		SaleDate:     rec.SaleDate,
		CustomerID:   rec.CustomerID,
		CustomerName: rec.CustomerName,
		Branch:       rec.Branch,
		TotalAmount:  rec.TotalAmount,
		Cancelled:    rec.Cancelled,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Items:        make([]SaleItem, 0, len(rec.Items)),
	}
	for _, i := range rec.Items {
		s.Items = append(s.Items, SaleItem{
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
	return s
}
