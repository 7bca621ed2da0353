package sales

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Storage is the main interface for our sales storage layer.
// Every read returns the sale with its items, as a value the caller owns.
type Storage interface {
	Create(ctx context.Context, sale *Sale) (*Sale, error)
	GetByID(ctx context.Context, id string) (*Sale, error)
	Update(ctx context.Context, id string, sale *Sale) error
	Delete(ctx context.Context, id string) error
	GetPaged(ctx context.Context, filter SaleFilter) (*PagedResult, error)
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	mu sync.RWMutex
	m  map[string]*Sale
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Sale{},
	}
}

// Create stores a copy of sale.
// Returns ErrEmptyID if the sale has an empty ID.
func (l *LocalStorage) Create(ctx context.Context, sale *Sale) (*Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		return nil, ErrEmptyID
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[sale.ID] = sale.Clone()
	return sale.Clone(), nil
}

// GetByID retrieves a sale from the local storage by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) GetByID(ctx context.Context, id string) (*Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Update replaces the stored sale with the given ID.
// Returns ErrNotFound if there is nothing to replace.
func (l *LocalStorage) Update(ctx context.Context, id string, sale *Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	c := sale.Clone()
	c.ID = id
	l.m[id] = c
	return nil
}

// Delete removes the sale with the given ID.
func (l *LocalStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	delete(l.m, id)
	return nil
}

// GetPaged filters, orders and pages the stored sales.
func (l *LocalStorage) GetPaged(ctx context.Context, filter SaleFilter) (*PagedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order, err := ParseOrderBy(filter.OrderBy)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	matched := make([]*Sale, 0, len(l.m))
	for _, s := range l.m {
		if filter.matches(s) {
			matched = append(matched, s.Clone())
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range order {
			if c := o.compare(matched[i], matched[j]); c != 0 {
				return c < 0
			}
		}
		return matched[i].ID < matched[j].ID
	})

	page, size := filter.normalized()
	total := len(matched)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	data := make([]Sale, 0, end-start)
	for _, s := range matched[start:end] {
		data = append(data, *s)
	}
	return NewPagedResult(data, int64(total), page, size), nil
}

func (f SaleFilter) matches(s *Sale) bool {
	if !f.MinSaleDate.IsZero() && s.SaleDate.Before(f.MinSaleDate) {
		return false
	}
	if !f.MaxSaleDate.IsZero() && s.SaleDate.After(f.MaxSaleDate) {
		return false
	}
	if f.SaleNumber != "" && !strings.Contains(s.SaleNumber, f.SaleNumber) {
		return false
	}
	if f.CustomerName != "" && !strings.Contains(s.CustomerName, f.CustomerName) {
		return false
	}
	if f.Branch != "" && !strings.Contains(s.Branch, f.Branch) {
		return false
	}
	if f.ItemDescription != "" && !anyItem(s, func(i SaleItem) bool {
		return strings.Contains(i.Description, f.ItemDescription)
	}) {
		return false
	}
	if f.ItemCategory != "" && !anyItem(s, func(i SaleItem) bool {
		return i.Category == f.ItemCategory
	}) {
		return false
	}
	return true
}

func anyItem(s *Sale, pred func(SaleItem) bool) bool {
	for _, i := range s.Items {
		if pred(i) {
			return true
		}
	}
	return false
}
