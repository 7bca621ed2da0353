package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service provides high-level sales management operations on a Storage backend.
type Service struct {
	storage   Storage
	publisher Publisher
	validator *Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(storage Storage, publisher Publisher, validator *Validator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewValidator(false)
	}

	return &Service{
		storage:   storage,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSale validates the input, prices it, stores it and publishes SaleCreated.
func (s *Service) CreateSale(ctx context.Context, in CreateSaleInput) (*Sale, error) {
	if err := s.validator.Struct(in); err != nil {
		s.logger.Warn("invalid sale", zap.Error(err))
		return nil, err
	}
	if err := noItemIDs(in.Items); err != nil {
		s.logger.Warn("invalid sale", zap.Error(err))
		return nil, err
	}

	now := s.now()
	sale := &Sale{
		ID:           uuid.NewString(),
		SaleNumber:   in.SaleNumber,
		SaleDate:     in.SaleDate,
		CustomerID:   in.CustomerID,
		CustomerName: in.CustomerName,
		Branch:       in.Branch,
		Items:        buildItems(in.Items, nil),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if sale.SaleNumber == "" {
		sale.SaleNumber = newSaleNumber(sale.ID)
	}

	if err := sale.ApplyRules(); err != nil {
		return nil, err
	}

	created, err := s.storage.Create(ctx, sale)
	if err != nil {
		s.logger.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to save sale: %w", err)
	}

	if err := s.publisher.Publish(ctx, SaleCreated{SaleID: created.ID, OccurredOn: s.now()}); err != nil {
		s.logger.Error("failed to publish sale event", zap.String("sale_id", created.ID), zap.Error(err))
		return nil, fmt.Errorf("publish sale created: %w", err)
	}

	s.logger.Info("sale created",
		zap.String("sale_id", created.ID),
		zap.String("sale_number", created.SaleNumber),
		zap.Int("items", len(created.Items)),
		zap.String("total_amount", created.TotalAmount.String()),
	)
	return created, nil
}

// UpdateSale replaces the sale with the given ID and publishes the lifecycle
// events found by comparing the stored version before and after the update.
//
// Events go out after the replacement has been committed, so a publish failure
// is reported to the caller while the new version stays stored.
func (s *Service) UpdateSale(ctx context.Context, id string, in UpdateSaleInput) (*Sale, error) {
	// 1. Validar la entrada
	if err := s.validator.Struct(in); err != nil {
		s.logger.Warn("invalid sale update", zap.String("sale_id", id), zap.Error(err))
		return nil, err
	}
	if err := uniqueItemIDs(in.Items); err != nil {
		return nil, err
	}

	// 2. Cargar la version actual
	before, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageError("load sale", id, err)
	}
	before = before.Clone()

	// 3. Construir la nueva version con el mismo ID
	after := &Sale{
		ID:           id,
		SaleNumber:   in.SaleNumber,
		SaleDate:     in.SaleDate,
		CustomerID:   in.CustomerID,
		CustomerName: in.CustomerName,
		Branch:       in.Branch,
		Items:        buildItems(in.Items, before.Items),
		Cancelled:    in.Cancelled,
		CreatedAt:    before.CreatedAt,
		UpdatedAt:    s.now(),
	}
	if after.SaleNumber == "" {
		after.SaleNumber = before.SaleNumber
	}

	if err := after.ApplyRules(); err != nil {
		return nil, err
	}

	// 4. Persistir y recargar
	if err := s.storage.Update(ctx, id, after); err != nil {
		return nil, s.storageError("update sale", id, err)
	}
	updated, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageError("reload sale", id, err)
	}

	// 5. Publicar eventos
	for _, event := range lifecycleEvents(before, updated, s.now()) {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish sale event",
				zap.String("sale_id", id),
				zap.String("event", string(event.Kind())),
				zap.Error(err),
			)
			return nil, fmt.Errorf("publish %s: %w", event.Kind(), err)
		}
	}

	s.logger.Info("sale updated",
		zap.String("sale_id", id),
		zap.Bool("cancelled", updated.Cancelled),
		zap.String("total_amount", updated.TotalAmount.String()),
	)
	return updated, nil
}

// GetSale returns the sale with the given ID, items included.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageError("load sale", id, err)
	}
	return sale, nil
}

// DeleteSale removes the sale with the given ID.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return s.storageError("delete sale", id, err)
	}
	s.logger.Info("sale deleted", zap.String("sale_id", id))
	return nil
}

// ListSales returns one page of sales matching filter.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) (*PagedResult, error) {
	if err := validateFilter(filter); err != nil {
		s.logger.Warn("invalid sales filter", zap.Error(err))
		return nil, err
	}

	result, err := s.storage.GetPaged(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list sales", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve sales: %w", err)
	}

	s.logger.Info("sales search completed",
		zap.Int("page", result.CurrentPage),
		zap.Int("results_count", len(result.Data)),
		zap.Int64("total_items", result.TotalItems),
	)
	return result, nil
}

func (s *Service) storageError(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	s.logger.Error("storage failure", zap.String("op", op), zap.String("sale_id", id), zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, id, err)
}

// lifecycleEvents decides which events an update produces: SaleModified always,
// SaleCancelled on a false->true sale transition, then ItemCancelled for every
// item of after, in its order, that existed in before uncancelled and is now cancelled.
func lifecycleEvents(before, after *Sale, at time.Time) []Event {
	events := []Event{SaleModified{SaleID: after.ID, OccurredOn: at}}

	if !before.Cancelled && after.Cancelled {
		events = append(events, SaleCancelled{SaleID: after.ID, OccurredOn: at})
	}

	previous := make(map[string]SaleItem, len(before.Items))
	for _, item := range before.Items {
		previous[item.ID] = item
	}
	for _, item := range after.Items {
		old, ok := previous[item.ID]
		if !ok {
			continue
		}
		if !old.Cancelled && item.Cancelled {
			events = append(events, ItemCancelled{SaleID: after.ID, ItemID: item.ID, OccurredOn: at})
		}
	}
	return events
}

// buildItems keeps an input ID only when it names one of existing; every other
// item gets a fresh ID.
func buildItems(in []ItemInput, existing []SaleItem) []SaleItem {
	known := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		known[item.ID] = struct{}{}
	}

	items := make([]SaleItem, 0, len(in))
	for _, i := range in {
		id := i.ID
		if _, ok := known[id]; !ok {
			id = uuid.NewString()
		}
		items = append(items, SaleItem{
			ID:          id,
			ProductID:   i.ProductID,
			Title:       i.Title,
			Description: i.Description,
			Category:    i.Category,
			Image:       i.Image,
			RatingRate:  i.RatingRate,
			RatingCount: i.RatingCount,
			Quantity:    i.Quantity,
			UnitPrice:   i.UnitPrice,
			Cancelled:   i.Cancelled,
		})
	}
	return items
}

// noItemIDs rejects client supplied item IDs on create.
func noItemIDs(items []ItemInput) error {
	var fields []FieldViolation
	for idx, i := range items {
		if i.ID != "" {
			fields = append(fields, FieldViolation{
				Field:   fmt.Sprintf("items[%d].id", idx),
				Message: "must be empty when creating a sale",
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func uniqueItemIDs(items []ItemInput) error {
	seen := make(map[string]int, len(items))
	var fields []FieldViolation
	for idx, i := range items {
		if i.ID == "" {
			continue
		}
		if first, ok := seen[i.ID]; ok {
			fields = append(fields, FieldViolation{
				Field:   fmt.Sprintf("items[%d].id", idx),
				Message: fmt.Sprintf("duplicates items[%d].id", first),
			})
			continue
		}
		seen[i.ID] = idx
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateFilter(f SaleFilter) error {
	var fields []FieldViolation
	if f.Page < 0 {
		fields = append(fields, FieldViolation{Field: "page", Message: "must be greater than 0"})
	}
	if f.PageSize < 0 {
		fields = append(fields, FieldViolation{Field: "page_size", Message: "must be greater than 0"})
	}
	if f.PageSize > MaxPageSize {
		fields = append(fields, FieldViolation{Field: "page_size", Message: fmt.Sprintf("must be at most %d", MaxPageSize)})
	}
	if !f.MinSaleDate.IsZero() && !f.MaxSaleDate.IsZero() && f.MinSaleDate.After(f.MaxSaleDate) {
		fields = append(fields, FieldViolation{Field: "min_sale_date", Message: "must not be after max_sale_date"})
	}
	if _, err := ParseOrderBy(f.OrderBy); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fields = append(fields, ve.Fields...)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func newSaleNumber(id string) string {
	return "S-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
}
