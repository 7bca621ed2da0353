package sales

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateSaleInput is the candidate sale accepted by CreateSale.
type CreateSaleInput struct {
	SaleNumber   string      `json:"sale_number" validate:"max=50"`
	SaleDate     time.Time   `json:"sale_date" validate:"required"`
	CustomerID   string      `json:"customer_id" validate:"required"`
	CustomerName string      `json:"customer_name" validate:"max=100"`
	Branch       string      `json:"branch" validate:"required,max=100"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateSaleInput is the complete replacement description accepted by UpdateSale.
type UpdateSaleInput struct {
	SaleNumber   string      `json:"sale_number" validate:"max=50"`
	SaleDate     time.Time   `json:"sale_date" validate:"required"`
	CustomerID   string      `json:"customer_id" validate:"required"`
	CustomerName string      `json:"customer_name" validate:"max=100"`
	Branch       string      `json:"branch" validate:"required,max=100"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
	Cancelled    bool        `json:"cancelled"`
}

// ItemInput describes one candidate line item. ID must be empty on create. On
// update it links the item to its previous version; an ID the sale does not
// already hold is treated as a new item.
type ItemInput struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	Image       string          `json:"image" validate:"required"`
	RatingRate  decimal.Decimal `json:"rating_rate" validate:"gte=0"`
	RatingCount int             `json:"rating_count" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"min=1,max=20"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"price"`
	Cancelled   bool            `json:"cancelled"`
}

// priceScale is the number of decimal places a unit price may carry.
const priceScale = 2

// Validator enforces the structural, field-level rules on workflow inputs.
type Validator struct {
	validate       *validator.Validate
	allowZeroPrice bool
}

// NewValidator builds a Validator. When allowZeroPrice is set a unit price of
// zero is accepted, otherwise prices must be strictly positive.
func NewValidator(allowZeroPrice bool) *Validator {
	v := &Validator{
		validate:       validator.New(),
		allowZeroPrice: allowZeroPrice,
	}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	// the custom type func above turns decimals into float64 before this runs
	_ = v.validate.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Float64 {
			return false
		}
		if v.allowZeroPrice {
			return fl.Field().Float() >= 0
		}
		return fl.Field().Float() > 0
	})

	v.validate.RegisterStructValidation(func(sl validator.StructLevel) {
		item := sl.Current().Interface().(ItemInput)
		if !item.UnitPrice.Equal(item.UnitPrice.Truncate(priceScale)) {
			sl.ReportError(item.UnitPrice, "unit_price", "UnitPrice", "scale", strconv.Itoa(priceScale))
		}
	}, ItemInput{})

	return v
}

// Struct validates in and returns a *ValidationError listing every violated field.
func (v *Validator) Struct(in interface{}) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldViolation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldViolation{
			Field:   fieldPath(fe.Namespace()),
			Message: violationMessage(fe, v.allowZeroPrice),
		})
	}
	return out
}

// fieldPath drops the root struct name: "CreateSaleInput.items[0].quantity" -> "items[0].quantity".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func violationMessage(fe validator.FieldError, allowZeroPrice bool) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " element(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "scale":
		return "must have at most " + fe.Param() + " decimal places"
	case "price":
		if allowZeroPrice {
			return "must be greater than or equal to 0"
		}
		return "must be greater than 0"
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}
