package order

import (
	"errors"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var validate = validatorv10.New()

// CreateOrderInput is the order intake payload.
type CreateOrderInput struct {
	ItemName string `json:"item_name" validate:"required,max=100"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=1000"`
}

// Validate rejects bad input before any mutation happens. The returned
// error is an errorbank bad_request carrying one detail per failed field.
func (in CreateOrderInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validatorv10.ValidationErrors
	opts := []errorbank.Option{errorbank.WithCause(err)}
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			opts = append(opts, errorbank.WithDetail(fieldName(fe.Field()), ruleMessage(fe)))
		}
	}
	return errorbank.BadRequest("invalid order payload", opts...)
}

func fieldName(structField string) string {
	switch structField {
	case "ItemName":
		return "item_name"
	case "Quantity":
		return "quantity"
	default:
		return structField
	}
}

func ruleMessage(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
