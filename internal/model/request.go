package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxValueScale is the largest number of fractional digits a value may carry.
const MaxValueScale = 28

// maxValue is the largest magnitude a value may have (2^96 - 1).
var maxValue = decimal.RequireFromString("79228162514264337593543950335")

// ErrValueOutOfRange is returned by CheckValue.
var ErrValueOutOfRange = errors.New("out of range")

// CheckValue rejects values that do not fit a 96-bit coefficient with at most
// MaxValueScale fractional digits. The exponent is checked before the
// magnitude so that a value like 1e300000000 is never expanded.
func CheckValue(v decimal.Decimal) error {
	if exp := v.Exponent(); exp < -MaxValueScale || exp > MaxValueScale {
		return ErrValueOutOfRange
	}
	if v.Abs().GreaterThan(maxValue) {
		return ErrValueOutOfRange
	}
	return nil
}

// ItemRequest is the request body for creating an item. Fields are pointers
// so that a missing field can be told apart from a zero value; any id sent by
// the client is ignored.
type ItemRequest struct {
	Name     *string          `json:"name" validate:"required"`
	Quantity *int             `json:"quantity" validate:"required"`
	Value    *decimal.Decimal `json:"value" validate:"required"`
}

// Item converts the request into an Item without an identifier.
// It must only be called after validation.
func (r ItemRequest) Item() Item {
	return NewItem(*r.Name, *r.Quantity, *r.Value)
}

// CheckValue reports whether the value is within range. A missing value is
// left to the required rule.
func (r ItemRequest) CheckValue() error {
	if r.Value == nil {
		return nil
	}
	return CheckValue(*r.Value)
}

// ReplaceItemRequest is the request body for replacing an item. Unlike
// creation, the client supplies the id.
type ReplaceItemRequest struct {
	ItemRequest
	ID *int `json:"id" validate:"required"`
}

// Item converts the request into an Item carrying the client-supplied id.
// It must only be called after validation.
func (r ReplaceItemRequest) Item() Item {
	item := r.ItemRequest.Item()
	item.ID = *r.ID
	return item
}

// DeleteItemQuery holds the query parameters of a delete request.
type DeleteItemQuery struct {
	ID string `validate:"required,numeric"`
}
