package models

import "errors"

// ErrInvalidInput is returned when a request is missing a required field or
// carries a value of the wrong type or range.
var ErrInvalidInput = errors.New("catalog: invalid input")

// Product represents a row in the "products" table.
// Description is never nil on the wire: a stored NULL is read back as "".
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// CreateProductParams holds the fields required to create a new product.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit.
type CreateProductParams struct {
	Name        string  `validate:"required"`
	Description string  `validate:"-"`
	Price       float64 `validate:"gt=0"`
}

// UpdateProductParams holds fields that can be updated. All fields are
// pointers so callers only set what needs changing; the repository builds the
// explicit SQL accordingly.
type UpdateProductParams struct {
	ID          int64    `validate:"-"`
	Name        *string  `validate:"omitnil,min=1"`
	Description *string  `validate:"-"`
	Price       *float64 `validate:"omitnil,gt=0"`
}

// Empty reports whether no field is set.
func (p UpdateProductParams) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil
}
