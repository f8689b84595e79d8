// Package validation turns JSON request bodies into repository parameters.
// Type checks run on the raw JSON so that, for example, a boolean or a
// quoted number is rejected as a price instead of being coerced. Range and
// presence rules are declared as struct tags on the models and enforced with
// go-playground/validator.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Skryldev/product-catalog/models"
)

// Error describes why a request body was rejected. It wraps
// models.ErrInvalidInput.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return models.ErrInvalidInput }

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCreate reads a create request. name and price are required; name
// must be a non-blank string, price a number greater than zero and
// description, when present, a string. Unrecognised fields are ignored.
func DecodeCreate(r io.Reader) (models.CreateProductParams, error) {
	var params models.CreateProductParams

	fields, err := decodeObject(r)
	if err != nil {
		return params, err
	}

	name, hasName, err := stringField(fields, "name")
	if err != nil {
		return params, err
	}
	price, hasPrice, err := numberField(fields, "price")
	if err != nil {
		return params, err
	}
	if !hasName || !hasPrice {
		return params, invalid(missingField(hasName), "name and price are required")
	}
	desc, _, err := stringField(fields, "description")
	if err != nil {
		return params, err
	}

	params = models.CreateProductParams{
		Name:        strings.TrimSpace(name),
		Description: desc,
		Price:       price,
	}
	if err := check(params); err != nil {
		return models.CreateProductParams{}, err
	}
	return params, nil
}

// DecodeUpdate reads a partial update. At least one of name, description and
// price must be present with a non-null value; each present field obeys the
// same rules as on create. The returned params carry no ID.
func DecodeUpdate(r io.Reader) (models.UpdateProductParams, error) {
	var params models.UpdateProductParams

	fields, err := decodeObject(r)
	if err != nil {
		return params, err
	}

	name, hasName, err := stringField(fields, "name")
	if err != nil {
		return params, err
	}
	desc, hasDesc, err := stringField(fields, "description")
	if err != nil {
		return params, err
	}
	price, hasPrice, err := numberField(fields, "price")
	if err != nil {
		return params, err
	}

	if hasName {
		name = strings.TrimSpace(name)
		params.Name = &name
	}
	if hasDesc {
		params.Description = &desc
	}
	if hasPrice {
		params.Price = &price
	}
	if params.Empty() {
		return params, invalid("", "no fields provided for update")
	}
	if err := check(params); err != nil {
		return models.UpdateProductParams{}, err
	}
	return params, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Raw JSON helpers
// ─────────────────────────────────────────────────────────────────────────────

// decodeObject reads exactly one JSON object; anything but whitespace after
// it makes the body malformed.
func decodeObject(r io.Reader) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(r)
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("", "request body is empty")
		}
		return nil, invalid("", "request body must be a JSON object")
	}
	if fields == nil {
		return nil, invalid("", "request body must be a JSON object")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, invalid("", "request body must contain a single JSON object")
	}
	return fields, nil
}

// stringField reports the value of key and whether it was present with a
// non-null value.
func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, invalid(key, "%s must be a string", key)
	}
	return s, true, nil
}

// numberField accepts only JSON numbers: true, "12" and the like are
// rejected rather than converted.
func numberField(fields map[string]json.RawMessage, key string) (float64, bool, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return 0, false, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return 0, false, invalid(key, "%s must be a number", key)
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return 0, false, invalid(key, "%s must be a number", key)
	}
	return f, true, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func missingField(hasName bool) string {
	if !hasName {
		return "name"
	}
	return "price"
}

// ─────────────────────────────────────────────────────────────────────────────
// Struct rules
// ─────────────────────────────────────────────────────────────────────────────

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validation: %w", err)
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "gt":
		return invalid(field, "%s must be greater than zero", field)
	case "required", "min":
		return invalid(field, "%s must not be empty", field)
	default:
		return invalid(field, "%s is invalid", field)
	}
}
