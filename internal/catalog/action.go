package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Form field names posted by the dashboard.
const (
	FieldAction      = "action"
	FieldID          = "id"
	FieldName        = "nombre"
	FieldDescription = "descripcion"
	FieldPrice       = "precio"
	FieldImageURL    = "imagen_url"
)

// Action discriminator values.
const (
	ActionAdd    = "add_product"
	ActionEdit   = "edit_product"
	ActionDelete = "delete_product"
)

// Action is one of AddProduct, EditProduct, DeleteProduct or Unrecognized.
type Action interface {
	Kind() string
	isAction()
}

// ProductFields are the user-editable product attributes.
type ProductFields struct {
	Name        string
	Description string
	Price       float64
	ImageURL    string
}

func (f ProductFields) valid() bool {
	return f.Name != "" && f.Description != "" && f.Price > 0
}

// AddProduct creates a product.
type AddProduct struct {
	ProductFields
}

// EditProduct replaces the fields of an existing product.
type EditProduct struct {
	ID int64
	ProductFields
}

// DeleteProduct removes a product.
type DeleteProduct struct {
	ID int64
}

// Unrecognized is any missing or unknown action value. It never mutates.
type Unrecognized struct {
	Value string
}

func (AddProduct) Kind() string    { return ActionAdd }
func (EditProduct) Kind() string   { return ActionEdit }
func (DeleteProduct) Kind() string { return ActionDelete }
func (Unrecognized) Kind() string  { return "unrecognized" }

func (AddProduct) isAction()    {}
func (EditProduct) isAction()   {}
func (DeleteProduct) isAction() {}
func (Unrecognized) isAction()  {}

// ParseAction turns a submitted form into an Action. Parsing never fails:
// malformed numbers become zero and are rejected later by validation.
func ParseAction(form url.Values) Action {
	switch value := form.Get(FieldAction); value {
	case ActionAdd:
		return AddProduct{ProductFields: parseFields(form)}
	case ActionEdit:
		return EditProduct{ID: parseID(form.Get(FieldID)), ProductFields: parseFields(form)}
	case ActionDelete:
		return DeleteProduct{ID: parseID(form.Get(FieldID))}
	default:
		return Unrecognized{Value: value}
	}
}

func parseFields(form url.Values) ProductFields {
	return ProductFields{
		Name:        strings.TrimSpace(form.Get(FieldName)),
		Description: strings.TrimSpace(form.Get(FieldDescription)),
		Price:       parsePrice(form.Get(FieldPrice)),
		ImageURL:    strings.TrimSpace(form.Get(FieldImageURL)),
	}
}

// parsePrice coerces anything that is not a finite decimal number to 0.
func parsePrice(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
