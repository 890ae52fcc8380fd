package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FormValue is a raw form field. It decodes from a JSON string or number so
// clients can post either "2.50" or 2.50.
type FormValue string

func (v *FormValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = FormValue(n.String())
	return nil
}

// Trimmed returns the value without surrounding whitespace.
func (v FormValue) Trimmed() string { return strings.TrimSpace(string(v)) }

// ProductForm carries the product fields as entered by staff.
type ProductForm struct {
	Name        FormValue `json:"name" validate:"required"`
	Description FormValue `json:"description" validate:"required"`
	Category    FormValue `json:"category" validate:"required"`
	Price       FormValue `json:"price" validate:"required"`
	Quantity    FormValue `json:"quantity" validate:"required"`
}

// Normalize trims every field in place.
func (f *ProductForm) Normalize() {
	f.Name = FormValue(f.Name.Trimmed())
	f.Description = FormValue(f.Description.Trimmed())
	f.Category = FormValue(f.Category.Trimmed())
	f.Price = FormValue(f.Price.Trimmed())
	f.Quantity = FormValue(f.Quantity.Trimmed())
}

// UserForm carries the user fields as entered by staff. Password is a pointer
// so an absent field can be told apart from an empty one.
type UserForm struct {
	Name     string  `json:"name"`
	Password *string `json:"password"`
}

// Credentials are the email/password pair used to sign up or sign in.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// StockForm carries the amount of a restock or sell request.
type StockForm struct {
	Amount FormValue `json:"amount"`
}
