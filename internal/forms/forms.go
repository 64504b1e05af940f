// Package forms defines one typed input struct per write operation and a
// pure validation step that maps raw field values to per-field error
// messages for form re-rendering.
package forms

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TweetForm carries the fields of the tweet create/edit form.
type TweetForm struct {
	Text string `form:"text" validate:"required,max=280"`
}

// RegisterForm carries the fields of the registration form. Password2 must
// repeat Password1; the 72-byte cap is the bcrypt input limit.
type RegisterForm struct {
	Username  string `form:"username" validate:"required,min=3,max=30,alphanum"`
	Email     string `form:"email" validate:"omitempty,email"`
	Password1 string `form:"password1" validate:"required,min=8,max=72"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// LoginForm carries the fields of the login form.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// Errors maps form field names to a user-facing message.
type Errors map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report errors under the lowercase form field name, not the Go field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks a form struct and returns field errors, or nil when the
// input is valid. It performs no I/O.
func Validate(form any) Errors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Errors{"form": "invalid input"}
	}
	out := make(Errors, len(errs))
	for _, fe := range errs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Must be at most " + fe.Param() + " characters."
	case "min":
		return "Must be at least " + fe.Param() + " characters."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "Passwords do not match."
	default:
		return "Invalid value."
	}
}
