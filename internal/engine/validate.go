package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a malformed toggle request. It is returned before
// any mutation or breaker interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// toggleRequest carries the identifiers of a toggle for validation.
type toggleRequest struct {
	MessageID string `validate:"notblank,max=256"`
	Emoji     string `validate:"notblank,max=64"`
	UserID    string `validate:"notblank,max=256"`
	UserName  string `validate:"notblank,max=256"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	err := validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
}

var fieldNames = map[string]string{
	"MessageID": "message_id",
	"Emoji":     "emoji",
	"UserID":    "user_id",
	"UserName":  "user_name",
}

func (r toggleRequest) validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "request", Reason: err.Error()}
	}
	fe := verrs[0]
	field := fieldNames[fe.Field()]
	switch fe.Tag() {
	case "notblank":
		return &ValidationError{Field: field, Reason: "must not be empty"}
	case "max":
		return &ValidationError{Field: field, Reason: "longer than " + fe.Param() + " characters"}
	default:
		return &ValidationError{Field: field, Reason: fe.Tag()}
	}
}
