package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return types.Category(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// fieldMessage renders one failed rule for API clients.
type fieldMessage func(fe validator.FieldError) string

func fixed(msg string) fieldMessage {
	return func(validator.FieldError) string { return msg }
}

func withParam(format string) fieldMessage {
	return func(fe validator.FieldError) string { return fmt.Sprintf(format, fe.Param()) }
}

var userMessages = map[string]fieldMessage{
	"Name.notblank":     fixed("Please provide a name"),
	"Name.max":          withParam("Name cannot be more than %s characters"),
	"Email.required":    fixed("Please provide an email"),
	"Email.email":       fixed("Please provide a valid email"),
	"Password.required": fixed("Please provide a password"),
	"Password.min":      withParam("Password must be at least %s characters"),
	"College.notblank":  fixed("Please provide your college name"),
	"Phone.required":    fixed("Please provide phone number"),
	"Phone.len":         fixed("Please provide a valid 10-digit phone number"),
	"Phone.number":      fixed("Please provide a valid 10-digit phone number"),
}

var hackathonMessages = map[string]fieldMessage{
	"Title.notblank":       fixed("Please provide hackathon title"),
	"Title.max":            withParam("Title cannot be more than %s characters"),
	"Description.notblank": fixed("Please provide hackathon description"),
	"Description.max":      withParam("Description cannot be more than %s characters"),
	"MaxTeamSize.min":      withParam("Team size must be at least %s"),
	"MaxTeamSize.max":      withParam("Team size cannot exceed %s"),
	"PrizePool.min":        fixed("Prize pool cannot be negative"),
	"Categories.required":  fixed("Please provide at least one category"),
	"Categories.min":       fixed("Please provide at least one category"),
	"Categories.category": func(fe validator.FieldError) string {
		return fmt.Sprintf("%q is not a valid category", fe.Value())
	},
	"MaxParticipants.min": withParam("Max participants must be at least %s"),
	"Criterion.notblank":  fixed("Judging criterion name is required"),
	"Weightage.min":       fixed("Weightage must be between 0 and 100"),
	"Weightage.max":       fixed("Weightage must be between 0 and 100"),
}

// checkStruct validates v against its validate tags and reports the first
// failed rule as a validation error.
func checkStruct(v any, messages map[string]fieldMessage) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Internal("Error validating input", err)
	}

	fe := fieldErrs[0]
	field, _, _ := strings.Cut(fe.StructField(), "[")
	if render, ok := messages[field+"."+fe.Tag()]; ok {
		return apperrors.Validation(render(fe)).WithMetadata("field", fe.Field())
	}
	return apperrors.Validationf("%s failed the %s rule", fe.Field(), fe.Tag()).WithMetadata("field", fe.Field())
}
