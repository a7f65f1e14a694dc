package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"libris/pkg/logger"
	"libris/pkg/model"
)

// ISBN-10 or ISBN-13, digits only.
var isbnRegex = regexp.MustCompile(`^\d{10}(\d{3})?$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookValidator(log *logger.Logger) *BookValidator {
	v := validator.New()

	if err := v.RegisterValidation("isbn", validateISBN); err != nil {
		log.Fatal("Failed to register 'isbn' validator",
			"error", err,
		)
	}

	return &BookValidator{
		validate: v,
		logger:   log,
	}
}

func validateISBN(fl validator.FieldLevel) bool {
	return isbnRegex.MatchString(fl.Field().String())
}

func (v *BookValidator) ValidateCreate(req *model.BookCreate) error {
	return v.run(req)
}

func (v *BookValidator) ValidateUpdate(req *model.BookUpdate) error {
	return v.run(req)
}

func (v *BookValidator) ValidateHold(req *model.HoldRequest) error {
	return v.run(req)
}

func (v *BookValidator) ValidateCheckout(req *model.CheckoutRequest) error {
	return v.run(req)
}

func (v *BookValidator) run(req any) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "isbn":
			message = fmt.Sprintf("%s must be a 10 or 13 digit ISBN", err.Field())
		case "uuid":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
