package validators

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/ecotour-booking/internal/model"
)

var validate *validator.Validate

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("visit_date", validateVisitDate)
	validate.RegisterValidation("phone_number", validatePhoneNumber)
	validate.RegisterValidation("booking_status", validateBookingStatus)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct validates a request struct and returns one entry per
// failing field.  The result is empty when s is valid.
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "request", Tag: "invalid", Message: err.Error()}}
	}
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: getErrorMessage(fe),
		})
	}
	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "visit_date":
		return "Date must be formatted as YYYY-MM-DD"
	case "phone_number":
		return "Invalid phone number format"
	case "booking_status":
		return "Unknown booking status"
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}

func validateVisitDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(fl.Field().String())
	return phoneRegex.MatchString(phone)
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseBookingStatus(fl.Field().String())
	return err == nil
}
