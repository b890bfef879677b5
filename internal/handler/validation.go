package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
)

const (
	msgInvalidBody    = "Invalid request body"
	msgMissingFields  = "Please provide all required fields"
	msgMalformedEmail = "Please provide a valid email address"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName reports validation failures under the field's JSON name
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// bindingFailure turns a ShouldBindJSON error into the message and field
// details of a 400. A missing field outranks a malformed one.
func bindingFailure(err error) (string, []dto.FieldError) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return msgInvalidBody, nil
	}

	message := msgInvalidBody
	details := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, dto.FieldError{Field: fe.Field(), Rule: fe.Tag()})

		switch fe.Tag() {
		case "required":
			message = msgMissingFields
		case "email":
			if message != msgMissingFields {
				message = msgMalformedEmail
			}
		}
	}

	return message, details
}
