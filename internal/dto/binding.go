package dto

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// RegisterCustomValidations installs domain-aware checks on gin's binding
// validator. Call once at startup, before any request is bound.
func RegisterCustomValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator engine is not *validator.Validate")
	}
	return v.RegisterValidation("correctable", func(fl validator.FieldLevel) bool {
		return domain.IsCorrectableField(fl.Field().String())
	})
}
