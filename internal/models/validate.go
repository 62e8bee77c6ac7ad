package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Validate проверяет struct-теги и возвращает ошибку, обёрнутую в ErrValidation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(ErrValidation, err.Error())
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errors.Wrap(ErrValidation, strings.Join(parts, "; "))
}
