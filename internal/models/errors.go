package models

import "github.com/pkg/errors"

// Базовые ошибки домена. Сервисы и хранилище оборачивают их через errors.Wrap,
// HTTP слой распознаёт через errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidation         = errors.New("validation failed")
	ErrRateLimited        = errors.New("rate limited")
)

func Validationf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}
