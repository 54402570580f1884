package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"

	"github.com/Laisky/laisky-chart-files/internal/files/dataset"
	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateUpload checks the upload before any store is touched.
func (s *Service) validateUpload(up Upload) error {
	if err := getValidator().Struct(up); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.ValidationError(describeFieldError(verrs[0]))
		}
		return model.ValidationError("invalid upload")
	}

	if up.Size > s.settings.MaxUploadBytes {
		return model.ValidationError(fmt.Sprintf("file exceeds %d bytes", s.settings.MaxUploadBytes))
	}
	if !dataset.Supported(up.ContentType, up.Filename) {
		return model.ValidationError("only XML and Excel files are accepted")
	}

	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
