package serverutils

import (
	"fmt"
	"strings"

	"kb-ingest-be/internal/pkg/faults"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and folds violations into
// a single configuration fault.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	violations, ok := err.(validator.ValidationErrors)
	if !ok {
		return faults.Wrap(faults.KindConfiguration, err)
	}

	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s failed on %q", v.Field(), v.Tag())
	}
	return faults.Configuration("validation: %s", strings.Join(parts, ", "))
}
