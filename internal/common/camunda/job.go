package camunda

import (
	"encoding/json"
	"fmt"
	"strings"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
)

// DecodeVariables validates a job's variables against schema and decodes them into out.
func DecodeVariables(job entities.Job, schema *validation.Schema, out interface{}) error {
	return DecodeJSON(job.GetVariables(), schema, out)
}

// DecodeJSON is DecodeVariables for a raw variables document.
func DecodeJSON(variables string, schema *validation.Schema, out interface{}) error {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}
	if schema != nil {
		if res := schema.ValidateJSON(variables); !res.Valid {
			return errors.NewValidationError(res.FirstField(),
				fmt.Sprintf("Validation errors: %v", res.GetErrorMessages()))
		}
	}
	if err := json.Unmarshal([]byte(variables), out); err != nil {
		return errors.NewValidationError("(root)", fmt.Sprintf("decode job variables: %v", err))
	}
	return nil
}
