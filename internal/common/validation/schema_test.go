package validation

import (
	"testing"

	"booking-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskSchema = MustCompile(`{
	"type": "object",
	"required": ["taskId", "status"],
	"properties": {
		"taskId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "cancelled", "on_hold"]}
	}
}`)

func TestSchema_ValidateJSON(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		valid    bool
		errField string
	}{
		{name: "valid", doc: `{"taskId":"t-1","status":"completed"}`, valid: true},
		{name: "missing required", doc: `{"status":"completed"}`, errField: "taskId"},
		{name: "bad enum", doc: `{"taskId":"t-1","status":"done"}`, errField: "status"},
		{name: "not json", doc: `{"taskId":`, errField: "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := taskSchema.ValidateJSON(tt.doc)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.True(t, res.HasErrors(tt.errField), res.GetErrorMessages())
			}
		})
	}
}

func TestSchema_ValidateInput(t *testing.T) {
	res := taskSchema.ValidateInput(map[string]interface{}{"taskId": "", "status": "pending"})
	assert.False(t, res.Valid)
	assert.Equal(t, "taskId", res.FirstField())
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateEmailAndPhone(t *testing.T) {
	assert.True(t, ValidateEmail("client@example.com"))
	assert.False(t, ValidateEmail("client@"))
	assert.True(t, ValidatePhone("+447700900123"))
	assert.False(t, ValidatePhone("12"))
}

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID("taskId", "9b2f4c1e-6a57-4f43-9a8e-0d1c2b3a4f50"))

	err := UUID("taskId", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	err = UUID("taskId", "not-a-uuid")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Contains(t, err.Error(), "taskId")
}
