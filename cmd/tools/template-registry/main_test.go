package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOverride_CreatesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")

	require.NoError(t, setOverride(path, "task_overdue", "priority", "urgent"))
	require.NoError(t, setOverride(path, "task_overdue", "title", "Late: {{task_title}}"))
	require.NoError(t, setOverride(path, "payment_failed", "expiresInHours", "72"))

	n, err := validateFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := renderPreview(path, "task_overdue", `{"task_title":"Paint walls"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Late: Paint walls")
	assert.Contains(t, out, `"Priority": "urgent"`)
}

func TestSetOverride_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")

	assert.ErrorContains(t, setOverride(path, "not_a_type", "title", "x"), "unknown notification type")
	assert.ErrorContains(t, setOverride(path, "task_overdue", "priority", "critical"), "invalid priority")
	assert.ErrorContains(t, setOverride(path, "task_overdue", "expiresInHours", "-1"), "invalid expiresInHours")
	assert.ErrorContains(t, setOverride(path, "task_overdue", "colour", "red"), "unknown field")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateFile_Duplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"templates":[
		{"type":"task_overdue","title":"a"},
		{"type":"task_overdue","title":"b"}
	]}`), 0o600))

	_, err := validateFile(path)
	assert.ErrorContains(t, err, "duplicate override")
}

func TestRenderPreview_BuiltinOnly(t *testing.T) {
	out, err := renderPreview("", "payment_failed", `{"amount":"120.00","currency":"USD","payment_id":"p-1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "/payments/p-1")

	_, err = renderPreview("", "payment_failed", `[1]`)
	assert.ErrorContains(t, err, "JSON object")
}
