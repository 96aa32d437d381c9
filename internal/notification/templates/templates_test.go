package templates

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"booking-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		data map[string]interface{}
		want string
	}{
		{name: "single key", in: "Task {{task_title}}", data: map[string]interface{}{"task_title": "Foo"}, want: "Task Foo"},
		{name: "missing key left literal", in: "Task {{task_title}}", data: map[string]interface{}{"other": 1}, want: "Task {{task_title}}"},
		{name: "nil data", in: "Task {{task_title}}", data: nil, want: "Task {{task_title}}"},
		{name: "repeated key", in: "{{a}}-{{a}}", data: map[string]interface{}{"a": "x"}, want: "x-x"},
		{name: "numbers", in: "{{progress}}% of {{amount}}", data: map[string]interface{}{"progress": 88, "amount": 12.5}, want: "88% of 12.5"},
		{name: "whole float", in: "{{n}}", data: map[string]interface{}{"n": float64(88)}, want: "88"},
		{name: "nil value", in: "[{{reason}}]", data: map[string]interface{}{"reason": nil}, want: "[]"},
		{name: "spaces are not keys", in: "{{ task_title }}", data: map[string]interface{}{"task_title": "Foo"}, want: "{{ task_title }}"},
		{name: "time", in: "{{due}}", data: map[string]interface{}{"due": time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)}, want: "2026-03-04 09:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.in, tt.data))
		})
	}
}

func TestLookup_CoversEveryType(t *testing.T) {
	for _, typ := range models.AllNotificationTypes {
		tmpl, ok := Lookup(typ)
		require.True(t, ok, "missing template for %s", typ)
		assert.Equal(t, typ, tmpl.Type)
		assert.NotEmpty(t, tmpl.Title, typ)
		assert.NotEmpty(t, tmpl.Message, typ)
		assert.True(t, tmpl.Priority.Valid(), typ)
		assert.NotEmpty(t, tmpl.ActionURL, typ)
		assert.NotEmpty(t, tmpl.ActionLabel, typ)
	}
	assert.Len(t, builtin, len(models.AllNotificationTypes))

	_, ok := Lookup("unknown_type")
	assert.False(t, ok)
}

func TestTemplate_Render(t *testing.T) {
	tmpl, ok := Lookup(models.TypeMilestoneCompleted)
	require.True(t, ok)

	out := tmpl.Render(map[string]interface{}{
		"milestone_title": "Design",
		"milestone_id":    "m-1",
		"booking_id":      "b-1",
	})
	assert.Equal(t, "Milestone completed: Design", out.Title)
	assert.Contains(t, out.Message, "{{booking_title}}")
	assert.Equal(t, "/bookings/b-1/milestones/m-1", out.ActionURL)
	assert.Equal(t, models.PriorityHigh, out.Priority)
}

func TestLoadRegistry_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "1",
		"templates": [
			{"type": "task_created", "title": "Heads up: {{task_title}}", "priority": "high", "defaultExpiresInHours": 24}
		]
	}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, len(models.AllNotificationTypes), reg.Len())

	tmpl, ok := reg.Lookup(models.TypeTaskCreated)
	require.True(t, ok)
	assert.Equal(t, "Heads up: {{task_title}}", tmpl.Title)
	assert.Equal(t, models.PriorityHigh, tmpl.Priority)
	assert.Equal(t, 24, tmpl.DefaultExpiresInHours)
	assert.Contains(t, tmpl.Message, "{{booking_title}}")

	// The package table is untouched.
	builtinTmpl, _ := Lookup(models.TypeTaskCreated)
	assert.Equal(t, "New task: {{task_title}}", builtinTmpl.Title)
}

func TestLoadRegistry_RejectsBadOverrides(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.json":  `{"templates": [{"type": "task_exploded", "title": "x"}]}`,
		"priority.json": `{"templates": [{"type": "task_created", "priority": "critical"}]}`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := LoadRegistry(path)
		assert.Error(t, err, name)
	}

	reg, err := LoadRegistry("")
	require.NoError(t, err)
	_, ok := reg.Lookup(models.TypeSecurityAlert)
	assert.True(t, ok)
}
