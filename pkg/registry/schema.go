// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk override file for notification templates.
type TemplateRegistry struct {
	Version     string             `json:"version"`
	LastUpdated string             `json:"lastUpdated"`
	Templates   []TemplateOverride `json:"templates"`
}

// TemplateOverride replaces the non-empty fields of one built-in template.
type TemplateOverride struct {
	Type                  string `json:"type"`
	Title                 string `json:"title,omitempty"`
	Message               string `json:"message,omitempty"`
	Priority              string `json:"priority,omitempty"`
	ActionURL             string `json:"actionUrl,omitempty"`
	ActionLabel           string `json:"actionLabel,omitempty"`
	DefaultExpiresInHours *int   `json:"defaultExpiresInHours,omitempty"`
}
