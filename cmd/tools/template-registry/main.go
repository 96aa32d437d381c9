// cmd/tools/template-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"booking-workers/internal/models"
	"booking-workers/internal/notification/templates"
	"booking-workers/pkg/registry"
)

func main() {
	setCmd := flag.NewFlagSet("set", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)

	setPath := setCmd.String("path", "configs/notification-templates.json", "Path to override file")
	setType := setCmd.String("type", "", "Notification type (e.g., task_overdue)")
	field := setCmd.String("field", "", "Field to override (title, message, priority, actionUrl, actionLabel, expiresInHours)")
	value := setCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", "configs/notification-templates.json", "Path to override file")

	renderPath := renderCmd.String("path", "", "Optional override file")
	renderType := renderCmd.String("type", "", "Notification type")
	renderData := renderCmd.String("data", "{}", "JSON object of template data")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set":
		setCmd.Parse(os.Args[2:])
		if *setType == "" || *field == "" {
			fmt.Println("Error: type and field are required for set.")
			setCmd.Usage()
			os.Exit(1)
		}
		if err := setOverride(*setPath, *setType, *field, *value); err != nil {
			fmt.Printf("Error updating override: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s.%s\n", *setType, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateFile(*validatePath)
		if err != nil {
			fmt.Printf("Template validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Template validation passed. %d overrides.\n", n)

	case "render":
		renderCmd.Parse(os.Args[2:])
		out, err := renderPreview(*renderPath, *renderType, *renderData)
		if err != nil {
			fmt.Printf("Render failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)

	default:
		help()
	}
}

// setOverride creates the file if it does not exist yet.
func setOverride(path, typ, field, value string) error {
	if !models.NotificationType(typ).Valid() {
		return fmt.Errorf("unknown notification type %q", typ)
	}

	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.TemplateRegistry{Version: "1"}
	}

	o, _ := reg.Find(typ)
	o.Type = typ
	switch field {
	case "title":
		o.Title = value
	case "message":
		o.Message = value
	case "priority":
		if !models.Priority(value).Valid() {
			return fmt.Errorf("invalid priority %q", value)
		}
		o.Priority = value
	case "actionUrl":
		o.ActionURL = value
	case "actionLabel":
		o.ActionLabel = value
	case "expiresInHours":
		hours, err := strconv.Atoi(value)
		if err != nil || hours < 0 {
			return fmt.Errorf("invalid expiresInHours value %q", value)
		}
		o.DefaultExpiresInHours = &hours
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.Upsert(o)
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveRegistry(reg, path)
}

// validateFile loads the overrides exactly as the worker manager would at start.
func validateFile(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(reg.Templates))
	for _, t := range reg.Templates {
		if seen[t.Type] {
			return 0, fmt.Errorf("duplicate override for %s", t.Type)
		}
		seen[t.Type] = true
	}
	if _, err := templates.LoadRegistry(path); err != nil {
		return 0, err
	}
	return len(reg.Templates), nil
}

func renderPreview(path, typ, rawData string) (string, error) {
	reg, err := templates.LoadRegistry(path)
	if err != nil {
		return "", err
	}
	t, ok := reg.Lookup(models.NotificationType(typ))
	if !ok {
		return "", fmt.Errorf("unknown notification type %q", typ)
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return "", fmt.Errorf("data must be a JSON object: %w", err)
	}
	out, err := json.MarshalIndent(t.Render(data), "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func help() {
	fmt.Print(`
Usage: template-registry <command> [flags]

Commands:
  set       Override one field of a built-in notification template
  validate  Check an override file against the known notification types
  render    Preview a template with sample data
  help      Show this help message

Examples:
  template-registry set -type task_overdue -field priority -value urgent
  template-registry validate -path configs/notification-templates.json
  template-registry render -type payment_failed -data '{"amount":"120.00","currency":"USD","payment_id":"p-1"}'

Use 'template-registry <command> -h' for more information about a command.
` + "\n")
}
