package email

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"booking-workers/internal/models"
)

type Style string

const (
	StyleModern    Style = "modern"
	StyleMinimal   Style = "minimal"
	StyleCorporate Style = "corporate"
)

// ParseStyle maps s to a known style, falling back to modern.
func ParseStyle(s string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleMinimal:
		return StyleMinimal
	case StyleCorporate:
		return StyleCorporate
	}
	return StyleModern
}

var priorityColors = map[models.Priority]string{
	models.PriorityUrgent: "#dc2626",
	models.PriorityHigh:   "#ea580c",
	models.PriorityMedium: "#2563eb",
	models.PriorityLow:    "#6b7280",
}

// PriorityColor returns the accent color for p. Unknown priorities render as medium.
func PriorityColor(p models.Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c
	}
	return priorityColors[models.PriorityMedium]
}

type view struct {
	AppName     string
	Greeting    string
	Heading     string
	Intro       string
	Details     []Detail
	ActionURL   string
	ActionLabel string
	Priority    string
	Color       string
	Year        int
}

const modernLayout = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Heading}}</title></head>
<body style="margin:0;padding:24px;background:#f3f4f6;font-family:-apple-system,Segoe UI,Roboto,sans-serif;">
<table role="presentation" width="100%" style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;overflow:hidden;">
<tr><td style="height:6px;background:{{.Color}};"></td></tr>
<tr><td style="padding:32px;">
<p style="margin:0 0 8px;font-size:12px;text-transform:uppercase;letter-spacing:1px;color:{{.Color}};">{{.Priority}} priority</p>
<h1 style="margin:0 0 16px;font-size:22px;color:#111827;">{{.Heading}}</h1>
<p style="margin:0 0 16px;color:#374151;">{{.Greeting}}</p>
{{if .Intro}}<p style="margin:0 0 24px;color:#374151;line-height:1.5;">{{.Intro}}</p>{{end}}
{{if .Details}}<table role="presentation" width="100%" style="border-collapse:collapse;margin-bottom:24px;">
{{range .Details}}{{if .Value}}<tr><td style="padding:8px 0;color:#6b7280;width:40%;">{{.Label}}</td><td style="padding:8px 0;color:#111827;font-weight:600;">{{.Value}}</td></tr>{{end}}
{{end}}</table>{{end}}
{{if .ActionURL}}<a href="{{.ActionURL}}" style="display:inline-block;padding:12px 24px;background:{{.Color}};color:#ffffff;text-decoration:none;border-radius:8px;font-weight:600;">{{.ActionLabel}}</a>{{end}}
</td></tr>
<tr><td style="padding:16px 32px;background:#f9fafb;font-size:12px;color:#9ca3af;">&copy; {{.Year}} {{.AppName}}</td></tr>
</table>
</body></html>`

const minimalLayout = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Heading}}</title></head>
<body style="margin:0;padding:32px;font-family:Georgia,serif;color:#111827;">
<div style="max-width:560px;margin:0 auto;border-left:3px solid {{.Color}};padding-left:20px;">
<h2 style="margin:0 0 12px;font-weight:normal;">{{.Heading}}</h2>
<p>{{.Greeting}}</p>
{{if .Intro}}<p style="line-height:1.6;">{{.Intro}}</p>{{end}}
{{range .Details}}{{if .Value}}<p style="margin:4px 0;"><span style="color:#6b7280;">{{.Label}}:</span> {{.Value}}</p>{{end}}
{{end}}
{{if .ActionURL}}<p style="margin-top:24px;"><a href="{{.ActionURL}}" style="color:{{.Color}};">{{.ActionLabel}} &rarr;</a></p>{{end}}
<p style="margin-top:32px;font-size:12px;color:#9ca3af;">{{.AppName}}</p>
</div>
</body></html>`

const corporateLayout = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Heading}}</title></head>
<body style="margin:0;padding:0;background:#e5e7eb;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td style="background:#1f2937;padding:20px 32px;color:#ffffff;font-size:18px;font-weight:bold;">{{.AppName}}</td></tr>
<tr><td style="padding:24px 32px;background:#ffffff;">
<table role="presentation" width="100%"><tr>
<td style="font-size:20px;color:#111827;font-weight:bold;">{{.Heading}}</td>
<td align="right"><span style="padding:4px 10px;background:{{.Color}};color:#ffffff;font-size:11px;text-transform:uppercase;">{{.Priority}}</span></td>
</tr></table>
<p style="color:#374151;">{{.Greeting}}</p>
{{if .Intro}}<p style="color:#374151;line-height:1.5;">{{.Intro}}</p>{{end}}
{{if .Details}}<table role="presentation" width="100%" cellpadding="8" style="border:1px solid #d1d5db;border-collapse:collapse;margin:16px 0;">
{{range .Details}}{{if .Value}}<tr><th align="left" style="background:#f3f4f6;border:1px solid #d1d5db;width:35%;">{{.Label}}</th><td style="border:1px solid #d1d5db;">{{.Value}}</td></tr>{{end}}
{{end}}</table>{{end}}
{{if .ActionURL}}<p><a href="{{.ActionURL}}" style="display:inline-block;padding:10px 20px;background:#1f2937;color:#ffffff;text-decoration:none;border-bottom:3px solid {{.Color}};">{{.ActionLabel}}</a></p>{{end}}
</td></tr>
<tr><td style="padding:16px 32px;font-size:11px;color:#6b7280;">This message was sent by {{.AppName}}. &copy; {{.Year}}</td></tr>
</table>
</body></html>`

var layouts = map[Style]*template.Template{
	StyleModern:    template.Must(template.New("modern").Parse(modernLayout)),
	StyleMinimal:   template.Must(template.New("minimal").Parse(minimalLayout)),
	StyleCorporate: template.Must(template.New("corporate").Parse(corporateLayout)),
}

// RenderHTML wraps c in the layout for style.
func RenderHTML(style Style, c Content, n *models.Notification, recipientName, appName string) (string, error) {
	label := n.ActionLabel
	if label == "" {
		label = "View details"
	}
	priority := n.Priority
	if _, ok := priorityColors[priority]; !ok {
		priority = models.PriorityMedium
	}

	v := view{
		AppName:     appName,
		Greeting:    greeting(recipientName),
		Heading:     c.Heading,
		Intro:       c.Intro,
		Details:     c.Details,
		ActionURL:   n.ActionURL,
		ActionLabel: label,
		Priority:    string(priority),
		Color:       PriorityColor(priority),
		Year:        time.Now().Year(),
	}

	var buf bytes.Buffer
	if err := layouts[ParseStyle(string(style))].Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
