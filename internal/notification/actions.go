package notification

import (
	"strings"

	"booking-workers/internal/models"
	"booking-workers/internal/notification/templates"
)

// deriveAction picks the action link for a type. The registry's URL is used when
// data fills every placeholder; otherwise the category landing page.
func (s *Service) deriveAction(typ models.NotificationType, data map[string]interface{}) (string, string) {
	if tmpl, ok := s.templates.Lookup(typ); ok {
		r := tmpl.Render(data)
		if url := unresolvedToEmpty(r.ActionURL); url != "" {
			return url, r.ActionLabel
		}
	}

	switch typ.Category() {
	case models.CategoryTask, models.CategoryMilestone, models.CategoryBooking:
		if id := templates.Stringify(data["booking_id"]); id != "" {
			return "/bookings/" + id, "View booking"
		}
		return "/bookings", "View bookings"
	case models.CategoryPayment:
		return "/payments", "View payments"
	case models.CategoryInvoice:
		return "/invoices", "View invoices"
	case models.CategoryMessage:
		return "/messages", "Open messages"
	case models.CategoryDocument:
		return "/documents", "View documents"
	}
	if typ == models.TypeSecurityAlert || typ == models.TypeAccountUpdated {
		return "/settings", "Review settings"
	}
	return "/notifications", "View"
}

// unresolvedToEmpty blanks a URL that still carries a {{placeholder}}.
func unresolvedToEmpty(url string) string {
	if strings.Contains(url, "{{") {
		return ""
	}
	return url
}
