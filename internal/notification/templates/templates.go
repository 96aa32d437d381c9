// Package templates holds the title, message and action defaults for every notification type.
package templates

import (
	"fmt"
	"sync"

	"booking-workers/internal/models"
	"booking-workers/pkg/registry"
)

// Template is the static content definition for one notification type.
type Template struct {
	Type                  models.NotificationType
	Title                 string
	Message               string
	Priority              models.Priority
	ActionURL             string
	ActionLabel           string
	DefaultExpiresInHours int
}

var builtin = []Template{
	{models.TypeTaskCreated, "New task: {{task_title}}", "A new task \"{{task_title}}\" was added to {{booking_title}}.", models.PriorityMedium, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 0},
	{models.TypeTaskAssigned, "Task assigned: {{task_title}}", "You have been assigned \"{{task_title}}\" by {{assigner_name}}.", models.PriorityHigh, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 0},
	{models.TypeTaskUpdated, "Task updated: {{task_title}}", "\"{{task_title}}\" was updated.", models.PriorityLow, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 168},
	{models.TypeTaskCompleted, "Task completed: {{task_title}}", "\"{{task_title}}\" in {{booking_title}} is complete.", models.PriorityMedium, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 0},
	{models.TypeTaskStatusChanged, "Task status changed: {{task_title}}", "\"{{task_title}}\" moved from {{old_status}} to {{new_status}}.", models.PriorityLow, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 168},
	{models.TypeTaskOverdue, "Task overdue: {{task_title}}", "\"{{task_title}}\" was due on {{due_date}}.", models.PriorityHigh, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 0},
	{models.TypeTaskDueSoon, "Task due soon: {{task_title}}", "\"{{task_title}}\" is due on {{due_date}}.", models.PriorityMedium, "/bookings/{{booking_id}}/tasks/{{task_id}}", "View task", 72},
	{models.TypeTaskCommentAdded, "New comment on {{task_title}}", "{{author_name}} commented: {{comment}}", models.PriorityLow, "/bookings/{{booking_id}}/tasks/{{task_id}}#comments", "Read comment", 168},

	{models.TypeMilestoneCreated, "New milestone: {{milestone_title}}", "Milestone \"{{milestone_title}}\" was added to {{booking_title}}.", models.PriorityMedium, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View milestone", 0},
	{models.TypeMilestoneUpdated, "Milestone updated: {{milestone_title}}", "Milestone \"{{milestone_title}}\" was updated.", models.PriorityLow, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View milestone", 168},
	{models.TypeMilestoneCompleted, "Milestone completed: {{milestone_title}}", "Milestone \"{{milestone_title}}\" in {{booking_title}} is complete and ready for review.", models.PriorityHigh, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "Review milestone", 0},
	{models.TypeMilestoneApproved, "Milestone approved: {{milestone_title}}", "The client approved \"{{milestone_title}}\".", models.PriorityMedium, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View milestone", 0},
	{models.TypeMilestoneRejected, "Milestone needs changes: {{milestone_title}}", "The client requested changes to \"{{milestone_title}}\". {{reason}}", models.PriorityHigh, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View feedback", 0},
	{models.TypeMilestoneOverdue, "Milestone overdue: {{milestone_title}}", "Milestone \"{{milestone_title}}\" was due on {{due_date}}.", models.PriorityHigh, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View milestone", 0},
	{models.TypeMilestoneProgressUpdated, "Progress on {{milestone_title}}", "Milestone \"{{milestone_title}}\" is now {{progress}}% complete.", models.PriorityLow, "/bookings/{{booking_id}}/milestones/{{milestone_id}}", "View progress", 72},

	{models.TypeBookingCreated, "New booking: {{booking_title}}", "A booking for {{service_name}} was created.", models.PriorityMedium, "/bookings/{{booking_id}}", "View booking", 0},
	{models.TypeBookingConfirmed, "Booking confirmed: {{booking_title}}", "Your booking for {{service_name}} is confirmed for {{scheduled_date}}.", models.PriorityHigh, "/bookings/{{booking_id}}", "View booking", 0},
	{models.TypeBookingCancelled, "Booking cancelled: {{booking_title}}", "The booking for {{service_name}} was cancelled. {{reason}}", models.PriorityHigh, "/bookings/{{booking_id}}", "View booking", 0},
	{models.TypeBookingCompleted, "Booking completed: {{booking_title}}", "All work on {{booking_title}} is complete.", models.PriorityMedium, "/bookings/{{booking_id}}", "Leave a review", 0},
	{models.TypeBookingUpdated, "Booking updated: {{booking_title}}", "Details of {{booking_title}} were changed.", models.PriorityLow, "/bookings/{{booking_id}}", "View booking", 168},
	{models.TypeBookingReminder, "Reminder: {{booking_title}}", "{{booking_title}} is scheduled for {{scheduled_date}}.", models.PriorityMedium, "/bookings/{{booking_id}}", "View booking", 48},
	{models.TypeBookingProgressUpdated, "Progress on {{booking_title}}", "{{booking_title}} is now {{progress}}% complete.", models.PriorityLow, "/bookings/{{booking_id}}/progress", "View progress", 72},

	{models.TypePaymentReceived, "Payment received", "We received {{amount}} {{currency}} for {{booking_title}}.", models.PriorityMedium, "/payments/{{payment_id}}", "View payment", 0},
	{models.TypePaymentFailed, "Payment failed", "Your payment of {{amount}} {{currency}} failed: {{reason}}", models.PriorityUrgent, "/payments/{{payment_id}}", "Update payment", 0},
	{models.TypePaymentRefunded, "Payment refunded", "{{amount}} {{currency}} was refunded for {{booking_title}}.", models.PriorityMedium, "/payments/{{payment_id}}", "View refund", 0},
	{models.TypePaymentPending, "Payment pending", "A payment of {{amount}} {{currency}} is awaiting confirmation.", models.PriorityLow, "/payments/{{payment_id}}", "View payment", 72},

	{models.TypeInvoiceCreated, "Invoice {{invoice_number}} created", "Invoice {{invoice_number}} for {{amount}} {{currency}} is due on {{due_date}}.", models.PriorityMedium, "/invoices/{{invoice_id}}", "View invoice", 0},
	{models.TypeInvoiceSent, "Invoice {{invoice_number}}", "You have a new invoice for {{amount}} {{currency}}, due on {{due_date}}.", models.PriorityHigh, "/invoices/{{invoice_id}}", "Pay invoice", 0},
	{models.TypeInvoicePaid, "Invoice {{invoice_number}} paid", "Invoice {{invoice_number}} for {{amount}} {{currency}} was paid.", models.PriorityMedium, "/invoices/{{invoice_id}}", "View invoice", 0},
	{models.TypeInvoiceOverdue, "Invoice {{invoice_number}} overdue", "Invoice {{invoice_number}} for {{amount}} {{currency}} was due on {{due_date}}.", models.PriorityUrgent, "/invoices/{{invoice_id}}", "Pay invoice", 0},

	{models.TypeMessageReceived, "New message from {{sender_name}}", "{{message_preview}}", models.PriorityMedium, "/messages/{{conversation_id}}", "Reply", 168},
	{models.TypeMessageReply, "{{sender_name}} replied", "{{message_preview}}", models.PriorityMedium, "/messages/{{conversation_id}}", "Reply", 168},

	{models.TypeDocumentUploaded, "Document uploaded: {{document_name}}", "{{uploader_name}} uploaded \"{{document_name}}\" to {{booking_title}}.", models.PriorityLow, "/bookings/{{booking_id}}/documents/{{document_id}}", "View document", 0},
	{models.TypeDocumentApproved, "Document approved: {{document_name}}", "\"{{document_name}}\" was approved.", models.PriorityMedium, "/bookings/{{booking_id}}/documents/{{document_id}}", "View document", 0},
	{models.TypeDocumentRejected, "Document rejected: {{document_name}}", "\"{{document_name}}\" was rejected. {{reason}}", models.PriorityHigh, "/bookings/{{booking_id}}/documents/{{document_id}}", "View document", 0},
	{models.TypeDocumentShared, "Document shared: {{document_name}}", "{{sharer_name}} shared \"{{document_name}}\" with you.", models.PriorityLow, "/bookings/{{booking_id}}/documents/{{document_id}}", "Open document", 0},

	{models.TypeSystemAnnouncement, "{{announcement_title}}", "{{announcement_body}}", models.PriorityLow, "/announcements", "Read more", 336},
	{models.TypeSystemMaintenance, "Scheduled maintenance", "The platform will be unavailable from {{start_time}} to {{end_time}}.", models.PriorityMedium, "/status", "View status", 72},
	{models.TypeAccountUpdated, "Account updated", "Your account details were changed: {{changes}}.", models.PriorityMedium, "/settings/account", "Review account", 0},
	{models.TypeSecurityAlert, "Security alert", "{{alert_message}}", models.PriorityUrgent, "/settings/security", "Review activity", 0},
}

// Lookup returns the built-in template for typ.
func Lookup(typ models.NotificationType) (Template, bool) {
	t, ok := builtinIndex()[typ]
	return t, ok
}

var (
	indexOnce sync.Once
	index     map[models.NotificationType]Template
)

func builtinIndex() map[models.NotificationType]Template {
	indexOnce.Do(func() {
		index = make(map[models.NotificationType]Template, len(builtin))
		for _, t := range builtin {
			index[t.Type] = t
		}
	})
	return index
}

// Registry is the built-in table with any file overrides applied. It is read-only after construction.
type Registry struct {
	templates map[models.NotificationType]Template
}

// NewRegistry returns a registry over the built-in table.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[models.NotificationType]Template, len(builtin))}
	for _, t := range builtin {
		r.templates[t.Type] = t
	}
	return r
}

// LoadRegistry builds a registry and merges the override file at path, if path is set.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}
	file, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load template overrides: %w", err)
	}
	if err := r.apply(file.Templates); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) apply(overrides []registry.TemplateOverride) error {
	for _, o := range overrides {
		typ := models.NotificationType(o.Type)
		t, ok := r.templates[typ]
		if !ok {
			return fmt.Errorf("template override for unknown type %q", o.Type)
		}
		if o.Title != "" {
			t.Title = o.Title
		}
		if o.Message != "" {
			t.Message = o.Message
		}
		if o.Priority != "" {
			p := models.Priority(o.Priority)
			if !p.Valid() {
				return fmt.Errorf("template override for %q: invalid priority %q", o.Type, o.Priority)
			}
			t.Priority = p
		}
		if o.ActionURL != "" {
			t.ActionURL = o.ActionURL
		}
		if o.ActionLabel != "" {
			t.ActionLabel = o.ActionLabel
		}
		if o.DefaultExpiresInHours != nil {
			t.DefaultExpiresInHours = *o.DefaultExpiresInHours
		}
		r.templates[typ] = t
	}
	return nil
}

func (r *Registry) Lookup(typ models.NotificationType) (Template, bool) {
	t, ok := r.templates[typ]
	return t, ok
}

// Len is the number of known types.
func (r *Registry) Len() int {
	return len(r.templates)
}
