package email

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"booking-workers/internal/models"
	"booking-workers/internal/notification/templates"
)

// Content is the style-independent body of one email.
type Content struct {
	Subject string
	Heading string
	Intro   string
	Details []Detail
	Text    string
}

type Detail struct {
	Label string
	Value string
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindDate
	kindAmount
	kindPercent
)

type field struct {
	label string
	key   string
	kind  fieldKind
}

// contentLayout describes the email for one notification type. Subjects may reference
// any declared field key with {{key}}.
type contentLayout struct {
	subject string
	heading string
	fields  []field
}

var (
	fTask      = field{"Task", "task_title", kindText}
	fMilestone = field{"Milestone", "milestone_title", kindText}
	fBooking   = field{"Booking", "booking_title", kindText}
	fService   = field{"Service", "service_name", kindText}
	fDue       = field{"Due date", "due_date", kindDate}
	fScheduled = field{"Scheduled for", "scheduled_date", kindDate}
	fAmount    = field{"Amount", "amount", kindAmount}
	fInvoice   = field{"Invoice", "invoice_number", kindText}
	fReason    = field{"Reason", "reason", kindText}
	fProgress  = field{"Progress", "progress", kindPercent}
	fDocument  = field{"Document", "document_name", kindText}
	fSender    = field{"From", "sender_name", kindText}
)

var contentLayouts = map[models.NotificationType]contentLayout{
	models.TypeTaskCreated:       {"New task: {{task_title}}", "A new task was added", []field{fTask, fBooking, fDue}},
	models.TypeTaskAssigned:      {"You've been assigned {{task_title}}", "New assignment", []field{fTask, fBooking, {"Assigned by", "assigner_name", kindText}, fDue}},
	models.TypeTaskUpdated:       {"Task updated: {{task_title}}", "Task updated", []field{fTask, fBooking}},
	models.TypeTaskCompleted:     {"Task completed: {{task_title}}", "Task completed", []field{fTask, fBooking}},
	models.TypeTaskStatusChanged: {"{{task_title}} is now {{new_status}}", "Task status changed", []field{fTask, {"Previous status", "old_status", kindText}, {"New status", "new_status", kindText}}},
	models.TypeTaskOverdue:       {"Overdue: {{task_title}}", "A task is overdue", []field{fTask, fBooking, fDue}},
	models.TypeTaskDueSoon:       {"Due {{due_date}}: {{task_title}}", "A task is due soon", []field{fTask, fBooking, fDue}},
	models.TypeTaskCommentAdded:  {"New comment on {{task_title}}", "New comment", []field{fTask, {"Author", "author_name", kindText}, {"Comment", "comment", kindText}}},

	models.TypeMilestoneCreated:         {"New milestone: {{milestone_title}}", "A new milestone was added", []field{fMilestone, fBooking, fDue}},
	models.TypeMilestoneUpdated:         {"Milestone updated: {{milestone_title}}", "Milestone updated", []field{fMilestone, fBooking}},
	models.TypeMilestoneCompleted:       {"Ready for review: {{milestone_title}}", "Milestone completed", []field{fMilestone, fBooking}},
	models.TypeMilestoneApproved:        {"Approved: {{milestone_title}}", "Milestone approved", []field{fMilestone, fBooking}},
	models.TypeMilestoneRejected:        {"Changes requested: {{milestone_title}}", "Milestone needs changes", []field{fMilestone, fBooking, fReason}},
	models.TypeMilestoneOverdue:         {"Overdue: {{milestone_title}}", "A milestone is overdue", []field{fMilestone, fBooking, fDue}},
	models.TypeMilestoneProgressUpdated: {"{{milestone_title}} is {{progress}} complete", "Milestone progress", []field{fMilestone, fProgress}},

	models.TypeBookingCreated:         {"Booking created: {{booking_title}}", "New booking", []field{fBooking, fService, fScheduled}},
	models.TypeBookingConfirmed:       {"Confirmed: {{booking_title}} on {{scheduled_date}}", "Booking confirmed", []field{fBooking, fService, fScheduled}},
	models.TypeBookingCancelled:       {"Cancelled: {{booking_title}}", "Booking cancelled", []field{fBooking, fService, fReason}},
	models.TypeBookingCompleted:       {"Completed: {{booking_title}}", "Booking completed", []field{fBooking, fService}},
	models.TypeBookingUpdated:         {"Booking updated: {{booking_title}}", "Booking updated", []field{fBooking, fScheduled}},
	models.TypeBookingReminder:        {"Reminder: {{booking_title}} on {{scheduled_date}}", "Upcoming booking", []field{fBooking, fService, fScheduled}},
	models.TypeBookingProgressUpdated: {"{{booking_title}} is {{progress}} complete", "Booking progress", []field{fBooking, fProgress}},

	models.TypePaymentReceived: {"Payment of {{amount}} received", "Payment received", []field{fAmount, fBooking}},
	models.TypePaymentFailed:   {"Payment of {{amount}} failed", "Payment failed", []field{fAmount, fReason}},
	models.TypePaymentRefunded: {"Refund of {{amount}} issued", "Payment refunded", []field{fAmount, fBooking}},
	models.TypePaymentPending:  {"Payment of {{amount}} pending", "Payment pending", []field{fAmount}},

	models.TypeInvoiceCreated: {"Invoice {{invoice_number}} created", "New invoice", []field{fInvoice, fAmount, fDue}},
	models.TypeInvoiceSent:    {"Invoice {{invoice_number}} for {{amount}}", "You have a new invoice", []field{fInvoice, fAmount, fDue}},
	models.TypeInvoicePaid:    {"Invoice {{invoice_number}} paid", "Invoice paid", []field{fInvoice, fAmount}},
	models.TypeInvoiceOverdue: {"Overdue: invoice {{invoice_number}}", "Invoice overdue", []field{fInvoice, fAmount, fDue}},

	models.TypeMessageReceived: {"New message from {{sender_name}}", "New message", []field{fSender, {"Message", "message_preview", kindText}}},
	models.TypeMessageReply:    {"{{sender_name}} replied", "New reply", []field{fSender, {"Message", "message_preview", kindText}}},

	models.TypeDocumentUploaded: {"Document uploaded: {{document_name}}", "New document", []field{fDocument, {"Uploaded by", "uploader_name", kindText}, fBooking}},
	models.TypeDocumentApproved: {"Document approved: {{document_name}}", "Document approved", []field{fDocument, fBooking}},
	models.TypeDocumentRejected: {"Document rejected: {{document_name}}", "Document rejected", []field{fDocument, fReason}},
	models.TypeDocumentShared:   {"{{sharer_name}} shared {{document_name}}", "Document shared", []field{fDocument, {"Shared by", "sharer_name", kindText}}},

	models.TypeSystemMaintenance: {"Scheduled maintenance", "Scheduled maintenance", []field{{"Starts", "start_time", kindDate}, {"Ends", "end_time", kindDate}}},
	models.TypeAccountUpdated:    {"Your account was updated", "Account updated", []field{{"Changes", "changes", kindText}}},
	models.TypeSecurityAlert:     {"Security alert", "Security alert", []field{{"Device", "device", kindText}, {"Location", "location", kindText}, {"Time", "occurred_at", kindDate}}},
}

// BuildContent renders n into email content. Types without a layout, and announcements,
// use the notification's own title and message. Missing data never fails.
func BuildContent(n *models.Notification, recipientName string) Content {
	c := Content{Subject: n.Title, Heading: n.Title, Intro: n.Message}

	if layout, ok := contentLayouts[n.Type]; ok {
		values := make(map[string]interface{}, len(layout.fields))
		for _, f := range layout.fields {
			v := formatField(f, n.Data)
			values[f.key] = v
			c.Details = append(c.Details, Detail{Label: f.label, Value: v})
		}
		c.Subject = strings.Join(strings.Fields(templates.Interpolate(layout.subject, values)), " ")
		c.Heading = layout.heading
		if c.Intro == "" {
			c.Intro = n.Title
		}
	}
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = "You have a new notification"
	}
	if c.Heading == "" {
		c.Heading = c.Subject
	}

	c.Text = plainText(c, recipientName, n)
	return c
}

func formatField(f field, data map[string]interface{}) string {
	raw, ok := data[f.key]
	if !ok || raw == nil || templates.Stringify(raw) == "" {
		if f.kind == kindText {
			return ""
		}
		return "TBD"
	}

	switch f.kind {
	case kindDate:
		return formatDate(raw)
	case kindAmount:
		return formatAmount(raw, templates.Stringify(data["currency"]))
	case kindPercent:
		return strings.TrimSuffix(templates.Stringify(raw), "%") + "%"
	}
	return templates.Stringify(raw)
}

func formatDate(v interface{}) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format("Jan 2, 2006")
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t.Format("Jan 2, 2006")
			}
		}
		return x
	}
	return templates.Stringify(v)
}

func formatAmount(v interface{}, currency string) string {
	var amount float64
	switch x := v.(type) {
	case float64:
		amount = x
	case int:
		amount = float64(x)
	case int64:
		amount = float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return x
		}
		amount = f
	default:
		return templates.Stringify(v)
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	if currency != "" {
		return s + " " + strings.ToUpper(currency)
	}
	return s
}

func plainText(c Content, recipientName string, n *models.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", greeting(recipientName))
	fmt.Fprintf(&b, "%s\n", c.Heading)
	if c.Intro != "" {
		fmt.Fprintf(&b, "\n%s\n", c.Intro)
	}
	if len(c.Details) > 0 {
		b.WriteString("\n")
		for _, d := range c.Details {
			if d.Value == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", d.Label, d.Value)
		}
	}
	if n.ActionURL != "" {
		label := n.ActionLabel
		if label == "" {
			label = "View"
		}
		fmt.Fprintf(&b, "\n%s: %s\n", label, n.ActionURL)
	}
	return b.String()
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hi %s,", name)
}
