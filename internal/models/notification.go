// internal/models/notification.go
package models

import (
	"strings"
	"time"
)

type NotificationType string

const (
	TypeTaskCreated       NotificationType = "task_created"
	TypeTaskAssigned      NotificationType = "task_assigned"
	TypeTaskUpdated       NotificationType = "task_updated"
	TypeTaskCompleted     NotificationType = "task_completed"
	TypeTaskStatusChanged NotificationType = "task_status_changed"
	TypeTaskOverdue       NotificationType = "task_overdue"
	TypeTaskDueSoon       NotificationType = "task_due_soon"
	TypeTaskCommentAdded  NotificationType = "task_comment_added"

	TypeMilestoneCreated         NotificationType = "milestone_created"
	TypeMilestoneUpdated         NotificationType = "milestone_updated"
	TypeMilestoneCompleted       NotificationType = "milestone_completed"
	TypeMilestoneApproved        NotificationType = "milestone_approved"
	TypeMilestoneRejected        NotificationType = "milestone_rejected"
	TypeMilestoneOverdue         NotificationType = "milestone_overdue"
	TypeMilestoneProgressUpdated NotificationType = "milestone_progress_updated"

	TypeBookingCreated         NotificationType = "booking_created"
	TypeBookingConfirmed       NotificationType = "booking_confirmed"
	TypeBookingCancelled       NotificationType = "booking_cancelled"
	TypeBookingCompleted       NotificationType = "booking_completed"
	TypeBookingUpdated         NotificationType = "booking_updated"
	TypeBookingReminder        NotificationType = "booking_reminder"
	TypeBookingProgressUpdated NotificationType = "booking_progress_updated"

	TypePaymentReceived NotificationType = "payment_received"
	TypePaymentFailed   NotificationType = "payment_failed"
	TypePaymentRefunded NotificationType = "payment_refunded"
	TypePaymentPending  NotificationType = "payment_pending"

	TypeInvoiceCreated NotificationType = "invoice_created"
	TypeInvoiceSent    NotificationType = "invoice_sent"
	TypeInvoicePaid    NotificationType = "invoice_paid"
	TypeInvoiceOverdue NotificationType = "invoice_overdue"

	TypeMessageReceived NotificationType = "message_received"
	TypeMessageReply    NotificationType = "message_reply"

	TypeDocumentUploaded NotificationType = "document_uploaded"
	TypeDocumentApproved NotificationType = "document_approved"
	TypeDocumentRejected NotificationType = "document_rejected"
	TypeDocumentShared   NotificationType = "document_shared"

	TypeSystemAnnouncement NotificationType = "system_announcement"
	TypeSystemMaintenance  NotificationType = "system_maintenance"
	TypeAccountUpdated     NotificationType = "account_updated"
	TypeSecurityAlert      NotificationType = "security_alert"
)

// AllNotificationTypes lists every type in category order.
var AllNotificationTypes = []NotificationType{
	TypeTaskCreated, TypeTaskAssigned, TypeTaskUpdated, TypeTaskCompleted,
	TypeTaskStatusChanged, TypeTaskOverdue, TypeTaskDueSoon, TypeTaskCommentAdded,
	TypeMilestoneCreated, TypeMilestoneUpdated, TypeMilestoneCompleted, TypeMilestoneApproved,
	TypeMilestoneRejected, TypeMilestoneOverdue, TypeMilestoneProgressUpdated,
	TypeBookingCreated, TypeBookingConfirmed, TypeBookingCancelled, TypeBookingCompleted,
	TypeBookingUpdated, TypeBookingReminder, TypeBookingProgressUpdated,
	TypePaymentReceived, TypePaymentFailed, TypePaymentRefunded, TypePaymentPending,
	TypeInvoiceCreated, TypeInvoiceSent, TypeInvoicePaid, TypeInvoiceOverdue,
	TypeMessageReceived, TypeMessageReply,
	TypeDocumentUploaded, TypeDocumentApproved, TypeDocumentRejected, TypeDocumentShared,
	TypeSystemAnnouncement, TypeSystemMaintenance, TypeAccountUpdated, TypeSecurityAlert,
}

type Category string

const (
	CategoryTask      Category = "task"
	CategoryMilestone Category = "milestone"
	CategoryBooking   Category = "booking"
	CategoryPayment   Category = "payment"
	CategoryInvoice   Category = "invoice"
	CategoryMessage   Category = "message"
	CategoryDocument  Category = "document"
	CategorySystem    Category = "system"
)

// Category maps a type to its settings category. account_updated and security_alert are system.
func (t NotificationType) Category() Category {
	prefix := string(t)
	if i := strings.IndexByte(prefix, '_'); i > 0 {
		prefix = prefix[:i]
	}
	switch Category(prefix) {
	case CategoryTask, CategoryMilestone, CategoryBooking, CategoryPayment,
		CategoryInvoice, CategoryMessage, CategoryDocument:
		return Category(prefix)
	}
	return CategorySystem
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	for _, known := range AllNotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Notification is a persisted user-facing event. Only the read state changes after creation.
type Notification struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	Type        NotificationType       `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
	Priority    Priority               `json:"priority"`
	Read        bool                   `json:"read"`
	ReadAt      *time.Time             `json:"readAt,omitempty"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
	ActionURL   string                 `json:"actionUrl,omitempty"`
	ActionLabel string                 `json:"actionLabel,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// NotificationSettings holds per-user category switches. The zero value of a
// missing row is DefaultNotificationSettings, which sends everything.
type NotificationSettings struct {
	UserID                 string `json:"userId"`
	TaskNotifications      bool   `json:"taskNotifications"`
	MilestoneNotifications bool   `json:"milestoneNotifications"`
	BookingNotifications   bool   `json:"bookingNotifications"`
	PaymentNotifications   bool   `json:"paymentNotifications"`
	InvoiceNotifications   bool   `json:"invoiceNotifications"`
	MessageNotifications   bool   `json:"messageNotifications"`
	DocumentNotifications  bool   `json:"documentNotifications"`
	SystemNotifications    bool   `json:"systemNotifications"`
	EmailNotifications     bool   `json:"emailNotifications"`
	SMSNotifications       bool   `json:"smsNotifications"`
}

func DefaultNotificationSettings(userID string) *NotificationSettings {
	return &NotificationSettings{
		UserID:                 userID,
		TaskNotifications:      true,
		MilestoneNotifications: true,
		BookingNotifications:   true,
		PaymentNotifications:   true,
		InvoiceNotifications:   true,
		MessageNotifications:   true,
		DocumentNotifications:  true,
		SystemNotifications:    true,
		EmailNotifications:     true,
	}
}

// Allows reports whether delivery is permitted for category c.
func (s *NotificationSettings) Allows(c Category) bool {
	switch c {
	case CategoryTask:
		return s.TaskNotifications
	case CategoryMilestone:
		return s.MilestoneNotifications
	case CategoryBooking:
		return s.BookingNotifications
	case CategoryPayment:
		return s.PaymentNotifications
	case CategoryInvoice:
		return s.InvoiceNotifications
	case CategoryMessage:
		return s.MessageNotifications
	case CategoryDocument:
		return s.DocumentNotifications
	default:
		return s.SystemNotifications
	}
}

// EmailPreferences is the adapter's own gate, consulted on every send including resends.
type EmailPreferences struct {
	UserID        string   `json:"userId"`
	EmailEnabled  bool     `json:"emailEnabled"`
	DisabledTypes []string `json:"disabledTypes"`
	Style         string   `json:"style,omitempty"`
}

// AllowsType reports whether email is enabled and t is not in the disabled list.
func (p *EmailPreferences) AllowsType(t NotificationType) bool {
	if !p.EmailEnabled {
		return false
	}
	for _, disabled := range p.DisabledTypes {
		if disabled == string(t) {
			return false
		}
	}
	return true
}

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryLog records one outbound email attempt.
type DeliveryLog struct {
	ID                string         `json:"id"`
	NotificationID    string         `json:"notificationId"`
	Recipient         string         `json:"recipient"`
	Channel           string         `json:"channel"`
	Status            DeliveryStatus `json:"status"`
	Provider          string         `json:"provider"`
	ProviderMessageID string         `json:"providerMessageId,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// Recipient is the contact data looked up from profiles.
type Recipient struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
}

// NotificationFilter narrows GetNotifications.
type NotificationFilter struct {
	UnreadOnly bool
	Types      []NotificationType
	Priority   Priority
	Limit      int
	Offset     int
}

// NotificationStats is computed in a single pass over a user's notifications.
type NotificationStats struct {
	Total      int                      `json:"total"`
	Unread     int                      `json:"unread"`
	ByType     map[NotificationType]int `json:"byType"`
	ByPriority map[Priority]int         `json:"byPriority"`
	Recent     int                      `json:"recent"`
}
