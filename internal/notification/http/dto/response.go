// Package dto defines response shapes for the notification HTTP API.
package dto

import (
	"time"

	"github.com/SUNET/transcribe-backend/internal/notification/domain"
)

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationListResponse represents a list of notifications.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

// ToNotificationResponse converts a domain notification to its response shape.
// Dispatch bookkeeping stays internal.
func ToNotificationResponse(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID.String(),
		JobID:     notification.JobID.String(),
		Type:      string(notification.Type),
		Subject:   notification.Subject,
		Message:   notification.Message,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

// ToNotificationListResponse converts a slice of domain notifications.
func ToNotificationListResponse(notifications []*domain.Notification) NotificationListResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, ToNotificationResponse(notification))
	}
	return NotificationListResponse{Notifications: responses}
}
