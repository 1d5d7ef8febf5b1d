package models

import "time"

// Override lifecycle events for the pricing history log.
const (
	OverrideEventProposed = "proposed"
	OverrideEventApproved = "approved"
	OverrideEventRejected = "rejected"
)

// OverrideEvent is the append-only audit trail of pricing-override
// transitions. Override rows themselves change status; these rows never do.
type OverrideEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OverrideID      uint      `gorm:"not null;index" json:"override_id"`
	ServiceTypeSlug string    `gorm:"type:varchar(64);not null;index" json:"service_type"`
	Event           string    `gorm:"type:varchar(16);not null" json:"event"`
	ActorID         uint      `gorm:"not null" json:"actor_id"`
	Field           string    `gorm:"type:varchar(64);not null" json:"field"`
	OldValue        float64   `gorm:"type:decimal(10,4);not null" json:"old_value"`
	NewValue        float64   `gorm:"type:decimal(10,4);not null" json:"new_value"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
