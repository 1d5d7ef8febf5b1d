package models

import "time"

const (
	OverrideStatusPending  = "pending"
	OverrideStatusApproved = "approved"
	OverrideStatusRejected = "rejected"
)

// Overridable cost-model fields.
const (
	OverrideFieldMarginMultiplier = "minimum_margin_multiplier"
	OverrideFieldCreditsPerDollar = "credits_per_dollar"
)

// PricingOverride is a proposed change to a live cost model. Proposals come
// from admins or from the pricing suggestion engine and take effect only after
// approval, and only for quotes computed afterwards.
type PricingOverride struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ServiceTypeSlug string     `gorm:"type:varchar(64);not null;index" json:"service_type"`
	ProposedBy      uint       `gorm:"not null" json:"proposed_by"`
	Field           string     `gorm:"type:varchar(64);not null" json:"field"`
	OldValue        float64    `gorm:"type:decimal(10,4);not null" json:"old_value"`
	NewValue        float64    `gorm:"type:decimal(10,4);not null" json:"new_value"`
	Status          string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ReviewedBy      *uint      `gorm:"default:null" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `gorm:"type:timestamp;default:null" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsOverridableField reports whether the field may be changed through the
// approval workflow.
func IsOverridableField(field string) bool {
	return field == OverrideFieldMarginMultiplier || field == OverrideFieldCreditsPerDollar
}
