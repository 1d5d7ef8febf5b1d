package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Capability flags describe which cost-bearing features a guidance service uses.
const (
	CapabilityVoice       = "voice"
	CapabilityVideo       = "video"
	CapabilityInteractive = "interactive"
	CapabilityBirthChart  = "birth_chart"
	CapabilityRemedies    = "remedies"
)

// AllCapabilities lists every known capability in stable order.
var AllCapabilities = []string{
	CapabilityVoice,
	CapabilityVideo,
	CapabilityInteractive,
	CapabilityBirthChart,
	CapabilityRemedies,
}

// ServiceType describes one sellable guidance offering, e.g. "video_guidance".
// Capabilities are stored as a comma-separated list; the closed set above is the
// source of truth for what a capability can be.
type ServiceType struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Slug                string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug" validate:"required,min=3,max=64"`
	Name                string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	BaseDurationMinutes int       `gorm:"not null;default:15" json:"base_duration_minutes" validate:"gt=0"`
	Capabilities        string    `gorm:"type:varchar(255);not null" json:"capabilities" validate:"required"`
	CostModelID         uint      `gorm:"not null;index" json:"cost_model_id"`
	CostModel           CostModel `gorm:"foreignKey:CostModelID" json:"cost_model" validate:"-"`
	IsActive            bool      `gorm:"default:true" json:"is_active"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *ServiceType) Validate() error {
	v := validator.New()

	if err := v.Struct(s); err != nil {
		return err
	}
	for _, c := range s.CapabilityList() {
		if !isKnownCapability(c) {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	return nil
}

// CapabilityList splits the stored capability string into its entries.
func (s *ServiceType) CapabilityList() []string {
	if strings.TrimSpace(s.Capabilities) == "" {
		return nil
	}
	parts := strings.Split(s.Capabilities, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// HasCapability reports whether the service uses the given capability.
func (s *ServiceType) HasCapability(capability string) bool {
	for _, c := range s.CapabilityList() {
		if c == capability {
			return true
		}
	}
	return false
}

func isKnownCapability(c string) bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}
