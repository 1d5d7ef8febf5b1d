package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CostModel holds the per-capability unit costs for one service type plus the
// conversion and margin parameters. Unit costs are USD per unit: voice and video
// per minute, interactive per minute, birth chart per lookup, remedies per 1k
// LLM tokens.
type CostModel struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	Name                    string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name" validate:"required,max=100"`
	VoiceUSDPerMinute       float64   `gorm:"type:decimal(10,4);not null;default:0" json:"voice_usd_per_minute" validate:"gte=0"`
	VideoUSDPerMinute       float64   `gorm:"type:decimal(10,4);not null;default:0" json:"video_usd_per_minute" validate:"gte=0"`
	InteractiveUSDPerMinute float64   `gorm:"type:decimal(10,4);not null;default:0" json:"interactive_usd_per_minute" validate:"gte=0"`
	BirthChartUSDPerCall    float64   `gorm:"type:decimal(10,4);not null;default:0" json:"birth_chart_usd_per_call" validate:"gte=0"`
	RemediesUSDPer1KTokens  float64   `gorm:"type:decimal(10,4);not null;default:0" json:"remedies_usd_per_1k_tokens" validate:"gte=0"`
	CreditsPerDollar        float64   `gorm:"type:decimal(10,2);not null;default:10" json:"credits_per_dollar" validate:"gt=0"`
	MinimumMarginMultiplier float64   `gorm:"type:decimal(6,2);not null;default:2.5" json:"minimum_margin_multiplier" validate:"gte=1"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *CostModel) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// UnitCost returns the USD unit cost for a capability.
func (m *CostModel) UnitCost(capability string) float64 {
	switch capability {
	case CapabilityVoice:
		return m.VoiceUSDPerMinute
	case CapabilityVideo:
		return m.VideoUSDPerMinute
	case CapabilityInteractive:
		return m.InteractiveUSDPerMinute
	case CapabilityBirthChart:
		return m.BirthChartUSDPerCall
	case CapabilityRemedies:
		return m.RemediesUSDPer1KTokens
	}
	return 0
}
