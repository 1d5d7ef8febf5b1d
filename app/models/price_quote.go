package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceQuote is an immutable record of one price calculation. Rows are append
// only; historical quotes never change, even when cost models are overridden
// later.
type PriceQuote struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UUID             string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	ServiceTypeSlug  string    `gorm:"type:varchar(64);not null;index:idx_price_quotes_service_computed,priority:1" json:"service_type"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	BaseCostUSD      float64   `gorm:"type:decimal(10,4);not null" json:"base_cost_usd"`
	DemandMultiplier float64   `gorm:"type:decimal(6,3);not null;default:1" json:"demand_multiplier"`
	CacheDiscountPct float64   `gorm:"type:decimal(5,4);not null;default:0" json:"cache_discount_pct"`
	MarginMultiplier float64   `gorm:"type:decimal(6,2);not null" json:"margin_multiplier"`
	FinalCredits     int64     `gorm:"not null" json:"final_credits"`
	Confidence       float64   `gorm:"type:decimal(4,2);not null;default:1" json:"confidence"`
	Degraded         bool      `gorm:"default:false" json:"degraded"`
	ComputedAt       time.Time `gorm:"not null;index:idx_price_quotes_service_computed,priority:2" json:"computed_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NewPriceQuoteUUID returns the identifier used to reference a quote from a
// session record.
func NewPriceQuoteUUID() string {
	return uuid.New().String()
}
