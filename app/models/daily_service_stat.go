package models

import "time"

// DailyServiceStat is one day's session count for one service type, flushed
// from the redis telemetry counters. The demand analyzer reads these rows as
// its baseline history.
type DailyServiceStat struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ServiceTypeSlug string    `gorm:"type:varchar(64);not null;index:ux_daily_service_stats_slug_date,unique,priority:1" json:"service_type"`
	Date            time.Time `gorm:"type:date;not null;index:ux_daily_service_stats_slug_date,unique,priority:2" json:"date"`
	SessionCount    int64     `gorm:"not null;default:0" json:"session_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
