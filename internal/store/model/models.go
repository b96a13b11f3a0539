package model

import (
	"gorm.io/datatypes"
)

// CampaignModel is the persisted snapshot of a campaign, written by the
// persistence subscriber on every lifecycle event. The engine never reads it
// back; it exists for audit and the query layer.
type CampaignModel struct {
	ID               string         `gorm:"column:id;primaryKey"`
	Symbol           string         `gorm:"column:symbol;index"`
	RangeLow         string         `gorm:"column:range_low"`
	RangeHigh        string         `gorm:"column:range_high"`
	State            string         `gorm:"column:state;index"`
	Phase            string         `gorm:"column:phase"`
	WeightedEntry    string         `gorm:"column:weighted_entry"`
	HeatPct          string         `gorm:"column:heat_pct"`
	CorrelationGroup string         `gorm:"column:correlation_group"`
	Currency         string         `gorm:"column:currency"`
	Category         string         `gorm:"column:category"`
	Failing          bool           `gorm:"column:failing"`
	EventCount       int            `gorm:"column:event_count"`
	EventsJSON       datatypes.JSON `gorm:"column:events_json;type:TEXT"`
	CreatedAtUnix    int64          `gorm:"column:created_at"`
	UpdatedAtUnix    int64          `gorm:"column:updated_at"`
}

func (CampaignModel) TableName() string { return "campaigns" }
