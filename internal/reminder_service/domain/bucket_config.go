package domain

import (
	"time"

	"github.com/google/uuid"
)

// WeekdayMask is a 7-bit set of allowed weekdays; bit n corresponds to
// time.Weekday(n), so bit 0 is Sunday.
type WeekdayMask uint8

// WeekdayMaskMonToFri covers Monday through Friday.
const WeekdayMaskMonToFri WeekdayMask = 0b0111110

// Allows reports whether the mask includes the given weekday.
func (m WeekdayMask) Allows(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// BucketConfig holds per-company, per-bucket sending policy. One row exists
// per (company, bucket) pair, provisioned with manual-only defaults when the
// company is created.
type BucketConfig struct {
	ID              uuid.UUID   `json:"id"`
	CompanyID       uuid.UUID   `json:"company_id"`
	Bucket          BucketID    `json:"bucket"`
	AutoSendEnabled bool        `json:"auto_send_enabled"`
	SendHour        int         `json:"send_hour"` // 0..23, company-local
	AllowedWeekdays WeekdayMask `json:"allowed_weekdays"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// InSendWindow reports whether t falls in this config's send hour on an
// allowed weekday.
func (c *BucketConfig) InSendWindow(t time.Time) bool {
	return c.AllowedWeekdays.Allows(t.Weekday()) && t.Hour() == c.SendHour
}

// DefaultBucketConfigs returns the safe manual-only defaults created when a
// company is provisioned: auto-send off, 09:00, Monday through Friday.
func DefaultBucketConfigs(companyID uuid.UUID, now time.Time) []*BucketConfig {
	configs := make([]*BucketConfig, 0, len(OverdueBuckets))
	for _, bucket := range OverdueBuckets {
		configs = append(configs, &BucketConfig{
			ID:              uuid.New(),
			CompanyID:       companyID,
			Bucket:          bucket,
			AutoSendEnabled: false,
			SendHour:        9,
			AllowedWeekdays: WeekdayMaskMonToFri,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return configs
}
