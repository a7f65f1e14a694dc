package domain

import "time"

// HoldDuration is how long a hold reserves a book before it expires.
type HoldDuration struct {
	Days int `json:"days" bson:"days"`
}

var (
	StandardHold = HoldDuration{Days: 7}
	ExtendedHold = HoldDuration{Days: 14}
)

func (d HoldDuration) ExpiryFrom(start time.Time) time.Time {
	return start.AddDate(0, 0, d.Days)
}
