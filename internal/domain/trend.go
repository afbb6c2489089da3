package domain

import "time"

// TrendPoint is a timestamped snapshot of the YES/NO split used for odds
// history charts. YesPct + NoPct is always 100.
type TrendPoint struct {
	TS     time.Time `json:"ts"`
	YesPct int       `json:"yesPct"`
	NoPct  int       `json:"noPct"`
}
