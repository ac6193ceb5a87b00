// internal/models/officer.go
package models

import "time"

// Officer is a review officer entitled to claim queue entries at exactly one
// tier within their jurisdiction.
type Officer struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	Level        ReviewLevel  `json:"reviewLevel"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// CanReview reports whether the officer may act on an entry at the given
// level and jurisdiction. National officers are not scoped to a region or
// constituency; regional officers are scoped to a region only.
func (o Officer) CanReview(level ReviewLevel, j Jurisdiction) bool {
	if !o.Active || o.Level != level {
		return false
	}
	switch level {
	case LevelConstituency:
		return o.Jurisdiction.ConstituencyCode == j.ConstituencyCode
	case LevelRegional:
		return o.Jurisdiction.RegionCode == j.RegionCode
	case LevelNational:
		return true
	}
	return false
}
