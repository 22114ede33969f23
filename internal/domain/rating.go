package domain

import "time"

// Rating holds a single user's current opinion of a song, unique per
// (SID, UserUUID). Re-rating supersedes the value rather than adding a
// second record.
type Rating struct {
	SID       string
	UserUUID  string
	Value     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingBounds is the configured inclusive range for rating values.
type RatingBounds struct {
	Min int64
	Max int64
}

// DefaultRatingBounds matches the public API contract of 1-5 stars.
var DefaultRatingBounds = RatingBounds{Min: 1, Max: 5}

// Contains reports whether v is a permissible rating value.
func (b RatingBounds) Contains(v int64) bool {
	return v >= b.Min && v <= b.Max
}
