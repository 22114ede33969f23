package domain

import "time"

// Song represents a catalog track. RatingValue/RatingCount are derived
// aggregate state: RatingValue is the exact sum of all active per-user
// ratings for the song, RatingCount the number of raters. They are only
// ever adjusted by the rating ledger, never written directly.
type Song struct {
	SID         string
	OwnerUUID   string
	Title       string
	ReleaseDate time.Time
	Image       string
	Audio       string
	RatingValue int64
	RatingCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Average returns the mean rating, or nil when the song has no ratings.
func (s Song) Average() *float64 {
	return average(s.RatingValue, s.RatingCount)
}

func average(value, count int64) *float64 {
	if count == 0 {
		return nil
	}
	avg := float64(value) / float64(count)
	return &avg
}
