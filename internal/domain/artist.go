package domain

import "time"

// Artist represents a performer. Its aggregate mirrors the sum of
// contributions from every song currently associated with it: for each
// mapped song, the song's full (RatingValue, RatingCount) is credited.
type Artist struct {
	AID         string
	OwnerUUID   string
	Name        string
	BirthDate   time.Time
	Image       string
	RatingValue int64
	RatingCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Average returns the mean attributed rating, or nil when no mapped song
// has been rated.
func (a Artist) Average() *float64 {
	return average(a.RatingValue, a.RatingCount)
}

// SongArtist is a (song, artist) credit-sharing association, unique per
// pair. It is the sole source of truth for which artists receive rating
// credit from a song.
type SongArtist struct {
	SID       string
	AID       string
	CreatedAt time.Time
}
