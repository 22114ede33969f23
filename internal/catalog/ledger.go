package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/musiccy/music-svc/internal/domain"
	"github.com/musiccy/music-svc/internal/repository"
)

// Ledger owns the rating-update protocol. It maintains two invariants:
// a song's (rating_value, rating_count) equals the sum and count of all
// active per-user ratings for that song, and each mapped artist's
// aggregate equals the sum of contributions from every song currently
// associated with it.
//
// All methods expect transaction-bound repositories; the orchestrator
// provides the transaction scope.
type Ledger struct {
	bounds domain.RatingBounds
}

// NewLedger returns a Ledger enforcing the given rating bounds.
func NewLedger(bounds domain.RatingBounds) Ledger {
	return Ledger{bounds: bounds}
}

// Apply records userUUID's rating for a song, creating or superseding the
// per-user record and propagating the delta to the song and every mapped
// artist. The song row is locked first so a concurrent retraction cannot
// interleave.
//
// First rating by a user bumps counts by one and values by the rating;
// a re-rate leaves counts untouched and shifts values by (new - previous).
func (l Ledger) Apply(ctx context.Context, repos *repository.Repository, sid, userUUID string, value int64) error {
	if !l.bounds.Contains(value) {
		return fmt.Errorf("%w: rating %d outside [%d,%d]", ErrValidation, value, l.bounds.Min, l.bounds.Max)
	}

	if _, err := repos.Songs.GetBySIDForUpdate(ctx, sid); err != nil {
		return fmt.Errorf("lock song: %w", err)
	}

	var dValue, dCount int64
	prev, err := repos.Ratings.GetForUpdate(ctx, sid, userUUID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if _, err := repos.Ratings.Create(ctx, sid, userUUID, value); err != nil {
			return fmt.Errorf("create rating: %w", err)
		}
		dValue, dCount = value, 1
	case err != nil:
		return fmt.Errorf("read rating: %w", err)
	default:
		if _, err := repos.Ratings.SetValue(ctx, sid, userUUID, value); err != nil {
			return fmt.Errorf("update rating: %w", err)
		}
		dValue, dCount = value-prev.Value, 0
	}

	if err := repos.Songs.AddAggregate(ctx, sid, dValue, dCount); err != nil {
		return fmt.Errorf("update song aggregate: %w", err)
	}

	aids, err := repos.SongArtists.ArtistIDsForSong(ctx, sid)
	if err != nil {
		return fmt.Errorf("list mapped artists: %w", err)
	}
	for _, aid := range aids {
		if err := repos.Artists.AddAggregate(ctx, aid, dValue, dCount); err != nil {
			return fmt.Errorf("update artist %s aggregate: %w", aid, err)
		}
	}
	return nil
}

// Retract reverses every contribution a song ever made: each mapped
// artist loses the song's full (rating_value, rating_count) and all of
// the song's rating records are deleted. Invoked on song deletion, inside
// the same transaction that deletes the song itself; afterwards the
// artists' aggregates read as if the song had never existed.
func (l Ledger) Retract(ctx context.Context, repos *repository.Repository, song domain.Song) error {
	aids, err := repos.SongArtists.ArtistIDsForSong(ctx, song.SID)
	if err != nil {
		return fmt.Errorf("list mapped artists: %w", err)
	}
	for _, aid := range aids {
		if err := repos.Artists.AddAggregate(ctx, aid, -song.RatingValue, -song.RatingCount); err != nil {
			return fmt.Errorf("reverse artist %s aggregate: %w", aid, err)
		}
	}
	if _, err := repos.Ratings.DeleteBySID(ctx, song.SID); err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	return nil
}
