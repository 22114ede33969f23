package repository

import (
	"context"

	"github.com/musiccy/music-svc/internal/domain"
)

// RatingsRepository provides helpers for per-user song ratings.
type RatingsRepository struct {
	db Querier
}

const ratingColumns = `
    sid,
    user_uuid,
    rating,
    created_at,
    updated_at
`

// Get retrieves a rating for a specific song/user combination.
func (r *RatingsRepository) Get(ctx context.Context, sid, userUUID string) (domain.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE sid = $1 AND user_uuid = $2`
	rating, err := scanRating(r.db.QueryRow(ctx, query, sid, userUUID))
	if err != nil {
		return domain.Rating{}, mapError(err)
	}
	return rating, nil
}

// GetForUpdate retrieves a rating and locks its row for the enclosing
// transaction, so a concurrent re-rate of the same (song, user) pair
// cannot interleave between the previous-value read and the delta write.
func (r *RatingsRepository) GetForUpdate(ctx context.Context, sid, userUUID string) (domain.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE sid = $1 AND user_uuid = $2 FOR UPDATE`
	rating, err := scanRating(r.db.QueryRow(ctx, query, sid, userUUID))
	if err != nil {
		return domain.Rating{}, mapError(err)
	}
	return rating, nil
}

// Create inserts a new rating row. A duplicate (sid, user_uuid) pair maps
// to ErrConflict.
func (r *RatingsRepository) Create(ctx context.Context, sid, userUUID string, value int64) (domain.Rating, error) {
	query := `
        INSERT INTO ratings (sid, user_uuid, rating)
        VALUES ($1,$2,$3)
        RETURNING ` + ratingColumns
	rating, err := scanRating(r.db.QueryRow(ctx, query, sid, userUUID, value))
	if err != nil {
		return domain.Rating{}, mapError(err)
	}
	return rating, nil
}

// SetValue supersedes the user's current rating value for a song.
func (r *RatingsRepository) SetValue(ctx context.Context, sid, userUUID string, value int64) (domain.Rating, error) {
	query := `
        UPDATE ratings
        SET rating = $3, updated_at = now()
        WHERE sid = $1 AND user_uuid = $2
        RETURNING ` + ratingColumns
	rating, err := scanRating(r.db.QueryRow(ctx, query, sid, userUUID, value))
	if err != nil {
		return domain.Rating{}, mapError(err)
	}
	return rating, nil
}

// DeleteBySID removes every rating for a song and reports how many
// records were dropped.
func (r *RatingsRepository) DeleteBySID(ctx context.Context, sid string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ratings WHERE sid = $1`, sid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountBySID reports the number of rating records for a song.
func (r *RatingsRepository) CountBySID(ctx context.Context, sid string) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE sid = $1`, sid).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanRating(row songScanner) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(
		&rating.SID,
		&rating.UserUUID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return domain.Rating{}, err
	}
	return rating, nil
}
