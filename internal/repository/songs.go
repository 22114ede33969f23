package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/musiccy/music-svc/internal/domain"
)

// SongsRepository provides persistence helpers for song entities.
type SongsRepository struct {
	db Querier
}

const songColumns = `
    sid,
    owner_uuid,
    title,
    release_date,
    image,
    audio,
    rating_value,
    rating_count,
    created_at,
    updated_at
`

// SongCreateParams bundles the fields required to create a song.
type SongCreateParams struct {
	SID         string
	OwnerUUID   string
	Title       string
	ReleaseDate time.Time
	Image       string
	Audio       string
}

// Create inserts a new song row and returns the stored entity.
func (r *SongsRepository) Create(ctx context.Context, params SongCreateParams) (domain.Song, error) {
	query := fmt.Sprintf(`
        INSERT INTO songs (sid, owner_uuid, title, release_date, image, audio)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, songColumns)

	row := r.db.QueryRow(ctx, query, params.SID, params.OwnerUUID, params.Title, params.ReleaseDate, params.Image, params.Audio)
	song, err := scanSong(row)
	if err != nil {
		return domain.Song{}, mapError(err)
	}
	return song, nil
}

// GetBySID fetches a single song.
func (r *SongsRepository) GetBySID(ctx context.Context, sid string) (domain.Song, error) {
	query := fmt.Sprintf(`SELECT %s FROM songs WHERE sid = $1`, songColumns)
	song, err := scanSong(r.db.QueryRow(ctx, query, sid))
	if err != nil {
		return domain.Song{}, mapError(err)
	}
	return song, nil
}

// GetBySIDForUpdate fetches a song and locks its row for the enclosing
// transaction so concurrent aggregate writers serialize.
func (r *SongsRepository) GetBySIDForUpdate(ctx context.Context, sid string) (domain.Song, error) {
	query := fmt.Sprintf(`SELECT %s FROM songs WHERE sid = $1 FOR UPDATE`, songColumns)
	song, err := scanSong(r.db.QueryRow(ctx, query, sid))
	if err != nil {
		return domain.Song{}, mapError(err)
	}
	return song, nil
}

// List returns songs newest-first with offset/size pagination.
func (r *SongsRepository) List(ctx context.Context, offset, limit int) ([]domain.Song, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM songs
        ORDER BY created_at DESC, sid DESC
        OFFSET $1 LIMIT $2
    `, songColumns)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSongs(rows)
}

// Top returns the best-rated songs: average descending, rating count as
// tie-break, unrated songs excluded.
func (r *SongsRepository) Top(ctx context.Context, limit int) ([]domain.Song, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM songs
        WHERE rating_count > 0
        ORDER BY rating_value::float8 / rating_count DESC, rating_count DESC, sid
        LIMIT $1
    `, songColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSongs(rows)
}

// Count reports the total number of songs for pagination metadata.
func (r *SongsRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM songs`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SongUpdateParams carries the optional field updates for a song; nil
// fields are left untouched.
type SongUpdateParams struct {
	Title       *string
	ReleaseDate *time.Time
	Image       *string
}

// Update applies the non-nil fields and returns the stored entity.
func (r *SongsRepository) Update(ctx context.Context, sid string, params SongUpdateParams) (domain.Song, error) {
	set := []string{"updated_at = now()"}
	args := []any{sid}
	if params.Title != nil {
		set = append(set, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *params.Title)
	}
	if params.ReleaseDate != nil {
		set = append(set, fmt.Sprintf("release_date = $%d", len(args)+1))
		args = append(args, *params.ReleaseDate)
	}
	if params.Image != nil {
		set = append(set, fmt.Sprintf("image = $%d", len(args)+1))
		args = append(args, *params.Image)
	}

	query := fmt.Sprintf(`UPDATE songs SET %s WHERE sid = $1 RETURNING %s`, strings.Join(set, ", "), songColumns)
	song, err := scanSong(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Song{}, mapError(err)
	}
	return song, nil
}

// AddAggregate applies a signed delta to the song's aggregate rating
// fields server-side, avoiding read-modify-write races.
func (r *SongsRepository) AddAggregate(ctx context.Context, sid string, dValue, dCount int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE songs
        SET rating_value = rating_value + $2,
            rating_count = rating_count + $3,
            updated_at = now()
        WHERE sid = $1
    `, sid, dValue, dCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a song row.
func (r *SongsRepository) Delete(ctx context.Context, sid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM songs WHERE sid = $1`, sid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type songScanner interface {
	Scan(dest ...any) error
}

func scanSong(row songScanner) (domain.Song, error) {
	var song domain.Song
	err := row.Scan(
		&song.SID,
		&song.OwnerUUID,
		&song.Title,
		&song.ReleaseDate,
		&song.Image,
		&song.Audio,
		&song.RatingValue,
		&song.RatingCount,
		&song.CreatedAt,
		&song.UpdatedAt,
	)
	if err != nil {
		return domain.Song{}, err
	}
	return song, nil
}

func collectSongs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Song, error) {
	var results []domain.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, song)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
