package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/musiccy/music-svc/internal/domain"
)

// ArtistsRepository provides persistence helpers for artist entities.
type ArtistsRepository struct {
	db Querier
}

const artistColumns = `
    aid,
    owner_uuid,
    name,
    birth_date,
    image,
    rating_value,
    rating_count,
    created_at,
    updated_at
`

// ArtistCreateParams bundles the fields required to create an artist.
type ArtistCreateParams struct {
	AID       string
	OwnerUUID string
	Name      string
	BirthDate time.Time
	Image     string
}

// Create inserts a new artist row and returns the stored entity.
func (r *ArtistsRepository) Create(ctx context.Context, params ArtistCreateParams) (domain.Artist, error) {
	query := fmt.Sprintf(`
        INSERT INTO artists (aid, owner_uuid, name, birth_date, image)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, artistColumns)

	row := r.db.QueryRow(ctx, query, params.AID, params.OwnerUUID, params.Name, params.BirthDate, params.Image)
	artist, err := scanArtist(row)
	if err != nil {
		return domain.Artist{}, mapError(err)
	}
	return artist, nil
}

// GetByAID fetches a single artist.
func (r *ArtistsRepository) GetByAID(ctx context.Context, aid string) (domain.Artist, error) {
	query := fmt.Sprintf(`SELECT %s FROM artists WHERE aid = $1`, artistColumns)
	artist, err := scanArtist(r.db.QueryRow(ctx, query, aid))
	if err != nil {
		return domain.Artist{}, mapError(err)
	}
	return artist, nil
}

// GetByAIDs fetches the artists for the given ids. The caller is
// responsible for noticing missing ids (len mismatch).
func (r *ArtistsRepository) GetByAIDs(ctx context.Context, aids []string) ([]domain.Artist, error) {
	if len(aids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM artists WHERE aid = ANY($1) ORDER BY aid`, artistColumns)
	rows, err := r.db.Query(ctx, query, aids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// List returns artists newest-first with offset/size pagination.
func (r *ArtistsRepository) List(ctx context.Context, offset, limit int) ([]domain.Artist, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM artists
        ORDER BY created_at DESC, aid DESC
        OFFSET $1 LIMIT $2
    `, artistColumns)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count reports the total number of artists for pagination metadata.
func (r *ArtistsRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM artists`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ArtistUpdateParams carries the optional field updates for an artist.
type ArtistUpdateParams struct {
	Name      *string
	BirthDate *time.Time
	Image     *string
}

// Update applies the non-nil fields and returns the stored entity.
func (r *ArtistsRepository) Update(ctx context.Context, aid string, params ArtistUpdateParams) (domain.Artist, error) {
	set := []string{"updated_at = now()"}
	args := []any{aid}
	if params.Name != nil {
		set = append(set, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *params.Name)
	}
	if params.BirthDate != nil {
		set = append(set, fmt.Sprintf("birth_date = $%d", len(args)+1))
		args = append(args, *params.BirthDate)
	}
	if params.Image != nil {
		set = append(set, fmt.Sprintf("image = $%d", len(args)+1))
		args = append(args, *params.Image)
	}

	query := fmt.Sprintf(`UPDATE artists SET %s WHERE aid = $1 RETURNING %s`, strings.Join(set, ", "), artistColumns)
	artist, err := scanArtist(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Artist{}, mapError(err)
	}
	return artist, nil
}

// AddAggregate applies a signed delta to the artist's aggregate rating
// fields server-side, avoiding read-modify-write races.
func (r *ArtistsRepository) AddAggregate(ctx context.Context, aid string, dValue, dCount int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE artists
        SET rating_value = rating_value + $2,
            rating_count = rating_count + $3,
            updated_at = now()
        WHERE aid = $1
    `, aid, dValue, dCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an artist row.
func (r *ArtistsRepository) Delete(ctx context.Context, aid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM artists WHERE aid = $1`, aid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanArtist(row songScanner) (domain.Artist, error) {
	var artist domain.Artist
	err := row.Scan(
		&artist.AID,
		&artist.OwnerUUID,
		&artist.Name,
		&artist.BirthDate,
		&artist.Image,
		&artist.RatingValue,
		&artist.RatingCount,
		&artist.CreatedAt,
		&artist.UpdatedAt,
	)
	if err != nil {
		return domain.Artist{}, err
	}
	return artist, nil
}
