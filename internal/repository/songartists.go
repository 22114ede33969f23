package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/musiccy/music-svc/internal/domain"
)

// SongArtistsRepository manages the (song, artist) credit-sharing
// associations. The table is the sole source of truth for which artists
// receive rating credit from a song.
type SongArtistsRepository struct {
	db Querier
}

// Create records a new association. A duplicate pair maps to ErrConflict.
func (r *SongArtistsRepository) Create(ctx context.Context, sid, aid string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO song_artists (sid, aid) VALUES ($1,$2)`, sid, aid)
	return mapError(err)
}

// Delete removes one association; ErrNotFound if the pair did not exist.
func (r *SongArtistsRepository) Delete(ctx context.Context, sid, aid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM song_artists WHERE sid = $1 AND aid = $2`, sid, aid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBySID removes every association for a song.
func (r *SongArtistsRepository) DeleteBySID(ctx context.Context, sid string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM song_artists WHERE sid = $1`, sid)
	return err
}

// DeleteByAID removes every association for an artist.
func (r *SongArtistsRepository) DeleteByAID(ctx context.Context, aid string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM song_artists WHERE aid = $1`, aid)
	return err
}

// Exists reports whether the pair is currently associated.
func (r *SongArtistsRepository) Exists(ctx context.Context, sid, aid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM song_artists WHERE sid = $1 AND aid = $2)`, sid, aid).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ArtistIDsForSong lists the ids of every artist currently mapped to sid.
func (r *SongArtistsRepository) ArtistIDsForSong(ctx context.Context, sid string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT aid FROM song_artists WHERE sid = $1 ORDER BY aid`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aids []string
	for rows.Next() {
		var aid string
		if err := rows.Scan(&aid); err != nil {
			return nil, err
		}
		aids = append(aids, aid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return aids, nil
}

// SongIDsForArtist lists the ids of every song currently mapped to aid.
func (r *SongArtistsRepository) SongIDsForArtist(ctx context.Context, aid string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT sid FROM song_artists WHERE aid = $1 ORDER BY sid`, aid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sids []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		sids = append(sids, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sids, nil
}

// SongsForArtists returns the mapped songs keyed by artist id for a page
// of artists, feeding the artist listing's embedded songs.
func (r *SongArtistsRepository) SongsForArtists(ctx context.Context, aids []string) (map[string][]domain.Song, error) {
	if len(aids) == 0 {
		return map[string][]domain.Song{}, nil
	}
	query := fmt.Sprintf(`
        SELECT m.aid, %s
        FROM song_artists m
        JOIN songs s ON s.sid = m.sid
        WHERE m.aid = ANY($1)
        ORDER BY m.aid, s.sid
    `, prefixColumns("s", songColumns))
	rows, err := r.db.Query(ctx, query, aids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Song)
	for rows.Next() {
		var aid string
		var song domain.Song
		if err := rows.Scan(
			&aid,
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
		); err != nil {
			return nil, err
		}
		out[aid] = append(out[aid], song)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// prefixColumns rewrites a bare column list to alias-qualified form.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
