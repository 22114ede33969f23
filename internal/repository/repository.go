package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a unique constraint was violated.
var ErrConflict = errors.New("repository: conflict")

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so the same repositories serve pooled reads and transactional mutations.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories over one handle.
type Repository struct {
	Songs       *SongsRepository
	Artists     *ArtistsRepository
	Ratings     *RatingsRepository
	SongArtists *SongArtistsRepository
	Users       *UsersRepository
	Secrets     *SecretsRepository
}

// New constructs a Repository bound to the provided handle.
func New(db Querier) *Repository {
	return &Repository{
		Songs:       &SongsRepository{db: db},
		Artists:     &ArtistsRepository{db: db},
		Ratings:     &RatingsRepository{db: db},
		SongArtists: &SongArtistsRepository{db: db},
		Users:       &UsersRepository{db: db},
		Secrets:     &SecretsRepository{db: db},
	}
}

// WithTx rebinds the repository set to a transaction so every operation
// participates in the same atomic unit.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return New(tx)
}

// mapError translates driver errors into the repository's sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
