package catalog

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/musiccy/music-svc/internal/blob"
	"github.com/musiccy/music-svc/internal/cache"
	"github.com/musiccy/music-svc/internal/domain"
	"github.com/musiccy/music-svc/internal/repository"
	"github.com/musiccy/music-svc/internal/store"
)

// Service is the catalog orchestrator. Multi-step mutations run inside a
// single transaction via store.InTx: every step either commits together
// or none become visible. Blob-store writes are the documented exception;
// they happen outside the transaction and their failure after a commit is
// logged, never rolled back.
type Service struct {
	store  *store.Store
	repos  *repository.Repository
	blobs  blob.Store
	top    *cache.TopSongs
	ledger Ledger
	recon  Reconciler
	logger *zap.Logger
}

// Params collects the Service dependencies.
type Params struct {
	Store  *store.Store
	Repos  *repository.Repository
	Blobs  blob.Store
	Top    *cache.TopSongs
	Bounds domain.RatingBounds
	Logger *zap.Logger
}

// New wires the orchestrator.
func New(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  p.Store,
		repos:  p.Repos,
		blobs:  p.Blobs,
		top:    p.Top,
		ledger: NewLedger(p.Bounds),
		logger: logger,
	}
}

// FileUpload carries one uploaded file into the orchestrator.
type FileUpload struct {
	ContentType string
	Data        io.Reader
}

// requireActor loads the acting user inside the transaction and checks it
// may mutate the catalog: the account must exist, be active, and have
// completed email verification.
func requireActor(ctx context.Context, repos *repository.Repository, userUUID string) (domain.User, error) {
	user, err := repos.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active || !user.Verified {
		return domain.User{}, fmt.Errorf("%w: account is not verified", ErrForbidden)
	}
	return user, nil
}

// RateSong records the user's rating for a song, creating or superseding
// the per-user record and adjusting the song's and mapped artists'
// aggregates atomically.
func (s *Service) RateSong(ctx context.Context, userUUID, sid string, value int64) error {
	if !s.ledger.bounds.Contains(value) {
		return fmt.Errorf("%w: rating %d outside [%d,%d]", ErrValidation, value, s.ledger.bounds.Min, s.ledger.bounds.Max)
	}

	err := s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}
		return s.ledger.Apply(ctx, repos, sid, userUUID, value)
	})
	if err != nil {
		return err
	}

	s.top.Invalidate(ctx)
	return nil
}

// UploadSongInput is the payload for UploadSong.
type UploadSongInput struct {
	Title       string
	ReleaseDate time.Time
	ArtistIDs   []string
	Image       FileUpload
	Audio       FileUpload
}

// UploadSong stores the song's media, inserts the song and its initial
// artist associations. Media is uploaded before the transaction; if the
// transaction then fails the fresh blobs are deleted best-effort.
func (s *Service) UploadSong(ctx context.Context, userUUID string, in UploadSongInput) (domain.Song, error) {
	sid := uuid.NewString()

	imageURL, err := s.blobs.Put(ctx, blob.ImageKey(sid), in.Image.ContentType, in.Image.Data)
	if err != nil {
		return domain.Song{}, fmt.Errorf("store image: %w", err)
	}
	audioURL, err := s.blobs.Put(ctx, blob.AudioKey(sid), in.Audio.ContentType, in.Audio.Data)
	if err != nil {
		s.deleteBlobs(ctx, blob.ImageKey(sid))
		return domain.Song{}, fmt.Errorf("store audio: %w", err)
	}

	var song domain.Song
	err = s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}

		song, err = repos.Songs.Create(ctx, repository.SongCreateParams{
			SID:         sid,
			OwnerUUID:   userUUID,
			Title:       in.Title,
			ReleaseDate: in.ReleaseDate,
			Image:       imageURL,
			Audio:       audioURL,
		})
		if err != nil {
			return fmt.Errorf("create song: %w", err)
		}

		// A new song has zero aggregates, so creating associations here
		// moves no rating credit.
		aids := dedupe(in.ArtistIDs)
		if err := requireArtists(ctx, repos, aids); err != nil {
			return err
		}
		for _, aid := range aids {
			if err := repos.SongArtists.Create(ctx, sid, aid); err != nil {
				return fmt.Errorf("associate artist %s: %w", aid, err)
			}
		}
		return nil
	})
	if err != nil {
		s.deleteBlobs(ctx, blob.ImageKey(sid), blob.AudioKey(sid))
		return domain.Song{}, err
	}

	s.top.Invalidate(ctx)
	return song, nil
}

// UpdateSongInput is the payload for UpdateSong; nil fields are left
// untouched.
type UpdateSongInput struct {
	Title           *string
	ReleaseDate     *time.Time
	Image           *FileUpload
	ArtistsToAdd    []string
	ArtistsToDelete []string
}

// UpdateSong applies an owner-only update: artist-set reconciliation
// first, then the song's own fields, one transaction. A replacement image
// overwrites the song's deterministic key before the transaction begins,
// so ownership is verified before the blob write and again under the
// row lock; a rejected caller must not touch stored media.
func (s *Service) UpdateSong(ctx context.Context, userUUID, sid string, in UpdateSongInput) (domain.Song, error) {
	var imageURL *string
	if in.Image != nil {
		if _, err := requireActor(ctx, s.repos, userUUID); err != nil {
			return domain.Song{}, err
		}
		song, err := s.repos.Songs.GetBySID(ctx, sid)
		if err != nil {
			return domain.Song{}, fmt.Errorf("load song: %w", err)
		}
		if song.OwnerUUID != userUUID {
			return domain.Song{}, fmt.Errorf("%w: only the song owner may update it", ErrForbidden)
		}

		url, err := s.blobs.Put(ctx, blob.ImageKey(sid), in.Image.ContentType, in.Image.Data)
		if err != nil {
			return domain.Song{}, fmt.Errorf("store image: %w", err)
		}
		imageURL = &url
	}

	var updated domain.Song
	err := s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}

		song, err := repos.Songs.GetBySIDForUpdate(ctx, sid)
		if err != nil {
			return fmt.Errorf("lock song: %w", err)
		}
		if song.OwnerUUID != userUUID {
			return fmt.Errorf("%w: only the song owner may update it", ErrForbidden)
		}

		if err := s.recon.Reconcile(ctx, repos, song, in.ArtistsToAdd, in.ArtistsToDelete); err != nil {
			return err
		}

		updated, err = repos.Songs.Update(ctx, sid, repository.SongUpdateParams{
			Title:       in.Title,
			ReleaseDate: in.ReleaseDate,
			Image:       imageURL,
		})
		if err != nil {
			return fmt.Errorf("update song: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Song{}, err
	}

	s.top.Invalidate(ctx)
	return updated, nil
}

// DeleteSong removes a song owner-only: rating retraction, association
// cleanup and the song row itself commit atomically; the blob deletions
// run after the commit, best-effort.
func (s *Service) DeleteSong(ctx context.Context, userUUID, sid string) error {
	err := s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}

		song, err := repos.Songs.GetBySIDForUpdate(ctx, sid)
		if err != nil {
			return fmt.Errorf("lock song: %w", err)
		}
		if song.OwnerUUID != userUUID {
			return fmt.Errorf("%w: only the song owner may delete it", ErrForbidden)
		}

		if err := s.ledger.Retract(ctx, repos, song); err != nil {
			return err
		}
		if err := repos.SongArtists.DeleteBySID(ctx, sid); err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := repos.Songs.Delete(ctx, sid); err != nil {
			return fmt.Errorf("delete song: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, blob.ImageKey(sid), blob.AudioKey(sid))
	s.top.Invalidate(ctx)
	return nil
}

// UploadArtistInput is the payload for UploadArtist.
type UploadArtistInput struct {
	Name      string
	BirthDate time.Time
	Image     FileUpload
}

// UploadArtist stores the artist's image and inserts the artist.
func (s *Service) UploadArtist(ctx context.Context, userUUID string, in UploadArtistInput) (domain.Artist, error) {
	aid := uuid.NewString()

	imageURL, err := s.blobs.Put(ctx, blob.ImageKey(aid), in.Image.ContentType, in.Image.Data)
	if err != nil {
		return domain.Artist{}, fmt.Errorf("store image: %w", err)
	}

	var artist domain.Artist
	err = s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}
		artist, err = repos.Artists.Create(ctx, repository.ArtistCreateParams{
			AID:       aid,
			OwnerUUID: userUUID,
			Name:      in.Name,
			BirthDate: in.BirthDate,
			Image:     imageURL,
		})
		if err != nil {
			return fmt.Errorf("create artist: %w", err)
		}
		return nil
	})
	if err != nil {
		s.deleteBlobs(ctx, blob.ImageKey(aid))
		return domain.Artist{}, err
	}
	return artist, nil
}

// UpdateArtistInput is the payload for UpdateArtist.
type UpdateArtistInput struct {
	Name      *string
	BirthDate *time.Time
	Image     *FileUpload
}

// UpdateArtist applies an owner-only update of the artist's fields. A
// replacement image lands on the artist's deterministic key, so ownership
// is verified before the blob write and again inside the transaction.
func (s *Service) UpdateArtist(ctx context.Context, userUUID, aid string, in UpdateArtistInput) (domain.Artist, error) {
	var imageURL *string
	if in.Image != nil {
		if _, err := requireActor(ctx, s.repos, userUUID); err != nil {
			return domain.Artist{}, err
		}
		artist, err := s.repos.Artists.GetByAID(ctx, aid)
		if err != nil {
			return domain.Artist{}, fmt.Errorf("load artist: %w", err)
		}
		if artist.OwnerUUID != userUUID {
			return domain.Artist{}, fmt.Errorf("%w: only the artist owner may update it", ErrForbidden)
		}

		url, err := s.blobs.Put(ctx, blob.ImageKey(aid), in.Image.ContentType, in.Image.Data)
		if err != nil {
			return domain.Artist{}, fmt.Errorf("store image: %w", err)
		}
		imageURL = &url
	}

	var updated domain.Artist
	err := s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}

		artist, err := repos.Artists.GetByAID(ctx, aid)
		if err != nil {
			return fmt.Errorf("load artist: %w", err)
		}
		if artist.OwnerUUID != userUUID {
			return fmt.Errorf("%w: only the artist owner may update it", ErrForbidden)
		}

		updated, err = repos.Artists.Update(ctx, aid, repository.ArtistUpdateParams{
			Name:      in.Name,
			BirthDate: in.BirthDate,
			Image:     imageURL,
		})
		if err != nil {
			return fmt.Errorf("update artist: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Artist{}, err
	}
	return updated, nil
}

// DeleteArtist removes an artist owner-only together with its
// associations. Songs keep their own aggregates; attribution is
// directional from song to artist.
func (s *Service) DeleteArtist(ctx context.Context, userUUID, aid string) error {
	err := s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if _, err := requireActor(ctx, repos, userUUID); err != nil {
			return err
		}

		artist, err := repos.Artists.GetByAID(ctx, aid)
		if err != nil {
			return fmt.Errorf("load artist: %w", err)
		}
		if artist.OwnerUUID != userUUID {
			return fmt.Errorf("%w: only the artist owner may delete it", ErrForbidden)
		}

		if err := repos.SongArtists.DeleteByAID(ctx, aid); err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := repos.Artists.Delete(ctx, aid); err != nil {
			return fmt.Errorf("delete artist: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, blob.ImageKey(aid))
	return nil
}

// SongPage is an offset-paginated song listing.
type SongPage struct {
	Offset int
	Songs  []domain.Song
	Total  int64
}

// ListSongs returns a page of songs, newest first.
func (s *Service) ListSongs(ctx context.Context, offset, size int) (SongPage, error) {
	songs, err := s.repos.Songs.List(ctx, offset, size)
	if err != nil {
		return SongPage{}, fmt.Errorf("list songs: %w", err)
	}
	total, err := s.repos.Songs.Count(ctx)
	if err != nil {
		return SongPage{}, fmt.Errorf("count songs: %w", err)
	}
	return SongPage{Offset: offset, Songs: songs, Total: total}, nil
}

// GetSong fetches one song.
func (s *Service) GetSong(ctx context.Context, sid string) (domain.Song, error) {
	return s.repos.Songs.GetBySID(ctx, sid)
}

// TopSongs returns the best-rated songs, served from the redis cache
// when warm.
func (s *Service) TopSongs(ctx context.Context, limit int) ([]domain.Song, error) {
	if songs, ok := s.top.Get(ctx); ok {
		return songs, nil
	}
	songs, err := s.repos.Songs.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top songs: %w", err)
	}
	s.top.Set(ctx, songs)
	return songs, nil
}

// ArtistWithSongs pairs an artist with its currently mapped songs.
type ArtistWithSongs struct {
	Artist domain.Artist
	Songs  []domain.Song
}

// ArtistPage is an offset-paginated artist listing.
type ArtistPage struct {
	Offset  int
	Artists []ArtistWithSongs
	Total   int64
}

// ListArtists returns a page of artists with their mapped songs embedded.
func (s *Service) ListArtists(ctx context.Context, offset, size int) (ArtistPage, error) {
	artists, err := s.repos.Artists.List(ctx, offset, size)
	if err != nil {
		return ArtistPage{}, fmt.Errorf("list artists: %w", err)
	}

	aids := make([]string, 0, len(artists))
	for _, artist := range artists {
		aids = append(aids, artist.AID)
	}
	songsByArtist, err := s.repos.SongArtists.SongsForArtists(ctx, aids)
	if err != nil {
		return ArtistPage{}, fmt.Errorf("list mapped songs: %w", err)
	}

	items := make([]ArtistWithSongs, 0, len(artists))
	for _, artist := range artists {
		items = append(items, ArtistWithSongs{Artist: artist, Songs: songsByArtist[artist.AID]})
	}

	total, err := s.repos.Artists.Count(ctx)
	if err != nil {
		return ArtistPage{}, fmt.Errorf("count artists: %w", err)
	}
	return ArtistPage{Offset: offset, Artists: items, Total: total}, nil
}

// GetUser fetches a user profile.
func (s *Service) GetUser(ctx context.Context, uuid string) (domain.User, error) {
	return s.repos.Users.GetByUUID(ctx, uuid)
}

// UpdateUser replaces the user's display name.
func (s *Service) UpdateUser(ctx context.Context, uuid, fullName string) (domain.User, error) {
	return s.repos.Users.UpdateFullName(ctx, uuid, fullName)
}

// DeactivateUser soft-deletes the account.
func (s *Service) DeactivateUser(ctx context.Context, uuid string) error {
	return s.repos.Users.Deactivate(ctx, uuid)
}

// deleteBlobs removes keys best-effort; failures leave orphaned objects
// behind, which is the accepted inconsistency window between the
// database and object storage.
func (s *Service) deleteBlobs(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("catalog: blob delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// requireArtists verifies that every id resolves to an artist row.
func requireArtists(ctx context.Context, repos *repository.Repository, aids []string) error {
	if len(aids) == 0 {
		return nil
	}
	found, err := repos.Artists.GetByAIDs(ctx, aids)
	if err != nil {
		return fmt.Errorf("fetch artists: %w", err)
	}
	if len(found) != len(aids) {
		known := make(map[string]struct{}, len(found))
		for _, artist := range found {
			known[artist.AID] = struct{}{}
		}
		for _, aid := range aids {
			if _, ok := known[aid]; !ok {
				return fmt.Errorf("artist %s: %w", aid, repository.ErrNotFound)
			}
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
