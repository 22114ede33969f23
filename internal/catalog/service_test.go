package catalog

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/musiccy/music-svc/internal/blob"
	"github.com/musiccy/music-svc/internal/domain"
	"github.com/musiccy/music-svc/internal/pgtest"
	"github.com/musiccy/music-svc/internal/repository"
)

type testEnv struct {
	ctx   context.Context
	repos *repository.Repository
	blobs *blob.Memory
	svc   *Service
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	st, pool := pgtest.StartStore(t)
	repos := repository.New(pool)
	blobs := blob.NewMemory()

	svc := New(Params{
		Store:  st,
		Repos:  repos,
		Blobs:  blobs,
		Bounds: domain.DefaultRatingBounds,
	})
	return &testEnv{
		ctx:   context.Background(),
		repos: repos,
		blobs: blobs,
		svc:   svc,
	}
}

func (e *testEnv) mustCreateUser(t testing.TB, email string, verified bool) domain.User {
	t.Helper()
	user, err := e.repos.Users.Create(e.ctx, repository.UserCreateParams{
		UUID:     uuid.NewString(),
		FullName: "Catalog Tester",
		Email:    email,
		Role:     domain.RoleUser,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if verified {
		if err := e.repos.Users.SetVerified(e.ctx, user.UUID, true); err != nil {
			t.Fatalf("verify user %s: %v", email, err)
		}
		user.Verified = true
	}
	return user
}

func (e *testEnv) mustUploadSong(t testing.TB, owner string, title string, artistIDs ...string) domain.Song {
	t.Helper()
	song, err := e.svc.UploadSong(e.ctx, owner, UploadSongInput{
		Title:       title,
		ReleaseDate: time.Date(2022, time.April, 5, 0, 0, 0, 0, time.UTC),
		ArtistIDs:   artistIDs,
		Image:       FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("jpeg-bytes")},
		Audio:       FileUpload{ContentType: "audio/mpeg", Data: bytes.NewBufferString("mp3-bytes")},
	})
	if err != nil {
		t.Fatalf("upload song %q: %v", title, err)
	}
	return song
}

func (e *testEnv) mustUploadArtist(t testing.TB, owner, name string) domain.Artist {
	t.Helper()
	artist, err := e.svc.UploadArtist(e.ctx, owner, UploadArtistInput{
		Name:      name,
		BirthDate: time.Date(1979, time.November, 23, 0, 0, 0, 0, time.UTC),
		Image:     FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("jpeg-bytes")},
	})
	if err != nil {
		t.Fatalf("upload artist %q: %v", name, err)
	}
	return artist
}

func (e *testEnv) songAggregate(t testing.TB, sid string) (int64, int64) {
	t.Helper()
	song, err := e.repos.Songs.GetBySID(e.ctx, sid)
	if err != nil {
		t.Fatalf("read song %s: %v", sid, err)
	}
	return song.RatingValue, song.RatingCount
}

func (e *testEnv) artistAggregate(t testing.TB, aid string) (int64, int64) {
	t.Helper()
	artist, err := e.repos.Artists.GetByAID(e.ctx, aid)
	if err != nil {
		t.Fatalf("read artist %s: %v", aid, err)
	}
	return artist.RatingValue, artist.RatingCount
}

func TestRateSong_FirstRatingAndRerate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "Artist")
	song := env.mustUploadSong(t, owner.UUID, "Song", artist.AID)

	// Three raters take the song to (12, 3).
	for i, email := range []string{"r1@example.com", "r2@example.com", "r3@example.com"} {
		rater := env.mustCreateUser(t, email, true)
		if err := env.svc.RateSong(env.ctx, rater.UUID, song.SID, 4); err != nil {
			t.Fatalf("rating %d: %v", i, err)
		}
	}
	if v, c := env.songAggregate(t, song.SID); v != 12 || c != 3 {
		t.Fatalf("song aggregate = (%d,%d), want (12,3)", v, c)
	}

	// A fourth rater's 5 lands as (17, 4) on both song and artist.
	fourth := env.mustCreateUser(t, "r4@example.com", true)
	if err := env.svc.RateSong(env.ctx, fourth.UUID, song.SID, 5); err != nil {
		t.Fatalf("fourth rating: %v", err)
	}
	if v, c := env.songAggregate(t, song.SID); v != 17 || c != 4 {
		t.Fatalf("song aggregate = (%d,%d), want (17,4)", v, c)
	}
	if v, c := env.artistAggregate(t, artist.AID); v != 17 || c != 4 {
		t.Fatalf("artist aggregate = (%d,%d), want (17,4)", v, c)
	}

	// Re-rating 5 -> 2 shifts values by -3 and leaves counts alone.
	if err := env.svc.RateSong(env.ctx, fourth.UUID, song.SID, 2); err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	if v, c := env.songAggregate(t, song.SID); v != 14 || c != 4 {
		t.Fatalf("song aggregate after re-rate = (%d,%d), want (14,4)", v, c)
	}
	if v, c := env.artistAggregate(t, artist.AID); v != 14 || c != 4 {
		t.Fatalf("artist aggregate after re-rate = (%d,%d), want (14,4)", v, c)
	}

	rating, err := env.repos.Ratings.Get(env.ctx, song.SID, fourth.UUID)
	if err != nil {
		t.Fatalf("read rating: %v", err)
	}
	if rating.Value != 2 {
		t.Fatalf("stored rating = %d, want 2", rating.Value)
	}
}

func TestRateSong_OutOfBounds(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	song := env.mustUploadSong(t, owner.UUID, "Song")

	for _, value := range []int64{0, 6, -1} {
		err := env.svc.RateSong(env.ctx, owner.UUID, song.SID, value)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("rating %d: got %v, want ErrValidation", value, err)
		}
	}
	if v, c := env.songAggregate(t, song.SID); v != 0 || c != 0 {
		t.Fatalf("rejected ratings must not touch the aggregate, got (%d,%d)", v, c)
	}
}

func TestRateSong_RequiresVerifiedActiveUser(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	song := env.mustUploadSong(t, owner.UUID, "Song")

	unverified := env.mustCreateUser(t, "newbie@example.com", false)
	if err := env.svc.RateSong(env.ctx, unverified.UUID, song.SID, 3); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unverified rater: got %v, want ErrForbidden", err)
	}

	gone := env.mustCreateUser(t, "gone@example.com", true)
	if err := env.repos.Users.Deactivate(env.ctx, gone.UUID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := env.svc.RateSong(env.ctx, gone.UUID, song.SID, 3); !errors.Is(err, ErrForbidden) {
		t.Fatalf("deactivated rater: got %v, want ErrForbidden", err)
	}
}

func TestDeleteSong_RetractsArtistCredit(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "Artist")

	kept := env.mustUploadSong(t, owner.UUID, "Kept", artist.AID)
	doomed := env.mustUploadSong(t, owner.UUID, "Doomed", artist.AID)

	raterA := env.mustCreateUser(t, "a@example.com", true)
	raterB := env.mustCreateUser(t, "b@example.com", true)
	if err := env.svc.RateSong(env.ctx, raterA.UUID, kept.SID, 5); err != nil {
		t.Fatalf("rate kept: %v", err)
	}
	if err := env.svc.RateSong(env.ctx, raterA.UUID, doomed.SID, 3); err != nil {
		t.Fatalf("rate doomed: %v", err)
	}
	if err := env.svc.RateSong(env.ctx, raterB.UUID, doomed.SID, 4); err != nil {
		t.Fatalf("rate doomed again: %v", err)
	}

	if v, c := env.artistAggregate(t, artist.AID); v != 12 || c != 3 {
		t.Fatalf("artist aggregate = (%d,%d), want (12,3)", v, c)
	}

	if err := env.svc.DeleteSong(env.ctx, owner.UUID, doomed.SID); err != nil {
		t.Fatalf("delete song: %v", err)
	}

	// Only the kept song's contribution remains.
	if v, c := env.artistAggregate(t, artist.AID); v != 5 || c != 1 {
		t.Fatalf("artist aggregate after delete = (%d,%d), want (5,1)", v, c)
	}
	if _, err := env.repos.Songs.GetBySID(env.ctx, doomed.SID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("deleted song still readable: %v", err)
	}
	if n, err := env.repos.Ratings.CountBySID(env.ctx, doomed.SID); err != nil || n != 0 {
		t.Fatalf("ratings left after delete: n=%d err=%v", n, err)
	}
	if _, ok := env.blobs.Get(blob.AudioKey(doomed.SID)); ok {
		t.Fatalf("audio blob survived the delete")
	}
	if _, ok := env.blobs.Get(blob.ImageKey(kept.SID)); !ok {
		t.Fatalf("kept song's blob went missing")
	}
}

func TestDeleteSong_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	stranger := env.mustCreateUser(t, "stranger@example.com", true)
	song := env.mustUploadSong(t, owner.UUID, "Song")

	if err := env.svc.DeleteSong(env.ctx, stranger.UUID, song.SID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger delete: got %v, want ErrForbidden", err)
	}
	if _, err := env.repos.Songs.GetBySID(env.ctx, song.SID); err != nil {
		t.Fatalf("song should survive a forbidden delete: %v", err)
	}
}

func TestUpdateSong_ReconcileTransfersCredit(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	original := env.mustUploadArtist(t, owner.UUID, "Original")
	replacement := env.mustUploadArtist(t, owner.UUID, "Replacement")
	song := env.mustUploadSong(t, owner.UUID, "Song", original.AID)

	for _, seed := range []struct {
		email string
		value int64
	}{
		{"a@example.com", 5}, {"b@example.com", 5}, {"c@example.com", 2}, {"d@example.com", 2},
	} {
		rater := env.mustCreateUser(t, seed.email, true)
		if err := env.svc.RateSong(env.ctx, rater.UUID, song.SID, seed.value); err != nil {
			t.Fatalf("seed rating: %v", err)
		}
	}
	if v, c := env.songAggregate(t, song.SID); v != 14 || c != 4 {
		t.Fatalf("song aggregate = (%d,%d), want (14,4)", v, c)
	}

	// Swap the credited artist: the full (14,4) moves across.
	if _, err := env.svc.UpdateSong(env.ctx, owner.UUID, song.SID, UpdateSongInput{
		ArtistsToAdd:    []string{replacement.AID},
		ArtistsToDelete: []string{original.AID},
	}); err != nil {
		t.Fatalf("reconcile update: %v", err)
	}
	if v, c := env.artistAggregate(t, original.AID); v != 0 || c != 0 {
		t.Fatalf("removed artist keeps credit: (%d,%d)", v, c)
	}
	if v, c := env.artistAggregate(t, replacement.AID); v != 14 || c != 4 {
		t.Fatalf("added artist aggregate = (%d,%d), want (14,4)", v, c)
	}

	// An id named in both lists cancels out entirely.
	if _, err := env.svc.UpdateSong(env.ctx, owner.UUID, song.SID, UpdateSongInput{
		ArtistsToAdd:    []string{original.AID},
		ArtistsToDelete: []string{original.AID},
	}); err != nil {
		t.Fatalf("cancelling update: %v", err)
	}
	if v, c := env.artistAggregate(t, original.AID); v != 0 || c != 0 {
		t.Fatalf("cancelled add still moved credit: (%d,%d)", v, c)
	}
	aids, err := env.repos.SongArtists.ArtistIDsForSong(env.ctx, song.SID)
	if err != nil {
		t.Fatalf("list associations: %v", err)
	}
	if len(aids) != 1 || aids[0] != replacement.AID {
		t.Fatalf("associations = %v, want [replacement]", aids)
	}
}

func TestUpdateSong_RemoveUnmappedArtistFails(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "Unmapped")
	song := env.mustUploadSong(t, owner.UUID, "Song")

	_, err := env.svc.UpdateSong(env.ctx, owner.UUID, song.SID, UpdateSongInput{
		ArtistsToDelete: []string{artist.AID},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestUpdateSong_FieldsAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	stranger := env.mustCreateUser(t, "stranger@example.com", true)
	song := env.mustUploadSong(t, owner.UUID, "Original Title")

	title := "New Title"
	date := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	updated, err := env.svc.UpdateSong(env.ctx, owner.UUID, song.SID, UpdateSongInput{
		Title:       &title,
		ReleaseDate: &date,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || !updated.ReleaseDate.Equal(date) {
		t.Fatalf("update result: %+v", updated)
	}

	if _, err := env.svc.UpdateSong(env.ctx, stranger.UUID, song.SID, UpdateSongInput{
		Title: &title,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger update: got %v, want ErrForbidden", err)
	}

	// The owner may replace the image in place.
	if _, err := env.svc.UpdateSong(env.ctx, owner.UUID, song.SID, UpdateSongInput{
		Image: &FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("fresh-bytes")},
	}); err != nil {
		t.Fatalf("owner image update: %v", err)
	}
	data, ok := env.blobs.Get(blob.ImageKey(song.SID))
	if !ok || string(data) != "fresh-bytes" {
		t.Fatalf("image not replaced: %q, %v", data, ok)
	}
}

func TestUpdateSong_NonOwnerImageLeavesBlob(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	stranger := env.mustCreateUser(t, "stranger@example.com", true)
	song := env.mustUploadSong(t, owner.UUID, "Guarded")

	_, err := env.svc.UpdateSong(env.ctx, stranger.UUID, song.SID, UpdateSongInput{
		Image: &FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("intruder-bytes")},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger image update: got %v, want ErrForbidden", err)
	}

	data, ok := env.blobs.Get(blob.ImageKey(song.SID))
	if !ok {
		t.Fatalf("image blob missing after rejected update")
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("rejected update overwrote the image: %q", data)
	}

	// Same for an unverified caller.
	unverified := env.mustCreateUser(t, "newbie@example.com", false)
	_, err = env.svc.UpdateSong(env.ctx, unverified.UUID, song.SID, UpdateSongInput{
		Image: &FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("intruder-bytes")},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("unverified image update: got %v, want ErrForbidden", err)
	}
	data, _ = env.blobs.Get(blob.ImageKey(song.SID))
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unverified update overwrote the image: %q", data)
	}
}

func TestUpdateArtist_NonOwnerImageLeavesBlob(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	stranger := env.mustCreateUser(t, "stranger@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "Guarded")

	_, err := env.svc.UpdateArtist(env.ctx, stranger.UUID, artist.AID, UpdateArtistInput{
		Image: &FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("intruder-bytes")},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger image update: got %v, want ErrForbidden", err)
	}

	data, ok := env.blobs.Get(blob.ImageKey(artist.AID))
	if !ok {
		t.Fatalf("image blob missing after rejected update")
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("rejected update overwrote the image: %q", data)
	}
}

func TestUploadSong_UnknownArtistRollsBackBlobs(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)

	before := env.blobs.Len()
	_, err := env.svc.UploadSong(env.ctx, owner.UUID, UploadSongInput{
		Title:       "Orphan",
		ReleaseDate: time.Date(2022, time.April, 5, 0, 0, 0, 0, time.UTC),
		ArtistIDs:   []string{"no-such-artist"},
		Image:       FileUpload{ContentType: "image/jpeg", Data: bytes.NewBufferString("jpeg-bytes")},
		Audio:       FileUpload{ContentType: "audio/mpeg", Data: bytes.NewBufferString("mp3-bytes")},
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if env.blobs.Len() != before {
		t.Fatalf("orphan blobs left behind: %d -> %d", before, env.blobs.Len())
	}
	if total, err := env.repos.Songs.Count(env.ctx); err != nil || total != 0 {
		t.Fatalf("song row leaked: total=%d err=%v", total, err)
	}
}

func TestDeleteArtist_KeepsSongAggregates(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "Departing")
	song := env.mustUploadSong(t, owner.UUID, "Song", artist.AID)

	rater := env.mustCreateUser(t, "rater@example.com", true)
	if err := env.svc.RateSong(env.ctx, rater.UUID, song.SID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}

	if err := env.svc.DeleteArtist(env.ctx, owner.UUID, artist.AID); err != nil {
		t.Fatalf("delete artist: %v", err)
	}

	// The song and its ratings are untouched; only the mapping is gone.
	if v, c := env.songAggregate(t, song.SID); v != 5 || c != 1 {
		t.Fatalf("song aggregate = (%d,%d), want (5,1)", v, c)
	}
	aids, err := env.repos.SongArtists.ArtistIDsForSong(env.ctx, song.SID)
	if err != nil {
		t.Fatalf("list associations: %v", err)
	}
	if len(aids) != 0 {
		t.Fatalf("dangling associations: %v", aids)
	}
	if _, ok := env.blobs.Get(blob.ImageKey(artist.AID)); ok {
		t.Fatalf("artist image blob survived the delete")
	}
}

func TestListArtists_EmbedsMappedSongs(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)
	artist := env.mustUploadArtist(t, owner.UUID, "With Songs")
	empty := env.mustUploadArtist(t, owner.UUID, "Without Songs")
	song := env.mustUploadSong(t, owner.UUID, "Song", artist.AID)

	page, err := env.svc.ListArtists(env.ctx, 0, 10)
	if err != nil {
		t.Fatalf("list artists: %v", err)
	}
	if page.Total != 2 || len(page.Artists) != 2 {
		t.Fatalf("page = %+v", page)
	}
	for _, item := range page.Artists {
		switch item.Artist.AID {
		case artist.AID:
			if len(item.Songs) != 1 || item.Songs[0].SID != song.SID {
				t.Fatalf("mapped songs = %+v", item.Songs)
			}
		case empty.AID:
			if len(item.Songs) != 0 {
				t.Fatalf("empty artist has songs: %+v", item.Songs)
			}
		}
	}
}

func TestTopSongs_OrderingAndExclusion(t *testing.T) {
	env := newTestEnv(t)
	owner := env.mustCreateUser(t, "owner@example.com", true)

	low := env.mustUploadSong(t, owner.UUID, "Low")
	high := env.mustUploadSong(t, owner.UUID, "High")
	env.mustUploadSong(t, owner.UUID, "Silent")

	raterA := env.mustCreateUser(t, "a@example.com", true)
	raterB := env.mustCreateUser(t, "b@example.com", true)
	if err := env.svc.RateSong(env.ctx, raterA.UUID, low.SID, 2); err != nil {
		t.Fatalf("rate low: %v", err)
	}
	if err := env.svc.RateSong(env.ctx, raterA.UUID, high.SID, 5); err != nil {
		t.Fatalf("rate high: %v", err)
	}
	if err := env.svc.RateSong(env.ctx, raterB.UUID, high.SID, 4); err != nil {
		t.Fatalf("rate high again: %v", err)
	}

	top, err := env.svc.TopSongs(env.ctx, 10)
	if err != nil {
		t.Fatalf("top songs: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top size = %d, want 2", len(top))
	}
	if top[0].SID != high.SID || top[1].SID != low.SID {
		t.Fatalf("top order = [%s %s], want [High Low]", top[0].Title, top[1].Title)
	}
}

func TestEffectiveSets(t *testing.T) {
	add, del := effectiveSets(
		[]string{"b", "a", "a", "x"},
		[]string{"x", "c", "c"},
	)
	if !reflect.DeepEqual(add, []string{"a", "b"}) {
		t.Fatalf("add = %v, want [a b]", add)
	}
	if !reflect.DeepEqual(del, []string{"c"}) {
		t.Fatalf("del = %v, want [c]", del)
	}

	add, del = effectiveSets([]string{"a"}, []string{"a"})
	if len(add) != 0 || len(del) != 0 {
		t.Fatalf("mutual cancellation failed: add=%v del=%v", add, del)
	}
}
