package httpserver

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/musiccy/music-svc/internal/catalog"
	"github.com/musiccy/music-svc/internal/domain"
)

const (
	dateLayout = "2006-01-02"

	imageContentType = "image/jpeg"
	audioContentType = "audio/mpeg"

	// multipart parse buffer; larger parts spill to disk.
	maxMultipartMemory = 4 << 20
)

type songResponse struct {
	SID             string   `json:"sid"`
	Title           string   `json:"title"`
	DateOfRelease   string   `json:"dateOfRelease"`
	Image           string   `json:"image"`
	Audio           string   `json:"audio"`
	AverageRating   *float64 `json:"averageRating"`
	NumberOfRatings int64    `json:"numberOfRatings"`
	UploadedBy      string   `json:"uploadedBy"`
}

func toSongResponse(song domain.Song) songResponse {
	return songResponse{
		SID:             song.SID,
		Title:           song.Title,
		DateOfRelease:   song.ReleaseDate.Format(dateLayout),
		Image:           song.Image,
		Audio:           song.Audio,
		AverageRating:   song.Average(),
		NumberOfRatings: song.RatingCount,
		UploadedBy:      song.OwnerUUID,
	}
}

func toSongResponses(songs []domain.Song) []songResponse {
	out := make([]songResponse, 0, len(songs))
	for _, song := range songs {
		out = append(out, toSongResponse(song))
	}
	return out
}

type songPageResponse struct {
	Offset int            `json:"offset"`
	Total  int64          `json:"total"`
	Songs  []songResponse `json:"songs"`
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	offset, size := s.pageParams(r)
	page, err := s.catalog.ListSongs(r.Context(), offset, size)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", songPageResponse{
		Offset: page.Offset,
		Total:  page.Total,
		Songs:  toSongResponses(page.Songs),
	})
}

func (s *Server) handleTopSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.TopSongs(r.Context(), s.cfg.TopSongsLimit)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", toSongResponses(songs))
}

func (s *Server) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	releaseDate, err := time.Parse(dateLayout, r.FormValue("dateOfRelease"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "dateOfRelease must be YYYY-MM-DD")
		return
	}

	image, imageHeader, err := r.FormFile("image")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer image.Close()
	if !s.acceptUpload(w, imageHeader, imageContentType, s.cfg.ImageMaxBytes) {
		return
	}

	audio, audioHeader, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer audio.Close()
	if !s.acceptUpload(w, audioHeader, audioContentType, s.cfg.AudioMaxBytes) {
		return
	}

	song, err := s.catalog.UploadSong(r.Context(), user.UUID, catalog.UploadSongInput{
		Title:       title,
		ReleaseDate: releaseDate,
		ArtistIDs:   formIDs(r, "artists"),
		Image:       catalog.FileUpload{ContentType: imageContentType, Data: image},
		Audio:       catalog.FileUpload{ContentType: audioContentType, Data: audio},
	})
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, "Success", toSongResponse(song))
}

type rateSongRequest struct {
	SongID     string `json:"songId" validate:"required"`
	UserRating int64  `json:"userRating" validate:"required"`
}

func (s *Server) handleRateSong(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req rateSongRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	if err := s.catalog.RateSong(r.Context(), user.UUID, req.SongID, req.UserRating); err != nil {
		s.respondMappedError(w, err)
		return
	}

	song, err := s.catalog.GetSong(r.Context(), req.SongID)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", toSongResponse(song))
}

func (s *Server) handleUpdateSong(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sid := chi.URLParam(r, "songID")

	// decodeSongUpdate may parse a multipart body whose parts spill to
	// disk; clean them up once the service has consumed the readers.
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in, ok := s.decodeSongUpdate(w, r)
	if !ok {
		return
	}

	song, err := s.catalog.UpdateSong(r.Context(), user.UUID, sid, in)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", toSongResponse(song))
}

type updateSongRequest struct {
	Title           *string  `json:"title" validate:"omitempty,min=1,max=120"`
	DateOfRelease   *string  `json:"dateOfRelease" validate:"omitempty,datetime=2006-01-02"`
	ArtistsToAdd    []string `json:"artistsToAdd" validate:"omitempty,dive,required"`
	ArtistsToDelete []string `json:"artistsToDelete" validate:"omitempty,dive,required"`
}

// decodeSongUpdate accepts either a JSON body or, when the song's image
// is being replaced, a multipart form carrying the same fields.
func (s *Server) decodeSongUpdate(w http.ResponseWriter, r *http.Request) (catalog.UpdateSongInput, bool) {
	var in catalog.UpdateSongInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid multipart body")
			return in, false
		}

		if title := strings.TrimSpace(r.FormValue("title")); title != "" {
			in.Title = &title
		}
		if raw := r.FormValue("dateOfRelease"); raw != "" {
			date, err := time.Parse(dateLayout, raw)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "dateOfRelease must be YYYY-MM-DD")
				return in, false
			}
			in.ReleaseDate = &date
		}
		in.ArtistsToAdd = formIDs(r, "artistsToAdd")
		in.ArtistsToDelete = formIDs(r, "artistsToDelete")

		image, imageHeader, err := r.FormFile("image")
		if err == nil {
			if !s.acceptUpload(w, imageHeader, imageContentType, s.cfg.ImageMaxBytes) {
				image.Close()
				return in, false
			}
			in.Image = &catalog.FileUpload{ContentType: imageContentType, Data: image}
		}
		return in, true
	}

	var req updateSongRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return in, false
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return in, false
	}

	in.Title = req.Title
	if req.DateOfRelease != nil {
		date, err := time.Parse(dateLayout, *req.DateOfRelease)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "dateOfRelease must be YYYY-MM-DD")
			return in, false
		}
		in.ReleaseDate = &date
	}
	in.ArtistsToAdd = req.ArtistsToAdd
	in.ArtistsToDelete = req.ArtistsToDelete
	return in, true
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sid := chi.URLParam(r, "songID")

	if err := s.catalog.DeleteSong(r.Context(), user.UUID, sid); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", nil)
}

// acceptUpload rejects a part whose declared type or size is outside the
// configured limits for its slot.
func (s *Server) acceptUpload(w http.ResponseWriter, header *multipart.FileHeader, contentType string, maxBytes int64) bool {
	if got := header.Header.Get("Content-Type"); got != contentType {
		s.respondError(w, http.StatusForbidden, "Unsupported file type")
		return false
	}
	if header.Size > maxBytes {
		s.respondError(w, http.StatusForbidden, "File too large")
		return false
	}
	return true
}

// pageParams reads offset/size query params, clamping size to the
// configured page limit.
func (s *Server) pageParams(r *http.Request) (offset, size int) {
	size = s.cfg.PageLimit
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < size {
			size = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return offset, size
}

// formIDs collects repeated form values for key, splitting any
// comma-separated entries.
func formIDs(r *http.Request, key string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	var ids []string
	for _, raw := range r.MultipartForm.Value[key] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
