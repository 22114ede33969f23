package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/musiccy/music-svc/internal/catalog"
	"github.com/musiccy/music-svc/internal/domain"
)

type artistResponse struct {
	AID             string         `json:"aid"`
	Name            string         `json:"name"`
	DateOfBirth     string         `json:"dateOfBirth"`
	Image           string         `json:"image"`
	AverageRating   *float64       `json:"averageRating"`
	NumberOfRatings int64          `json:"numberOfRatings"`
	UploadedBy      string         `json:"uploadedBy"`
	Songs           []songResponse `json:"songs,omitempty"`
}

func toArtistResponse(artist domain.Artist, songs []domain.Song) artistResponse {
	return artistResponse{
		AID:             artist.AID,
		Name:            artist.Name,
		DateOfBirth:     artist.BirthDate.Format(dateLayout),
		Image:           artist.Image,
		AverageRating:   artist.Average(),
		NumberOfRatings: artist.RatingCount,
		UploadedBy:      artist.OwnerUUID,
		Songs:           toSongResponses(songs),
	}
}

type artistPageResponse struct {
	Offset  int              `json:"offset"`
	Total   int64            `json:"total"`
	Artists []artistResponse `json:"artists"`
}

func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	offset, size := s.pageParams(r)
	page, err := s.catalog.ListArtists(r.Context(), offset, size)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}

	artists := make([]artistResponse, 0, len(page.Artists))
	for _, item := range page.Artists {
		artists = append(artists, toArtistResponse(item.Artist, item.Songs))
	}
	s.respond(w, http.StatusOK, "Success", artistPageResponse{
		Offset:  page.Offset,
		Total:   page.Total,
		Artists: artists,
	})
}

func (s *Server) handleUploadArtist(w http.ResponseWriter, r *http.Request) {
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

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	birthDate, err := time.Parse(dateLayout, r.FormValue("dateOfBirth"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
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

	artist, err := s.catalog.UploadArtist(r.Context(), user.UUID, catalog.UploadArtistInput{
		Name:      name,
		BirthDate: birthDate,
		Image:     catalog.FileUpload{ContentType: imageContentType, Data: image},
	})
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, "Success", toArtistResponse(artist, nil))
}

func (s *Server) handleUpdateArtist(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	aid := chi.URLParam(r, "artistID")

	// Multipart parts may spill to disk; clean them up once the service
	// has consumed the readers.
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var in catalog.UpdateArtistInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}

		if name := strings.TrimSpace(r.FormValue("name")); name != "" {
			in.Name = &name
		}
		if raw := r.FormValue("dateOfBirth"); raw != "" {
			date, err := time.Parse(dateLayout, raw)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
				return
			}
			in.BirthDate = &date
		}
		image, imageHeader, err := r.FormFile("image")
		if err == nil {
			if !s.acceptUpload(w, imageHeader, imageContentType, s.cfg.ImageMaxBytes) {
				image.Close()
				return
			}
			in.Image = &catalog.FileUpload{ContentType: imageContentType, Data: image}
		}
	} else {
		var req updateArtistRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
		if err := s.validate.Struct(req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Validation failed")
			return
		}
		in.Name = req.Name
		if req.DateOfBirth != nil {
			date, err := time.Parse(dateLayout, *req.DateOfBirth)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
				return
			}
			in.BirthDate = &date
		}
	}

	artist, err := s.catalog.UpdateArtist(r.Context(), user.UUID, aid, in)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", toArtistResponse(artist, nil))
}

type updateArtistRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=60"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
}

func (s *Server) handleDeleteArtist(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	aid := chi.URLParam(r, "artistID")

	if err := s.catalog.DeleteArtist(r.Context(), user.UUID, aid); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", nil)
}
