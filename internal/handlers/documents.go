package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type DocumentHandler struct {
	svc      *services.DocumentService
	maxBytes int64
}

// NewDocumentHandler caps multipart bodies at maxBytes.
func NewDocumentHandler(svc *services.DocumentService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	docs, err := h.svc.List(r.Context(), id, r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": docs})
}

// Upload handles the multipart form of POST /api/dossiers/{id}/documents.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	up, ok := readUpload(w, r, h.maxBytes)
	if !ok {
		return
	}
	up.Description = r.FormValue("description")
	up.Location = models.DocumentLocation(r.FormValue("location"))
	up.VisibleClient = formBool(r, "visible_client")
	up.Sensible = formBool(r, "sensible")
	doc, err := h.svc.Upload(r.Context(), adminActor(r), id, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.DocumentPatch
	if !decode(w, r, &in) {
		return
	}
	doc, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), adminActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveDocument(w, r, h.svc, doc)
}

// serveDocument streams the local copy, or redirects to a OneDrive link.
func serveDocument(w http.ResponseWriter, r *http.Request, svc *services.DocumentService, doc *models.Document) {
	dl, err := svc.Open(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dl.RedirectURL != "" {
		http.Redirect(w, r, dl.RedirectURL, http.StatusFound)
		return
	}
	defer dl.Body.Close()
	if dl.MimeType != "" {
		w.Header().Set("Content-Type", dl.MimeType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	http.ServeContent(w, r, dl.Name, time.Time{}, dl.Body)
}

// readUpload parses the "file" part of a multipart body.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (services.Upload, bool) {
	if maxBytes > 0 {
		// multipart framing on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httpx.Error(w, r, http.StatusRequestEntityTooLarge, "file_too_large", nil)
			return services.Upload{}, false
		}
		httpx.Error(w, r, http.StatusBadRequest, "invalid_form", nil)
		return services.Upload{}, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "file_required", nil)
		return services.Upload{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return services.Upload{}, false
	}
	return services.Upload{
		Filename: hdr.Filename,
		MimeType: hdr.Header.Get("Content-Type"),
		Data:     data,
	}, true
}

func formBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.FormValue(name))
	return b || r.FormValue(name) == "on"
}
