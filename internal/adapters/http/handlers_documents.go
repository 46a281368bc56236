package httpadapter

import (
	"net/http"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

const defaultMaxUploadBytes = 32 << 20

func (rt *Router) maxUploadBytes() int64 {
	if rt.cfg.APIMaxUploadBytes > 0 {
		return rt.cfg.APIMaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Ingest == nil {
		writeError(w, r, domain.NewError(domain.ErrTemporary, "upload document", "document ingestion is not available"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes())
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.NewError(domain.ErrValidation, "upload document", "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	doc, err := rt.svc.Ingest.Upload(r.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Documents == nil {
		writeError(w, r, domain.NewError(domain.ErrTemporary, "get document", "document tracking is not available"))
		return
	}
	doc, err := rt.svc.Documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
