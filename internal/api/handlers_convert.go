package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/paperdoc/internal/store"
)

// handleConvert converts one uploaded page synchronously. ?part= narrows the
// response to front_matter or references.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	file.Close()
	filename, data, err := s.readUpload(header)
	if err != nil {
		jsonError(w, err.Error(), uploadErrorCode(err))
		return
	}

	doc, err := s.orchestrator.Converter().Convert(data, filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var out any = doc
	switch part := r.URL.Query().Get("part"); part {
	case "", store.PartContent:
	case store.PartFrontMatter:
		out = doc.FrontMatter
	case store.PartReferences:
		out = doc.References
	default:
		jsonError(w, "unknown part: "+part, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
