package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		sess.SetFlash("Choose a PDF file to upload.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		s.renderError(w, r, http.StatusBadRequest, "Unsupported file type",
			fmt.Errorf("%s is not a PDF", filename))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Could not read upload", err)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		s.renderError(w, r, http.StatusRequestEntityTooLarge, "File too large",
			fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes))
		return
	}

	doc, err := s.ctrl.OpenDocument(filename, data)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Could not open document", err)
		return
	}
	s.ctrl.LoadDocument(sess, doc)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "upload.pdf"
	}
	return name
}
