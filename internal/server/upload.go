package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"example.com/remusdec/internal/common"
	"example.com/remusdec/internal/manifest"
)

// uploadExtensions is the run-file set the daemon accepts: the vehicle's
// own outputs plus rule packs and layout overrides.
var uploadExtensions = map[string]bool{
	".rlf":  true,
	".adc":  true,
	".gps":  true,
	".rmf":  true,
	".txt":  true,
	".json": true,
	".yaml": true,
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(512 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveUploadedFile(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

// saveUploadedFile stores one run file and registers it under the role
// its extension plays in a run directory, so later /decode and /manifest
// requests can reference it by artifact ID.
func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !uploadExtensions[ext] {
		return ArtifactRef{}, fmt.Errorf("unsupported file type %q", ext)
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	dest, err := os.CreateTemp(s.uploadsDir, "upload-*"+ext)
	if err != nil {
		return ArtifactRef{}, err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	kind := manifest.KindOf(fh.Filename)
	art, err := s.addArtifact(dest.Name(), fh.Filename, guessContentType(fh.Filename), kind)
	if err != nil {
		return ArtifactRef{}, err
	}
	common.Logf("upload: %s (%s, %d bytes)", fh.Filename, kind, art.Size)
	return toRef(art), nil
}
