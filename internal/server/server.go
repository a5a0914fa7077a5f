// Package server exposes the decoder over HTTP: upload run files, decode
// them to a summary, run QC packs and download generated artifacts.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/remusdec/internal/common"
	"example.com/remusdec/internal/manifest"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/report"
	"example.com/remusdec/internal/rlf"
)

// Server coordinates HTTP handlers and manages temporary artifacts
// produced by decode requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	rulePack   qc.RulePack
}

// Options configures server creation.
type Options struct {
	StorageDir   string
	RulePackPath string
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "remusd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	rp := qc.DefaultRulePack()
	if opts.RulePackPath != "" {
		rp, err = qc.LoadRulePack(opts.RulePackPath)
		if err != nil {
			os.RemoveAll(workDir)
			return nil, fmt.Errorf("load rule pack: %w", err)
		}
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		rulePack:   rp,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// resolvePath accepts either an artifact id from a prior upload or a
// path on the daemon host.
func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// runContext resolves the request's file tokens into a QC context and
// decodes whatever streams are present. Per-file decode errors are
// collected, not fatal.
type runRequest struct {
	RunLog   string `json:"runLog"`
	Profiler string `json:"profiler"`
	Fixes    string `json:"fixes"`
}

func (s *Server) runContext(req runRequest) (*qc.Context, map[string]string) {
	ctx := &qc.Context{}
	fileErrs := make(map[string]string)
	if req.RunLog != "" {
		path, err := s.resolvePath(req.RunLog)
		if err == nil {
			ctx.RunLogFile = path
			if ds, perr := rlf.ParseFile(path); perr != nil {
				fileErrs[path] = perr.Error()
			} else {
				ctx.RunLog = ds
			}
		} else {
			fileErrs[req.RunLog] = err.Error()
		}
	}
	if req.Profiler != "" {
		path, err := s.resolvePath(req.Profiler)
		if err == nil {
			ctx.ProfilerFile = path
			if ds, perr := pd0.ParseFile(path); perr != nil {
				fileErrs[path] = perr.Error()
			} else {
				ctx.Profiler = ds
			}
		} else {
			fileErrs[req.Profiler] = err.Error()
		}
	}
	if req.Fixes != "" {
		path, err := s.resolvePath(req.Fixes)
		if err == nil {
			ctx.FixesFile = path
		} else {
			fileErrs[req.Fixes] = err.Error()
		}
	}
	return ctx, fileErrs
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.RunLog == "" {
		http.Error(w, "runLog required", http.StatusBadRequest)
		return
	}
	ctx, fileErrs := s.runContext(req)
	if ctx.RunLog == nil {
		http.Error(w, fmt.Sprintf("decode run log: %v", fileErrs), http.StatusBadRequest)
		return
	}

	engine := qc.NewEngine(qc.TrimPack(s.rulePack, ctx))
	if _, err := engine.Eval(ctx); err != nil {
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	acc := engine.MakeAcceptance()
	rep := report.Build(ctx.RunLog, ctx.RunLogFile, ctx.Profiler, ctx.ProfilerFile, &acc)

	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		http.Error(w, fmt.Sprintf("diagnostics temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		http.Error(w, fmt.Sprintf("write diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	jsonPath, err := s.tempPath("report-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("report temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveJSON(rep, jsonPath); err != nil {
		http.Error(w, fmt.Sprintf("write report: %v", err), http.StatusInternalServerError)
		return
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		http.Error(w, fmt.Sprintf("report pdf temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveRunPDF(rep, pdfPath); err != nil {
		http.Error(w, fmt.Sprintf("write report pdf: %v", err), http.StatusInternalServerError)
		return
	}
	diagArt, err := s.addArtifact(diagPath, "diagnostics.ndjson", "application/x-ndjson", "diagnostics")
	if err != nil {
		http.Error(w, fmt.Sprintf("register diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	jsonArt, err := s.addArtifact(jsonPath, "run_report.json", "application/json", "report")
	if err != nil {
		http.Error(w, fmt.Sprintf("register report: %v", err), http.StatusInternalServerError)
		return
	}
	pdfArt, err := s.addArtifact(pdfPath, "run_report.pdf", "application/pdf", "report")
	if err != nil {
		http.Error(w, fmt.Sprintf("register report pdf: %v", err), http.StatusInternalServerError)
		return
	}
	common.Logf("decode: runLog=%s findings=%d pass=%v",
		req.RunLog, len(acc.Findings), acc.Summary.Pass)
	resp := struct {
		Report     report.RunReport  `json:"report"`
		FileErrors map[string]string `json:"fileErrors,omitempty"`
		Artifacts  []ArtifactRef     `json:"artifacts"`
	}{
		Report:     rep,
		FileErrors: fileErrs,
		Artifacts: []ArtifactRef{
			toRef(diagArt),
			toRef(jsonArt),
			toRef(pdfArt),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req struct {
		runRequest
		RulePack *qc.RulePack `json:"rulePack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.RunLog == "" && req.Profiler == "" && req.Fixes == "" {
		http.Error(w, "at least one input required", http.StatusBadRequest)
		return
	}
	ctx, fileErrs := s.runContext(req.runRequest)

	rp := s.rulePack
	if req.RulePack != nil && len(req.RulePack.Rules) > 0 {
		if err := qc.ValidateRulePack(*req.RulePack); err != nil {
			http.Error(w, fmt.Sprintf("rule pack: %v", err), http.StatusBadRequest)
			return
		}
		rp = *req.RulePack
	}
	engine := qc.NewEngine(qc.TrimPack(rp, ctx))
	diags, err := engine.Eval(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	acc := engine.MakeAcceptance()

	if stream {
		w.Header().Set("Content-Type", "application/x-ndjson")
		writer := NewNDJSONWriter(w)
		for _, d := range diags {
			if err := writer.WriteDiagnostic(d); err != nil {
				return
			}
		}
		_ = writer.WriteObject(map[string]any{
			"type":       "acceptance",
			"acceptance": acc,
			"fileErrors": fileErrs,
		})
		return
	}
	resp := struct {
		Acceptance qc.AcceptanceReport `json:"acceptance"`
		FileErrors map[string]string   `json:"fileErrors,omitempty"`
	}{Acceptance: acc, FileErrors: fileErrs}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Inputs  []string `json:"inputs"`
		ShaAlgo string   `json:"shaAlgo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs required", http.StatusBadRequest)
		return
	}
	if req.ShaAlgo != "" && !strings.EqualFold(req.ShaAlgo, "sha256") {
		http.Error(w, "only sha256 supported", http.StatusBadRequest)
		return
	}
	var paths []string
	for _, in := range req.Inputs {
		resolved, err := s.resolvePath(in)
		if err != nil {
			http.Error(w, fmt.Sprintf("resolve %s: %v", in, err), http.StatusBadRequest)
			return
		}
		paths = append(paths, resolved)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, outPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Manifest manifest.Manifest `json:"manifest"`
		Artifact ArtifactRef       `json:"artifact"`
	}{
		Manifest: m,
		Artifact: toRef(art),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.listArtifacts())
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		s.handleArtifacts(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".gps", ".rmf", ".txt":
		return "text/plain"
	case ".rlf", ".adc":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}
