package api

import (
	"archive/zip"
	"bytes"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"numeric-desensitizer/internal/batch"
	"numeric-desensitizer/internal/desensitizer"
	"numeric-desensitizer/internal/store"
	"numeric-desensitizer/internal/textio"
)

type desensitizeRequest struct {
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Persist bool   `json:"persist,omitempty"`
}

type desensitizeResponse struct {
	Text      string                `json:"text"`
	Count     int                   `json:"count"`
	Mapping   *desensitizer.Mapping `json:"mapping"`
	MappingID string                `json:"mappingId,omitempty"`
}

type restoreRequest struct {
	Text      string                `json:"text"`
	MappingID string                `json:"mappingId,omitempty"`
	Mapping   *desensitizer.Mapping `json:"mapping,omitempty"`
}

type restoreResponse struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type archiveFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type archiveRequest struct {
	Files []archiveFile `json:"files"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status     string   `json:"status"`
		Uptime     string   `json:"uptime"`
		Store      string   `json:"store"`
		Extensions []string `json:"extensions"`
	}
	kind := "memory"
	if s.cfg.StorePath != "" {
		kind = s.cfg.StorePath
	}
	writeJSON(w, http.StatusOK, response{
		Status:     "running",
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		Store:      kind,
		Extensions: s.cfg.Extensions,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleDesensitize(w http.ResponseWriter, r *http.Request) {
	var req desensitizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	start := time.Now()
	out, m := desensitizer.Desensitize(req.Text)
	s.metrics.RecordDesensitize(m.Len(), time.Since(start))
	if req.Source != "" {
		s.metrics.RecordExtension(path.Ext(req.Source))
	}

	resp := desensitizeResponse{Text: out, Count: m.Len(), Mapping: m}
	if req.Persist {
		id, err := s.store.Put(req.Source, m)
		if err != nil {
			s.metrics.ErrorsMapping.Add(1)
			s.log.Errorf("persist_failed", "%s: %v", req.Source, err)
			writeError(w, http.StatusInternalServerError, "could not persist mapping")
			return
		}
		resp.MappingID = id
	}
	s.log.Debugf("desensitize", "source=%q count=%d id=%s", req.Source, resp.Count, resp.MappingID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m := req.Mapping
	if req.MappingID != "" {
		rec, err := s.store.Get(req.MappingID)
		if err != nil {
			s.mappingError(w, req.MappingID, err)
			return
		}
		m = rec.Mapping
	}
	if m == nil {
		writeError(w, http.StatusBadRequest, "need mappingId or mapping")
		return
	}

	start := time.Now()
	count := desensitizer.CountPlaceholders(req.Text, m)
	out := desensitizer.Restore(req.Text, m)
	s.metrics.RecordRestore(count, time.Since(start))
	writeJSON(w, http.StatusOK, restoreResponse{Text: out, Count: count})
}

func (s *Server) handleMappingList(w http.ResponseWriter, _ *http.Request) {
	list, err := s.store.List()
	if err != nil {
		s.log.Errorf("list_failed", "%v", err)
		writeError(w, http.StatusInternalServerError, "could not list mappings")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMappingGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(id)
	if err != nil {
		s.mappingError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMappingDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(id); err != nil {
		s.mappingError(w, id, err)
		return
	}
	s.log.Infof("mapping_deleted", "%s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mappingError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrMappingNotFound) {
		writeError(w, http.StatusNotFound, "mapping not found")
		return
	}
	s.metrics.ErrorsMapping.Add(1)
	s.log.Errorf("mapping_failed", "%s: %v", id, err)
	writeError(w, http.StatusInternalServerError, "could not read mapping")
}

// handleArchive desensitizes each file with its own mapping and returns a
// ZIP holding <stem>_desensitized<ext> and <stem>_desensitized_map.json per
// file.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "no files")
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]bool, len(req.Files))
	for _, f := range req.Files {
		name := archiveName(f.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "invalid file name "+f.Name)
			return
		}
		if seen[name] {
			writeError(w, http.StatusBadRequest, "duplicate file name "+name)
			return
		}
		seen[name] = true

		start := time.Now()
		out, m := desensitizer.Desensitize(f.Content)
		mapping, err := m.MarshalIndent()
		if err != nil {
			s.metrics.ErrorsMapping.Add(1)
			writeError(w, http.StatusInternalServerError, "could not encode mapping")
			return
		}
		s.metrics.RecordDesensitize(m.Len(), time.Since(start))
		s.metrics.RecordExtension(path.Ext(name))

		outName := textio.Suffixed(name, batch.DesensitizedSuffix)
		if err := addZipFile(zw, outName, []byte(out)); err != nil {
			s.archiveFailed(w, err)
			return
		}
		if err := addZipFile(zw, textio.MappingPath(outName), mapping); err != nil {
			s.archiveFailed(w, err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.archiveFailed(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="desensitized.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	s.log.Infof("archive", "%d files archived", len(req.Files))
}

func (s *Server) archiveFailed(w http.ResponseWriter, err error) {
	s.metrics.ErrorsWrite.Add(1)
	s.log.Errorf("archive_failed", "%v", err)
	writeError(w, http.StatusInternalServerError, "could not build archive")
}

// archiveName reduces a client-supplied name to a safe base name.
func archiveName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return ""
	}
	return name
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}
