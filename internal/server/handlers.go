package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/starmark/pkg/buildinfo"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/notify"
	"github.com/matzehuels/starmark/pkg/observability"
	"github.com/matzehuels/starmark/pkg/pipeline"
	"github.com/matzehuels/starmark/pkg/starcache"
)

type statusResponse struct {
	Repo   string `json:"repo"`
	Status string `json:"status"`
}

type starsResponse struct {
	Repo  string `json:"repo"`
	Stars int    `json:"stars"`
}

type statsResponse struct {
	observability.Stats
	Notices []notify.Event `json:"notices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleAnnotateURL(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if err := errors.ValidateURL(target); err != nil {
		writeError(w, err)
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid url"))
		return
	}
	if !s.hostAllowed(u) {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "host %q is not in the allow list", u.Hostname()))
		return
	}
	page, err := s.fetchPage(r, target)
	if err != nil {
		writeError(w, err)
		return
	}
	s.annotate(w, r, page)
}

func (s *Server) handleAnnotateBody(w http.ResponseWriter, r *http.Request) {
	page, err := io.ReadAll(io.LimitReader(r.Body, maxPageSize))
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}
	if len(bytes.TrimSpace(page)) == 0 {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "empty request body"))
		return
	}
	s.annotate(w, r, page)
}

func (s *Server) annotate(w http.ResponseWriter, r *http.Request, page []byte) {
	res, err := s.runner.Execute(r.Context(), pipeline.Options{
		Source:      bytes.NewReader(page),
		Navigations: r.URL.Query()["navigate"],
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Starmark-Annotated", strconv.Itoa(len(res.Entries)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(injectScript(res.HTML))
}

func (s *Server) fetchPage(r *http.Request, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid url")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", target)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.ErrCodeRemoteStatus, "upstream returned status %d", resp.StatusCode).WithStatus(resp.StatusCode)
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "read %s", target)
	}
	return page, nil
}

// hostAllowed reports whether GET /annotate may fetch u.
func (s *Server) hostAllowed(u *url.URL) bool {
	if s.allow == nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range s.allow {
		a = strings.ToLower(strings.TrimPrefix(a, "."))
		if a == "*" || host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// restrictRedirects returns a copy of c that refuses redirects to hosts
// outside the allow list.
func (s *Server) restrictRedirects(c *http.Client) *http.Client {
	if s.allow == nil {
		return c
	}
	restricted := *c
	next := c.CheckRedirect
	restricted.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !s.hostAllowed(req.URL) {
			return errors.New(errors.ErrCodeInvalidInput, "redirect to host %q is not in the allow list", req.URL.Hostname())
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return stderrors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &restricted
}

func (s *Server) handleStars(w http.ResponseWriter, r *http.Request) {
	id, ok := repoParam(w, r)
	if !ok {
		return
	}
	n, found := s.cache.StarCount(r.Context(), id)
	if !found {
		writeError(w, errors.New(errors.ErrCodeRemoteStatus, "star count for %s is unavailable", id))
		return
	}
	writeJSON(w, http.StatusOK, starsResponse{Repo: id.String(), Stars: n})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := repoParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Repo: id.String(), Status: s.cache.Status(r.Context(), id).String()})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := repoParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode body"))
		return
	}
	status, err := starcache.ParseStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cache.SetStatus(r.Context(), id, status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Repo: id.String(), Status: status.String()})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := repoParam(w, r)
	if !ok {
		return
	}
	status, err := s.cache.Cycle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Repo: id.String(), Status: status.String()})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cache.Inspect(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.ClearAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{Stats: s.counters.Snapshot(), Notices: s.notices.Events()})
}

func repoParam(w http.ResponseWriter, r *http.Request) (starcache.RepoID, bool) {
	id, err := starcache.ParseRepoID(chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return starcache.RepoID{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	writeJSON(w, status, map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

func httpStatus(err error) int {
	if stderrors.Is(err, starcache.ErrNoEntry) {
		return http.StatusNotFound
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidRepo, errors.ErrCodeInvalidStatus, errors.ErrCodeInvalidDocument:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNetwork, errors.ErrCodeRemoteStatus, errors.ErrCodeRateLimited, errors.ErrCodeCredentialInvalid:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
