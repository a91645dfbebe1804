package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"planevent/internal/clock"
	"planevent/internal/config"
	"planevent/internal/contacts"
	"planevent/internal/export"
	appLog "planevent/internal/log"
	"planevent/internal/metrics"
	"planevent/internal/model"
	"planevent/internal/recur"
)

// maxBodyBytes bounds form and CSV uploads.
const maxBodyBytes = 1 << 20

// Server provides the HTTP API behind the event form.
type Server struct {
	cfg      *config.Config
	exporter *export.Exporter
	clock    clock.Clock
	metrics  *metrics.Metrics
	mux      *http.ServeMux
}

// NewServer constructs a new Server. m may be nil, in which case /metrics
// is not registered.
func NewServer(cfg *config.Config, exp *export.Exporter, c clock.Clock, m *metrics.Metrics) *Server {
	if c == nil {
		c = clock.System{}
	}
	s := &Server{
		cfg:      cfg,
		exporter: exp,
		clock:    c,
		metrics:  m,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials count as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="planevent", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/now", s.handleNow)
	s.mux.HandleFunc("GET /api/timezones", s.handleTimezones)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/export/ics", s.handleExportFile)
	s.mux.HandleFunc("POST /api/export/link", s.handleExportLink)
	s.mux.HandleFunc("POST /api/export/mail", s.handleExportMail)
	s.mux.HandleFunc("POST /api/rrule", s.handleRRule)
	s.mux.HandleFunc("POST /api/contacts/parse", s.handleContactsParse)
	s.mux.HandleFunc("POST /api/contacts/import", s.handleContactsImport)
	s.mux.HandleFunc("POST /api/attachments", s.handleAttachments)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleNow returns the clock shown next to the form ("HH:mm", "dd.MM.yyyy").
func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, clock.Display(s.clock))
}

type timezonesResponse struct {
	Default   string   `json:"default"`
	Timezones []string `json:"timezones"`
}

func (s *Server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, timezonesResponse{
		Default:   s.cfg.Timezone,
		Timezones: s.cfg.Timezones,
	})
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeForm(w, r)
	if !ok {
		return
	}
	res := s.exporter.Validate(form)
	writeJSON(w, http.StatusOK, validateResponse{Valid: res.Valid(), Errors: res.Errors})
}

// handleExportFile answers with the calendar file as a download.
func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeForm(w, r)
	if !ok {
		return
	}
	f, err := s.exporter.File(form)
	if err != nil {
		writeExportError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Body)
}

type linkResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleExportLink(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeForm(w, r)
	if !ok {
		return
	}
	link, err := s.exporter.Link(form)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{URL: link})
}

func (s *Server) handleExportMail(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeForm(w, r)
	if !ok {
		return
	}
	m, err := s.exporter.Mail(form)
	if err != nil {
		writeExportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ruleRequest is the graphical editor state. When the current form is sent
// along, the generated rule replaces its advanced rule text.
type ruleRequest struct {
	recur.Builder
	Form *model.FormState `json:"form,omitempty"`
}

type ruleResponse struct {
	Rule string           `json:"rule"`
	Form *model.FormState `json:"form,omitempty"`
}

// handleRRule renders the graphical editor state as a rule. Missing fields
// keep the editor defaults.
func (s *Server) handleRRule(w http.ResponseWriter, r *http.Request) {
	req := ruleRequest{Builder: recur.NewBuilder()}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := req.Rule()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Form != nil {
		req.Form.ApplyRule(rule)
	}
	writeJSON(w, http.StatusOK, ruleResponse{Rule: rule, Form: req.Form})
}

type contactsRequest struct {
	Contacts string `json:"contacts"`
}

func (s *Server) handleContactsParse(w http.ResponseWriter, r *http.Request) {
	var req contactsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, contacts.Parse(req.Contacts))
}

// handleContactsImport accepts either a multipart upload (field "file",
// plus optional "contacts" and "language" fields) or the raw CSV as the
// request body with ?contacts= and ?language= query parameters.
func (s *Server) handleContactsImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		src      io.Reader = r.Body
		existing           = r.URL.Query().Get("contacts")
		lang               = r.URL.Query().Get("language")
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		src = file
		if v := r.FormValue("contacts"); v != "" {
			existing = v
		}
		if v := r.FormValue("language"); v != "" {
			lang = v
		}
	}
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}

	res, err := s.exporter.ImportContacts(existing, src, lang)
	if err != nil {
		appLog.Error("contacts import failed", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type attachmentsRequest struct {
	Attachments []string `json:"attachments"`
	URL         string   `json:"url"`
}

type attachmentsResponse struct {
	Attachments []string `json:"attachments"`
}

func (s *Server) handleAttachments(w http.ResponseWriter, r *http.Request) {
	var req attachmentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	form := model.FormState{Attachments: req.Attachments}
	form.AddAttachment(req.URL)
	if form.Attachments == nil {
		form.Attachments = []string{}
	}
	writeJSON(w, http.StatusOK, attachmentsResponse{Attachments: form.Attachments})
}

// decodeForm layers the request body over the configured form defaults.
// The message language falls back to Accept-Language.
func (s *Server) decodeForm(w http.ResponseWriter, r *http.Request) (model.FormState, bool) {
	form := s.cfg.NewForm()
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.FormState{}, false
	}
	if form.Language == "" {
		form.Language = s.exporter.Catalog().Resolve(r.Header.Get("Accept-Language")).String()
	}
	return form, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

type validationErrorResponse struct {
	Errors []string `json:"errors"`
}

// writeExportError maps export failures to status codes: rejected input is
// 422 with the message list, serialization problems are 500.
func writeExportError(w http.ResponseWriter, err error) {
	var verr *export.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{Errors: verr.Errors})
		return
	}
	var serr *export.SerializationError
	if errors.As(err, &serr) {
		appLog.Error("calendar serialization failed", serr.Err)
		writeError(w, http.StatusInternalServerError, serr.Message)
		return
	}
	appLog.Error("export failed", err)
	writeError(w, http.StatusInternalServerError, "export failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
