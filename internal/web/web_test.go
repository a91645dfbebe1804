package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"planevent/internal/clock"
	"planevent/internal/config"
	"planevent/internal/export"
	"planevent/internal/i18n"
	"planevent/internal/metrics"
)

var testNow = time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)

const validForm = `{
	"title": "Planning",
	"date": "2030-01-15",
	"time": "10:00",
	"contacts": "John john@example.com, anna@example.com",
	"recurrence": "weekly"
}`

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Language = "en"
	if mutate != nil {
		mutate(cfg)
	}
	c := clock.Fixed{At: testNow, Loc: time.UTC}
	m := metrics.New()
	exp := export.New(export.Options{
		Clock:    c,
		Catalog:  i18n.New(cfg.Language),
		Metrics:  m,
		LinkBase: cfg.LinkBaseURL,
	})
	return NewServer(cfg, exp, c, m)
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestNowAndTimezones(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/now", "", nil)
	var snap clock.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Time != "12:00" || snap.Date != "10.01.2030" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	rec = do(t, s, http.MethodGet, "/api/timezones", "", nil)
	var tz timezonesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tz); err != nil {
		t.Fatal(err)
	}
	if tz.Default != "Europe/Warsaw" || len(tz.Timezones) == 0 {
		t.Fatalf("unexpected timezones %+v", tz)
	}
}

func TestValidateUsesAcceptLanguage(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/validate", `{"date":"2030-01-15","time":"10:00"}`,
		map[string]string{"Accept-Language": "pl-PL,pl;q=0.9"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var res validateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Valid || len(res.Errors) != 1 || res.Errors[0] != "Tytuł nie może być pusty." {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExportFile(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/export/ics", validForm, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="planning.ics"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VEVENT") || !strings.Contains(body, "TZID=Europe/Warsaw") {
		t.Fatalf("unexpected body:\n%s", body)
	}
}

func TestExportRejectsInvalidForm(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/export/link", `{"title":"x","date":"2020-01-01","time":"10:00"}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var res validationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Date/time cannot be in the past." {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
}

func TestExportRejectsMalformedJSON(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/export/mail", `{"title":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportLinkUsesConfiguredBase(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.LinkBaseURL = "https://cal.example/new" })
	rec := do(t, s, http.MethodPost, "/api/export/link", validForm, nil)
	var res linkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, "https://cal.example/new?") || !strings.Contains(res.URL, "ctz=Europe%2FWarsaw") {
		t.Fatalf("unexpected url %s", res.URL)
	}
}

func TestExportMail(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/export/mail", validForm, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var res export.Mail
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Target, "mailto:john@example.com,anna@example.com?subject=Planning&body=") {
		t.Fatalf("unexpected target %s", res.Target)
	}

	rec = do(t, newTestServer(t, nil), http.MethodPost, "/api/export/mail",
		`{"title":"Planning","date":"2030-01-15","time":"10:00"}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without recipients, got %d", rec.Code)
	}
}

func TestRRule(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/rrule", `{"freq":"WEEKLY","interval":2,"days":["MO","WE"],"until":"2025-01-31"}`, nil)
	var res ruleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Rule != "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20250131T235959Z" {
		t.Fatalf("unexpected rule %q", res.Rule)
	}

	rec = do(t, s, http.MethodPost, "/api/rrule", `{"freq":"HOURLY"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRRuleAppliedToForm(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"freq":"DAILY","interval":3,"form":{"title":"Planning","advanced":true,"advanced_rule":"FREQ=YEARLY;COUNT=2"}}`
	rec := do(t, s, http.MethodPost, "/api/rrule", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var res ruleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Rule != "FREQ=DAILY;INTERVAL=3" {
		t.Fatalf("unexpected rule %q", res.Rule)
	}
	if res.Form == nil || res.Form.AdvancedRule != res.Rule || res.Form.Title != "Planning" || !res.Form.Advanced {
		t.Fatalf("generated rule not applied to form: %+v", res.Form)
	}

	rec = do(t, s, http.MethodPost, "/api/rrule", `{"freq":"DAILY"}`, nil)
	if strings.Contains(rec.Body.String(), `"form"`) {
		t.Fatalf("form echoed without being sent: %s", rec.Body.String())
	}
}

func TestContactsParse(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/contacts/parse", `{"contacts":"John john@example.com, anna@example.com"}`, nil)
	body := rec.Body.String()
	if !strings.Contains(body, `"emails":["john@example.com","anna@example.com"]`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestContactsImportRaw(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/contacts/import?contacts=x@y.com&language=en",
		"a@b.com\nnot-an-email\nc@d.org\n", map[string]string{"Content-Type": "text/csv"})
	var res export.Import
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Contacts != "x@y.com, a@b.com, c@d.org" || res.Count != 2 {
		t.Fatalf("unexpected import %+v", res)
	}
}

func TestContactsImportMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "contacts.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("a@b.com\n"))
	_ = mw.WriteField("language", "pl")
	_ = mw.Close()

	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/contacts/import", buf.String(),
		map[string]string{"Content-Type": mw.FormDataContentType()})
	var res export.Import
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Contacts != "a@b.com" || res.Message != "Zaimportowano 1 adresów e-mail z pliku CSV." {
		t.Fatalf("unexpected import %+v", res)
	}
}

func TestAttachments(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/attachments", `{"attachments":["https://a.example/x"],"url":"  https://b.example/y "}`, nil)
	var res attachmentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Attachments) != 2 || res.Attachments[1] != "https://b.example/y" {
		t.Fatalf("unexpected attachments %v", res.Attachments)
	}

	rec = do(t, s, http.MethodPost, "/api/attachments", `{"url":"   "}`, nil)
	if !strings.Contains(rec.Body.String(), `"attachments":[]`) {
		t.Fatalf("blank URL must be ignored: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodPost, "/api/export/link", validForm, nil)
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), `planevent_exports_total{emitter="link",outcome="ok"} 1`) {
		t.Fatalf("missing counter:\n%s", rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	if rec := do(t, s, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("/health must stay open, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/now", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/now", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/export/ics", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
