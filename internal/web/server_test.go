package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/patrimonio/internal/config"
	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/storage"
)

const inventory = `nr_tombo,Descrica07,nome
T001,Mesa de escritório,Alice
T002,Cadeira giratória,Bob
T003,Notebook Dell,Alice
T004,,
T005,"Monitor LG 24""",Charlie
`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 10 * time.Second,
		},
		Session: config.SessionConfig{
			Store:             config.StoreMemory,
			AllowReprocessing: true,
			PageSize:          50,
		},
		Import: config.ImportConfig{
			MaxFileSize: 1 << 20,
			Encoding:    core.DefaultEncoding,
			MaxWaitTime: time.Second,
			Timeout:     10 * time.Second,
		},
		Export: config.ExportConfig{FilePrefix: "report", BOM: true},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

type testEnv struct {
	srv     *Server
	session *core.Session
	slot    *storage.MemoryStore
}

func newTestEnv(t *testing.T, slot *storage.MemoryStore) *testEnv {
	t.Helper()
	if slot == nil {
		slot = storage.NewMemoryStore()
	}
	cfg := testConfig()
	parser := core.NewParseService(core.ParseOptions{}, cfg.Import.MaxWaitTime)
	t.Cleanup(parser.Close)

	session := core.NewSession(core.NewGateway(slot), parser, core.SessionOptions{
		Engine:   core.EngineOptions{AllowReprocessing: cfg.Session.AllowReprocessing},
		PageSize: cfg.Session.PageSize,
	})
	session.Start(context.Background())

	srv := NewServer(session, cfg)
	srv.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, session: session, slot: slot}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "inventario.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(body))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func (e *testEnv) postJSON(t *testing.T, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestImportAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, inventory)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[importResponse](t, rec); got.Count != 5 || got.File != "inventario.csv" {
		t.Errorf("import response = %+v", got)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	page := decode[core.Page](t, rec)
	if page.TotalItems != 5 || len(page.Items) != 5 || page.Items[0].ID != "T001" {
		t.Errorf("page = %+v", page)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/items?q=notebook", nil))
	page = decode[core.Page](t, rec)
	if len(page.Items) == 0 || page.Items[0].ID != "T003" {
		t.Errorf("search results = %+v", page.Items)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing tombo column", "codigo,nome\n1,Alice\n", "IMP001"},
		{"malformed quotes", "nr_tombo,nome\n\"T1,Alice\n", "IMP002"},
		{"no tombo values", "nr_tombo,nome\n,Alice\n", "IMP005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.upload(t, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestImport_NoFile(t *testing.T) {
	env := newTestEnv(t, nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("encoding", "utf-8")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "IMP004" {
		t.Errorf("code = %q, want IMP004", got.Code)
	}
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/items/T005", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if it := decode[core.Item](t, rec); it.Description != `Monitor LG 24"` {
		t.Errorf("description = %q", it.Description)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/items/T999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d, want 404", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "LKP001" {
		t.Errorf("code = %q, want LKP001", got.Code)
	}
}

func TestActions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)

	rec := env.postJSON(t, "/api/actions", actionRequest{Action: "found", IDs: []string{"T001", " T002 "}})
	if rec.Code != http.StatusOK {
		t.Fatalf("found status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[actionResponse](t, rec)
	if len(resp.Items) != 2 || resp.Status != core.StatusFound {
		t.Errorf("response = %+v", resp)
	}

	tests := []struct {
		name       string
		req        actionRequest
		wantStatus int
		wantCode   string
	}{
		{"unknown action", actionRequest{Action: "lose", IDs: []string{"T001"}}, http.StatusBadRequest, "ACT005"},
		{"no targets", actionRequest{Action: "found"}, http.StatusConflict, "ACT001"},
		{"missing target", actionRequest{Action: "found", IDs: []string{"T001", "T404"}}, http.StatusConflict, "ACT002"},
		{"transfer without name", actionRequest{Action: "transfer", IDs: []string{"T003"}}, http.StatusUnprocessableEntity, "ACT004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postJSON(t, "/api/actions", tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}

	it, _ := env.session.Lookup("T003")
	if it.Status != core.StatusPending {
		t.Errorf("T003 status after rejected transfer = %q", it.Status)
	}
}

func TestTransferAndExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)

	rec := env.postJSON(t, "/api/actions", actionRequest{
		Action:         "transfer",
		IDs:            []string{"T005"},
		NewResponsible: "  Novo Responsavel ",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "report_2024-03-15.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "\uFEFF") {
		t.Error("export is missing the byte-order mark")
	}
	want := `T005,"Monitor LG 24""",Novo Responsavel,Transferência Solicitada,Charlie`
	if !strings.Contains(body, want) {
		t.Errorf("export does not contain %q:\n%s", want, body)
	}
}

func TestExport_Empty(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestStatsAndProcessed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)
	env.postJSON(t, "/api/actions", actionRequest{Action: "dispose", IDs: []string{"T002"}})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats := decode[statsResponse](t, rec)
	if stats.Total != 5 || stats.Pending != 4 || stats.Processed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByStatus[core.StatusDisposalRequested] != 1 {
		t.Errorf("by_status = %v", stats.ByStatus)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/processed", nil))
	page := decode[core.Page](t, rec)
	if page.PageSize != core.ProcessedPageSize || len(page.Items) != 1 || page.Items[0].ID != "T002" {
		t.Errorf("processed = %+v", page)
	}
}

func TestRestoreHandshake(t *testing.T) {
	slot := storage.NewMemoryStore()
	first := newTestEnv(t, slot)
	first.upload(t, inventory)
	first.postJSON(t, "/api/actions", actionRequest{Action: "found", IDs: []string{"T001"}})

	env := newTestEnv(t, slot)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/session/restore", nil))
	if st := decode[restoreStatus](t, rec); !st.Pending || st.Count != 5 {
		t.Fatalf("restore status = %+v", st)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("items while restore pending: status = %d, want 409", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "SES001" {
		t.Errorf("code = %q, want SES001", got.Code)
	}

	rec = env.postJSON(t, "/api/session/restore", restoreRequest{Accept: true})
	if got := decode[restoreResponse](t, rec); !got.Restored || got.Count != 5 {
		t.Errorf("restore response = %+v", got)
	}
	it, err := env.session.Lookup("T001")
	if err != nil || it.Status != core.StatusFound {
		t.Errorf("T001 after restore = %+v, %v", it, err)
	}

	rec = env.postJSON(t, "/api/session/restore", restoreRequest{Accept: true})
	if rec.Code != http.StatusConflict {
		t.Errorf("second restore status = %d, want 409", rec.Code)
	}
}

func TestRestoreDecline(t *testing.T) {
	slot := storage.NewMemoryStore()
	newTestEnv(t, slot).upload(t, inventory)

	env := newTestEnv(t, slot)
	rec := env.postJSON(t, "/api/session/restore", restoreRequest{Accept: false})
	if got := decode[restoreResponse](t, rec); got.Restored || got.Count != 0 {
		t.Errorf("decline response = %+v", got)
	}
	if env.session.Counts().Total != 0 {
		t.Error("store not empty after decline")
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)

	rec := env.postJSON(t, "/api/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.session.Counts().Total != 0 {
		t.Error("items remain after reset")
	}
	if _, err := env.slot.Load(context.Background()); err == nil {
		t.Error("snapshot remains after reset")
	}
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, `nr_tombo,Descrica07,nome
T001,<script>alert(1)</script>,Alice
`)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("item description is not escaped")
	}
	if !strings.Contains(body, "T001") {
		t.Error("page does not list the item")
	}
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("CSP header set although disabled")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
}

func TestIndexPage_CheckTombo(t *testing.T) {
	env := newTestEnv(t, nil)
	env.upload(t, inventory)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/?tombo=+T003+", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`id="check"`, "<dd>Notebook Dell</dd>", `actOn('found', [&#34;T003&#34;])`} {
		if !strings.Contains(body, want) {
			t.Errorf("check card missing %q", want)
		}
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/?tombo=T999", nil))
	if !strings.Contains(rec.Body.String(), "Tombo T999 não encontrado") {
		t.Error("unknown tombo not reported")
	}
}

func TestIndexPage_RestorePrompt(t *testing.T) {
	slot := storage.NewMemoryStore()
	newTestEnv(t, slot).upload(t, inventory)

	env := newTestEnv(t, slot)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "<strong>5</strong>") {
		t.Errorf("restore prompt missing:\n%s", rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ParseError{Reason: core.ReasonMalformedRow}, http.StatusBadRequest},
		{core.ErrEmptyImport, http.StatusBadRequest},
		{&core.LookupError{ID: "x"}, http.StatusNotFound},
		{&core.ActionError{Reason: core.ReasonTargetMissing}, http.StatusConflict},
		{&core.ActionError{Reason: core.ReasonAlreadyProcessed}, http.StatusConflict},
		{&core.ActionError{Reason: core.ReasonInputCancelled}, http.StatusUnprocessableEntity},
		{core.ErrRestorePending, http.StatusConflict},
		{core.ErrParseInFlight, http.StatusConflict},
		{errRateLimited, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
