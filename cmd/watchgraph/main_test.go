package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dshills/watchgraph/internal/catalogue"
	"github.com/dshills/watchgraph/internal/dataset"
	"github.com/dshills/watchgraph/internal/schema"
	"github.com/dshills/watchgraph/internal/server"
)

// testdataDir is the root of the testdata directory.
const testdataDir = "../../testdata"

func init() {
	gin.SetMode(gin.TestMode)
}

func portfolioPath() string {
	return filepath.Join(testdataDir, "portfolio.yaml")
}

// testEnv is a CLI pointed at an in-process reference server.
type testEnv struct {
	g      *globalFlags
	store  *server.Store
	srv    *httptest.Server
	stderr *bytes.Buffer
	dir    string
}

// newTestEnv seeds a server from the sample portfolio and points the CLI at
// it through the environment. token, when set, protects /api routes.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	ds, err := dataset.Load(portfolioPath())
	if err != nil {
		t.Fatalf("loading sample dataset: %v", err)
	}
	store := server.NewStore()
	if err := store.Seed(ds); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	srv := httptest.NewServer(server.New(store, server.Options{Token: token}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("WATCHGRAPH_API_URL", srv.URL)
	t.Setenv("WATCHGRAPH_TOKEN_FILE", filepath.Join(dir, "token.json"))
	t.Setenv(envPassword, "")

	stderr := &bytes.Buffer{}
	g := &globalFlags{
		configPath: filepath.Join(dir, "config.yaml"),
		format:     "json",
		out:        filepath.Join(dir, "out"),
		stdout:     io.Discard,
		stderr:     stderr,
		stdin:      strings.NewReader(""),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &testEnv{g: g, store: store, srv: srv, stderr: stderr, dir: dir}
}

func (e *testEnv) output(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(e.g.out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	return data
}

// exitCode returns the exit code carried by err, 0 for nil.
func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ee *exitErr
	if !errors.As(err, &ee) {
		t.Fatalf("error %v is not an exitErr", err)
	}
	return ee.code
}

// --- report ---

func TestRunReport_Dataset(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runReport(context.Background(), e.g, portfolioPath(), 0); err != nil {
		t.Fatalf("runReport: %v", err)
	}
	var report schema.DashboardReport
	if err := json.Unmarshal(e.output(t), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	p := report.Portfolio
	if p.TotalSystems != 3 || p.TotalRequirements != 6 || p.CompletedRequirements != 4 {
		t.Errorf("portfolio = %+v", p)
	}
	if p.OverallCompliancePercentage != 66.7 {
		t.Errorf("overall = %v, want 66.7", p.OverallCompliancePercentage)
	}
	if !strings.HasPrefix(report.Source, portfolioPath()+" (sha256:") {
		t.Errorf("source = %q", report.Source)
	}
	if report.Systems[0].System.Name != "Resume Screener" {
		t.Errorf("first row = %q, want Resume Screener", report.Systems[0].System.Name)
	}
}

func TestRunReport_FailUnder(t *testing.T) {
	e := newTestEnv(t, "")
	err := runReport(context.Background(), e.g, portfolioPath(), 70)
	if code := exitCode(t, err); code != exitThreshold {
		t.Fatalf("exit code = %d, want %d (%v)", code, exitThreshold, err)
	}
	// Output is still written before the threshold check.
	if len(e.output(t)) == 0 {
		t.Error("no output written")
	}
	if err := runReport(context.Background(), e.g, portfolioPath(), 60); err != nil {
		t.Errorf("60%% threshold: %v", err)
	}
}

func TestRunReport_InputErrors(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()
	if code := exitCode(t, runReport(ctx, e.g, filepath.Join(e.dir, "missing.yaml"), 0)); code != exitInput {
		t.Errorf("missing file: exit %d, want %d", code, exitInput)
	}
	if code := exitCode(t, runReport(ctx, e.g, portfolioPath(), 150)); code != exitInput {
		t.Errorf("bad --fail-under: exit %d, want %d", code, exitInput)
	}
	e.g.format = "xml"
	if code := exitCode(t, runReport(ctx, e.g, portfolioPath(), 0)); code != exitInput {
		t.Errorf("bad --format: exit %d, want %d", code, exitInput)
	}
}

func TestRunReport_Markdown(t *testing.T) {
	e := newTestEnv(t, "")
	e.g.format = "md"
	e.g.redact = true
	if err := runReport(context.Background(), e.g, portfolioPath(), 0); err != nil {
		t.Fatalf("runReport: %v", err)
	}
	out := string(e.output(t))
	if !strings.Contains(out, "**Overall:** 66.7% (fair)") {
		t.Errorf("markdown missing overall line:\n%s", out)
	}
}

// --- dashboard ---

func TestRunDashboard(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runDashboard(context.Background(), e.g, 0); err != nil {
		t.Fatalf("runDashboard: %v", err)
	}
	var report schema.DashboardReport
	if err := json.Unmarshal(e.output(t), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.Portfolio.OverallCompliancePercentage != 66.7 || len(report.Systems) != 3 {
		t.Errorf("report = %+v", report.Portfolio)
	}
	if report.Source != e.srv.URL {
		t.Errorf("source = %q, want %q", report.Source, e.srv.URL)
	}
}

func TestRunDashboard_Redact(t *testing.T) {
	e := newTestEnv(t, "")
	e.g.redact = true
	if err := runDashboard(context.Background(), e.g, 0); err != nil {
		t.Fatalf("runDashboard: %v", err)
	}
	if bytes.Contains(e.output(t), []byte("jane.doe@acme.example")) {
		t.Error("owner email not redacted")
	}
}

func TestRunDashboard_APIDown(t *testing.T) {
	e := newTestEnv(t, "")
	e.srv.Close()
	err := runDashboard(context.Background(), e.g, 0)
	if code := exitCode(t, err); code != exitAPI {
		t.Errorf("exit code = %d, want %d (%v)", code, exitAPI, err)
	}
}

// --- system ---

func TestRunSystem_Filter(t *testing.T) {
	e := newTestEnv(t, "")
	err := runSystem(context.Background(), e.g, "sys-screener", systemFlags{query: "GOVERNANCE", status: "all"})
	if err != nil {
		t.Fatalf("runSystem: %v", err)
	}
	var report schema.SystemReport
	if err := json.Unmarshal(e.output(t), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.Shown != 1 || report.Total != 4 || report.Mappings[0].MappingID != "m-s2" {
		t.Errorf("shown=%d total=%d mappings=%+v", report.Shown, report.Total, report.Mappings)
	}
	// The snapshot covers every mapping regardless of the filter.
	if report.Snapshot.CompliancePercentage != 50 || report.Band != schema.BandFair {
		t.Errorf("snapshot = %+v band=%s", report.Snapshot, report.Band)
	}
}

func TestRunSystem_StatusFilter(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runSystem(context.Background(), e.g, "sys-screener", systemFlags{status: "completed"}); err != nil {
		t.Fatalf("runSystem: %v", err)
	}
	var report schema.SystemReport
	if err := json.Unmarshal(e.output(t), &report); err != nil {
		t.Fatal(err)
	}
	if report.Shown != 2 {
		t.Errorf("shown = %d, want 2", report.Shown)
	}
}

func TestRunSystem_Errors(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()
	if code := exitCode(t, runSystem(ctx, e.g, "sys-screener", systemFlags{status: "archived"})); code != exitInput {
		t.Errorf("bad status: exit %d, want %d", code, exitInput)
	}
	if code := exitCode(t, runSystem(ctx, e.g, "ghost", systemFlags{status: "all"})); code != exitAPI {
		t.Errorf("unknown system: exit %d, want %d", code, exitAPI)
	}
}

func TestBuildSystemReport_DropsInvalid(t *testing.T) {
	sys := schema.System{ID: "s", Name: "S"}
	ms := []schema.Mapping{
		{MappingID: "a", SystemID: "s", Status: schema.StatusCompleted},
		{MappingID: "b", SystemID: "s", Status: "archived"},
	}
	r := buildSystemReport(sys, ms, schema.Filter{Status: schema.StatusAll})
	if r.Total != 1 || r.Snapshot.CompliancePercentage != 100 || len(r.Warnings) != 1 {
		t.Errorf("report = %+v", r)
	}
}

// --- update / register / catalogue ---

func TestRunUpdate(t *testing.T) {
	e := newTestEnv(t, "")
	flags := updateFlags{status: "completed", notes: "Oversight runbook approved.", setNotes: true}
	if err := runUpdate(context.Background(), e.g, "m-s4", flags); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	m, err := e.store.Mapping("m-s4")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != schema.StatusCompleted || m.Notes != "Oversight runbook approved." {
		t.Errorf("mapping = %+v", m)
	}
	if !strings.Contains(e.stderr.String(), "# notes for m-s4") {
		t.Errorf("notes diff not printed: %q", e.stderr.String())
	}
	snap, err := e.store.Snapshot("sys-screener")
	if err != nil {
		t.Fatal(err)
	}
	if snap.CompliancePercentage != 75 {
		t.Errorf("compliance = %v, want 75", snap.CompliancePercentage)
	}
}

func TestRunUpdate_KeepsNotesWhenUnset(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runUpdate(context.Background(), e.g, "m-s1", updateFlags{status: "in_progress"}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	m, _ := e.store.Mapping("m-s1")
	if m.Notes != "Signed off by jane.doe@acme.example" {
		t.Errorf("notes changed: %q", m.Notes)
	}
	if e.stderr.Len() != 0 {
		t.Errorf("unexpected stderr: %q", e.stderr.String())
	}
}

func TestRunUpdate_Errors(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()
	if code := exitCode(t, runUpdate(ctx, e.g, "m-s1", updateFlags{status: "done"})); code != exitInput {
		t.Errorf("bad status: exit %d, want %d", code, exitInput)
	}
	if code := exitCode(t, runUpdate(ctx, e.g, "ghost", updateFlags{status: "completed"})); code != exitAPI {
		t.Errorf("unknown mapping: exit %d, want %d", code, exitAPI)
	}
}

func TestRunRegister(t *testing.T) {
	e := newTestEnv(t, "")
	flags := registerFlags{name: "Credit Scorer", org: "Acme Corp", risk: "high", ownerEmail: "risk@acme.example"}
	if err := runRegister(context.Background(), e.g, flags); err != nil {
		t.Fatalf("runRegister: %v", err)
	}
	var created schema.System
	if err := json.Unmarshal(e.output(t), &created); err != nil {
		t.Fatal(err)
	}
	ms, err := e.store.Requirements(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	cat, _ := catalogue.Get(schema.RiskHigh)
	if len(ms) != len(cat.Requirements) {
		t.Errorf("assigned %d requirements, want %d", len(ms), len(cat.Requirements))
	}

	flags.risk = "medium"
	if code := exitCode(t, runRegister(context.Background(), e.g, flags)); code != exitInput {
		t.Errorf("bad risk: exit %d, want %d", code, exitInput)
	}
}

func TestRunCatalogue(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runCatalogue(e.g, catalogueFlags{risk: "limited"}); err != nil {
		t.Fatalf("runCatalogue: %v", err)
	}
	var reqs []catalogue.Requirement
	if err := json.Unmarshal(e.output(t), &reqs); err != nil {
		t.Fatal(err)
	}
	cat, _ := catalogue.Get(schema.RiskLimited)
	if len(reqs) != len(cat.Requirements) {
		t.Errorf("got %d requirements, want %d", len(reqs), len(cat.Requirements))
	}

	e.g.format = "text"
	if err := runCatalogue(e.g, catalogueFlags{}); err != nil {
		t.Fatalf("runCatalogue text: %v", err)
	}
	if !strings.Contains(string(e.output(t)), "Risk Management System") {
		t.Error("text catalogue missing Art. 9")
	}

	if code := exitCode(t, runCatalogue(e.g, catalogueFlags{risk: "medium"})); code != exitInput {
		t.Errorf("bad risk: exit %d, want %d", code, exitInput)
	}
}

func TestRunCatalogue_ByID(t *testing.T) {
	e := newTestEnv(t, "")
	if err := runCatalogue(e.g, catalogueFlags{id: "aia-10"}); err != nil {
		t.Fatalf("runCatalogue: %v", err)
	}
	var reqs []catalogue.Requirement
	if err := json.Unmarshal(e.output(t), &reqs); err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].ID != "AIA-10" {
		t.Errorf("reqs = %+v, want only AIA-10", reqs)
	}

	if code := exitCode(t, runCatalogue(e.g, catalogueFlags{id: "AIA-999"})); code != exitInput {
		t.Errorf("unknown id: exit %d, want %d", code, exitInput)
	}
}

func TestRootCmd_CatalogueRiskAndIDExclusive(t *testing.T) {
	newTestEnv(t, "")
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"catalogue", "--risk", "high", "--id", "AIA-09"})
	if err := root.Execute(); err == nil {
		t.Error("expected error when --risk and --id are combined")
	}
}

// --- batch compliance ---

func TestRunCompliance(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()
	if err := runCompliance(ctx, e.g, []string{"sys-screener", "sys-chatbot", "ghost"}); err != nil {
		t.Fatalf("runCompliance: %v", err)
	}
	var results map[string]schema.Snapshot
	if err := json.Unmarshal(e.output(t), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want two systems", results)
	}
	if got := results["sys-screener"].CompliancePercentage; got != 50 {
		t.Errorf("sys-screener = %v, want 50", got)
	}
	if got := results["sys-chatbot"].CompliancePercentage; got != 100 {
		t.Errorf("sys-chatbot = %v, want 100", got)
	}

	e.g.format = "text"
	if err := runCompliance(ctx, e.g, []string{"sys-chatbot", "sys-chatbot"}); err != nil {
		t.Fatalf("runCompliance text: %v", err)
	}
	out := string(e.output(t))
	if strings.Count(out, "sys-chatbot") != 1 || !strings.Contains(out, "100.0%") {
		t.Errorf("text output:\n%s", out)
	}
}

func TestRunCompliance_AuthRequired(t *testing.T) {
	e := newTestEnv(t, "s3cret")
	if code := exitCode(t, runCompliance(context.Background(), e.g, []string{"sys-screener"})); code != exitAuth {
		t.Errorf("exit %d, want %d", code, exitAuth)
	}
}

// --- auth ---

func newTestIdP(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "hunter22" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(idp.Close)
	return idp
}

func writeAuthConfig(t *testing.T, e *testEnv, tokenURL string) {
	t.Helper()
	cfg := "auth:\n  token_url: " + tokenURL + "\n  client_id: watchgraph-cli\n"
	if err := os.WriteFile(e.g.configPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoginLogout(t *testing.T) {
	e := newTestEnv(t, "team-token")
	writeAuthConfig(t, e, newTestIdP(t, "team-token").URL)
	ctx := context.Background()

	// Anonymous requests are rejected by the protected server.
	if code := exitCode(t, runDashboard(ctx, e.g, 0)); code != exitAuth {
		t.Fatalf("anonymous dashboard: exit %d, want %d", code, exitAuth)
	}

	e.g.stdin = strings.NewReader("hunter22\n")
	if err := runLogin(ctx, e.g, "jane"); err != nil {
		t.Fatalf("runLogin: %v", err)
	}
	info, err := os.Stat(filepath.Join(e.dir, "token.json"))
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file perm = %o", info.Mode().Perm())
	}

	if err := runDashboard(ctx, e.g, 0); err != nil {
		t.Fatalf("dashboard after login: %v", err)
	}

	if err := runLogout(e.g); err != nil {
		t.Fatalf("runLogout: %v", err)
	}
	if code := exitCode(t, runDashboard(ctx, e.g, 0)); code != exitAuth {
		t.Errorf("dashboard after logout: exit %d, want %d", code, exitAuth)
	}
}

func TestLogin_Errors(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()

	// No auth section configured.
	if code := exitCode(t, runLogin(ctx, e.g, "jane")); code != exitInput {
		t.Errorf("no auth config: exit %d, want %d", code, exitInput)
	}

	writeAuthConfig(t, e, newTestIdP(t, "tok").URL)
	t.Setenv(envPassword, "wrong-password")
	if code := exitCode(t, runLogin(ctx, e.g, "jane")); code != exitAuth {
		t.Errorf("bad password: exit %d, want %d", code, exitAuth)
	}

	t.Setenv(envPassword, "")
	e.g.stdin = strings.NewReader("")
	if code := exitCode(t, runLogin(ctx, e.g, "jane")); code != exitInput {
		t.Errorf("empty password: exit %d, want %d", code, exitInput)
	}
}

// --- evidence ---

func TestEvidence(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()

	exe := filepath.Join(e.dir, "tool.exe")
	if err := os.WriteFile(exe, []byte("MZ"), 0o600); err != nil {
		t.Fatal(err)
	}
	if code := exitCode(t, runEvidenceUpload(ctx, e.g, "m-s1", exe)); code != exitInput {
		t.Errorf("disallowed type: exit %d, want %d", code, exitInput)
	}
	if code := exitCode(t, runEvidenceUpload(ctx, e.g, "m-s1", filepath.Join(e.dir, "missing.pdf"))); code != exitInput {
		t.Errorf("missing file: exit %d, want %d", code, exitInput)
	}

	// The reference server does not store evidence.
	pdf := filepath.Join(e.dir, "dpia.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	if code := exitCode(t, runEvidenceUpload(ctx, e.g, "m-s1", pdf)); code != exitAPI {
		t.Errorf("upload to reference server: exit %d, want %d", code, exitAPI)
	}
	if code := exitCode(t, runEvidenceList(ctx, e.g, "m-s1")); code != exitAPI {
		t.Errorf("list on reference server: exit %d, want %d", code, exitAPI)
	}
	if code := exitCode(t, runEvidenceDelete(ctx, e.g, "ev-1")); code != exitAPI {
		t.Errorf("delete on reference server: exit %d, want %d", code, exitAPI)
	}
}

func TestEvidenceDelete(t *testing.T) {
	e := newTestEnv(t, "")
	var deleted []string
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		switch r.URL.Path {
		case "/api/evidence/ev-1":
			deleted = append(deleted, "ev-1")
			w.WriteHeader(http.StatusNoContent)
		case "/api/evidence/ev-locked":
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"detail":"not the uploader"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Evidence not found"}`)
		}
	}))
	t.Cleanup(fake.Close)
	t.Setenv("WATCHGRAPH_API_URL", fake.URL)
	ctx := context.Background()

	if err := runEvidenceDelete(ctx, e.g, "ev-1"); err != nil {
		t.Fatalf("runEvidenceDelete: %v", err)
	}
	if len(deleted) != 1 {
		t.Errorf("deleted = %v", deleted)
	}
	if got := string(e.output(t)); got != "deleted ev-1\n" {
		t.Errorf("output = %q", got)
	}

	if code := exitCode(t, runEvidenceDelete(ctx, e.g, "ev-locked")); code != exitAuth {
		t.Errorf("forbidden: exit %d, want %d", code, exitAuth)
	}
	err := runEvidenceDelete(ctx, e.g, "ev-gone")
	if code := exitCode(t, err); code != exitAPI {
		t.Errorf("missing: exit %d, want %d", code, exitAPI)
	}
	if err != nil && !strings.Contains(err.Error(), "Evidence not found") {
		t.Errorf("error %q does not carry the API detail", err)
	}
}

// --- root command wiring ---

func TestRootCmd_Report(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	out := filepath.Join(dir, "report.json")

	root := newRootCmd()
	root.SetArgs([]string{"report", portfolioPath(), "--format", "json", "--out", out, "--config", filepath.Join(dir, "none.yaml"), "--fail-under", "50"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("output is not valid JSON: %s", data)
	}
}

func TestRootCmd_UpdateRequiresStatus(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"update", "m-1"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Error("expected error when --status is missing")
	}
}

func TestCheckThreshold(t *testing.T) {
	tests := []struct {
		pct, failUnder float64
		wantCode       int
	}{
		{66.7, 0, 0},
		{66.7, 66.7, 0},
		{66.7, 70, exitThreshold},
		{0, 0.1, exitThreshold},
		{100, 100, 0},
	}
	for _, tc := range tests {
		if code := exitCode(t, checkThreshold(tc.pct, tc.failUnder)); code != tc.wantCode {
			t.Errorf("checkThreshold(%v, %v) exit = %d, want %d", tc.pct, tc.failUnder, code, tc.wantCode)
		}
	}
}
