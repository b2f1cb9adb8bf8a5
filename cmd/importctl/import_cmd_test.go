package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/catalog-import/internal/application"
	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/core"
	"github.com/JonMunkholm/catalog-import/internal/core/catalogs"
)

type stubRepo struct {
	mu       sync.Mutex
	elements []*core.Element
	nextID   int
	upserts  []string
}

func (r *stubRepo) FindByKey(_ context.Context, elementType, field, value string) (*core.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, el := range r.elements {
		got := el.Name
		if field != core.KeyName {
			got, _ = el.Attributes[field].(string)
		}
		if el.Type == elementType && got != "" && strings.EqualFold(got, value) {
			return el, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) GetElement(_ context.Context, id string) (*core.Element, error) {
	return nil, fmt.Errorf("%w: %s", core.ErrElementNotFound, id)
}

func (r *stubRepo) Upsert(_ context.Context, _, elementID string, _ map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elementID == "" {
		r.nextID++
		elementID = fmt.Sprintf("new-%d", r.nextID)
	}
	r.upserts = append(r.upserts, elementID)
	return elementID, nil
}

type harness struct {
	env    *env
	repo   *stubRepo
	svc    *core.Service
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := &stubRepo{elements: []*core.Element{{
		ID:         "el-1",
		Type:       catalogs.ApplicationType,
		Name:       "Billing",
		Attributes: map[string]any{core.KeyApplicationCode: "BIL"},
	}}}
	svc := core.NewService(nil, repo, nil, core.ServiceOptions{})

	h := &harness{repo: repo, svc: svc, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.env = &env{
		stdout: h.stdout,
		stderr: h.stderr,
		loadConfig: func(string) (*config.Config, error) {
			return &config.Config{Logging: config.LoggingConfig{Level: "error", Format: "text"}}, nil
		},
		newApp: func(context.Context, *config.Config) (*application.App, error) {
			return &application.App{Service: svc}, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) error {
	cmd := newRootCmd(h.env)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleCSV = "Application Name,Code,Criticality\n" +
	"Billing,BIL,High\n" +
	"New App,NEW,Low\n" +
	",X,Low\n"

func TestImportCmd_DryRun(t *testing.T) {
	h := newHarness(t)
	path := writeFile(t, "apps.csv", sampleCSV)

	if err := h.run("import", path); err != nil {
		t.Fatalf("import: %v", err)
	}

	var got importSummary
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, h.stdout.String())
	}
	if got.Applied || got.Batch != nil {
		t.Error("dry run must not apply")
	}
	if got.Valid != 2 || got.Invalid != 1 || got.Duplicates != 1 || got.Rejected != 1 {
		t.Errorf("counts = valid %d invalid %d duplicates %d rejected %d, want 2/1/1/1",
			got.Valid, got.Invalid, got.Duplicates, got.Rejected)
	}
	wantPlan := map[core.PlanAction]int{core.ActionUpdate: 1, core.ActionCreate: 1}
	if diff := cmp.Diff(wantPlan, got.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	if len(got.Errors) != 1 || got.Errors[0].Row != 3 || got.Errors[0].Field != core.KeyName {
		t.Errorf("errors = %+v, want one name error on row 3", got.Errors)
	}
	if len(h.repo.upserts) != 0 {
		t.Errorf("dry run wrote %v", h.repo.upserts)
	}
}

func TestImportCmd_Apply(t *testing.T) {
	h := newHarness(t)
	path := writeFile(t, "apps.csv", sampleCSV)

	err := h.run("import", path, "--apply", "--batch-id", "b-1", "--user", "alice")
	if code := exitCode(err); code != exitRowFailures {
		t.Fatalf("exit code = %d (%v), want %d", code, err, exitRowFailures)
	}

	var got importSummary
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Batch == nil {
		t.Fatal("applied import has no batch")
	}
	if got.Batch.ID != "b-1" || got.Batch.Status != core.BatchCompleted {
		t.Errorf("batch = %s %s, want b-1 COMPLETED", got.Batch.ID, got.Batch.Status)
	}
	if got.Batch.SuccessCount != 2 || got.Batch.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 2/1", got.Batch.SuccessCount, got.Batch.FailureCount)
	}
	if diff := cmp.Diff([]string{"el-1", "new-1"}, h.repo.upserts); diff != "" {
		t.Errorf("upserts mismatch (-want +got):\n%s", diff)
	}

	b, err := h.svc.GetBatch(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.UserID != "alice" || b.FileName != "apps.csv" {
		t.Errorf("batch user/file = %q/%q", b.UserID, b.FileName)
	}
}

func TestImportCmd_SkipStrategy(t *testing.T) {
	h := newHarness(t)
	path := writeFile(t, "apps.csv", sampleCSV)

	if err := h.run("import", path, "--strategy", "skip"); err != nil {
		t.Fatalf("import: %v", err)
	}
	var got importSummary
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	wantPlan := map[core.PlanAction]int{core.ActionSkip: 1, core.ActionCreate: 1}
	if diff := cmp.Diff(wantPlan, got.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestImportCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		args     []string
		wantCode int
		wantErr  error
	}{
		{
			name:     "missing required mapping",
			content:  sampleCSV,
			args:     []string{"--map", "Code=applicationCode"},
			wantCode: exitValidation,
			wantErr:  core.ErrMissingRequiredMapping,
		},
		{
			name:     "empty file",
			content:  "",
			wantCode: exitValidation,
			wantErr:  core.ErrEmptyInput,
		},
		{
			name:     "bad strategy",
			content:  sampleCSV,
			args:     []string{"--strategy", "merge"},
			wantCode: exitUsage,
			wantErr:  core.ErrInvalidStrategy,
		},
		{
			name:     "bad row strategy",
			content:  sampleCSV,
			args:     []string{"--row-strategy", "x=SKIP"},
			wantCode: exitUsage,
		},
		{
			name:     "unknown type",
			content:  sampleCSV,
			args:     []string{"--type", "server", "--map", "Name=name"},
			wantCode: exitUsage,
			wantErr:  core.ErrUnknownCatalog,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			path := writeFile(t, "apps.csv", tt.content)

			err := h.run(append([]string{"import", path}, tt.args...)...)
			if code := exitCode(err); code != tt.wantCode {
				t.Fatalf("exit code = %d (%v), want %d", code, err, tt.wantCode)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImportCmd_MissingFile(t *testing.T) {
	h := newHarness(t)
	err := h.run("import", filepath.Join(t.TempDir(), "nope.csv"))
	if code := exitCode(err); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestParseMappings(t *testing.T) {
	c, ok := core.GetCatalog(catalogs.ApplicationType)
	if !ok {
		t.Fatal("application catalog not registered")
	}

	got, err := parseMappings(c, []string{"App=name", " Code = applicationCode", "Notes="})
	if err != nil {
		t.Fatalf("parseMappings: %v", err)
	}
	want := []core.ColumnMapping{
		{CSVHeader: "App", TargetField: core.KeyName, Required: true},
		{CSVHeader: "Code", TargetField: core.KeyApplicationCode},
		{CSVHeader: "Notes"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseMappings() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"name", "=name"} {
		if _, err := parseMappings(c, []string{bad}); err == nil {
			t.Errorf("parseMappings(%q) expected error", bad)
		}
	}
}

func TestParseRowStrategies(t *testing.T) {
	got, err := parseRowStrategies([]string{"2=skip", "5=CREATE_NEW"})
	if err != nil {
		t.Fatalf("parseRowStrategies: %v", err)
	}
	want := map[int]core.DuplicateStrategy{2: core.StrategySkip, 5: core.StrategyCreateNew}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseRowStrategies() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"2", "0=SKIP", "two=SKIP", "2=MERGE"} {
		if _, err := parseRowStrategies([]string{bad}); err == nil {
			t.Errorf("parseRowStrategies(%q) expected error", bad)
		}
	}
}

func TestExitCode(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{base, 1},
		{withCode(exitValidation, base), exitValidation},
		{fmt.Errorf("wrapped: %w", withCode(exitBackend, base)), exitBackend},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if withCode(exitUsage, nil) != nil {
		t.Error("withCode(nil) should be nil")
	}
}
