package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/schemamodeler/internal/diagram"
)

// isolateEnv keeps the host's .env, credentials and log file out of the test
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_LEVEL", "panic")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("REDIS_URL", "")
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), code
}

func provisioned(t *testing.T) string {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "northwind.db")
	if _, stderr, code := execute(t, "", "provision", "--db-url", url); code != 0 {
		t.Fatalf("provision exited %d: %s", code, stderr)
	}
	return url
}

func TestProvisionAndTables(t *testing.T) {
	isolateEnv(t)
	url := "sqlite://" + filepath.Join(t.TempDir(), "northwind.db")

	stdout, stderr, code := execute(t, "", "provision", "--db-url", url, "--list")
	if code != 0 {
		t.Fatalf("provision exited %d: %s", code, stderr)
	}
	for _, name := range []string{"Categories", "Customers", "OrderDetails", "Suppliers"} {
		if !strings.Contains(stdout, name+"\n") {
			t.Errorf("provision --list output missing %s:\n%s", name, stdout)
		}
	}

	stdout, _, code = execute(t, "", "tables", "--db-url", url)
	if code != 0 || len(strings.Fields(stdout)) != 8 {
		t.Errorf("tables exited %d with %q, want 8 table names", code, stdout)
	}
}

func TestReflectFormats(t *testing.T) {
	isolateEnv(t)
	url := provisioned(t)

	stdout, stderr, code := execute(t, "", "reflect", "--db-url", url, "-t", "Customers, Orders")
	if code != 0 {
		t.Fatalf("reflect exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "TABLE Customers (PK: CustomerID)") {
		t.Errorf("text output missing Customers header:\n%s", stdout)
	}
	if strings.Contains(stdout, "TABLE Products") {
		t.Error("text output should only contain the requested tables")
	}

	stdout, _, code = execute(t, "", "reflect", "--db-url", url, "--format", "json", "-x", "OrderDetails")
	if code != 0 {
		t.Fatalf("reflect --format json exited %d", code)
	}
	var s struct {
		Tables []struct {
			Name string `json:"name"`
		} `json:"tables"`
	}
	if err := json.Unmarshal([]byte(stdout), &s); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if len(s.Tables) != 7 {
		t.Errorf("json output has %d tables, want 7 after exclusion", len(s.Tables))
	}

	dir := t.TempDir()
	if _, stderr, code := execute(t, "", "reflect", "--db-url", url, "-d", dir, "-f", "markdown"); code != 0 {
		t.Fatalf("reflect -d exited %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "_overview.md")); err != nil {
		t.Errorf("overview not written: %v", err)
	}

	_, stderr, code = execute(t, "", "reflect", "--db-url", url, "-o", filepath.Join(dir, "x.txt"), "-d", dir)
	if code != 1 || !strings.HasPrefix(stderr, "Error: cannot use both") {
		t.Errorf("conflicting outputs: exit %d, stderr %q", code, stderr)
	}
}

func TestGenerateDryRun(t *testing.T) {
	isolateEnv(t)
	url := provisioned(t)

	stdout, stderr, code := execute(t, "", "generate", "--db-url", url, "--role", "data_modeler", "--role", "uml_modeler", "--dry-run")
	if code != 0 {
		t.Fatalf("generate --dry-run exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "=== data_modeler ===") || !strings.Contains(stdout, "=== uml_modeler ===") {
		t.Errorf("dry run output missing role headers:\n%s", stdout)
	}
	if !strings.Contains(stdout, "CompanyName") {
		t.Error("dry run prompts should contain the reflected schema")
	}
}

func TestGenerateFailures(t *testing.T) {
	isolateEnv(t)
	url := provisioned(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown role", []string{"--role", "data_modeller"}, `did you mean "data_modeler"?`},
		{"no role", nil, "at least one --role is required"},
		{"no credentials", []string{"--role", "business_analyst"}, "no text-generation model configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"generate", "--db-url", url}, tt.args...)
			_, stderr, code := execute(t, "", args...)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.HasPrefix(stderr, "Error: ") || !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr = %q, want Error line containing %q", stderr, tt.wantErr)
			}
			if strings.Count(strings.TrimSpace(stderr), "\n") != 0 {
				t.Errorf("stderr should be a single line, got %q", stderr)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	isolateEnv(t)
	text := "@startuml\nclass Customer\n@enduml\n"

	stdout, _, code := execute(t, text, "encode")
	if code != 0 {
		t.Fatalf("encode exited %d", code)
	}
	if got := strings.TrimSpace(stdout); got != diagram.Encode(text) {
		t.Errorf("encode printed %q, want %q", got, diagram.Encode(text))
	}

	stdout, _, code = execute(t, strings.TrimSpace(stdout), "encode", "--decode")
	if code != 0 || stdout != text {
		t.Errorf("encode --decode = %q (exit %d), want the input text", stdout, code)
	}
}

func TestRender(t *testing.T) {
	isolateEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	defer srv.Close()
	t.Setenv("PLANTUML_URL", srv.URL)

	dir := t.TempDir()
	input := filepath.Join(dir, "model.puml")
	if err := os.WriteFile(input, []byte("```\n@startuml\nclass A\n@enduml\n```"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "model.png")

	stdout, stderr, code := execute(t, "", "render", "--input", input, "--output", output, "--print-url")
	if code != 0 {
		t.Fatalf("render exited %d: %s", code, stderr)
	}
	if want := srv.URL + "/png/" + diagram.Encode("@startuml\nclass A\n@enduml"); strings.TrimSpace(stdout) != want {
		t.Errorf("printed URL = %q, want %q", stdout, want)
	}
	if data, err := os.ReadFile(output); err != nil || string(data) != "\x89PNG" {
		t.Errorf("diagram not written: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LLM_PROVIDER", "cohere")

	_, stderr, code := execute(t, "", "tables")
	if code != 1 || !strings.Contains(stderr, `unknown llm provider "cohere"`) {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	stdout, _, code := execute(t, "", "version")
	if code != 0 || !strings.HasPrefix(stdout, "schemamodeler dev") {
		t.Errorf("version = %q (exit %d)", stdout, code)
	}
}

func TestParseTableList(t *testing.T) {
	tests := []struct {
		name       string
		tablesStr  string
		wantTables []string
	}{
		{name: "single table", tablesStr: "users", wantTables: []string{"users"}},
		{name: "multiple tables", tablesStr: "users,posts,comments", wantTables: []string{"users", "posts", "comments"}},
		{name: "tables with spaces", tablesStr: "users, posts, comments", wantTables: []string{"users", "posts", "comments"}},
		{name: "empty string", tablesStr: "", wantTables: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTables := parseTableList(tt.tablesStr)

			if len(gotTables) != len(tt.wantTables) {
				t.Errorf("parseTableList() returned %d tables, want %d", len(gotTables), len(tt.wantTables))
				return
			}
			for i, table := range gotTables {
				if table != tt.wantTables[i] {
					t.Errorf("parseTableList() table[%d] = %s, want %s", i, table, tt.wantTables[i])
				}
			}
		})
	}
}
