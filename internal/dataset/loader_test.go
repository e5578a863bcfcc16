package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const yamlDataset = `systems:
  - id: sys-a
    name: Resume Screener
    risk_category: high
    organization: Acme
  - id: sys-b
    name: Chat Assistant
    risk_category: limited
    organization: Acme
mappings:
  - mapping_id: m1
    system_id: sys-a
    article: Art. 9
    title: Risk Management System
    status: completed
    updated_at: 2025-01-02T03:04:05Z
  - mapping_id: m2
    system_id: sys-a
    status: not_started
    updated_at: 2025-01-02T03:04:05Z
`

func TestLoad_YAML(t *testing.T) {
	path := writeTempDataset(t, "export.yaml", yamlDataset)
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Systems) != 2 || len(d.Mappings) != 2 {
		t.Fatalf("systems=%d mappings=%d", len(d.Systems), len(d.Mappings))
	}
	if !strings.HasPrefix(d.Hash, "sha256:") || len(d.Hash) != len("sha256:")+64 {
		t.Errorf("Hash = %q", d.Hash)
	}
	if d.Mappings[0].UpdatedAt.Year() != 2025 {
		t.Errorf("updated_at not decoded: %v", d.Mappings[0].UpdatedAt)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeTempDataset(t, "export.json", `{"systems":[{"id":"s","name":"S","risk_category":"minimal","organization":"O"}],"mappings":[]}`)
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Systems) != 1 {
		t.Errorf("systems = %d, want 1", len(d.Systems))
	}
}

func TestLoad_HashStable(t *testing.T) {
	path := writeTempDataset(t, "export.yml", yamlDataset)
	a, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Errorf("hash changed between loads: %s vs %s", a.Hash, b.Hash)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, file, content, want string
	}{
		{"bad extension", "export.txt", "{}", "unsupported dataset extension"},
		{"bad json", "export.json", "{", "parsing dataset JSON"},
		{"orphan mapping", "export.json",
			`{"systems":[],"mappings":[{"mapping_id":"m","system_id":"ghost","status":"completed"}]}`,
			"does not match any system"},
		{"invalid system", "export.json",
			`{"systems":[{"id":"s","name":"","risk_category":"high","organization":"O"}]}`,
			"systems[0]"},
		{"duplicate mapping", "export.json",
			`{"systems":[{"id":"s","name":"S","risk_category":"high","organization":"O"}],
			  "mappings":[{"mapping_id":"m","system_id":"s","status":"completed"},{"mapping_id":"m","system_id":"s","status":"completed"}]}`,
			"duplicate mapping_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempDataset(t, tc.file, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/export.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBySystem_IncludesEmptySystems(t *testing.T) {
	d, err := Load(writeTempDataset(t, "export.yaml", yamlDataset))
	if err != nil {
		t.Fatal(err)
	}
	by := d.BySystem()
	if len(by["sys-a"]) != 2 {
		t.Errorf("sys-a = %d mappings, want 2", len(by["sys-a"]))
	}
	if _, ok := by["sys-b"]; !ok {
		t.Error("sys-b missing from BySystem")
	}
}
