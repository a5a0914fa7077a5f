package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"Mission021.RLF", "runlog"},
		{"run/ADCP021.adc", "profiler"},
		{"Run021.GPS", "gpsfixes"},
		{"plan.rmf", "mission"},
		{"diagnostics.ndjson", "diagnostics"},
		{"report.pdf", "report"},
		{"report.json", "json"},
		{"ADCP.TXT", "commands"},
		{"readme", "other"},
	}
	for _, c := range cases {
		if got := KindOf(c.path); got != c.want {
			t.Errorf("KindOf(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestBuildSaveLoad(t *testing.T) {
	dir := t.TempDir()
	run := filepath.Join(dir, "run.rlf")
	if err := os.WriteFile(run, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Build([]string{run})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(m.Items) != 1 {
		t.Fatalf("items = %d", len(m.Items))
	}
	item := m.Items[0]
	if item.Type != "runlog" || item.Size != 3 {
		t.Fatalf("item = %+v", item)
	}
	if item.Sha256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256 = %s", item.Sha256)
	}
	if item.Modified.IsZero() {
		t.Fatal("modified time not recorded")
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Sha256 != item.Sha256 {
		t.Fatalf("round trip lost content: %+v", got)
	}
	if got.ShaAlgo != "sha256" {
		t.Fatalf("shaAlgo = %q", got.ShaAlgo)
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "absent.rlf")}); err == nil {
		t.Fatal("expected error for missing input")
	}
}
