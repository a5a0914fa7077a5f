package report

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/rlf"
)

func TestSanitizeDigest(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"deadbeef", "DEADBEEF"},
		{"  ab:cd ef\n", "ABCDEF"},
		{"xyz", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeDigest(tc.in); got != tc.want {
			t.Errorf("sanitizeDigest(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDigestToQR(t *testing.T) {
	png, err := DigestToQR("deadbeefcafe", 0)
	if err != nil {
		t.Fatalf("DigestToQR: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty PNG")
	}
	if _, err := DigestToQR("   ", 128); err == nil {
		t.Fatal("empty digest accepted")
	}
}

func TestBuildComputesDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.rlf")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	prof := &pd0.Dataset{
		Leader:     pd0.FixedLeader{FrequencyKHz: 1200, NBeams: 4, NCells: 20},
		NEnsembles: 7,
	}
	rep := Build(&rlf.Dataset{}, path, prof, "run.adc", nil)
	if rep.Profiler == nil || rep.Profiler.Ensembles != 7 {
		t.Fatalf("profiler info = %+v", rep.Profiler)
	}
	const wantSha = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if rep.RunLog.Sha256 != wantSha {
		t.Fatalf("Sha256 = %q", rep.RunLog.Sha256)
	}
	if rep.RunLog.SizeBytes != 3 {
		t.Fatalf("SizeBytes = %d", rep.RunLog.SizeBytes)
	}

	if rep2 := Build(nil, "", nil, "", nil); rep2.RunLog.Sha256 != "" {
		t.Fatal("digest set without a run log")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	acc := &qc.AcceptanceReport{}
	acc.Summary.Total = 2
	acc.Summary.Pass = true
	rep := Build(nil, "", nil, "", acc)
	rep.Vehicle.Name = "Aukai"

	path := filepath.Join(t.TempDir(), "report.json")
	if err := SaveJSON(rep, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if got.Vehicle.Name != "Aukai" || got.Acceptance == nil || got.Acceptance.Summary.Total != 2 {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestSaveRunPDF(t *testing.T) {
	rep := Build(nil, "", nil, "", nil)
	rep.Vehicle.Name = "Aukai"
	rep.RunLog.Sha256 = "deadbeefcafe"

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := SaveRunPDF(rep, path); err != nil {
		t.Fatalf("SaveRunPDF: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty PDF written")
	}
}
