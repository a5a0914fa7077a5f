// End-to-end check over the generated sample run: every decoder, the
// rule engine, the report writers and the manifest, in process, against
// the same bundle the generate-samples command ships.
package smoke

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/remusdec/internal/samples"
	"example.com/remusdec/internal/manifest"
	"example.com/remusdec/internal/mission"
	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/report"
)

func TestSampleRunPipeline(t *testing.T) {
	dir := t.TempDir()
	if err := samples.WriteFiles(dir); err != nil {
		t.Fatalf("write sample run: %v", err)
	}

	rd, err := mission.Directory(dir)
	if err != nil {
		t.Fatalf("scan run directory: %v", err)
	}
	if len(rd.Errors) != 0 {
		t.Fatalf("per-file errors: %v", rd.Errors)
	}
	if rd.RunLog == nil || rd.Profiler == nil || rd.Fixes == nil || rd.Plan == nil {
		t.Fatal("run directory incomplete")
	}
	if rd.RunLog.VehicleName != samples.VehicleName {
		t.Fatalf("vehicle = %q", rd.RunLog.VehicleName)
	}

	ctx := &qc.Context{
		RunLogFile:   rd.RunLogPath,
		RunLog:       rd.RunLog,
		ProfilerFile: rd.ProfilerPath,
		Profiler:     rd.Profiler,
		FixesFile:    rd.FixesPath,
		Fixes:        rd.Fixes,
	}
	engine := qc.NewEngine(qc.PackForContext(ctx))
	diags, err := engine.Eval(ctx)
	if err != nil {
		t.Fatalf("eval rules: %v", err)
	}
	acc := engine.MakeAcceptance()
	if !acc.Summary.Pass {
		t.Fatalf("sample run failed acceptance: %+v", acc.Findings)
	}
	if len(diags) == 0 {
		t.Fatal("rule engine produced no diagnostics at all")
	}

	ndjson := filepath.Join(dir, "diagnostics.ndjson")
	if err := engine.WriteDiagnosticsNDJSON(ndjson); err != nil {
		t.Fatalf("write diagnostics: %v", err)
	}

	rep := report.Build(rd.RunLog, rd.RunLogPath, rd.Profiler, rd.ProfilerPath, &acc)
	if rep.RunLog.Sha256 == "" {
		t.Fatal("report missing run log digest")
	}
	if rep.Profiler == nil || rep.Profiler.FrequencyKHz != 1200 {
		t.Fatalf("report profiler section = %+v", rep.Profiler)
	}

	jsonOut := filepath.Join(dir, "report.json")
	pdfOut := filepath.Join(dir, "report.pdf")
	if err := report.SaveJSON(rep, jsonOut); err != nil {
		t.Fatalf("save json report: %v", err)
	}
	if err := report.SaveRunPDF(rep, pdfOut); err != nil {
		t.Fatalf("save pdf report: %v", err)
	}
	if fi, err := os.Stat(pdfOut); err != nil || fi.Size() == 0 {
		t.Fatalf("pdf report not written: %v", err)
	}

	m, err := manifest.Build([]string{
		rd.RunLogPath, rd.ProfilerPath, rd.FixesPath, jsonOut, pdfOut, ndjson,
	})
	if err != nil {
		t.Fatalf("build manifest: %v", err)
	}
	if len(m.Items) != 6 {
		t.Fatalf("manifest items = %d", len(m.Items))
	}
	for _, item := range m.Items {
		if item.Sha256 == "" || item.Size == 0 {
			t.Fatalf("manifest item incomplete: %+v", item)
		}
	}
	mOut := filepath.Join(dir, "manifest.json")
	if err := manifest.Save(m, mOut); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
	if _, err := manifest.Load(mOut); err != nil {
		t.Fatalf("reload manifest: %v", err)
	}
}
