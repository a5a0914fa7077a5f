package qc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/remusdec/internal/navlog"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/rlf"
)

func record(t *testing.T, typ uint16, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 8+len(payload))
	buf[0], buf[1] = 0xEB, 0x90
	binary.LittleEndian.PutUint16(buf[2:], 0xBEEF)
	binary.LittleEndian.PutUint16(buf[4:], typ)
	binary.LittleEndian.PutUint16(buf[6:], uint16(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func navPayload(lat, lon float64, clockMS uint32) []byte {
	p := make([]byte, 46)
	binary.LittleEndian.PutUint64(p[0:], math.Float64bits(lat))
	binary.LittleEndian.PutUint64(p[8:], math.Float64bits(lon))
	binary.LittleEndian.PutUint32(p[16:], clockMS)
	return p
}

func runLogBytes(t *testing.T, positions [][2]float64) []byte {
	t.Helper()
	var buf []byte
	for i, pos := range positions {
		clock := uint32(40_000_000 + i*1000)
		buf = append(buf, record(t, rlf.CodeNav, navPayload(pos[0], pos[1], clock))...)
	}
	return buf
}

func runLog(t *testing.T, positions [][2]float64) *rlf.Dataset {
	t.Helper()
	ds, err := rlf.Parse(runLogBytes(t, positions))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ds
}

func goodProfiler() *pd0.Dataset {
	return &pd0.Dataset{
		Leader: pd0.FixedLeader{
			FrequencyKHz: 1200, BeamAngle: 20, NBeams: 4,
			NCells: 2, CellSizeCM: 100, CoordTransform: "Earth",
		},
		NEnsembles: 1,
		NCells:     2,
		VelocityMS: [][][]float64{{
			{0.1, 0.1, 0.1, 0.1},
			{0.2, 0.2, 0.2, 0.2},
		}},
	}
}

func oahu() [][2]float64 {
	return [][2]float64{{21.305, -157.953}, {21.306, -157.952}, {21.307, -157.951}}
}

func TestDefaultPackPassesCleanRun(t *testing.T) {
	ctx := &Context{
		RunLog:   runLog(t, oahu()),
		Profiler: goodProfiler(),
		Fixes:    &navlog.Log{Fixes: []navlog.Fix{{Lat: 21.3, Lon: -157.9}}},
	}
	e := NewEngine(PackForContext(ctx))
	diags, err := e.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	rep := e.MakeAcceptance()
	if !rep.Summary.Pass {
		t.Fatalf("clean run failed acceptance: %+v", diags)
	}
	if rep.Summary.Errors != 0 || rep.Summary.Warnings != 0 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Summary.Total == 0 {
		t.Fatal("no findings recorded")
	}
}

func TestPositionWindowFlagsOrigin(t *testing.T) {
	ctx := &Context{RunLog: runLog(t, [][2]float64{{0, 0}, {0, 0}})}
	rule := Rule{RuleId: "RL-004", Scope: "runlog", Severity: ERROR,
		CheckFunc: "CheckPositionWindow"}
	e := NewEngine(RulePack{RulePackId: "t", Rules: []Rule{rule}})
	diags, err := e.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != ERROR {
		t.Fatalf("diags = %+v", diags)
	}
	if rep := e.MakeAcceptance(); rep.Summary.Pass {
		t.Fatal("acceptance passed with implausible positions")
	}
}

func TestVelocityCoverageFlagsAllMissing(t *testing.T) {
	ds := goodProfiler()
	for _, ens := range ds.VelocityMS {
		for _, cell := range ens {
			for b := range cell {
				cell[b] = math.NaN()
			}
		}
	}
	ctx := &Context{Profiler: ds}
	rule := Rule{RuleId: "PR-002", Scope: "profiler", Severity: WARN,
		CheckFunc: "CheckVelocityCoverage"}
	e := NewEngine(RulePack{RulePackId: "t", Rules: []Rule{rule}})
	diags, err := e.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != WARN {
		t.Fatalf("diags = %+v", diags)
	}
	if diags[0].Value == nil || *diags[0].Value != 1.0 {
		t.Fatalf("missing fraction = %v", diags[0].Value)
	}
}

func TestEvalUnknownFunction(t *testing.T) {
	rule := Rule{RuleId: "X-001", Scope: "runlog", Severity: ERROR,
		CheckFunc: "NoSuchCheck"}
	e := NewEngine(RulePack{RulePackId: "t", Rules: []Rule{rule}})
	diags, err := e.Eval(&Context{RunLog: runLog(t, oahu())})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != WARN ||
		!strings.Contains(diags[0].Message, "no function") {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestCheckErrorBecomesFinding(t *testing.T) {
	// Profiler rule with neither a dataset nor a file in context.
	rule := Rule{RuleId: "PR-001", Scope: "profiler", Severity: ERROR,
		CheckFunc: "CheckProfilerConfig"}
	e := NewEngine(RulePack{RulePackId: "t", Rules: []Rule{rule}})
	diags, err := e.Eval(&Context{})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != ERROR {
		t.Fatalf("diags = %+v", diags)
	}
}

func TestLazyRunLogLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.rlf")
	if err := os.WriteFile(path, runLogBytes(t, oahu()), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := &Context{RunLogFile: path}
	rp := RulePack{RulePackId: "t", Rules: []Rule{
		{RuleId: "a", Scope: "runlog", Severity: WARN, CheckFunc: "CheckTimeAxis"},
		{RuleId: "b", Scope: "runlog", Severity: WARN, CheckFunc: "CheckResyncFraction"},
	}}
	e := NewEngine(rp)
	diags, err := e.Eval(ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if ctx.RunLog == nil {
		t.Fatal("run log not cached on context")
	}
	for _, d := range diags {
		if d.Severity != INFO {
			t.Fatalf("unexpected finding: %+v", d)
		}
		if d.File != path {
			t.Errorf("finding attributed to %q", d.File)
		}
	}
}

func TestWriteDiagnosticsNDJSON(t *testing.T) {
	ctx := &Context{RunLog: runLog(t, oahu())}
	e := NewEngine(PackForContext(ctx))
	if _, err := e.Eval(ctx); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	path := filepath.Join(t.TempDir(), "diag.ndjson")
	if err := e.WriteDiagnosticsNDJSON(path); err != nil {
		t.Fatalf("WriteDiagnosticsNDJSON: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var d Diagnostic
		if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if d.RuleId == "" {
			t.Fatalf("line %d missing ruleId", lines)
		}
		lines++
	}
	if lines != len(e.diagnostics) {
		t.Fatalf("wrote %d lines for %d findings", lines, len(e.diagnostics))
	}
}

func TestValidateRulePack(t *testing.T) {
	good := Rule{RuleId: "a", Scope: "runlog", Severity: WARN, CheckFunc: "CheckTimeAxis"}
	cases := []struct {
		name string
		rp   RulePack
		ok   bool
	}{
		{"valid", RulePack{RulePackId: "p", Rules: []Rule{good}}, true},
		{"missing pack id", RulePack{Rules: []Rule{good}}, false},
		{"missing rule id", RulePack{RulePackId: "p",
			Rules: []Rule{{Severity: WARN, CheckFunc: "CheckTimeAxis"}}}, false},
		{"duplicate rule id", RulePack{RulePackId: "p", Rules: []Rule{good, good}}, false},
		{"missing check function", RulePack{RulePackId: "p",
			Rules: []Rule{{RuleId: "a", Severity: WARN}}}, false},
		{"bad severity", RulePack{RulePackId: "p",
			Rules: []Rule{{RuleId: "a", Severity: "FATAL", CheckFunc: "CheckTimeAxis"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRulePack(tc.rp)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPackForContextTrimsScopes(t *testing.T) {
	ctx := &Context{RunLogFile: "run.rlf"}
	rp := PackForContext(ctx)
	for _, r := range rp.Rules {
		if r.Scope == "profiler" || r.Scope == "fixes" {
			t.Fatalf("kept out-of-scope rule %s", r.RuleId)
		}
	}
	if len(rp.Rules) == 0 {
		t.Fatal("run log rules dropped")
	}
}

func TestLoadRulePackValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.json")
	body, _ := json.Marshal(RulePack{RulePackId: "p", Version: "1",
		Rules: []Rule{{RuleId: "a", Severity: "NOPE", CheckFunc: "CheckTimeAxis"}}})
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRulePack(path); err == nil {
		t.Fatal("invalid pack accepted")
	}
}
