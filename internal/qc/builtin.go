package qc

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"example.com/remusdec/internal/rlf"
)

func floatPtr(v float64) *float64 { return &v }

func (e *Engine) RegisterBuiltins() {
	e.Register("CheckTimeAxis", CheckTimeAxis)
	e.Register("CheckResyncFraction", CheckResyncFraction)
	e.Register("CheckDecodeFailures", CheckDecodeFailures)
	e.Register("CheckPositionWindow", CheckPositionWindow)
	e.Register("CheckClockCoverage", CheckClockCoverage)
	e.Register("CheckVelocityCoverage", CheckVelocityCoverage)
	e.Register("CheckProfilerConfig", CheckProfilerConfig)
	e.Register("CheckSurfaceFixes", CheckSurfaceFixes)
}

// floatParam reads a numeric rule parameter, tolerating the integer and
// float forms JSON decoding produces.
func floatParam(rule Rule, key string, def float64) float64 {
	v, ok := rule.Params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func (ctx *Context) finding(rule Rule, sev Severity, msg string) Diagnostic {
	return Diagnostic{
		Ts:       time.Now(),
		File:     ctx.scopeFile(rule.Scope),
		RuleId:   rule.RuleId,
		Severity: sev,
		Message:  msg,
		Refs:     rule.Refs,
	}
}

// CheckTimeAxis requires a non-empty navigation stream with a
// non-decreasing hour axis of plausible span.
func CheckTimeAxis(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureRunLog()
	if err != nil {
		return nil, err
	}
	nav := ds.Nav()
	if nav == nil || nav.Len() == 0 {
		d := ctx.finding(rule, ERROR, "no navigation records in run log")
		d.RecordType = rlf.NameOf(rlf.CodeNav)
		return []Diagnostic{d}, nil
	}
	for i := 1; i < len(nav.Hours); i++ {
		if nav.Hours[i] < nav.Hours[i-1] {
			d := ctx.finding(rule, ERROR,
				fmt.Sprintf("navigation time axis decreases at row %d", i))
			d.RecordType = nav.Name
			return []Diagnostic{d}, nil
		}
	}
	span := nav.Hours[len(nav.Hours)-1] - nav.Hours[0]
	maxSpan := floatParam(rule, "maxSpanHours", 48)
	if span > maxSpan {
		d := ctx.finding(rule, rule.Severity,
			fmt.Sprintf("navigation time axis spans %.1f h, over %.0f h", span, maxSpan))
		d.RecordType = nav.Name
		d.Value = floatPtr(span)
		return []Diagnostic{d}, nil
	}
	d := ctx.finding(rule, INFO,
		fmt.Sprintf("time axis ok: %d rows over %.2f h", nav.Len(), span))
	d.RecordType = nav.Name
	d.Value = floatPtr(span)
	return []Diagnostic{d}, nil
}

// CheckResyncFraction flags a run log where too much of the file was
// skipped searching for frame markers.
func CheckResyncFraction(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureRunLog()
	if err != nil {
		return nil, err
	}
	total := ds.Stats.FrameBytes + ds.Stats.SkippedBytes
	if total == 0 {
		return []Diagnostic{ctx.finding(rule, ERROR, "run log is empty")}, nil
	}
	frac := float64(ds.Stats.SkippedBytes) / float64(total)
	max := floatParam(rule, "maxFraction", 0.05)
	d := ctx.finding(rule, INFO, fmt.Sprintf(
		"%d bytes skipped of %d (%.2f%%), %d resyncs",
		ds.Stats.SkippedBytes, total, frac*100, ds.Stats.Resyncs))
	d.Value = floatPtr(frac)
	if frac > max {
		d.Severity = rule.Severity
		d.Message = fmt.Sprintf("%.2f%% of the run log skipped during framing, over %.2f%%",
			frac*100, max*100)
	}
	return []Diagnostic{d}, nil
}

// CheckDecodeFailures reports one finding per record type whose payloads
// failed to decode.
func CheckDecodeFailures(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureRunLog()
	if err != nil {
		return nil, err
	}
	var diags []Diagnostic
	for _, s := range ds.Summary() {
		if s.DecodeFailures == 0 {
			continue
		}
		d := ctx.finding(rule, rule.Severity, fmt.Sprintf(
			"%d of %d %s payloads failed to decode", s.DecodeFailures, s.Count, s.Name))
		d.RecordType = s.Name
		d.Value = floatPtr(float64(s.DecodeFailures))
		diags = append(diags, d)
	}
	if len(diags) == 0 {
		diags = append(diags, ctx.finding(rule, INFO, "all payloads decoded"))
	}
	return diags, nil
}

// CheckPositionWindow flags navigation rows whose position is outside
// the geographic window or pinned at the origin.
func CheckPositionWindow(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureRunLog()
	if err != nil {
		return nil, err
	}
	nav := ds.Nav()
	if nav == nil || nav.Len() == 0 {
		return []Diagnostic{ctx.finding(rule, WARN, "no navigation records to place")}, nil
	}
	lat, lon := nav.Column("lat"), nav.Column("lon")
	var bad, valid int
	for i := range lat {
		if math.IsNaN(lat[i]) || math.IsNaN(lon[i]) {
			continue
		}
		valid++
		if math.Abs(lat[i]) >= 90 || math.Abs(lon[i]) >= 180 ||
			(lat[i] == 0 && lon[i] == 0) {
			bad++
		}
	}
	if valid == 0 {
		return []Diagnostic{ctx.finding(rule, WARN, "no decodable navigation positions")}, nil
	}
	frac := float64(bad) / float64(valid)
	max := floatParam(rule, "maxBadFraction", 0.01)
	d := ctx.finding(rule, INFO,
		fmt.Sprintf("positions ok: %d rows inside the geographic window", valid))
	d.RecordType = nav.Name
	d.Value = floatPtr(frac)
	if frac > max {
		d.Severity = rule.Severity
		d.Message = fmt.Sprintf("%d of %d navigation positions implausible (%.2f%%)",
			bad, valid, frac*100)
	}
	return []Diagnostic{d}, nil
}

// CheckClockCoverage lists record types that ended up with no time axis
// at all, neither an onboard clock nor interpolated hours.
func CheckClockCoverage(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureRunLog()
	if err != nil {
		return nil, err
	}
	var untimed []string
	var inferred int
	for _, t := range ds.Tables {
		if t.Len() == 0 {
			continue
		}
		if len(t.Hours) == 0 {
			untimed = append(untimed, t.Name)
		} else if t.ClockInferred {
			inferred++
		}
	}
	if len(untimed) == 0 {
		return []Diagnostic{ctx.finding(rule, INFO, fmt.Sprintf(
			"every table carries a time axis, %d interpolated", inferred))}, nil
	}
	sort.Strings(untimed)
	d := ctx.finding(rule, rule.Severity,
		"tables without a time axis: "+strings.Join(untimed, ", "))
	d.Value = floatPtr(float64(len(untimed)))
	return []Diagnostic{d}, nil
}

// CheckVelocityCoverage flags a profiler file where too many velocity
// samples carry the bad-data mark.
func CheckVelocityCoverage(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureProfiler()
	if err != nil {
		return nil, err
	}
	var total, missing int
	for _, ens := range ds.VelocityMS {
		for _, cell := range ens {
			for _, v := range cell {
				total++
				if math.IsNaN(v) {
					missing++
				}
			}
		}
	}
	if total == 0 {
		return []Diagnostic{ctx.finding(rule, WARN, "profiler file has no velocity samples")}, nil
	}
	frac := float64(missing) / float64(total)
	max := floatParam(rule, "maxMissingFraction", 0.9)
	d := ctx.finding(rule, INFO, fmt.Sprintf(
		"%.1f%% of %d velocity samples missing", frac*100, total))
	d.Value = floatPtr(frac)
	if frac > max {
		d.Severity = rule.Severity
		d.Message = fmt.Sprintf("%.1f%% of velocity samples missing, over %.0f%%",
			frac*100, max*100)
	}
	return []Diagnostic{d}, nil
}

// CheckProfilerConfig verifies the fixed leader describes a usable
// instrument geometry and reports it.
func CheckProfilerConfig(ctx *Context, rule Rule) ([]Diagnostic, error) {
	ds, err := ctx.EnsureProfiler()
	if err != nil {
		return nil, err
	}
	l := ds.Leader
	var faults []string
	if l.FrequencyKHz == 0 {
		faults = append(faults, "unknown system frequency")
	}
	if l.NCells == 0 {
		faults = append(faults, "zero depth cells")
	}
	if l.CellSizeCM == 0 {
		faults = append(faults, "zero cell size")
	}
	if len(faults) > 0 {
		return []Diagnostic{ctx.finding(rule, rule.Severity,
			"fixed leader: "+strings.Join(faults, ", "))}, nil
	}
	d := ctx.finding(rule, INFO, fmt.Sprintf(
		"%d kHz, %d beams at %d deg, %d cells of %d cm, %s coordinates, %d ensembles",
		l.FrequencyKHz, l.NBeams, l.BeamAngle, l.NCells, l.CellSizeCM,
		l.CoordTransform, ds.NEnsembles))
	d.Value = floatPtr(float64(ds.NEnsembles))
	if ds.DecodeFailures > 0 {
		f := ctx.finding(rule, WARN,
			fmt.Sprintf("%d truncated sub-blocks in profiler file", ds.DecodeFailures))
		f.Value = floatPtr(float64(ds.DecodeFailures))
		return []Diagnostic{d, f}, nil
	}
	return []Diagnostic{d}, nil
}

// CheckSurfaceFixes requires the surface-fix log to hold positions and
// flags a high torn-line fraction.
func CheckSurfaceFixes(ctx *Context, rule Rule) ([]Diagnostic, error) {
	log, err := ctx.EnsureFixes()
	if err != nil {
		return nil, err
	}
	if log.Len() == 0 {
		return []Diagnostic{ctx.finding(rule, rule.Severity, "surface-fix log holds no fixes")}, nil
	}
	total := log.Len() + log.Skipped
	frac := float64(log.Skipped) / float64(total)
	max := floatParam(rule, "maxSkippedFraction", 0.1)
	d := ctx.finding(rule, INFO,
		fmt.Sprintf("%d surface fixes, %d lines skipped", log.Len(), log.Skipped))
	d.Value = floatPtr(frac)
	if frac > max {
		d.Severity = rule.Severity
		d.Message = fmt.Sprintf("%d of %d surface-fix lines unreadable (%.1f%%)",
			log.Skipped, total, frac*100)
	}
	return []Diagnostic{d}, nil
}

// DefaultRulePack is the builtin acceptance pack run when the operator
// supplies none.
func DefaultRulePack() RulePack {
	return RulePack{
		RulePackId: "remus-default",
		Version:    "1.0.0",
		Profile:    "remus-100",
		Rules: []Rule{
			{RuleId: "RL-001", Name: "time axis", Scope: "runlog",
				Severity: WARN, CheckFunc: "CheckTimeAxis"},
			{RuleId: "RL-002", Name: "framing resyncs", Scope: "runlog",
				Severity: WARN, CheckFunc: "CheckResyncFraction"},
			{RuleId: "RL-003", Name: "decode failures", Scope: "runlog",
				Severity: WARN, CheckFunc: "CheckDecodeFailures"},
			{RuleId: "RL-004", Name: "position window", Scope: "runlog",
				Severity: ERROR, CheckFunc: "CheckPositionWindow"},
			{RuleId: "RL-005", Name: "clock coverage", Scope: "runlog",
				Severity: WARN, CheckFunc: "CheckClockCoverage"},
			{RuleId: "PR-001", Name: "instrument config", Scope: "profiler",
				Severity: ERROR, CheckFunc: "CheckProfilerConfig"},
			{RuleId: "PR-002", Name: "velocity coverage", Scope: "profiler",
				Severity: WARN, CheckFunc: "CheckVelocityCoverage"},
			{RuleId: "GP-001", Name: "surface fixes", Scope: "fixes",
				Severity: WARN, CheckFunc: "CheckSurfaceFixes"},
		},
	}
}

// PackForContext trims the default pack to the files the context holds,
// so a run directory without a profiler log is not failed for it.
func PackForContext(ctx *Context) RulePack {
	return TrimPack(DefaultRulePack(), ctx)
}

// TrimPack drops the rules whose scope has no file in the context.
func TrimPack(rp RulePack, ctx *Context) RulePack {
	kept := make([]Rule, 0, len(rp.Rules))
	for _, r := range rp.Rules {
		switch r.Scope {
		case "profiler":
			if ctx.Profiler == nil && ctx.ProfilerFile == "" {
				continue
			}
		case "fixes":
			if ctx.Fixes == nil && ctx.FixesFile == "" {
				continue
			}
		default:
			if ctx.RunLog == nil && ctx.RunLogFile == "" {
				continue
			}
		}
		kept = append(kept, r)
	}
	rp.Rules = kept
	return rp
}
