// Package qc evaluates quality-control rule packs against decoded run
// data. A rule pack names check functions; the engine resolves them
// against a registry and emits NDJSON diagnostics plus an acceptance
// summary.
package qc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/remusdec/internal/navlog"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/rlf"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

type Rule struct {
	RuleId    string         `json:"ruleId"`
	Name      string         `json:"name,omitempty"`
	Scope     string         `json:"scope"` // runlog|profiler|fixes|set
	Severity  Severity       `json:"severity"`
	CheckFunc string         `json:"checkFunction"`
	Refs      []string       `json:"refs,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Message   string         `json:"message,omitempty"`
}

type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Profile    string `json:"profile"`
	Rules      []Rule `json:"rules"`
}

type Diagnostic struct {
	Ts         time.Time `json:"ts"`
	File       string    `json:"file"`
	RecordType string    `json:"recordType,omitempty"`
	RuleId     string    `json:"ruleId"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Refs       []string  `json:"refs,omitempty"`
	Value      *float64  `json:"value,omitempty"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	Findings []Diagnostic `json:"findings,omitempty"`
}

// Context carries the run files under evaluation. Decoded datasets may
// be injected directly; otherwise they are parsed on first use and
// cached, so a pack with several profiler rules decodes the file once.
type Context struct {
	RunLogFile   string
	ProfilerFile string
	FixesFile    string

	RunLog   *rlf.Dataset
	Profiler *pd0.Dataset
	Fixes    *navlog.Log
}

func (ctx *Context) EnsureRunLog() (*rlf.Dataset, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if ctx.RunLog != nil {
		return ctx.RunLog, nil
	}
	if ctx.RunLogFile == "" {
		return nil, errors.New("no run log in context")
	}
	ds, err := rlf.ParseFile(ctx.RunLogFile)
	if err != nil {
		return nil, err
	}
	ctx.RunLog = ds
	return ds, nil
}

func (ctx *Context) EnsureProfiler() (*pd0.Dataset, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if ctx.Profiler != nil {
		return ctx.Profiler, nil
	}
	if ctx.ProfilerFile == "" {
		return nil, errors.New("no profiler file in context")
	}
	ds, err := pd0.ParseFile(ctx.ProfilerFile)
	if err != nil {
		return nil, err
	}
	ctx.Profiler = ds
	return ds, nil
}

func (ctx *Context) EnsureFixes() (*navlog.Log, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if ctx.Fixes != nil {
		return ctx.Fixes, nil
	}
	if ctx.FixesFile == "" {
		return nil, errors.New("no surface-fix file in context")
	}
	log, err := navlog.ParseFile(ctx.FixesFile)
	if err != nil {
		return nil, err
	}
	ctx.Fixes = log
	return log, nil
}

// scopeFile names the file a rule's findings are attributed to.
func (ctx *Context) scopeFile(scope string) string {
	switch scope {
	case "profiler":
		return ctx.ProfilerFile
	case "fixes":
		return ctx.FixesFile
	default:
		return ctx.RunLogFile
	}
}

type CheckFunc func(ctx *Context, rule Rule) ([]Diagnostic, error)

type Engine struct {
	rulePack    RulePack
	registry    map[string]CheckFunc
	diagnostics []Diagnostic
}

func NewEngine(rp RulePack) *Engine {
	e := &Engine{
		rulePack: rp,
		registry: make(map[string]CheckFunc),
	}
	e.RegisterBuiltins()
	return e
}

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

// Eval runs every rule in the pack. A check error downgrades to an ERROR
// finding rather than aborting the pack; one unreadable file must not
// suppress findings on the others.
func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	var diags []Diagnostic
	for _, r := range e.rulePack.Rules {
		fn, ok := e.registry[r.CheckFunc]
		if !ok {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.scopeFile(r.Scope), RuleId: r.RuleId,
				Severity: WARN, Message: "no function for rule", Refs: r.Refs,
			})
			continue
		}
		ds, err := fn(ctx, r)
		if err != nil {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.scopeFile(r.Scope), RuleId: r.RuleId,
				Severity: ERROR, Message: "check failed (" + err.Error() + ")",
				Refs: r.Refs,
			})
			continue
		}
		diags = append(diags, ds...)
	}
	e.diagnostics = diags
	return diags, nil
}

func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, _ := json.Marshal(d)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.Findings = e.diagnostics
	return rep
}

// LoadRulePack reads and validates a rule pack file.
func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	if err := json.Unmarshal(b, &rp); err != nil {
		return rp, err
	}
	if err := ValidateRulePack(rp); err != nil {
		return rp, err
	}
	return rp, nil
}

func ValidateRulePack(rp RulePack) error {
	if rp.RulePackId == "" {
		return errors.New("rule pack missing rulePackId")
	}
	seen := make(map[string]bool)
	for i, r := range rp.Rules {
		if r.RuleId == "" {
			return fmt.Errorf("rule %d missing ruleId", i)
		}
		if seen[r.RuleId] {
			return fmt.Errorf("duplicate ruleId %q", r.RuleId)
		}
		seen[r.RuleId] = true
		if r.CheckFunc == "" {
			return fmt.Errorf("rule %q missing checkFunction", r.RuleId)
		}
		switch r.Severity {
		case ERROR, WARN, INFO:
		default:
			return fmt.Errorf("rule %q has unknown severity %q", r.RuleId, r.Severity)
		}
	}
	return nil
}
