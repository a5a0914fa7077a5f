package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"example.com/remusdec/internal/common"
	"example.com/remusdec/internal/layout"
	"example.com/remusdec/internal/manifest"
	"example.com/remusdec/internal/mission"
	"example.com/remusdec/internal/navlog"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/report"
	"example.com/remusdec/internal/rlf"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "summary":
		summaryCmd(os.Args[2:])
	case "qc":
		qcCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "adcp":
		adcpCmd(os.Args[2:])
	case "gps":
		gpsCmd(os.Args[2:])
	case "mission":
		missionCmd(os.Args[2:])
	case "dir":
		dirCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`remusctl %s (built %s) <command> [options]

Commands:
  summary   --in <run.rlf> [--layouts <layouts.yaml>] [--json] [--metrics]
  qc        --run <run.rlf> [--adcp <file.adc>] [--gps <file.gps>] [--rules <rulepack.json>] [--out <diagnostics.ndjson>] [--acceptance <acceptance.json>]
  report    --run <run.rlf> [--adcp <file.adc>] [--gps <file.gps>] [--pdf <report.pdf>] [--json <report.json>]
  adcp      --in <file.adc> [--json]
  gps       --in <file.gps> [--json]
  mission   --in <mission.rmf> [--commands <commands.txt>] [--json]
  dir       --in <run directory> [--json]
  manifest  --inputs <comma-separated> --out <manifest.json>
`, version, buildDate)
}

func fatal(prefix string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode json", err)
	}
	fmt.Println(string(b))
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	in := fs.String("in", "", "input .RLF run log")
	layoutsPath := fs.String("layouts", "", "record layout YAML overriding the built-in set")
	asJSON := fs.Bool("json", false, "emit the summary as JSON")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	registry := rlf.Default()
	if *layoutsPath != "" {
		store, err := layout.Load(*layoutsPath)
		if err != nil {
			fatal("load layouts", err)
		}
		registry, err = rlf.WithLayouts(store)
		if err != nil {
			fatal("load layouts", err)
		}
	}
	var metrics *common.Metrics
	stopProgress := func() {}
	if *metricsFlag {
		metrics = common.NewMetrics()
		if info, err := os.Stat(*in); err == nil {
			metrics.SetTotalBytes(info.Size())
		}
		metrics.Start()
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, time.Second)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		stopProgress()
		fatal("read run log", err)
	}
	ds, err := registry.Parse(data)
	if err != nil {
		stopProgress()
		fatal("parse run log", err)
	}
	if metrics != nil {
		metrics.AddFrames(ds.Stats.Frames, ds.Stats.FrameBytes)
		metrics.AddResyncs(ds.Stats.Resyncs)
		metrics.AddBytes(ds.Stats.SkippedBytes)
		metrics.Stop()
		stopProgress()
	}

	if *asJSON {
		printJSON(struct {
			Vehicle string             `json:"vehicle,omitempty"`
			Records []rlf.SummaryEntry `json:"records"`
		}{Vehicle: ds.VehicleName, Records: ds.Summary()})
	} else {
		if ds.VehicleName != "" {
			fmt.Printf("Vehicle: %s\n", ds.VehicleName)
		}
		if ds.Manufacturer != "" {
			fmt.Printf("Manufacturer: %s\n", ds.Manufacturer)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECORD\tCODE\tCOUNT\tBYTES\tFAILURES")
		for _, s := range ds.Summary() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
				s.Name, s.Code, s.Count, s.PayloadBytes, s.DecodeFailures)
		}
		w.Flush()
		fmt.Printf("%d frames, %d bytes skipped, %d resyncs\n",
			ds.Stats.Frames, ds.Stats.SkippedBytes, ds.Stats.Resyncs)
	}
	if metrics != nil {
		snap := metrics.Snapshot()
		throughputBps := snap.ThroughputBytesPerSecond()
		fmt.Printf("Metrics: duration=%s frames=%d resyncs=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Frames,
			snap.Resyncs,
			common.FormatBytes(snap.Bytes),
			throughputBps/1_000_000,
		)
	}
}

func qcCmd(args []string) {
	fs := flag.NewFlagSet("qc", flag.ExitOnError)
	runPath := fs.String("run", "", "input .RLF run log")
	adcpPath := fs.String("adcp", "", "input .ADC profiler file")
	gpsPath := fs.String("gps", "", "input .GPS surface-fix log")
	rulesPath := fs.String("rules", "", "rule pack JSON, builtin pack when empty")
	outDiag := fs.String("out", "diagnostics.ndjson", "diagnostics output")
	outAcc := fs.String("acceptance", "", "acceptance JSON output")
	fs.Parse(args)

	if *runPath == "" && *adcpPath == "" && *gpsPath == "" {
		fmt.Println("required: at least one of --run, --adcp, --gps")
		os.Exit(1)
	}
	rp := qc.DefaultRulePack()
	if *rulesPath != "" {
		var err error
		rp, err = qc.LoadRulePack(*rulesPath)
		if err != nil {
			fatal("load rule pack", err)
		}
	}
	ctx := &qc.Context{
		RunLogFile:   *runPath,
		ProfilerFile: *adcpPath,
		FixesFile:    *gpsPath,
	}
	engine := qc.NewEngine(qc.TrimPack(rp, ctx))
	diags, err := engine.Eval(ctx)
	if err != nil {
		fatal("eval", err)
	}
	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fatal("write diagnostics", err)
	}
	acc := engine.MakeAcceptance()
	if *outAcc != "" {
		if err := saveAcceptance(acc, *outAcc); err != nil {
			fatal("write acceptance", err)
		}
	}
	fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n",
		acc.Summary.Pass, acc.Summary.Errors, acc.Summary.Warnings, len(diags))
	if !acc.Summary.Pass {
		os.Exit(1)
	}
}

func saveAcceptance(acc qc.AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	runPath := fs.String("run", "", "input .RLF run log")
	adcpPath := fs.String("adcp", "", "input .ADC profiler file")
	gpsPath := fs.String("gps", "", "input .GPS surface-fix log")
	pdfOut := fs.String("pdf", "run_report.pdf", "PDF output")
	jsonOut := fs.String("json", "", "JSON output")
	fs.Parse(args)

	if *runPath == "" {
		fmt.Println("required: --run")
		os.Exit(1)
	}
	ds, err := rlf.ParseFile(*runPath)
	if err != nil {
		fatal("parse run log", err)
	}
	var prof *pd0.Dataset
	if *adcpPath != "" {
		if prof, err = pd0.ParseFile(*adcpPath); err != nil {
			common.Warnf("parse profiler: %v", err)
			prof = nil
		}
	}
	ctx := &qc.Context{
		RunLog: ds, RunLogFile: *runPath,
		Profiler: prof, ProfilerFile: *adcpPath,
		FixesFile: *gpsPath,
	}
	if prof == nil {
		ctx.ProfilerFile = ""
	}
	engine := qc.NewEngine(qc.PackForContext(ctx))
	if _, err := engine.Eval(ctx); err != nil {
		fatal("eval", err)
	}
	acc := engine.MakeAcceptance()
	rep := report.Build(ds, *runPath, prof, *adcpPath, &acc)
	if err := report.SaveRunPDF(rep, *pdfOut); err != nil {
		fatal("write pdf", err)
	}
	fmt.Printf("wrote %s\n", *pdfOut)
	if *jsonOut != "" {
		if err := report.SaveJSON(rep, *jsonOut); err != nil {
			fatal("write json", err)
		}
		fmt.Printf("wrote %s\n", *jsonOut)
	}
}

func adcpCmd(args []string) {
	fs := flag.NewFlagSet("adcp", flag.ExitOnError)
	in := fs.String("in", "", "input .ADC profiler file")
	asJSON := fs.Bool("json", false, "emit the configuration as JSON")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	ds, err := pd0.ParseFile(*in)
	if err != nil {
		fatal("parse profiler file", err)
	}
	hours := ds.Hours()
	var span float64
	if len(hours) > 1 {
		span = hours[len(hours)-1] - hours[0]
	}
	if *asJSON {
		printJSON(struct {
			Leader         pd0.FixedLeader `json:"leader"`
			Ensembles      int             `json:"ensembles"`
			SpanHours      float64         `json:"spanHours"`
			DecodeFailures int             `json:"decodeFailures,omitempty"`
		}{ds.Leader, ds.NEnsembles, span, ds.DecodeFailures})
		return
	}
	l := ds.Leader
	fmt.Printf("Firmware:    %d.%d\n", l.FWVersion, l.FWRevision)
	fmt.Printf("System:      %d kHz, %d beams at %d deg, %s\n",
		l.FrequencyKHz, l.NBeams, l.BeamAngle, l.Orientation)
	fmt.Printf("Cells:       %d of %d cm, blank %d cm\n", l.NCells, l.CellSizeCM, l.BlankCM)
	fmt.Printf("Coordinates: %s\n", l.CoordTransform)
	fmt.Printf("Ensembles:   %d over %.2f h\n", ds.NEnsembles, span)
	if ds.DecodeFailures > 0 {
		fmt.Printf("Failures:    %d truncated sub-blocks\n", ds.DecodeFailures)
	}
}

func gpsCmd(args []string) {
	fs := flag.NewFlagSet("gps", flag.ExitOnError)
	in := fs.String("in", "", "input .GPS surface-fix log")
	asJSON := fs.Bool("json", false, "emit the fixes as JSON")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	log, err := navlog.ParseFile(*in)
	if err != nil {
		fatal("parse surface-fix log", err)
	}
	if *asJSON {
		printJSON(log)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLAT\tLON\tENSEMBLE")
	for _, f := range log.Fixes {
		fmt.Fprintf(w, "%02d:%02d:%05.2f\t%.6f\t%.6f\t%s\n",
			f.Hour, f.Minute, f.Second, f.Lat, f.Lon, f.EnsembleHex)
	}
	w.Flush()
	fmt.Printf("%d fixes, %d lines skipped\n", log.Len(), log.Skipped)
}

func missionCmd(args []string) {
	fs := flag.NewFlagSet("mission", flag.ExitOnError)
	in := fs.String("in", "", "input .rmf mission file")
	commandsPath := fs.String("commands", "", "instrument command file")
	asJSON := fs.Bool("json", false, "emit the plan as JSON")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	plan, err := mission.ParsePlanFile(*in)
	if err != nil {
		fatal("parse mission file", err)
	}
	var cmds []mission.Command
	if *commandsPath != "" {
		if cmds, err = mission.ParseCommandsFile(*commandsPath); err != nil {
			fatal("parse command file", err)
		}
	}
	if *asJSON {
		printJSON(struct {
			Locations  []planSection     `json:"locations"`
			Objectives []planSection     `json:"objectives"`
			Commands   []mission.Command `json:"commands,omitempty"`
		}{planSections(plan.Locations), planSections(plan.Objectives), cmds})
		return
	}
	printSections := func(title string, secs []mission.Section) {
		if len(secs) == 0 {
			return
		}
		fmt.Printf("%s (%d):\n", title, len(secs))
		for _, s := range secs {
			name, _ := s.Get("Name")
			var parts []string
			for _, k := range s.Keys() {
				if k == "Name" {
					continue
				}
				v, _ := s.Get(k)
				parts = append(parts, k+"="+v)
			}
			fmt.Printf("  %s: %s\n", name, strings.Join(parts, " "))
		}
	}
	printSections("Locations", plan.Locations)
	printSections("Objectives", plan.Objectives)
	if len(cmds) > 0 {
		fmt.Printf("Commands (%d):\n", len(cmds))
		for _, c := range cmds {
			fmt.Printf("  %s%s\n", c.Code, c.Value)
		}
	}
}

type planSection struct {
	Kind   string            `json:"kind"`
	Values map[string]string `json:"values"`
}

func planSections(secs []mission.Section) []planSection {
	out := make([]planSection, len(secs))
	for i, s := range secs {
		vals := make(map[string]string, len(s.Keys()))
		for _, k := range s.Keys() {
			v, _ := s.Get(k)
			vals[k] = v
		}
		out[i] = planSection{Kind: s.Kind, Values: vals}
	}
	return out
}

func dirCmd(args []string) {
	fs := flag.NewFlagSet("dir", flag.ExitOnError)
	in := fs.String("in", "", "run directory")
	asJSON := fs.Bool("json", false, "emit the inventory as JSON")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	rd, err := mission.Directory(*in)
	if err != nil {
		fatal("read run directory", err)
	}
	if *asJSON {
		errs := make(map[string]string, len(rd.Errors))
		for path, perr := range rd.Errors {
			errs[path] = perr.Error()
		}
		out := struct {
			RunLog    string             `json:"runLog,omitempty"`
			Profiler  string             `json:"profiler,omitempty"`
			Fixes     string             `json:"fixes,omitempty"`
			Plan      string             `json:"plan,omitempty"`
			Commands  string             `json:"commands,omitempty"`
			Records   []rlf.SummaryEntry `json:"records,omitempty"`
			Ensembles int                `json:"ensembles,omitempty"`
			FixCount  int                `json:"fixCount,omitempty"`
			Errors    map[string]string  `json:"errors,omitempty"`
		}{
			RunLog: rd.RunLogPath, Profiler: rd.ProfilerPath,
			Fixes: rd.FixesPath, Plan: rd.PlanPath, Commands: rd.CommandsPath,
			Errors: errs,
		}
		if rd.RunLog != nil {
			out.Records = rd.RunLog.Summary()
		}
		if rd.Profiler != nil {
			out.Ensembles = rd.Profiler.NEnsembles
		}
		out.FixCount = rd.Fixes.Len()
		printJSON(out)
		return
	}
	describe := func(label, path string, parsed bool) {
		if path == "" {
			fmt.Printf("%-10s (none)\n", label)
			return
		}
		status := "ok"
		if !parsed {
			status = "FAILED"
		}
		fmt.Printf("%-10s %s [%s]\n", label, path, status)
	}
	describe("run log", rd.RunLogPath, rd.RunLog != nil)
	describe("profiler", rd.ProfilerPath, rd.Profiler != nil)
	describe("gps", rd.FixesPath, rd.Fixes != nil)
	describe("mission", rd.PlanPath, rd.Plan != nil)
	describe("commands", rd.CommandsPath, rd.Commands != nil)
	if rd.RunLog != nil {
		nav := rd.RunLog.Nav()
		if nav.Len() > 0 && len(nav.Hours) > 0 {
			span := nav.Hours[len(nav.Hours)-1]
			if !math.IsNaN(span) {
				fmt.Printf("navigation: %d rows over %.2f h\n", nav.Len(), span)
			}
		}
	}
	for path, perr := range rd.Errors {
		fmt.Printf("error: %s: %v\n", path, perr)
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated input files")
	out := fs.String("out", "manifest.json", "manifest output")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fatal("build manifest", err)
	}
	if err := manifest.Save(m, *out); err != nil {
		fatal("write manifest", err)
	}
	fmt.Printf("wrote %s (%d items)\n", *out, len(m.Items))
}
