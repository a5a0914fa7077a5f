package mission

import (
	"os"
	"path/filepath"
	"strings"

	"example.com/remusdec/internal/navlog"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/rlf"
)

// RunDir is the parsed content of one run directory. Any member may be
// nil when the corresponding file is absent or failed to parse; Errors
// records per-file failures so one damaged stream never hides the rest.
type RunDir struct {
	RunLogPath   string
	ProfilerPath string
	FixesPath    string
	PlanPath     string
	CommandsPath string

	RunLog   *rlf.Dataset
	Profiler *pd0.Dataset
	Fixes    *navlog.Log
	Plan     *Plan
	Commands []Command

	Errors map[string]error
}

// Directory locates and parses the vehicle files in one run directory:
// the run log, the profiler log, the surface-fix log, the mission plan
// and the instrument command file, first match of each by extension.
func Directory(dir string) (*RunDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	rd := &RunDir{Errors: make(map[string]error)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".rlf":
			if rd.RunLogPath == "" {
				rd.RunLogPath = path
			}
		case ".adc":
			if rd.ProfilerPath == "" {
				rd.ProfilerPath = path
			}
		case ".gps":
			if rd.FixesPath == "" {
				rd.FixesPath = path
			}
		case ".rmf":
			if rd.PlanPath == "" {
				rd.PlanPath = path
			}
		case ".txt":
			if rd.CommandsPath == "" {
				rd.CommandsPath = path
			}
		}
	}
	if rd.RunLogPath != "" {
		if ds, perr := rlf.ParseFile(rd.RunLogPath); perr != nil {
			rd.Errors[rd.RunLogPath] = perr
		} else {
			rd.RunLog = ds
		}
	}
	if rd.ProfilerPath != "" {
		if ds, perr := pd0.ParseFile(rd.ProfilerPath); perr != nil {
			rd.Errors[rd.ProfilerPath] = perr
		} else {
			rd.Profiler = ds
		}
	}
	if rd.FixesPath != "" {
		if log, perr := navlog.ParseFile(rd.FixesPath); perr != nil {
			rd.Errors[rd.FixesPath] = perr
		} else {
			rd.Fixes = log
		}
	}
	if rd.PlanPath != "" {
		if plan, perr := ParsePlanFile(rd.PlanPath); perr != nil {
			rd.Errors[rd.PlanPath] = perr
		} else {
			rd.Plan = plan
		}
	}
	if rd.CommandsPath != "" {
		if cmds, perr := ParseCommandsFile(rd.CommandsPath); perr != nil {
			rd.Errors[rd.CommandsPath] = perr
		} else {
			rd.Commands = cmds
		}
	}
	return rd, nil
}
