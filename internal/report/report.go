// Package report renders decoded run data into operator deliverables: a
// JSON run report and a PDF with the record summary, instrument
// configuration, QC findings and a QR code of the run-log digest.
package report

import (
	"encoding/json"
	"os"
	"time"

	"example.com/remusdec/internal/common"
	"example.com/remusdec/internal/pd0"
	"example.com/remusdec/internal/qc"
	"example.com/remusdec/internal/rlf"
)

// VehicleIdentity is the self-description the vehicle wrote into its log.
type VehicleIdentity struct {
	Name         string            `json:"name,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty"`
	Info         map[string]string `json:"info,omitempty"`
}

// RunLogInfo summarizes the decoded run log.
type RunLogInfo struct {
	Path         string             `json:"path"`
	Sha256       string             `json:"sha256,omitempty"`
	SizeBytes    int64              `json:"sizeBytes,omitempty"`
	Frames       int                `json:"frames"`
	SkippedBytes int64              `json:"skippedBytes"`
	Records      []rlf.SummaryEntry `json:"records"`
}

// ProfilerInfo summarizes the profiler configuration and coverage.
type ProfilerInfo struct {
	Path         string `json:"path"`
	FrequencyKHz int    `json:"frequencyKHz"`
	NBeams       int    `json:"beams"`
	BeamAngle    int    `json:"beamAngleDeg"`
	NCells       int    `json:"cells"`
	CellSizeCM   int    `json:"cellSizeCM"`
	Coordinates  string `json:"coordinates"`
	Ensembles    int    `json:"ensembles"`
}

// RunReport is the full deliverable for one run.
type RunReport struct {
	GeneratedAt time.Time             `json:"generatedAt"`
	Vehicle     VehicleIdentity       `json:"vehicle"`
	RunLog      RunLogInfo            `json:"runLog"`
	Profiler    *ProfilerInfo         `json:"profiler,omitempty"`
	Acceptance  *qc.AcceptanceReport  `json:"acceptance,omitempty"`
}

// Build assembles a report from decoded datasets. The run-log digest is
// computed from the file on disk; a missing file leaves it empty rather
// than failing the report.
func Build(ds *rlf.Dataset, runLogPath string, prof *pd0.Dataset, profilerPath string, acc *qc.AcceptanceReport) RunReport {
	rep := RunReport{
		GeneratedAt: time.Now().UTC(),
		Acceptance:  acc,
	}
	if ds != nil {
		rep.Vehicle = VehicleIdentity{
			Name:         ds.VehicleName,
			Manufacturer: ds.Manufacturer,
			Info:         ds.VehicleInfo,
		}
		rep.RunLog = RunLogInfo{
			Path:         runLogPath,
			Frames:       ds.Stats.Frames,
			SkippedBytes: ds.Stats.SkippedBytes,
			Records:      ds.Summary(),
		}
		if runLogPath != "" {
			if sum, size, err := common.Sha256OfFile(runLogPath); err == nil {
				rep.RunLog.Sha256 = sum
				rep.RunLog.SizeBytes = size
			}
		}
	}
	if prof != nil {
		rep.Profiler = &ProfilerInfo{
			Path:         profilerPath,
			FrequencyKHz: prof.Leader.FrequencyKHz,
			NBeams:       prof.Leader.NBeams,
			BeamAngle:    prof.Leader.BeamAngle,
			NCells:       prof.Leader.NCells,
			CellSizeCM:   prof.Leader.CellSizeCM,
			Coordinates:  prof.Leader.CoordTransform,
			Ensembles:    prof.NEnsembles,
		}
	}
	return rep
}

func SaveJSON(rep RunReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (RunReport, error) {
	var rep RunReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
