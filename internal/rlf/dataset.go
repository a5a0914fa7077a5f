package rlf

import (
	"fmt"
	"math"
	"sort"

	"example.com/remusdec/internal/frame"
)

// Table holds every occurrence of one fixed-layout record type as
// column-major float64 series. Invalid readings are NaN.
type Table struct {
	Name    string
	Code    uint16
	Columns []string
	// data[c][i] is column c of occurrence i.
	data [][]float64
	// Hours is the normalized time axis: embedded-clock hours for types
	// that carry a clock, position-inferred hours otherwise, nil when
	// neither is available.
	Hours []float64
	// RawClock keeps the unmodified clock readings for clocked types.
	RawClock []uint32
	// PayloadBytes is the payload size of the first occurrence.
	PayloadBytes int
	// DecodeFailures counts occurrences whose payload was too short for
	// the layout; their rows are all NaN.
	DecodeFailures int
	// ClockInferred reports that Hours came from position interpolation.
	ClockInferred bool
}

// Len is the number of occurrences.
func (t *Table) Len() int {
	if t == nil || len(t.data) == 0 {
		return 0
	}
	return len(t.data[0])
}

// Column returns the named series, or nil when the table has no such column.
func (t *Table) Column(name string) []float64 {
	if t == nil {
		return nil
	}
	for i, c := range t.Columns {
		if c == name {
			return t.data[i]
		}
	}
	return nil
}

func (t *Table) appendRow(row []float64) {
	for i := range t.data {
		t.data[i] = append(t.data[i], row[i])
	}
}

func (t *Table) appendInvalidRow() {
	for i := range t.data {
		t.data[i] = append(t.data[i], math.NaN())
	}
	t.DecodeFailures++
}

// Diagnostic is one firmware warning record.
type Diagnostic struct {
	SourceFile string
	Message    string
}

// ModemLog is the decoded acoustic modem traffic. Direction is ">" for
// outgoing and "<" for incoming; Counter is -1 for lines that did not
// match the firmware's log format.
type ModemLog struct {
	Direction []string
	Source    []string
	Counter   []int
	Message   []string
	Hours     []float64
}

func (m *ModemLog) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Message)
}

// MissionLeg is one leg of the mission plan.
type MissionLeg struct {
	LegType  uint8
	Lat, Lon float64
	Index    uint16
	TypeName string
	DestName string
}

// SensorDisplay is one display-format configuration entry.
type SensorDisplay struct {
	Name     string
	Min, Max float64
	Format   string
}

// DataChannel is one internal firmware data channel definition.
type DataChannel struct {
	Index  int
	Name   string
	RateMS int
}

// Waypoint is one named mission waypoint.
type Waypoint struct {
	Lat, Lon float64
	Flags    uint16
	Name     string
}

// ECOChannel is one optical sensor channel calibration entry.
type ECOChannel struct {
	Channel    string
	Units      string
	Index      int
	Calibrated bool
	Scale      float64
	Offset     float64
}

// BatteryStatus is one smart-battery BMS report. The identity strings are
// recovered by content sniffing from the record's string tail.
type BatteryStatus struct {
	BattID      int
	CapacityMAh int
	DesignMV    int
	CellMV      int
	PackMV      int
	PartNumber  string
	Serial      string
	Chemistry   string
	MfgDate     string
	MfgTime     string
}

// SurfaceFixes holds the GPS/acoustic-nav position records and the ASCII
// transponder identifiers embedded in their undecoded tails.
type SurfaceFixes struct {
	Lat, Lon []float64
	ASCII    []string
}

func (g *SurfaceFixes) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Lat)
}

// Dataset is the decoded content of one run-log file.
type Dataset struct {
	Tables map[uint16]*Table

	VehicleName   string
	VehicleInfo   map[string]string
	Manufacturer  string
	Diagnostics   []Diagnostic
	Modem         *ModemLog
	MissionModes  map[int]string
	MissionLegs   []MissionLeg
	SensorNames   []string
	SensorTypes   map[int]string
	DisplayConfig []SensorDisplay
	DataChannels  []DataChannel
	Waypoints     []Waypoint
	ECOCal        []ECOChannel
	Batteries     []BatteryStatus
	Surface       *SurfaceFixes
	DVLStatusHex  []string
	SubsysModeHex []string
	StartupCount  int
	EventMarkers  int

	// Unknown retains the raw payloads of unrecognized type codes.
	Unknown map[uint16][][]byte

	// Stats is the frame scan accounting for the file.
	Stats frame.Stats

	counts   map[uint16]int
	firstLen map[uint16]int
	failures map[uint16]int
}

// Table returns the table for a layout-decoded type code, or nil.
func (d *Dataset) Table(code uint16) *Table {
	if d == nil {
		return nil
	}
	return d.Tables[code]
}

// Nav is shorthand for the navigation table, the densest record stream and
// the time reference for clockless types.
func (d *Dataset) Nav() *Table {
	return d.Table(CodeNav)
}

// AcousticFixTimes renders the wall-clock timestamps of the acoustic
// transponder fixes, whose records carry discrete date/time bytes instead
// of the millisecond clock.
func (d *Dataset) AcousticFixTimes() []string {
	t := d.Table(CodeAcousticFix)
	if t.Len() == 0 {
		return nil
	}
	year := t.Column("year")
	month := t.Column("month")
	day := t.Column("day")
	hour := t.Column("hour")
	minute := t.Column("minute")
	second := t.Column("second")
	out := make([]string, t.Len())
	for i := range out {
		out[i] = fmt.Sprintf("20%02d-%02d-%02d %02d:%02d:%02d",
			int(year[i]), int(month[i]), int(day[i]),
			int(hour[i]), int(minute[i]), int(second[i]))
	}
	return out
}

// SummaryEntry describes one record type found in the file.
type SummaryEntry struct {
	Name           string `json:"name"`
	Code           string `json:"code"`
	Count          int    `json:"count"`
	PayloadBytes   int    `json:"payloadBytes"`
	DecodeFailures int    `json:"decodeFailures,omitempty"`
}

// Summary lists every record type in the file, most frequent first.
func (d *Dataset) Summary() []SummaryEntry {
	if d == nil {
		return nil
	}
	codes := make([]uint16, 0, len(d.counts))
	for code := range d.counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if d.counts[codes[i]] != d.counts[codes[j]] {
			return d.counts[codes[i]] > d.counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	out := make([]SummaryEntry, 0, len(codes))
	for _, code := range codes {
		out = append(out, SummaryEntry{
			Name:           NameOf(code),
			Code:           fmt.Sprintf("0x%04x", code),
			Count:          d.counts[code],
			PayloadBytes:   d.firstLen[code],
			DecodeFailures: d.failures[code],
		})
	}
	return out
}
