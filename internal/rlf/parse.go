package rlf

import (
	"errors"
	"os"

	"example.com/remusdec/internal/frame"
	"example.com/remusdec/internal/layout"
)

// ErrEmptyLog is returned when no run-log frames are found at all, which
// means the input is not an RLF file (or is damaged beyond recovery).
var ErrEmptyLog = errors.New("rlf: no records found")

// Parse decodes a run-log file image with the default registry.
func Parse(data []byte) (*Dataset, error) {
	return Default().Parse(data)
}

// ParseFile reads and decodes a run-log file.
func ParseFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse scans data for run-log frames and decodes every record type the
// registry knows. Damaged individual records are counted, never fatal;
// the only structural failure is a file with no recoverable frames.
func (r *Registry) Parse(data []byte) (*Dataset, error) {
	frames, stats := frame.Scan(data, frame.RunLog())
	if len(frames) == 0 {
		return nil, ErrEmptyLog
	}

	// Group payloads and file offsets per type, preserving file order.
	payloads := make(map[uint16][][]byte)
	offsets := make(map[uint16][]int64)
	var order []uint16
	for _, fr := range frames {
		if _, seen := payloads[fr.Type]; !seen {
			order = append(order, fr.Type)
		}
		payloads[fr.Type] = append(payloads[fr.Type], fr.Payload)
		offsets[fr.Type] = append(offsets[fr.Type], fr.Offset)
	}

	d := &Dataset{
		Tables:   make(map[uint16]*Table),
		Unknown:  make(map[uint16][][]byte),
		Stats:    stats,
		counts:   make(map[uint16]int),
		firstLen: make(map[uint16]int),
		failures: make(map[uint16]int),
	}

	for _, code := range order {
		pls := payloads[code]
		d.counts[code] = len(pls)
		if len(pls) > 0 {
			d.firstLen[code] = len(pls[0])
		}
		if rec, ok := r.layouts.Lookup(code); ok {
			d.Tables[code] = decodeTable(rec, pls)
			d.failures[code] = d.Tables[code].DecodeFailures
			continue
		}
		if fn, ok := r.composites[code]; ok {
			d.failures[code] = fn(d, pls)
			continue
		}
		d.Unknown[code] = pls
	}

	d.inferClocklessHours(offsets)
	return d, nil
}

func decodeTable(rec layout.Record, pls [][]byte) *Table {
	t := &Table{
		Name:    rec.Name,
		Code:    rec.Code,
		Columns: rec.ColumnNames(),
	}
	t.data = make([][]float64, len(t.Columns))
	for i := range t.data {
		t.data[i] = make([]float64, 0, len(pls))
	}
	if len(pls) > 0 {
		t.PayloadBytes = len(pls[0])
	}
	if rec.HasClock() {
		t.RawClock = make([]uint32, 0, len(pls))
	}
	// Leading occurrences with no readable clock; backfilled with the
	// first valid reading so a damaged first record cannot rebase the
	// whole axis on midnight.
	unseeded := 0
	for _, p := range pls {
		row, err := rec.Extract(p)
		if err != nil {
			t.appendInvalidRow()
		} else {
			t.appendRow(row)
		}
		if rec.HasClock() {
			clock, cerr := rec.ClockReading(p)
			if cerr != nil {
				// Short record. Hold the previous reading so the time
				// axis stays aligned with the rows.
				if n := len(t.RawClock); n > unseeded {
					clock = t.RawClock[n-1]
				} else {
					unseeded++
				}
			} else if unseeded > 0 {
				for i := 0; i < unseeded; i++ {
					t.RawClock[i] = clock
				}
				unseeded = 0
			}
			t.RawClock = append(t.RawClock, clock)
		}
	}
	// A table whose every clock reading failed keeps no axis of its own;
	// it is stamped by position interpolation like a clockless type.
	if len(t.RawClock) > 0 && unseeded < len(t.RawClock) {
		t.Hours = NormalizeClock(t.RawClock)
	}
	return t
}

// inferClocklessHours stamps every table that has no embedded clock, and
// the modem log, by interpolating the navigation time axis over file
// offsets. Without a navigation reference those types stay unstamped.
func (d *Dataset) inferClocklessHours(offsets map[uint16][]int64) {
	nav := d.Nav()
	if nav.Len() == 0 || len(nav.Hours) != nav.Len() {
		return
	}
	refOff := offsets[CodeNav]
	for code, t := range d.Tables {
		if code == CodeNav || len(t.Hours) > 0 {
			continue
		}
		if h := HoursByPosition(refOff, nav.Hours, offsets[code]); h != nil {
			t.Hours = h
			t.ClockInferred = true
		}
	}
	if d.Modem.Len() > 0 {
		d.Modem.Hours = HoursByPosition(refOff, nav.Hours, offsets[CodeModemLog])
	}
}
