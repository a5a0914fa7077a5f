// Package layout holds the field maps for the fixed-layout run-log record
// types. A record type is described declaratively (field name, byte offset,
// wire type, optional scale, sentinel and validity window) instead of with a
// bespoke decode function per type, so adding a newly understood type is a
// data change.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrShortPayload = errors.New("layout: payload shorter than record layout")

// sentinelTolerance is how close a decoded value must be to a declared
// sentinel to count as invalid. Float32 sentinels like -32.768 do not
// round-trip exactly through the wire encoding.
const sentinelTolerance = 0.01

type Kind int

const (
	U8 Kind = iota
	U16
	I16
	U32
	F32
	F64
)

func (k Kind) Size() int {
	switch k {
	case U8:
		return 1
	case U16, I16:
		return 2
	case U32, F32:
		return 4
	case F64:
		return 8
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case U32:
		return "u32"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func kindFromString(s string) (Kind, bool) {
	switch s {
	case "u8":
		return U8, true
	case "u16":
		return U16, true
	case "i16":
		return I16, true
	case "u32":
		return U32, true
	case "f32":
		return F32, true
	case "f64":
		return F64, true
	}
	return 0, false
}

// Field maps one named column onto a byte range of the payload.
type Field struct {
	Name   string
	Offset int
	Kind   Kind
	// Count expands the field into Count consecutive columns name_0..name_{n-1}.
	Count int
	// Scale multiplies the decoded value; zero means no scaling.
	Scale float64
	// Sentinel, when set, is the wire value meaning "invalid"; matches map to NaN.
	Sentinel *float64
	// Min/Max is a validity window; values outside map to NaN. AbsWindow
	// applies the window to the magnitude, for fields where both
	// hemispheres are plausible but zero is the invalid filler.
	Min, Max  *float64
	AbsWindow bool
}

// Columns returns the column names the field contributes.
func (f Field) Columns() []string {
	if f.Count <= 1 {
		return []string{f.Name}
	}
	cols := make([]string, f.Count)
	for i := range cols {
		cols[i] = fmt.Sprintf("%s_%d", f.Name, i)
	}
	return cols
}

func (f Field) end() int {
	n := f.Count
	if n < 1 {
		n = 1
	}
	return f.Offset + n*f.Kind.Size()
}

// Record is the layout of one fixed-size record type.
type Record struct {
	Code uint16
	Name string
	// Size is the nominal payload size in bytes. Zero means variable.
	Size int
	// Clock is the payload offset of the uint32 milliseconds-since-midnight
	// clock, or -1 for types that carry none.
	Clock  int
	Fields []Field
}

// ColumnNames returns the flattened column order of the record.
func (r Record) ColumnNames() []string {
	var cols []string
	for _, f := range r.Fields {
		cols = append(cols, f.Columns()...)
	}
	return cols
}

// Width is the number of columns one occurrence decodes into.
func (r Record) Width() int {
	w := 0
	for _, f := range r.Fields {
		n := f.Count
		if n < 1 {
			n = 1
		}
		w += n
	}
	return w
}

// HasClock reports whether the type carries an embedded clock reading.
func (r Record) HasClock() bool {
	return r.Clock >= 0
}

// Store is a validated, immutable set of record layouts keyed by type code.
type Store struct {
	records map[uint16]Record
	order   []uint16
}

func (s *Store) Lookup(code uint16) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	r, ok := s.records[code]
	return r, ok
}

// Codes returns the layout codes in declaration order.
func (s *Store) Codes() []uint16 {
	if s == nil {
		return nil
	}
	out := make([]uint16, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Extract decodes one payload occurrence into a flat row in column order.
// A payload shorter than the layout's extent returns ErrShortPayload; the
// caller decides whether that aborts anything (it should not).
func (r Record) Extract(payload []byte) ([]float64, error) {
	row := make([]float64, 0, r.Width())
	for _, f := range r.Fields {
		n := f.Count
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			off := f.Offset + i*f.Kind.Size()
			if off+f.Kind.Size() > len(payload) {
				return nil, fmt.Errorf("%w: %s field %s needs %d bytes, have %d",
					ErrShortPayload, r.Name, f.Name, f.end(), len(payload))
			}
			row = append(row, f.decodeOne(payload, off))
		}
	}
	return row, nil
}

// ClockReading reads the embedded clock of one occurrence.
func (r Record) ClockReading(payload []byte) (uint32, error) {
	if !r.HasClock() {
		return 0, fmt.Errorf("layout: %s carries no clock", r.Name)
	}
	if r.Clock+4 > len(payload) {
		return 0, fmt.Errorf("%w: %s clock at %d, have %d bytes",
			ErrShortPayload, r.Name, r.Clock, len(payload))
	}
	return binary.LittleEndian.Uint32(payload[r.Clock:]), nil
}

func (f Field) decodeOne(payload []byte, off int) float64 {
	var v float64
	switch f.Kind {
	case U8:
		v = float64(payload[off])
	case U16:
		v = float64(binary.LittleEndian.Uint16(payload[off:]))
	case I16:
		v = float64(int16(binary.LittleEndian.Uint16(payload[off:])))
	case U32:
		v = float64(binary.LittleEndian.Uint32(payload[off:]))
	case F32:
		v = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:])))
	case F64:
		v = math.Float64frombits(binary.LittleEndian.Uint64(payload[off:]))
	}
	if f.Sentinel != nil && math.Abs(v-*f.Sentinel) < sentinelTolerance {
		return math.NaN()
	}
	if f.Min != nil || f.Max != nil {
		w := v
		if f.AbsWindow {
			w = math.Abs(v)
		}
		if f.Min != nil && w <= *f.Min {
			return math.NaN()
		}
		if f.Max != nil && w >= *f.Max {
			return math.NaN()
		}
	}
	if f.Scale != 0 {
		v *= f.Scale
	}
	return v
}

// yamlFile mirrors the on-disk layout document.
type yamlFile struct {
	Records []yamlRecord `yaml:"records"`
}

type yamlRecord struct {
	Code   int         `yaml:"code"`
	Name   string      `yaml:"name"`
	Size   int         `yaml:"size"`
	Clock  *int        `yaml:"clock"`
	Fields []yamlField `yaml:"fields"`
}

type yamlField struct {
	Name     string   `yaml:"name"`
	Offset   int      `yaml:"offset"`
	Type     string   `yaml:"type"`
	Count    int      `yaml:"count"`
	Scale    float64  `yaml:"scale"`
	Sentinel *float64 `yaml:"sentinel"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	Abs      bool     `yaml:"abs"`
}

func fromYAMLFile(file yamlFile) (*Store, error) {
	store := &Store{records: make(map[uint16]Record)}
	for i, yr := range file.Records {
		if yr.Code < 0 || yr.Code > 0xFFFF {
			return nil, fmt.Errorf("records[%d]: code out of range", i)
		}
		code := uint16(yr.Code)
		if _, exists := store.records[code]; exists {
			return nil, fmt.Errorf("records[%d]: duplicate code 0x%04x", i, code)
		}
		name := strings.TrimSpace(yr.Name)
		if name == "" {
			return nil, fmt.Errorf("records[%d]: empty name", i)
		}
		if yr.Size < 0 {
			return nil, fmt.Errorf("records[%d] %s: negative size", i, name)
		}
		clock := -1
		if yr.Clock != nil {
			clock = *yr.Clock
			if clock < 0 || (yr.Size > 0 && clock+4 > yr.Size) {
				return nil, fmt.Errorf("records[%d] %s: clock offset out of record", i, name)
			}
		}
		rec := Record{Code: code, Name: name, Size: yr.Size, Clock: clock}
		seen := make(map[string]bool)
		for j, yf := range yr.Fields {
			fname := strings.TrimSpace(yf.Name)
			if fname == "" {
				return nil, fmt.Errorf("records[%d] %s: fields[%d]: empty name", i, name, j)
			}
			if seen[fname] {
				return nil, fmt.Errorf("records[%d] %s: duplicate field %s", i, name, fname)
			}
			seen[fname] = true
			kind, ok := kindFromString(yf.Type)
			if !ok {
				return nil, fmt.Errorf("records[%d] %s: field %s: unknown type %q", i, name, fname, yf.Type)
			}
			count := yf.Count
			if count == 0 {
				count = 1
			}
			if count < 1 {
				return nil, fmt.Errorf("records[%d] %s: field %s: non-positive count", i, name, fname)
			}
			f := Field{
				Name:      fname,
				Offset:    yf.Offset,
				Kind:      kind,
				Count:     count,
				Scale:     yf.Scale,
				Sentinel:  yf.Sentinel,
				Min:       yf.Min,
				Max:       yf.Max,
				AbsWindow: yf.Abs,
			}
			if f.Offset < 0 {
				return nil, fmt.Errorf("records[%d] %s: field %s: negative offset", i, name, fname)
			}
			if yr.Size > 0 && f.end() > yr.Size {
				return nil, fmt.Errorf("records[%d] %s: field %s overruns record size %d", i, name, fname, yr.Size)
			}
			rec.Fields = append(rec.Fields, f)
		}
		if len(rec.Fields) == 0 {
			return nil, fmt.Errorf("records[%d] %s: no fields", i, name)
		}
		store.records[code] = rec
		store.order = append(store.order, code)
	}
	return store, nil
}
