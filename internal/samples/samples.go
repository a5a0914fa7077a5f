// Package samples builds a deterministic REMUS run directory for tests
// and documentation: a run log, a profiler file, a surface-fix log, a
// mission plan and an instrument command file that decode cleanly.
package samples

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	// File names exposed for generator consumers.
	RunLogFileName   = "sample.rlf"
	ProfilerFileName = "sample.adc"
	FixesFileName    = "sample.gps"
	MissionFileName  = "sample.rmf"
	CommandsFileName = "sample_commands.txt"

	// VehicleName is embedded in the generated run log.
	VehicleName = "REMUS-214"

	// Base position and clock of the generated run.
	baseLat       = 21.30521
	baseLon       = -157.95311
	baseClockMS   = 40_000_000
	clockStepMS   = 1_000
	NavRecords    = 8
	CTDRecords    = 6
	SidescanLines = 4
	Ensembles     = 5
	ProfilerCells = 5
)

func record(typ uint16, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0], buf[1] = 0xEB, 0x90
	binary.LittleEndian.PutUint16(buf[2:], 0x0000)
	binary.LittleEndian.PutUint16(buf[4:], typ)
	binary.LittleEndian.PutUint16(buf[6:], uint16(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func putF32(p []byte, off int, v float64) {
	binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(v)))
}

func putF64(p []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(p[off:], math.Float64bits(v))
}

func navPayload(i int) []byte {
	p := make([]byte, 46)
	putF64(p, 0, baseLat+float64(i)*0.0005)
	putF64(p, 8, baseLon+float64(i)*0.0004)
	binary.LittleEndian.PutUint32(p[16:], uint32(baseClockMS+i*clockStepMS))
	putF32(p, 20, 1.5)
	binary.LittleEndian.PutUint16(p[24:], 20)
	putF32(p, 26, -2.0)
	putF32(p, 34, 12.0+float64(i))
	return p
}

func ctdPayload(i int) []byte {
	p := make([]byte, 40)
	putF64(p, 0, baseLat+float64(i)*0.0005)
	putF64(p, 8, baseLon+float64(i)*0.0004)
	binary.LittleEndian.PutUint32(p[16:], uint32(baseClockMS+500+i*clockStepMS))
	putF32(p, 24, 5.2)
	putF32(p, 28, 24.8)
	putF32(p, 32, 35.1)
	putF32(p, 36, 1534.0)
	return p
}

// sidescanPayload carries no onboard clock; its hours come from
// position interpolation against the navigation stream.
func sidescanPayload(i int) []byte {
	p := make([]byte, 55)
	putF32(p, 0, baseLat+float64(i)*0.001)
	putF32(p, 4, baseLon+float64(i)*0.001)
	putF32(p, 8, 8.5)
	putF32(p, 12, 13.0)
	putF32(p, 32, 24.8)
	putF32(p, 38, 135.0)
	return p
}

func waypointPayload(name string, i int) []byte {
	p := make([]byte, 18+len(name)+1)
	putF64(p, 0, baseLat+float64(i)*0.01)
	putF64(p, 8, baseLon+float64(i)*0.01)
	binary.LittleEndian.PutUint16(p[16:], 1)
	copy(p[18:], name)
	return p
}

func cStringPayload(lead byte, s string) []byte {
	p := make([]byte, 1+len(s)+1)
	p[0] = lead
	copy(p[1:], s)
	return p
}

// BuildRunLog constructs the deterministic run log image.
func BuildRunLog() []byte {
	var buf []byte
	buf = append(buf, record(0x03F4, cStringPayload(1, VehicleName))...)
	buf = append(buf, record(0x0416, cStringPayload(1, "Hydroid, Inc."))...)
	for i := 0; i < NavRecords; i++ {
		buf = append(buf, record(0x044E, navPayload(i))...)
		if i < CTDRecords {
			buf = append(buf, record(0x041D, ctdPayload(i))...)
		}
		if i < SidescanLines {
			buf = append(buf, record(0x03F7, sidescanPayload(i))...)
		}
	}
	buf = append(buf, record(0x0427, waypointPayload("START", 0))...)
	buf = append(buf, record(0x0427, waypointPayload("END", 1))...)
	buf = append(buf, record(0x03E9, diagnosticPayload("mvc.c", "Mission started"))...)
	buf = append(buf, record(0x0446, []byte{1, 0, 0, 0})...)
	return buf
}

func diagnosticPayload(source, message string) []byte {
	p := append([]byte(source), 0)
	p = append(p, []byte{0, 0, 'G', ';', '*', 'R'}...)
	p = append(p, []byte(message)...)
	return append(p, 0)
}

func putVariableLeader(b []byte, ensemble int) {
	binary.LittleEndian.PutUint16(b[0:], 0x0080)
	binary.LittleEndian.PutUint16(b[2:], uint16(ensemble))
	b[4] = 13 // year 2013
	b[5] = 9
	b[6] = 6
	b[7] = 11
	b[8] = 6
	b[9] = byte(40 + ensemble)
	b[10] = 0
	b[11] = 0
	binary.LittleEndian.PutUint16(b[14:], uint16(120+ensemble)) // depth dm
	binary.LittleEndian.PutUint16(b[18:], 13500) // heading
	pitch := int16(-200)
	binary.LittleEndian.PutUint16(b[20:], uint16(pitch))        // pitch
	binary.LittleEndian.PutUint16(b[22:], 150)                  // roll
	binary.LittleEndian.PutUint16(b[24:], 35)                   // salinity
	binary.LittleEndian.PutUint16(b[26:], 2480)                 // temperature
}

// BuildProfiler constructs the deterministic profiler file image.
func BuildProfiler() []byte {
	var out []byte
	for e := 0; e < Ensembles; e++ {
		fixed := make([]byte, 26)
		binary.LittleEndian.PutUint16(fixed[0:], 0x0000)
		fixed[2], fixed[3] = 50, 40 // firmware 50.40
		binary.LittleEndian.PutUint16(fixed[4:], 0x0004) // 1200 kHz, down
		fixed[9] = ProfilerCells
		binary.LittleEndian.PutUint16(fixed[10:], 1)   // pings
		binary.LittleEndian.PutUint16(fixed[12:], 200) // cell cm
		binary.LittleEndian.PutUint16(fixed[14:], 100) // blank cm
		fixed[25] = 3 << 3                             // earth coordinates

		variable := make([]byte, 28)
		putVariableLeader(variable, e)

		velocity := make([]byte, 2+ProfilerCells*4*2)
		binary.LittleEndian.PutUint16(velocity[0:], 0x0100)
		for c := 0; c < ProfilerCells; c++ {
			for beam := 0; beam < 4; beam++ {
				v := int16(100 + 10*c + beam)
				if c == ProfilerCells-1 {
					v = -32768 // below-bottom cell
				}
				binary.LittleEndian.PutUint16(velocity[2+(c*4+beam)*2:], uint16(v))
			}
		}

		bt := make([]byte, 44)
		binary.LittleEndian.PutUint16(bt[0:], 0x0600)
		for beam := 0; beam < 4; beam++ {
			binary.LittleEndian.PutUint16(bt[16+2*beam:], uint16(850+10*beam)) // range cm
			btVel := int16(-50)
			binary.LittleEndian.PutUint16(bt[24+2*beam:], uint16(btVel))
			bt[32+beam] = 120
			bt[36+beam] = 80
			bt[40+beam] = 100
		}

		blocks := [][]byte{fixed, variable, velocity, bt}
		headerLen := 6 + 2*len(blocks)
		count := headerLen
		for _, b := range blocks {
			count += len(b)
		}
		// The stored byte count excludes the two trailing checksum bytes.
		ens := make([]byte, count+2)
		ens[0], ens[1] = 0x7F, 0x7F
		binary.LittleEndian.PutUint16(ens[2:], uint16(count))
		ens[5] = byte(len(blocks))
		off := headerLen
		for j, b := range blocks {
			binary.LittleEndian.PutUint16(ens[6+2*j:], uint16(off))
			copy(ens[off:], b)
			off += len(b)
		}
		var sum uint16
		for _, b := range ens[:count] {
			sum += uint16(b)
		}
		binary.LittleEndian.PutUint16(ens[count:], sum)
		out = append(out, ens...)
	}
	return out
}

// BuildSurfaceFixes constructs the matching surface-fix log.
func BuildSurfaceFixes() []byte {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		lat := baseLat + float64(i)*0.0005
		lon := -(baseLon + float64(i)*0.0004) // printed magnitude, W sign in the letter
		latDeg := int(lat)
		lonDeg := int(lon)
		fmt.Fprintf(&buf, "G %x, 11:06: %05.2f, %dW%06.3f  %dN%06.3f\n",
			0x1F00+i, 40.0+float64(i),
			lonDeg, (lon-float64(lonDeg))*60,
			latDeg, (lat-float64(latDeg))*60)
	}
	return buf.Bytes()
}

// BuildMission constructs the matching mission plan.
func BuildMission() []byte {
	var buf bytes.Buffer
	buf.WriteString("# generated sample mission\n")
	buf.WriteString("[Location]\n")
	buf.WriteString("Name=START     #$!0000\n")
	fmt.Fprintf(&buf, "Latitude=%.5f\n", baseLat)
	fmt.Fprintf(&buf, "Longitude=%.5f\n\n", baseLon)
	buf.WriteString("[Location]\n")
	buf.WriteString("Name=END       #$!0000\n")
	fmt.Fprintf(&buf, "Latitude=%.5f\n", baseLat+0.01)
	fmt.Fprintf(&buf, "Longitude=%.5f\n\n", baseLon+0.01)
	buf.WriteString("[Objective]\n")
	buf.WriteString("Name=Leg_01\n")
	buf.WriteString("Type=Row\n")
	buf.WriteString("Start=START\n")
	buf.WriteString("End=END\n")
	return buf.Bytes()
}

// BuildCommands constructs the matching instrument command file.
func BuildCommands() []byte {
	return []byte("# profiler deployment configuration\nCR1\nWV250\nEX00111\nES35\nEA0\n")
}

// WriteFiles materializes the generated run directory under dir.
func WriteFiles(dir string) error {
	files := map[string][]byte{
		RunLogFileName:   BuildRunLog(),
		ProfilerFileName: BuildProfiler(),
		FixesFileName:    BuildSurfaceFixes(),
		MissionFileName:  BuildMission(),
		CommandsFileName: BuildCommands(),
	}
	for name, data := range files {
		if err := writeFileIfChanged(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeFileIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
