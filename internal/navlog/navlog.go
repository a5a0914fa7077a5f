// Package navlog parses the ASCII surface-fix log (.GPS) the profiler
// writes alongside its binary data, roughly one position line per second
// while the vehicle is on the surface.
package navlog

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Line format: G <hex counter>, HH:MM: SS.s, <deg><W/E><minutes>  <deg><N/S><minutes>
var linePattern = regexp.MustCompile(
	`^G\s+([0-9A-Fa-f]+),\s*` +
		`(\d+):(\d+):\s*([\d.]+),\s*` +
		`(\d+)([WE])([\d.]+)\s+` +
		`(\d+)([NS])([\d.]+)\s*$`)

// Fix is one parsed surface position.
type Fix struct {
	// EnsembleHex is the profiler ensemble counter the logger stamped on
	// the line, kept as written.
	EnsembleHex string
	Hour        int
	Minute      int
	Second      float64
	// Lat and Lon are decimal degrees, south and west negative.
	Lat float64
	Lon float64
}

// Log is a parsed surface-fix file.
type Log struct {
	Fixes []Fix
	// Skipped counts lines that did not match the fix format.
	Skipped int
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Fixes)
}

// ParseFile reads and parses a .GPS file.
func ParseFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads surface fixes line by line. Unparseable lines are counted
// and skipped; the surface log is appended mid-mission and often ends in
// a torn line.
func Parse(r io.Reader) (*Log, error) {
	log := &Log{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			log.Skipped++
			continue
		}
		hour, _ := strconv.Atoi(m[2])
		minute, _ := strconv.Atoi(m[3])
		second, _ := strconv.ParseFloat(m[4], 64)

		lonDeg, _ := strconv.Atoi(m[5])
		lonMin, _ := strconv.ParseFloat(m[7], 64)
		lon := float64(lonDeg) + lonMin/60.0
		if m[6] == "W" {
			lon = -lon
		}

		latDeg, _ := strconv.Atoi(m[8])
		latMin, _ := strconv.ParseFloat(m[10], 64)
		lat := float64(latDeg) + latMin/60.0
		if m[9] == "S" {
			lat = -lat
		}

		log.Fixes = append(log.Fixes, Fix{
			EnsembleHex: m[1],
			Hour:        hour,
			Minute:      minute,
			Second:      second,
			Lat:         lat,
			Lon:         lon,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return log, nil
}
