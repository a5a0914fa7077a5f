package rlf

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Composite decoders for the record types that carry strings, lookup
// tables or mixed content instead of a fixed numeric layout. Each decoder
// returns the number of payloads it discarded as too short or otherwise
// unusable; discards never abort the parse.

func builtinComposites() map[uint16]CompositeFunc {
	return map[uint16]CompositeFunc{
		CodeGPS:           decodeSurfaceFixes,
		CodeVehicleName:   decodeVehicleName,
		CodeVehicleInfo:   decodeVehicleInfo,
		CodeManufacturer:  decodeManufacturer,
		CodeDiagnostic:    decodeDiagnostics,
		CodeModemLog:      decodeModemLog,
		CodeMissionModes:  decodeMissionModes,
		CodeMissionLegs:   decodeMissionLegs,
		CodeSensorNames:   decodeSensorNames,
		CodeSensorTypes:   decodeSensorTypes,
		CodeSensorDisplay: decodeSensorDisplay,
		CodeDataChannels:  decodeDataChannels,
		CodeWaypoints:     decodeWaypoints,
		CodeECOCal:        decodeECOCal,
		CodeBatteryStatus: decodeBatteryStatus,
		CodeDVLStatus:     decodeDVLStatus,
		CodeSubsysMode:    decodeSubsysMode,
		CodeStartupFlag:   decodeStartupFlag,
		CodeEventMarker:   decodeEventMarker,
	}
}

// cString returns the bytes of b up to the first NUL, as a string.
func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// printableRun keeps only printable ASCII bytes of b.
func printableRun(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func f32At(p []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(p[off:])))
}

func f64At(p []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p[off:]))
}

func u16At(p []byte, off int) int {
	return int(binary.LittleEndian.Uint16(p[off:]))
}

func decodeSurfaceFixes(d *Dataset, payloads [][]byte) int {
	fixes := &SurfaceFixes{}
	bad := 0
	for _, p := range payloads {
		if len(p) < 16 {
			bad++
			continue
		}
		fixes.Lat = append(fixes.Lat, f64At(p, 0))
		fixes.Lon = append(fixes.Lon, f64At(p, 8))
		// Transponder IDs ride in the undecoded tail as plain ASCII.
		if len(p) > 31 {
			if text := printableRun(p[31:]); text != "" {
				fixes.ASCII = append(fixes.ASCII, text)
			}
		}
	}
	d.Surface = fixes
	return bad
}

func decodeVehicleName(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 2 {
			bad++
			continue
		}
		if d.VehicleName == "" {
			d.VehicleName = cString(p[1:])
		}
	}
	return bad
}

func decodeVehicleInfo(d *Dataset, payloads [][]byte) int {
	if d.VehicleInfo == nil {
		d.VehicleInfo = make(map[string]string)
	}
	bad := 0
	for _, p := range payloads {
		if len(p) < 3 {
			bad++
			continue
		}
		text := strings.TrimSpace(cString(p[2:]))
		if label, value, found := strings.Cut(text, "\n"); found {
			d.VehicleInfo[strings.TrimSpace(label)] = strings.TrimSpace(value)
		} else if text != "" {
			d.VehicleInfo[text] = ""
		}
	}
	return bad
}

func decodeManufacturer(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 2 {
			bad++
			continue
		}
		if d.Manufacturer == "" {
			d.Manufacturer = cString(p[1:])
		}
	}
	return bad
}

// diagSeparatorLen is the gap between the NUL of the source file name and
// the message text: two firmware-internal bytes plus the 'G;*R' marker.
const diagSeparatorLen = 6

func decodeDiagnostics(d *Dataset, payloads [][]byte) int {
	for _, p := range payloads {
		null := strings.IndexByte(string(p), 0)
		if null < 0 {
			d.Diagnostics = append(d.Diagnostics, Diagnostic{Message: string(p)})
			continue
		}
		rec := Diagnostic{SourceFile: string(p[:null])}
		if rest := p[min(len(p), null+1+diagSeparatorLen):]; len(rest) > 0 {
			rec.Message = strings.TrimSpace(cString(rest))
		}
		d.Diagnostics = append(d.Diagnostics, rec)
	}
	return 0
}

var modemLinePattern = regexp.MustCompile(`^([><])\((\w+)\)\s+(\d+):(.*)`)

func decodeModemLog(d *Dataset, payloads [][]byte) int {
	log := &ModemLog{}
	bad := 0
	for _, p := range payloads {
		if len(p) < 3 {
			bad++
			continue
		}
		text := strings.TrimSpace(cString(p[2:]))
		if m := modemLinePattern.FindStringSubmatch(text); m != nil {
			counter, _ := strconv.Atoi(m[3])
			log.Direction = append(log.Direction, m[1])
			log.Source = append(log.Source, m[2])
			log.Counter = append(log.Counter, counter)
			log.Message = append(log.Message, strings.TrimSpace(m[4]))
		} else {
			log.Direction = append(log.Direction, "")
			log.Source = append(log.Source, "")
			log.Counter = append(log.Counter, -1)
			log.Message = append(log.Message, text)
		}
	}
	d.Modem = log
	return bad
}

func decodeMissionModes(d *Dataset, payloads [][]byte) int {
	if d.MissionModes == nil {
		d.MissionModes = make(map[int]string)
	}
	bad := 0
	for _, p := range payloads {
		if len(p) < 5 {
			bad++
			continue
		}
		d.MissionModes[int(p[0])] = cString(p[4:])
	}
	return bad
}

func decodeMissionLegs(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 48 {
			bad++
			continue
		}
		d.MissionLegs = append(d.MissionLegs, MissionLeg{
			LegType:  p[0],
			Lat:      f64At(p, 2),
			Lon:      f64At(p, 10),
			Index:    uint16(u16At(p, 46)),
			TypeName: cString(p[24:34]),
			DestName: cString(p[34:44]),
		})
	}
	return bad
}

func decodeSensorNames(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 11 {
			bad++
			continue
		}
		name := cString(p[:11])
		if name == "" {
			continue
		}
		dup := false
		for _, seen := range d.SensorNames {
			if seen == name {
				dup = true
				break
			}
		}
		if !dup {
			d.SensorNames = append(d.SensorNames, name)
		}
	}
	return bad
}

func decodeSensorTypes(d *Dataset, payloads [][]byte) int {
	if d.SensorTypes == nil {
		d.SensorTypes = make(map[int]string)
	}
	bad := 0
	for _, p := range payloads {
		if len(p) < 12 {
			bad++
			continue
		}
		d.SensorTypes[int(p[0])] = cString(p[1:12])
	}
	return bad
}

func decodeSensorDisplay(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 21 {
			bad++
			continue
		}
		d.DisplayConfig = append(d.DisplayConfig, SensorDisplay{
			Name:   cString(p[10:20]),
			Min:    f32At(p, 2),
			Max:    f32At(p, 6),
			Format: cString(p[21:]),
		})
	}
	return bad
}

func decodeDataChannels(d *Dataset, payloads [][]byte) int {
	bad := 0
	type key struct {
		idx  int
		name string
	}
	seen := make(map[key]bool)
	for _, p := range payloads {
		if len(p) < 24 {
			bad++
			continue
		}
		ch := DataChannel{
			Index:  u16At(p, 0),
			Name:   cString(p[2:12]),
			RateMS: u16At(p, 22),
		}
		k := key{idx: ch.Index, name: ch.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		d.DataChannels = append(d.DataChannels, ch)
	}
	return bad
}

func decodeWaypoints(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 18 {
			bad++
			continue
		}
		d.Waypoints = append(d.Waypoints, Waypoint{
			Lat:   f64At(p, 0),
			Lon:   f64At(p, 8),
			Flags: uint16(u16At(p, 16)),
			Name:  cString(p[18:]),
		})
	}
	return bad
}

func decodeECOCal(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 46 {
			bad++
			continue
		}
		d.ECOCal = append(d.ECOCal, ECOChannel{
			Channel:    cString(p[0:17]),
			Units:      cString(p[17:34]),
			Index:      int(p[34]),
			Calibrated: p[35] != 0,
			Scale:      f32At(p, 38),
			Offset:     f32At(p, 42),
		})
	}
	return bad
}

var monthAbbrevs = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// classifyBatteryString files one identity string from a battery record's
// tail into the status struct. The BMS emits the strings in no fixed
// order, so they are recognized by content, first match wins per field.
func classifyBatteryString(b *BatteryStatus, s string) {
	switch {
	case strings.HasPrefix(s, "RE"):
		b.PartNumber = s
	case len(s) == 6 && isDigits(s):
		b.Serial = s
	case strings.Contains(s, "ION") || strings.Contains(s, "ACID") || strings.Contains(s, "NiMH"):
		b.Chemistry = s
	case containsMonth(s):
		b.MfgDate = s
	case strings.Contains(s, ":") && len(s) == 8:
		b.MfgTime = s
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func containsMonth(s string) bool {
	for _, m := range monthAbbrevs {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func decodeBatteryStatus(d *Dataset, payloads [][]byte) int {
	bad := 0
	for _, p := range payloads {
		if len(p) < 40 {
			bad++
			continue
		}
		b := BatteryStatus{
			BattID:      u16At(p, 2),
			CapacityMAh: u16At(p, 8),
			DesignMV:    u16At(p, 10),
			CellMV:      u16At(p, 36),
			PackMV:      u16At(p, 38),
		}
		for _, part := range strings.Split(string(p), "\x00") {
			if len(part) > 2 && printableRun([]byte(part)) == part {
				classifyBatteryString(&b, part)
			}
		}
		d.Batteries = append(d.Batteries, b)
	}
	return bad
}

func decodeDVLStatus(d *Dataset, payloads [][]byte) int {
	for _, p := range payloads {
		d.DVLStatusHex = append(d.DVLStatusHex, hex.EncodeToString(p))
	}
	return 0
}

func decodeSubsysMode(d *Dataset, payloads [][]byte) int {
	for _, p := range payloads {
		d.SubsysModeHex = append(d.SubsysModeHex, hex.EncodeToString(p))
	}
	return 0
}

func decodeStartupFlag(d *Dataset, payloads [][]byte) int {
	d.StartupCount = len(payloads)
	return 0
}

func decodeEventMarker(d *Dataset, payloads [][]byte) int {
	d.EventMarkers = len(payloads)
	return 0
}
