package rlf

import (
	"encoding/binary"
	"math"
	"testing"
)

func modemPayload(text string) []byte {
	p := make([]byte, 2+len(text)+1)
	p[0] = 0x01
	copy(p[2:], text)
	return p
}

func TestDecodeModemLog(t *testing.T) {
	var file []byte
	file = append(file, record(t, CodeModemLog, modemPayload(">(VehM) 12:STATUS OK"))...)
	file = append(file, record(t, CodeModemLog, modemPayload("<(Veh) 13:RANGING"))...)
	file = append(file, record(t, CodeModemLog, modemPayload("not a modem line"))...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := d.Modem
	if m.Len() != 3 {
		t.Fatalf("len=%d want 3", m.Len())
	}
	if m.Direction[0] != ">" || m.Source[0] != "VehM" || m.Counter[0] != 12 || m.Message[0] != "STATUS OK" {
		t.Fatalf("first entry=%v %v %v %q", m.Direction[0], m.Source[0], m.Counter[0], m.Message[0])
	}
	if m.Direction[1] != "<" || m.Counter[1] != 13 {
		t.Fatalf("second entry=%v %v", m.Direction[1], m.Counter[1])
	}
	if m.Counter[2] != -1 || m.Message[2] != "not a modem line" {
		t.Fatalf("unmatched line entry=%v %q", m.Counter[2], m.Message[2])
	}
}

func TestDecodeDiagnostics(t *testing.T) {
	payload := append([]byte("DIAGNOSE.CPP\x00"), 0x01, 0x02, 'G', ';', '*', 'R')
	payload = append(payload, []byte("Low battery warning\x00\x01")...)
	d, err := Parse(record(t, CodeDiagnostic, payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.Diagnostics) != 1 {
		t.Fatalf("diagnostics=%d want 1", len(d.Diagnostics))
	}
	got := d.Diagnostics[0]
	if got.SourceFile != "DIAGNOSE.CPP" || got.Message != "Low battery warning" {
		t.Fatalf("diagnostic=%+v", got)
	}
}

func TestDecodeVehicleInfoPairs(t *testing.T) {
	mk := func(label, value string) []byte {
		p := make([]byte, 2)
		p = append(p, []byte(label+"\n"+value)...)
		p = append(p, 0)
		return p
	}
	var file []byte
	file = append(file, record(t, CodeVehicleInfo, mk("Vehicle Serial Number", "SN 256"))...)
	file = append(file, record(t, CodeVehicleInfo, mk("RDI ADCP", "Navigator Broadband DVL Version 19.13"))...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.VehicleInfo["Vehicle Serial Number"] != "SN 256" {
		t.Fatalf("info=%v", d.VehicleInfo)
	}
	if d.VehicleInfo["RDI ADCP"] == "" {
		t.Fatalf("info=%v", d.VehicleInfo)
	}
}

func TestDecodeBatterySniffing(t *testing.T) {
	p := make([]byte, 60)
	binary.LittleEndian.PutUint16(p[2:], 2723)
	binary.LittleEndian.PutUint16(p[8:], 5500)
	binary.LittleEndian.PutUint16(p[10:], 28700)
	binary.LittleEndian.PutUint16(p[36:], 3100)
	binary.LittleEndian.PutUint16(p[38:], 25900)
	for _, s := range []string{"RE003", "102455", "LiION", "Dec  2 2009", "18:02:07"} {
		p = append(p, 0)
		p = append(p, []byte(s)...)
	}
	p = append(p, 0)
	d, err := Parse(record(t, CodeBatteryStatus, p))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.Batteries) != 1 {
		t.Fatalf("batteries=%d want 1", len(d.Batteries))
	}
	b := d.Batteries[0]
	if b.BattID != 2723 || b.CapacityMAh != 5500 || b.PackMV != 25900 {
		t.Fatalf("numeric fields=%+v", b)
	}
	if b.PartNumber != "RE003" || b.Serial != "102455" || b.Chemistry != "LiION" {
		t.Fatalf("identity fields=%+v", b)
	}
	if b.MfgDate != "Dec  2 2009" || b.MfgTime != "18:02:07" {
		t.Fatalf("mfg fields=%+v", b)
	}
}

func TestDecodeSensorNamesDeduplicates(t *testing.T) {
	var file []byte
	for _, name := range []string{"RDI ADCP", "YSI CTD", "RDI ADCP", "Seabird"} {
		file = append(file, record(t, CodeSensorNames, nulPadded(name, 13))...)
	}
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"RDI ADCP", "YSI CTD", "Seabird"}
	if len(d.SensorNames) != len(want) {
		t.Fatalf("names=%v want %v", d.SensorNames, want)
	}
	for i := range want {
		if d.SensorNames[i] != want[i] {
			t.Fatalf("names=%v want %v", d.SensorNames, want)
		}
	}
}

func TestDecodeDataChannelsDeduplicates(t *testing.T) {
	mk := func(idx int, name string, rate int) []byte {
		p := make([]byte, 24)
		binary.LittleEndian.PutUint16(p[0:], uint16(idx))
		copy(p[2:12], name)
		binary.LittleEndian.PutUint16(p[22:], uint16(rate))
		return p
	}
	var file []byte
	file = append(file, record(t, CodeDataChannels, mk(1, "DT1A", 55))...)
	file = append(file, record(t, CodeDataChannels, mk(1, "DT1A", 55))...)
	file = append(file, record(t, CodeDataChannels, mk(2, "DT2A", 110))...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.DataChannels) != 2 {
		t.Fatalf("channels=%+v want 2", d.DataChannels)
	}
	if d.DataChannels[1].Index != 2 || d.DataChannels[1].RateMS != 110 {
		t.Fatalf("channels=%+v", d.DataChannels)
	}
}

func TestDecodeMissionLegsAndWaypoints(t *testing.T) {
	leg := make([]byte, 48)
	leg[0] = 3
	binary.LittleEndian.PutUint64(leg[2:], math.Float64bits(21.45))
	binary.LittleEndian.PutUint64(leg[10:], math.Float64bits(-158.21))
	copy(leg[24:34], "SADCP")
	copy(leg[34:44], "WP01")
	binary.LittleEndian.PutUint16(leg[46:], 7)

	wp := make([]byte, 18+5)
	binary.LittleEndian.PutUint64(wp[0:], math.Float64bits(21.46))
	binary.LittleEndian.PutUint64(wp[8:], math.Float64bits(-158.22))
	binary.LittleEndian.PutUint16(wp[16:], 2)
	copy(wp[18:], "CCAL\x00")

	var file []byte
	file = append(file, record(t, CodeMissionLegs, leg)...)
	file = append(file, record(t, CodeWaypoints, wp)...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.MissionLegs) != 1 {
		t.Fatalf("legs=%+v", d.MissionLegs)
	}
	l := d.MissionLegs[0]
	if l.LegType != 3 || l.Index != 7 || l.TypeName != "SADCP" || l.DestName != "WP01" {
		t.Fatalf("leg=%+v", l)
	}
	if len(d.Waypoints) != 1 || d.Waypoints[0].Name != "CCAL" || d.Waypoints[0].Flags != 2 {
		t.Fatalf("waypoints=%+v", d.Waypoints)
	}
}

func TestAcousticFixTimes(t *testing.T) {
	p := make([]byte, 126)
	binary.LittleEndian.PutUint64(p[0:], math.Float64bits(21.47))
	p[46], p[47], p[48] = 13, 9, 6
	p[49], p[50], p[51] = 22, 15, 42
	d, err := Parse(record(t, CodeAcousticFix, p))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	times := d.AcousticFixTimes()
	if len(times) != 1 || times[0] != "2013-09-06 22:15:42" {
		t.Fatalf("times=%v", times)
	}
}

func TestDecodeSurfaceFixes(t *testing.T) {
	p := make([]byte, 59)
	binary.LittleEndian.PutUint64(p[0:], math.Float64bits(21.47))
	binary.LittleEndian.PutUint64(p[8:], math.Float64bits(-158.22))
	copy(p[31:], "REMUS214")
	d, err := Parse(record(t, CodeGPS, p))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Surface.Len() != 1 || d.Surface.Lat[0] != 21.47 {
		t.Fatalf("surface=%+v", d.Surface)
	}
	if len(d.Surface.ASCII) != 1 || d.Surface.ASCII[0] != "REMUS214" {
		t.Fatalf("ascii=%v", d.Surface.ASCII)
	}
}

func TestStartupAndEventCounts(t *testing.T) {
	var file []byte
	for i := 0; i < 3; i++ {
		file = append(file, record(t, CodeStartupFlag, []byte{1, 0, 0, 0})...)
	}
	file = append(file, record(t, CodeEventMarker, nil)...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.StartupCount != 3 || d.EventMarkers != 1 {
		t.Fatalf("startup=%d events=%d", d.StartupCount, d.EventMarkers)
	}
}
