// Package rlf decodes REMUS-100 run-log (.RLF) files: the event-record
// stream the vehicle writes alongside the profiler log, carrying
// navigation, CTD, optical and housekeeping records plus startup string
// tables.
package rlf

import "fmt"

// Record type codes observed in REMUS-100 run logs.
const (
	CodeNav           uint16 = 0x044E
	CodeCTDYSI        uint16 = 0x041D
	CodeCTDSBE        uint16 = 0x040A
	CodeADCP          uint16 = 0x03E8
	CodeSidescan      uint16 = 0x03F7
	CodeECO           uint16 = 0x043E
	CodeGPS           uint16 = 0x03F9
	CodeVehicleName   uint16 = 0x03F4
	CodeVehicleInfo   uint16 = 0x040D
	CodeManufacturer  uint16 = 0x0416
	CodeModemLog      uint16 = 0x0424
	CodeDiagnostic    uint16 = 0x03E9
	CodeMissionModes  uint16 = 0x03EE
	CodeMissionLegs   uint16 = 0x03F0
	CodeSensorNames   uint16 = 0x03FC
	CodeSensorTypes   uint16 = 0x0407
	CodeSensorDisplay uint16 = 0x040C
	CodeNavAcoustic   uint16 = 0x041A
	CodeDataChannels  uint16 = 0x041C
	CodeWaypoints     uint16 = 0x0427
	CodeECOCal        uint16 = 0x043D
	CodeAcousticFix   uint16 = 0x041F
	CodeBatteryStatus uint16 = 0x0412
	CodeBatteryCells  uint16 = 0x0413
	CodeObjectiveNav  uint16 = 0x03F1
	CodeCompassCal    uint16 = 0x0415
	CodeHousingTemp   uint16 = 0x040E
	CodeEnergyMon     uint16 = 0x0402
	CodeDVLStatus     uint16 = 0x040B
	CodeSubsysMode    uint16 = 0x0408
	CodeStartupFlag   uint16 = 0x0446
	CodeEventMarker   uint16 = 0x03EF
)

var recordNames = map[uint16]string{
	CodeNav:           "Navigation",
	CodeCTDYSI:        "YSI CTD",
	CodeCTDSBE:        "Seabird CTD (SBE49)",
	CodeADCP:          "ADCP/DVL (1200 kHz)",
	CodeSidescan:      "Sidescan (900 kHz)",
	CodeECO:           "Wetlabs ECO BB2F",
	CodeGPS:           "GPS/Acoustic Nav",
	CodeVehicleName:   "Vehicle Name",
	CodeVehicleInfo:   "Vehicle Info",
	CodeManufacturer:  "Manufacturer Info",
	CodeModemLog:      "Acoustic Modem Log",
	CodeDiagnostic:    "Diagnostic Log",
	CodeMissionModes:  "Mission Modes",
	CodeMissionLegs:   "Mission Legs",
	CodeSensorNames:   "Sensor Names",
	CodeSensorTypes:   "Sensor Types",
	CodeSensorDisplay: "Sensor Display Config",
	CodeNavAcoustic:   "Nav/Acoustic",
	CodeDataChannels:  "Data Channels",
	CodeWaypoints:     "Waypoints",
	CodeECOCal:        "ECO Calibration",
	CodeAcousticFix:   "Acoustic Nav Fix",
	CodeBatteryStatus: "Battery Status",
	CodeBatteryCells:  "Battery Cell Data",
	CodeObjectiveNav:  "Objective Navigation",
	CodeCompassCal:    "Compass Calibration",
	CodeHousingTemp:   "Housing Temperature",
	CodeEnergyMon:     "Energy Monitor",
	CodeDVLStatus:     "DVL Status",
	CodeSubsysMode:    "Subsystem Mode",
	CodeStartupFlag:   "Startup Flag",
	CodeEventMarker:   "Event Marker",
}

// NameOf returns the display name of a record type code. Unknown codes get
// a stable synthetic name so they remain addressable in summaries.
func NameOf(code uint16) string {
	if name, ok := recordNames[code]; ok {
		return name
	}
	return unknownName(code)
}

func unknownName(code uint16) string {
	return fmt.Sprintf("Unknown_0x%04x", code)
}
