// Package pd0 decodes the downward profiler (.ADC) files: RDI PD0
// ensembles from the vehicle's 1200 kHz DVL. Each ensemble carries an
// offset table of sub-blocks (leaders, per-cell grids, bottom track);
// sub-blocks absent from an ensemble leave missing values in the output.
package pd0

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"example.com/remusdec/internal/frame"
)

// PD0 sub-block type IDs.
const (
	IDFixedLeader    uint16 = 0x0000
	IDVariableLeader uint16 = 0x0080
	IDVelocity       uint16 = 0x0100
	IDCorrelation    uint16 = 0x0200
	IDEchoIntensity  uint16 = 0x0300
	IDPercentGood    uint16 = 0x0400
	IDBottomTrack    uint16 = 0x0600
)

// badVelocity is the wire value RDI uses for a missing velocity sample.
const badVelocity = -32768

// ErrNoFixedLeader means no ensemble in the file carried a fixed leader,
// so cell geometry is unknown and nothing can be decoded.
var ErrNoFixedLeader = errors.New("pd0: no fixed leader found in any ensemble")

var frequencyKHz = map[int]int{0: 75, 1: 150, 2: 300, 3: 600, 4: 1200, 5: 2400}

var coordFrames = map[int]string{0: "Beam", 1: "Instrument", 2: "Ship", 3: "Earth"}

// FixedLeader is the instrument configuration, read once from the first
// ensemble that carries one and assumed constant for the file.
type FixedLeader struct {
	FWVersion        int
	FWRevision       int
	SysConfig        uint16
	FrequencyKHz     int
	BeamAngle        int
	NBeams           int
	Orientation      string
	NCells           int
	PingsPerEnsemble int
	CellSizeCM       int
	BlankCM          int
	CoordTransform   string
}

// BottomTrack holds the per-ensemble, per-beam bottom track solution.
// Range is in meters with NaN when the beam had no bottom lock; velocity
// is in m/s with NaN for missing samples.
type BottomTrack struct {
	RangeM      [][4]float64
	VelocityMS  [][4]float64
	Correlation [][4]uint8
	EvalAmp     [][4]uint8
	PercentGood [][4]uint8
}

// Dataset is the decoded content of one profiler file.
type Dataset struct {
	Leader     FixedLeader
	NEnsembles int
	NCells     int

	EnsembleNumber []int32
	Year           []int
	Month          []int
	Day            []int
	Hour           []int
	Minute         []int
	Second         []int
	Hundredths     []int

	HeadingDeg   []float64
	PitchDeg     []float64
	RollDeg      []float64
	TemperatureC []float64
	DepthM       []float64
	SalinityPPT  []int

	// VelocityMS[e][c][b] is beam b of cell c in ensemble e, in m/s,
	// NaN for missing samples or absent sub-blocks.
	VelocityMS    [][][]float64
	Correlation   [][][]uint8
	EchoIntensity [][][]uint8
	PercentGood   [][][]uint8

	BT BottomTrack

	// DecodeFailures counts ensembles with truncated or overrunning
	// sub-blocks. Their affected grids keep missing values.
	DecodeFailures int

	Stats frame.Stats
}

// ParseFile reads and decodes a profiler file.
func ParseFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a profiler file image. The first pass recovers ensemble
// framing and the instrument configuration; the second fills the
// pre-allocated grids. Individual damaged ensembles are counted, not
// fatal; a file with no fixed leader at all returns ErrNoFixedLeader.
func Parse(data []byte) (*Dataset, error) {
	ensembles, stats := frame.Scan(data, frame.Profiler())

	var leader *FixedLeader
	for _, ens := range ensembles {
		if fl, ok := findFixedLeader(ens.Payload); ok {
			leader = &fl
			break
		}
	}
	if leader == nil {
		return nil, ErrNoFixedLeader
	}

	d := newDataset(*leader, len(ensembles))
	d.Stats = stats
	for i, ens := range ensembles {
		if err := d.fillEnsemble(i, ens.Payload); err != nil {
			d.DecodeFailures++
		}
	}
	return d, nil
}

func newDataset(leader FixedLeader, nEns int) *Dataset {
	d := &Dataset{
		Leader:         leader,
		NEnsembles:     nEns,
		NCells:         leader.NCells,
		EnsembleNumber: make([]int32, nEns),
		Year:           make([]int, nEns),
		Month:          make([]int, nEns),
		Day:            make([]int, nEns),
		Hour:           make([]int, nEns),
		Minute:         make([]int, nEns),
		Second:         make([]int, nEns),
		Hundredths:     make([]int, nEns),
		HeadingDeg:     nanSlice(nEns),
		PitchDeg:       nanSlice(nEns),
		RollDeg:        nanSlice(nEns),
		TemperatureC:   nanSlice(nEns),
		DepthM:         nanSlice(nEns),
		SalinityPPT:    make([]int, nEns),
	}
	d.VelocityMS = nanGrid(nEns, leader.NCells)
	d.Correlation = byteGrid(nEns, leader.NCells)
	d.EchoIntensity = byteGrid(nEns, leader.NCells)
	d.PercentGood = byteGrid(nEns, leader.NCells)
	d.BT = BottomTrack{
		RangeM:      nanBeamRows(nEns),
		VelocityMS:  nanBeamRows(nEns),
		Correlation: make([][4]uint8, nEns),
		EvalAmp:     make([][4]uint8, nEns),
		PercentGood: make([][4]uint8, nEns),
	}
	return d
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func nanGrid(nEns, nCells int) [][][]float64 {
	g := make([][][]float64, nEns)
	for e := range g {
		g[e] = make([][]float64, nCells)
		for c := range g[e] {
			g[e][c] = []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}
		}
	}
	return g
}

func byteGrid(nEns, nCells int) [][][]uint8 {
	g := make([][][]uint8, nEns)
	for e := range g {
		g[e] = make([][]uint8, nCells)
		for c := range g[e] {
			g[e][c] = make([]uint8, 4)
		}
	}
	return g
}

func nanBeamRows(n int) [][4]float64 {
	rows := make([][4]float64, n)
	for i := range rows {
		rows[i] = [4]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	}
	return rows
}

// subBlocks iterates the ensemble's offset table.
func subBlocks(ens []byte) ([]int, error) {
	if len(ens) < 6 {
		return nil, fmt.Errorf("pd0: ensemble too short for header")
	}
	n := int(ens[5])
	offs := make([]int, 0, n)
	for j := 0; j < n; j++ {
		at := 6 + 2*j
		if at+2 > len(ens) {
			return offs, fmt.Errorf("pd0: offset table truncated")
		}
		off := int(binary.LittleEndian.Uint16(ens[at:]))
		if off+2 > len(ens) {
			return offs, fmt.Errorf("pd0: sub-block offset %d outside ensemble", off)
		}
		offs = append(offs, off)
	}
	return offs, nil
}

func findFixedLeader(ens []byte) (FixedLeader, bool) {
	offs, err := subBlocks(ens)
	if err != nil && len(offs) == 0 {
		return FixedLeader{}, false
	}
	for _, off := range offs {
		if binary.LittleEndian.Uint16(ens[off:]) != IDFixedLeader {
			continue
		}
		fl, err := parseFixedLeader(ens[off:])
		if err != nil {
			continue
		}
		return fl, true
	}
	return FixedLeader{}, false
}

func parseFixedLeader(b []byte) (FixedLeader, error) {
	if len(b) < 26 {
		return FixedLeader{}, fmt.Errorf("pd0: fixed leader truncated")
	}
	cfg := binary.LittleEndian.Uint16(b[4:])
	fl := FixedLeader{
		FWVersion:        int(b[2]),
		FWRevision:       int(b[3]),
		SysConfig:        cfg,
		FrequencyKHz:     frequencyKHz[int(cfg&0x07)],
		BeamAngle:        20,
		NBeams:           4,
		Orientation:      "Down",
		NCells:           int(b[9]),
		PingsPerEnsemble: int(binary.LittleEndian.Uint16(b[10:])),
		CellSizeCM:       int(binary.LittleEndian.Uint16(b[12:])),
		BlankCM:          int(binary.LittleEndian.Uint16(b[14:])),
		CoordTransform:   coordFrames[int(b[25]>>3)&0x03],
	}
	if (cfg>>4)&0x03 != 0 {
		fl.BeamAngle = 30
	}
	if (cfg>>4)&0x01 != 0 {
		fl.NBeams = 5
	}
	if (cfg>>7)&0x01 != 0 {
		fl.Orientation = "Up"
	}
	if fl.NCells == 0 {
		return FixedLeader{}, fmt.Errorf("pd0: fixed leader reports zero cells")
	}
	return fl, nil
}

func (d *Dataset) fillEnsemble(i int, ens []byte) error {
	offs, err := subBlocks(ens)
	for _, off := range offs {
		id := binary.LittleEndian.Uint16(ens[off:])
		var berr error
		switch id {
		case IDVariableLeader:
			berr = d.fillVariableLeader(i, ens[off:])
		case IDVelocity:
			berr = d.fillVelocity(i, ens[off:])
		case IDCorrelation:
			berr = fillByteGrid(d.Correlation[i], ens[off:])
		case IDEchoIntensity:
			berr = fillByteGrid(d.EchoIntensity[i], ens[off:])
		case IDPercentGood:
			berr = fillByteGrid(d.PercentGood[i], ens[off:])
		case IDBottomTrack:
			berr = d.fillBottomTrack(i, ens[off:])
		}
		if berr != nil && err == nil {
			err = berr
		}
	}
	return err
}

func (d *Dataset) fillVariableLeader(i int, b []byte) error {
	if len(b) < 28 {
		return fmt.Errorf("pd0: variable leader truncated")
	}
	year := int(b[4])
	if year < 100 {
		year += 2000
	}
	d.EnsembleNumber[i] = int32(binary.LittleEndian.Uint16(b[2:])) + int32(b[11])<<16
	d.Year[i] = year
	d.Month[i] = int(b[5])
	d.Day[i] = int(b[6])
	d.Hour[i] = int(b[7])
	d.Minute[i] = int(b[8])
	d.Second[i] = int(b[9])
	d.Hundredths[i] = int(b[10])
	d.DepthM[i] = float64(binary.LittleEndian.Uint16(b[14:])) / 10.0
	d.HeadingDeg[i] = float64(binary.LittleEndian.Uint16(b[18:])) / 100.0
	d.PitchDeg[i] = float64(int16(binary.LittleEndian.Uint16(b[20:]))) / 100.0
	d.RollDeg[i] = float64(int16(binary.LittleEndian.Uint16(b[22:]))) / 100.0
	d.SalinityPPT[i] = int(binary.LittleEndian.Uint16(b[24:]))
	d.TemperatureC[i] = float64(int16(binary.LittleEndian.Uint16(b[26:]))) / 100.0
	return nil
}

func (d *Dataset) fillVelocity(i int, b []byte) error {
	need := 2 + d.NCells*4*2
	if len(b) < need {
		return fmt.Errorf("pd0: velocity block needs %d bytes, have %d", need, len(b))
	}
	for c := 0; c < d.NCells; c++ {
		for beam := 0; beam < 4; beam++ {
			raw := int16(binary.LittleEndian.Uint16(b[2+(c*4+beam)*2:]))
			if raw == badVelocity {
				continue
			}
			d.VelocityMS[i][c][beam] = float64(raw) / 1000.0
		}
	}
	return nil
}

func fillByteGrid(grid [][]uint8, b []byte) error {
	need := 2 + len(grid)*4
	if len(b) < need {
		return fmt.Errorf("pd0: cell grid needs %d bytes, have %d", need, len(b))
	}
	for c := range grid {
		copy(grid[c], b[2+c*4:2+c*4+4])
	}
	return nil
}

func (d *Dataset) fillBottomTrack(i int, b []byte) error {
	if len(b) < 44 {
		return fmt.Errorf("pd0: bottom track truncated")
	}
	for beam := 0; beam < 4; beam++ {
		rangeCM := binary.LittleEndian.Uint16(b[16+2*beam:])
		if rangeCM != 0 {
			d.BT.RangeM[i][beam] = float64(rangeCM) / 100.0
		}
		vel := int16(binary.LittleEndian.Uint16(b[24+2*beam:]))
		if vel != badVelocity {
			d.BT.VelocityMS[i][beam] = float64(vel) / 1000.0
		}
		d.BT.Correlation[i][beam] = b[32+beam]
		d.BT.EvalAmp[i][beam] = b[36+beam]
		d.BT.PercentGood[i][beam] = b[40+beam]
	}
	return nil
}

// Hours converts the per-ensemble RTC readings into hours since the
// first ensemble, adding a day at midnight rollovers.
func (d *Dataset) Hours() []float64 {
	if d.NEnsembles == 0 {
		return nil
	}
	sec := make([]float64, d.NEnsembles)
	for i := 0; i < d.NEnsembles; i++ {
		sec[i] = float64(d.Hour[i])*3600 + float64(d.Minute[i])*60 +
			float64(d.Second[i]) + float64(d.Hundredths[i])/100.0
	}
	var carry float64
	out := make([]float64, len(sec))
	out[0] = sec[0]
	for i := 1; i < len(sec); i++ {
		if sec[i]-sec[i-1] < -43_200 {
			carry += 86_400
		}
		out[i] = sec[i] + carry
	}
	base := out[0]
	for i := range out {
		out[i] = (out[i] - base) / 3600.0
	}
	return out
}

// BinCentersM returns the along-beam distance of each cell center from
// the transducer, in meters.
func (d *Dataset) BinCentersM() []float64 {
	blank := float64(d.Leader.BlankCM) / 100.0
	cell := float64(d.Leader.CellSizeCM) / 100.0
	out := make([]float64, d.NCells)
	for i := range out {
		out[i] = blank + cell*(float64(i)+0.5)
	}
	return out
}
