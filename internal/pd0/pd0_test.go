package pd0

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

type block []byte

func fixedLeaderBlock(t *testing.T, nCells int, cfg uint16, cellCM, blankCM int) block {
	t.Helper()
	b := make([]byte, 26)
	binary.LittleEndian.PutUint16(b[0:], IDFixedLeader)
	b[2], b[3] = 19, 13
	binary.LittleEndian.PutUint16(b[4:], cfg)
	b[9] = byte(nCells)
	binary.LittleEndian.PutUint16(b[10:], 1)
	binary.LittleEndian.PutUint16(b[12:], uint16(cellCM))
	binary.LittleEndian.PutUint16(b[14:], uint16(blankCM))
	b[25] = 0x03 << 3 // Earth coordinates
	return block(b)
}

func variableLeaderBlock(t *testing.T, ensNum uint32, hour, minute, second int) block {
	t.Helper()
	b := make([]byte, 28)
	binary.LittleEndian.PutUint16(b[0:], IDVariableLeader)
	binary.LittleEndian.PutUint16(b[2:], uint16(ensNum&0xFFFF))
	b[4], b[5], b[6] = 13, 9, 6
	b[7], b[8], b[9], b[10] = byte(hour), byte(minute), byte(second), 0
	b[11] = byte(ensNum >> 16)
	binary.LittleEndian.PutUint16(b[14:], 35)   // 3.5 m
	binary.LittleEndian.PutUint16(b[18:], 9000) // 90 deg
	pitch := int16(-250)
	binary.LittleEndian.PutUint16(b[20:], uint16(pitch))
	binary.LittleEndian.PutUint16(b[22:], uint16(int16(125)))
	binary.LittleEndian.PutUint16(b[24:], 35)
	binary.LittleEndian.PutUint16(b[26:], uint16(int16(2654)))
	return block(b)
}

func velocityBlock(t *testing.T, nCells int, value func(cell, beam int) int16) block {
	t.Helper()
	b := make([]byte, 2+nCells*8)
	binary.LittleEndian.PutUint16(b[0:], IDVelocity)
	for c := 0; c < nCells; c++ {
		for beam := 0; beam < 4; beam++ {
			binary.LittleEndian.PutUint16(b[2+(c*4+beam)*2:], uint16(value(c, beam)))
		}
	}
	return block(b)
}

func bottomTrackBlock(t *testing.T, rangeCM [4]uint16, velMMS [4]int16) block {
	t.Helper()
	b := make([]byte, 44)
	binary.LittleEndian.PutUint16(b[0:], IDBottomTrack)
	for beam := 0; beam < 4; beam++ {
		binary.LittleEndian.PutUint16(b[16+2*beam:], rangeCM[beam])
		binary.LittleEndian.PutUint16(b[24+2*beam:], uint16(velMMS[beam]))
		b[32+beam] = 100
		b[36+beam] = 50
		b[40+beam] = 99
	}
	return block(b)
}

func ensemble(t *testing.T, blocks ...block) []byte {
	t.Helper()
	headerLen := 6 + 2*len(blocks)
	total := headerLen
	for _, b := range blocks {
		total += len(b)
	}
	buf := make([]byte, total+2) // trailing reserved/checksum bytes
	buf[0], buf[1] = 0x7F, 0x7F
	binary.LittleEndian.PutUint16(buf[2:], uint16(total))
	buf[5] = byte(len(blocks))
	off := headerLen
	for j, b := range blocks {
		binary.LittleEndian.PutUint16(buf[6+2*j:], uint16(off))
		copy(buf[off:], b)
		off += len(b)
	}
	return buf
}

func TestParseNoFixedLeader(t *testing.T) {
	file := ensemble(t, variableLeaderBlock(t, 1, 10, 0, 0))
	if _, err := Parse(file); !errors.Is(err, ErrNoFixedLeader) {
		t.Fatalf("err=%v want ErrNoFixedLeader", err)
	}
	if _, err := Parse([]byte("not pd0 at all")); !errors.Is(err, ErrNoFixedLeader) {
		t.Fatalf("err=%v want ErrNoFixedLeader", err)
	}
}

func TestParseSingleEnsembleShape(t *testing.T) {
	const nCells = 10
	vel := func(c, beam int) int16 {
		if c == 3 {
			return badVelocity
		}
		return int16(100*c + beam)
	}
	// sys_config: 1200 kHz, up-facing.
	file := ensemble(t,
		fixedLeaderBlock(t, nCells, 0x0004|0x0080, 100, 50),
		variableLeaderBlock(t, 70000, 12, 30, 15),
		velocityBlock(t, nCells, vel),
		bottomTrackBlock(t, [4]uint16{812, 0, 820, 816}, [4]int16{-50, badVelocity, 40, 10}),
	)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.NEnsembles != 1 || d.NCells != nCells {
		t.Fatalf("shape=%dx%d want 1x%d", d.NEnsembles, d.NCells, nCells)
	}
	if d.Leader.FrequencyKHz != 1200 || d.Leader.Orientation != "Up" || d.Leader.CoordTransform != "Earth" {
		t.Fatalf("leader=%+v", d.Leader)
	}
	if d.EnsembleNumber[0] != 70000 {
		t.Fatalf("ensemble number=%d want 70000 (16+8 bit split)", d.EnsembleNumber[0])
	}
	if d.HeadingDeg[0] != 90 || d.PitchDeg[0] != -2.5 || d.RollDeg[0] != 1.25 {
		t.Fatalf("attitude=%v %v %v", d.HeadingDeg[0], d.PitchDeg[0], d.RollDeg[0])
	}
	if d.TemperatureC[0] != 26.54 || d.DepthM[0] != 3.5 {
		t.Fatalf("temp=%v depth=%v", d.TemperatureC[0], d.DepthM[0])
	}
	if got := d.VelocityMS[0][2][1]; math.Abs(got-0.201) > 1e-9 {
		t.Fatalf("velocity[0][2][1]=%v want 0.201", got)
	}
	for beam := 0; beam < 4; beam++ {
		if !math.IsNaN(d.VelocityMS[0][3][beam]) {
			t.Fatalf("masked cell kept value: %v", d.VelocityMS[0][3][beam])
		}
	}
	if d.BT.RangeM[0][0] != 8.12 {
		t.Fatalf("bt range=%v want 8.12", d.BT.RangeM[0][0])
	}
	if !math.IsNaN(d.BT.RangeM[0][1]) {
		t.Fatalf("bt range 0 must be NaN (no bottom lock)")
	}
	if d.BT.VelocityMS[0][0] != -0.05 || !math.IsNaN(d.BT.VelocityMS[0][1]) {
		t.Fatalf("bt velocity=%v", d.BT.VelocityMS[0])
	}
	centers := d.BinCentersM()
	if centers[0] != 1.0 || centers[1] != 2.0 {
		t.Fatalf("bin centers=%v (blank 0.5 m + 1 m cells)", centers[:2])
	}
}

func TestParseMissingSubBlockLeavesMissingValues(t *testing.T) {
	const nCells = 4
	fl := fixedLeaderBlock(t, nCells, 0x0004, 100, 50)
	withVel := ensemble(t, fl,
		variableLeaderBlock(t, 1, 10, 0, 0),
		velocityBlock(t, nCells, func(c, b int) int16 { return 1 }),
	)
	withoutVel := ensemble(t, fl, variableLeaderBlock(t, 2, 10, 0, 30))
	file := append(append([]byte{}, withVel...), withoutVel...)

	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.NEnsembles != 2 {
		t.Fatalf("ensembles=%d want 2", d.NEnsembles)
	}
	if math.IsNaN(d.VelocityMS[0][0][0]) {
		t.Fatalf("first ensemble velocity missing")
	}
	for c := 0; c < nCells; c++ {
		for beam := 0; beam < 4; beam++ {
			if !math.IsNaN(d.VelocityMS[1][c][beam]) {
				t.Fatalf("ensemble without velocity block must stay NaN")
			}
		}
	}
	if d.DecodeFailures != 0 {
		t.Fatalf("absent sub-block is not a decode failure, got %d", d.DecodeFailures)
	}
}

func TestParseTruncatedSubBlockCountsFailure(t *testing.T) {
	const nCells = 8
	short := velocityBlock(t, 2, func(c, b int) int16 { return 1 }) // shorter than nCells requires
	file := ensemble(t,
		fixedLeaderBlock(t, nCells, 0x0004, 100, 50),
		variableLeaderBlock(t, 1, 10, 0, 0),
		short,
	)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.DecodeFailures != 1 {
		t.Fatalf("failures=%d want 1", d.DecodeFailures)
	}
	if !math.IsNaN(d.VelocityMS[0][5][0]) {
		t.Fatalf("truncated grid cells must stay NaN")
	}
}

func TestHoursRollover(t *testing.T) {
	const nCells = 1
	fl := fixedLeaderBlock(t, nCells, 0x0004, 100, 50)
	var file []byte
	file = append(file, ensemble(t, fl, variableLeaderBlock(t, 1, 23, 59, 50))...)
	file = append(file, ensemble(t, fl, variableLeaderBlock(t, 2, 0, 0, 10))...)
	d, err := Parse(file)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h := d.Hours()
	if h[0] != 0 {
		t.Fatalf("hours[0]=%v", h[0])
	}
	want := 20.0 / 3600.0
	if math.Abs(h[1]-want) > 1e-9 {
		t.Fatalf("hours[1]=%v want %v (midnight rollover)", h[1], want)
	}
}
