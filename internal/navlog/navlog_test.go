package navlog

import (
	"math"
	"strings"
	"testing"
)

func TestParseFixes(t *testing.T) {
	input := strings.Join([]string{
		"G 1A2B, 21:15: 32.50, 158W13.20  21N28.50",
		"",
		"G 1A2C, 21:15: 33.50, 12E30.00  33S15.00",
		"torn line that never finish",
	}, "\n")
	log, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if log.Len() != 2 || log.Skipped != 1 {
		t.Fatalf("fixes=%d skipped=%d want 2/1", log.Len(), log.Skipped)
	}
	first := log.Fixes[0]
	if first.EnsembleHex != "1A2B" || first.Hour != 21 || first.Minute != 15 || first.Second != 32.5 {
		t.Fatalf("first=%+v", first)
	}
	if math.Abs(first.Lon-(-(158+13.20/60))) > 1e-9 {
		t.Fatalf("west longitude=%v", first.Lon)
	}
	if math.Abs(first.Lat-(21+28.50/60)) > 1e-9 {
		t.Fatalf("north latitude=%v", first.Lat)
	}
	second := log.Fixes[1]
	if second.Lon < 0 || second.Lat > 0 {
		t.Fatalf("east/south signs wrong: %+v", second)
	}
}

func TestParseEmpty(t *testing.T) {
	log, err := Parse(strings.NewReader(""))
	if err != nil || log.Len() != 0 {
		t.Fatalf("log=%+v err=%v", log, err)
	}
}
