// Package frame locates marker-delimited records in raw vehicle log files.
//
// Both on-disk formats handled by this module share the same recovery
// problem: a file is a concatenation of variable-length frames, each
// introduced by a fixed marker, with arbitrary garbage possible between
// frames after an interrupted write. The scanner is parameterized by a
// Format so the run-log framing and the profiler ensemble framing share
// one resync policy.
package frame

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortBuffer is returned when a buffer cannot hold even one header.
	ErrShortBuffer = errors.New("frame: buffer shorter than minimum header")
)

// Header is the decoded fixed-size prefix of a candidate frame.
type Header struct {
	// Type identifies the record type carried by the frame.
	Type uint16
	// FrameLen is the total frame extent in bytes, header included.
	FrameLen int
	// PayloadStart is the offset of the payload relative to the frame start.
	PayloadStart int
	// PayloadLen is the payload extent in bytes.
	PayloadLen int
}

// Format describes one marker-delimited framing scheme.
type Format struct {
	Name string
	// Marker is the byte sequence that introduces every frame.
	Marker []byte
	// HeaderLen is the number of bytes DecodeHeader needs.
	HeaderLen int
	// DecodeHeader interprets hdr (HeaderLen bytes starting at the marker)
	// and reports whether it describes a plausible frame.
	DecodeHeader func(hdr []byte) (Header, bool)
}

// Frame is one recovered record.
type Frame struct {
	Type    uint16
	Offset  int64
	Payload []byte
}

// Stats describes one scan pass.
type Stats struct {
	Frames       int
	FrameBytes   int64
	SkippedBytes int64
	// Resyncs counts marker mismatches and spurious markers, i.e. every
	// single-byte advance taken while hunting for the next frame.
	Resyncs int64
}

// Scan walks buf and returns every complete frame of format f, in file
// order. The cursor policy is byte-exact: at each position the marker is
// tested; a marker followed by a fully contained frame emits that frame
// and moves the cursor past it, anything else advances the cursor by one
// byte. A frame whose declared extent runs past the end of buf is treated
// as a spurious marker, so a dangling partial frame at EOF is dropped.
// Payload slices alias buf.
func Scan(buf []byte, f Format) ([]Frame, Stats) {
	var frames []Frame
	var st Stats
	if len(buf) < f.HeaderLen {
		st.SkippedBytes = int64(len(buf))
		st.Resyncs = int64(len(buf))
		return frames, st
	}
	i := 0
	for i+f.HeaderLen <= len(buf) {
		if !hasMarker(buf[i:], f.Marker) {
			i++
			st.SkippedBytes++
			st.Resyncs++
			continue
		}
		hdr, ok := f.DecodeHeader(buf[i : i+f.HeaderLen])
		if !ok || i+hdr.FrameLen > len(buf) {
			i++
			st.SkippedBytes++
			st.Resyncs++
			continue
		}
		frames = append(frames, Frame{
			Type:    hdr.Type,
			Offset:  int64(i),
			Payload: buf[i+hdr.PayloadStart : i+hdr.PayloadStart+hdr.PayloadLen],
		})
		st.Frames++
		st.FrameBytes += int64(hdr.FrameLen)
		i += hdr.FrameLen
	}
	st.SkippedBytes += int64(len(buf) - i)
	return frames, st
}

func hasMarker(buf, marker []byte) bool {
	if len(buf) < len(marker) {
		return false
	}
	for j, m := range marker {
		if buf[j] != m {
			return false
		}
	}
	return true
}

// RunLog is the framing of vehicle run-log (.RLF) files: a two-byte
// marker, a stored-but-unverified checksum, a record type and a payload
// length, all little-endian.
func RunLog() Format {
	return Format{
		Name:      "rlf",
		Marker:    []byte{0xEB, 0x90},
		HeaderLen: 8,
		DecodeHeader: func(hdr []byte) (Header, bool) {
			payloadLen := int(binary.LittleEndian.Uint16(hdr[6:8]))
			return Header{
				Type:         binary.LittleEndian.Uint16(hdr[4:6]),
				FrameLen:     8 + payloadLen,
				PayloadStart: 8,
				PayloadLen:   payloadLen,
			}, true
		},
	}
}

// Profiler is the framing of downward profiler (.ADC) files: PD0
// ensembles introduced by 7F 7F, with the ensemble byte count at offset
// 2 excluding its own two trailing checksum bytes. The payload here is
// the whole ensemble, marker included, because the interior offset table
// is relative to the ensemble start.
func Profiler() Format {
	return Format{
		Name:      "pd0",
		Marker:    []byte{0x7F, 0x7F},
		HeaderLen: 6,
		DecodeHeader: func(hdr []byte) (Header, bool) {
			n := int(binary.LittleEndian.Uint16(hdr[2:4]))
			if n < 6 {
				return Header{}, false
			}
			total := n + 2
			return Header{
				Type:         0x7F7F,
				FrameLen:     total,
				PayloadStart: 0,
				PayloadLen:   total,
			}, true
		},
	}
}
