package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

var errNotWAV = errors.New("not a valid WAV file")

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// readWAVHeader consumes the header of a canonical PCM WAV stream, leaving r
// positioned at the first sample.
func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, errNotWAV
	}

	f := wavFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 { // PCM
		return f, fmt.Errorf("only PCM WAV is supported, got format %d", f.AudioFormat)
	}
	if f.Channels != 1 || f.BitsPerSample != 16 {
		return f, fmt.Errorf("expected 16-bit mono audio, got %d-bit with %d channels", f.BitsPerSample, f.Channels)
	}
	return f, nil
}
