package clip

import (
	"encoding/binary"
	"io"

	"github.com/go-audio/wav"

	"github.com/swordlegend/dava.engine/internal/errors"
)

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.NewStd("input is not a valid WAV audio file")
	}

	bitDepth := int(decoder.BitDepth)
	channels := int(decoder.NumChans)
	if err := validateFormat(bitDepth, channels); err != nil {
		return nil, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	pcm := make([]byte, len(buf.Data)*BytesPerSample)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(toS16(v, bitDepth)))
	}

	return &Clip{
		PCM:        pcm,
		SampleRate: int(decoder.SampleRate),
		Channels:   channels,
	}, nil
}
