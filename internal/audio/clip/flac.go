package clip

import (
	"encoding/binary"
	"io"

	"github.com/tphakala/flac"

	"github.com/swordlegend/dava.engine/internal/errors"
)

func decodeFLAC(r io.Reader) (*Clip, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	bitDepth := decoder.BitsPerSample
	if err := validateFormat(bitDepth, decoder.NChannels); err != nil {
		return nil, err
	}
	if bitDepth == 8 {
		return nil, errors.NewStd("8-bit FLAC is not supported")
	}
	bytesPerSample := bitDepth / 8

	pcm := make([]byte, 0, int(decoder.TotalSamples)*decoder.NChannels*BytesPerSample)
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var v int
			switch bitDepth {
			case 16:
				v = int(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				// sign-extend from bit 23
				v = int(int32(uint32(frame[i])|uint32(frame[i+1])<<8|uint32(frame[i+2])<<16) << 8 >> 8)
			case 32:
				v = int(int32(binary.LittleEndian.Uint32(frame[i:])))
			}
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(toS16(v, bitDepth)))
		}
	}

	return &Clip{
		PCM:        pcm,
		SampleRate: decoder.SampleRate,
		Channels:   decoder.NChannels,
	}, nil
}
