// Package clip loads short audio files and loops them into playback buffers.
package clip

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// BytesPerSample is the size of one S16LE sample.
const BytesPerSample = 2

// Clip is decoded audio as interleaved signed 16-bit little endian PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.PCM) / (BytesPerSample * c.Channels)
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Load decodes a wav or flac file by extension.
func Load(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("audio.clip").
			Category(errors.CategoryFileIO).
			Context("operation", "open_clip").
			Context("path", path).
			Build()
	}
	defer func() { _ = file.Close() }()

	var c *Clip
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		c, err = decodeWAV(file)
	case ".flac":
		c, err = decodeFLAC(file)
	default:
		return nil, errors.Newf("unsupported clip format: %s", ext).
			Component("audio.clip").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("audio.clip").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_clip").
			Context("path", path).
			Build()
	}

	if c.Frames() == 0 {
		return nil, errors.Newf("clip contains no audio").
			Component("audio.clip").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	return c, nil
}

// Convert returns the clip with its channel count changed to channels.
// Mono is duplicated to every channel; multi-channel input is averaged to mono
// first.
func (c *Clip) Convert(channels int) *Clip {
	if channels <= 0 || channels == c.Channels {
		return c
	}

	frames := c.Frames()
	out := make([]byte, frames*channels*BytesPerSample)
	for f := range frames {
		var sum int
		for ch := range c.Channels {
			off := (f*c.Channels + ch) * BytesPerSample
			sum += int(int16(binary.LittleEndian.Uint16(c.PCM[off:])))
		}
		mono := uint16(int16(sum / c.Channels))
		for ch := range channels {
			binary.LittleEndian.PutUint16(out[(f*channels+ch)*BytesPerSample:], mono)
		}
	}

	return &Clip{PCM: out, SampleRate: c.SampleRate, Channels: channels}
}

// toS16 scales a sample of the given bit depth to 16 bits. 8-bit audio is
// unsigned.
func toS16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 16:
		return int16(v)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return 0
	}
}

func validateFormat(bitDepth, channels int) error {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("audio.clip").
			Category(errors.CategoryValidation).
			Build()
	}
	if channels < 1 || channels > 8 {
		return errors.Newf("unsupported number of channels: %d", channels).
			Component("audio.clip").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
