package clip

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// Gain limits.
const (
	MinGain = 0.0
	MaxGain = 2.0
)

// defaultRingFrames is the ring capacity used when the caller passes zero.
const defaultRingFrames = 4096

// Stream loops a clip into fixed size output buffers. Fill is called from the
// audio callback, the other methods from anywhere.
type Stream struct {
	clip     *Clip
	ring     *ringbuffer.RingBuffer
	pos      int // next byte of clip.PCM to copy into the ring
	gain     float64
	frameLen int

	mu sync.Mutex
}

// NewStream creates a looping stream over c with a ring of ringFrames frames.
// A nil clip produces silence.
func NewStream(c *Clip, ringFrames int, gain float64) *Stream {
	if ringFrames <= 0 {
		ringFrames = defaultRingFrames
	}
	channels := 1
	if c != nil && c.Channels > 0 {
		channels = c.Channels
	}
	frameLen := channels * BytesPerSample

	s := &Stream{
		clip:     c,
		ring:     ringbuffer.New(ringFrames * frameLen),
		frameLen: frameLen,
	}
	s.SetGain(gain)
	return s
}

// SetGain sets the linear gain, clamped to [MinGain, MaxGain].
func (s *Stream) SetGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = min(max(gain, MinGain), MaxGain)
}

// Gain returns the current linear gain.
func (s *Stream) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// Reset rewinds the clip and drops buffered audio.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Reset()
	s.pos = 0
}

// Buffered returns the number of bytes waiting in the ring.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Length()
}

// Fill writes exactly len(dst) bytes of audio into dst, topping the ring up
// from the clip and padding with silence when nothing is available.
func (s *Stream) Fill(dst []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clip == nil || len(s.clip.PCM) == 0 {
		clear(dst)
		return
	}

	written := 0
	for written < len(dst) {
		if s.ring.IsEmpty() {
			if err := s.refillLocked(); err != nil {
				break
			}
		}
		n, err := s.ring.Read(dst[written:])
		written += n
		if n == 0 || (err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty)) {
			break
		}
	}
	clear(dst[written:])

	s.applyGainLocked(dst[:written])
}

// refillLocked copies clip data into the ring, wrapping at the end of the clip.
func (s *Stream) refillLocked() error {
	for s.ring.Free() >= s.frameLen {
		chunk := s.clip.PCM[s.pos:]
		// Keep whole frames in the ring
		free := s.ring.Free() / s.frameLen * s.frameLen
		if len(chunk) > free {
			chunk = chunk[:free]
		}
		n, err := s.ring.Write(chunk)
		s.pos += n
		if s.pos >= len(s.clip.PCM) {
			s.pos = 0
		}
		if err != nil {
			if errors.Is(err, ringbuffer.ErrIsFull) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Stream) applyGainLocked(buf []byte) {
	if s.gain == 1.0 {
		return
	}
	for i := 0; i+BytesPerSample <= len(buf); i += BytesPerSample {
		v := float64(int16(binary.LittleEndian.Uint16(buf[i:]))) * s.gain
		v = math.Round(min(max(v, math.MinInt16), math.MaxInt16))
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(v)))
	}
}
