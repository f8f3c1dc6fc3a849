package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordlegend/dava.engine/internal/conf"
	"github.com/swordlegend/dava.engine/internal/errors"
)

func TestNullDevice(t *testing.T) {
	t.Parallel()

	n := NewNull("")
	assert.Equal(t, "null", n.Name())
	assert.False(t, n.Running())

	require.NoError(t, n.Start())
	require.NoError(t, n.Start())
	assert.True(t, n.Running())

	require.NoError(t, n.Stop())
	assert.False(t, n.Running())

	starts, stops := n.Counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)

	require.NoError(t, n.Close())
	err := n.Start()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestSelectIndex(t *testing.T) {
	t.Parallel()

	devices := []Info{
		{Index: 0, Name: "HDMI Output", ID: "hw:0,3"},
		{Index: 1, Name: "USB Speaker", ID: "hw:1,0", IsDefault: true},
		{Index: 2, Name: "Headphones", ID: "hw:2,0"},
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"empty selects default", "", 1},
		{"default alias", "default", 1},
		{"sysdefault alias", "sysdefault", 1},
		{"exact name", "Headphones", 2},
		{"decoded id", "hw:0,3", 0},
		{"substring", "Speaker", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, err := selectIndex(devices, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, idx)
		})
	}

	_, err := selectIndex(devices, "Bluetooth")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = selectIndex(nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDevice))
}

func TestSelectIndexWithoutDefaultUsesFirst(t *testing.T) {
	t.Parallel()

	idx, err := selectIndex([]Info{{Name: "a"}, {Name: "b"}}, "")
	require.NoError(t, err)
	assert.Zero(t, idx)
}

func TestDecodeID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hw:1,0", decodeID("68773a312c300000"))
	assert.Equal(t, "not-hex", decodeID("not-hex"))
}

func TestNewFactoryNullBackend(t *testing.T) {
	t.Parallel()

	factory, err := NewFactory(&conf.AudioSettings{Backend: conf.BackendNone, Device: "test"}, nil)
	require.NoError(t, err)

	dev, err := factory()
	require.NoError(t, err)

	n, ok := dev.(*Null)
	require.True(t, ok)
	assert.Equal(t, "test", n.Name())
}

func TestNewFactoryRejectsBadSettings(t *testing.T) {
	t.Parallel()

	_, err := NewFactory(nil, nil)
	require.Error(t, err)

	_, err = NewFactory(&conf.AudioSettings{Backend: "oss"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewFactory(&conf.AudioSettings{
		Backend: conf.BackendNone,
		Clip:    conf.ClipSettings{Path: filepath.Join(t.TempDir(), "missing.wav")},
	}, nil)
	require.Error(t, err)
}

func TestNewClipSourceLoadsAndConverts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           []int{100, 200, 300, 400},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	settings := &conf.AudioSettings{
		SampleRate: 8000,
		Channels:   2,
		Clip:       conf.ClipSettings{Path: path, Gain: 1},
	}
	source, err := newClipSource(settings, getLogger())
	require.NoError(t, err)
	require.NotNil(t, source)

	dst := make([]byte, 4)
	source.Fill(dst)
	// first stereo frame: 100 duplicated to both channels
	assert.Equal(t, []byte{100, 0, 100, 0}, dst)
}

func TestNewClipSourceWithoutPath(t *testing.T) {
	t.Parallel()

	source, err := newClipSource(&conf.AudioSettings{}, getLogger())
	require.NoError(t, err)
	assert.Nil(t, source)
}
