package device

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/swordlegend/dava.engine/internal/errors"
)

// backendForPlatform returns the malgo backend for the current platform
func backendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

// initContext initialises a malgo context for the platform backend
func initContext() (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext([]malgo.Backend{backendForPlatform()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("os", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

// releaseContext uninitialises and frees a malgo context
func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// EnumeratePlayback returns the playback devices of the platform backend.
func EnumeratePlayback() ([]Info, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	return toInfos(infos), nil
}

// toInfos converts malgo device infos, skipping the discard device
func toInfos(infos []malgo.DeviceInfo) []Info {
	devices := make([]Info, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, Info{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// SelectDevice finds the malgo device matching name or ID.
func SelectDevice(infos []malgo.DeviceInfo, name string) (*malgo.DeviceInfo, error) {
	all := make([]Info, len(infos))
	for i := range infos {
		all[i] = Info{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		}
	}

	idx, err := selectIndex(all, name)
	if err != nil {
		return nil, err
	}
	return &infos[idx], nil
}

// selectIndex picks a device: empty or "default" selects the default device
// (or the first one), then exact name, decoded ID and substring matches.
func selectIndex(devices []Info, name string) (int, error) {
	if len(devices) == 0 {
		return -1, errors.New(nil).
			Component("audio.device").
			Category(errors.CategoryAudioDevice).
			Context("error", "no playback devices found").
			Build()
	}

	if name == "" || name == "default" || name == "sysdefault" {
		for i := range devices {
			if devices[i].IsDefault {
				return i, nil
			}
		}
		return 0, nil
	}

	for i := range devices {
		if devices[i].Name == name {
			return i, nil
		}
	}
	for i := range devices {
		if devices[i].ID == name {
			return i, nil
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name, name) {
			return i, nil
		}
	}

	return -1, errors.New(nil).
		Component("audio.device").
		Category(errors.CategoryValidation).
		Context("device_name", name).
		Context("available_devices", len(devices)).
		Context("error", "no matching audio device found").
		Build()
}

// decodeID turns malgo's hex encoded device ID into text, keeping the hex
// form when it does not decode.
func decodeID(hexID string) string {
	b, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(b), "\x00")
}
