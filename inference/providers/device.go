package providers

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownDevice is returned for a compute target name no provider can serve.
var ErrUnknownDevice = errors.New("unknown device")

// ParseDevice maps a compute target name onto a provider configuration.
//
// Accepted names (case-insensitive):
//   - "CPU": the built-in CPU provider.
//   - "GPU", "GPU.<n>", "NPU", "AUTO", "AUTO:<list>": OpenVINO with the name as device type.
//   - "CUDA", "CUDA:<n>": CUDA on device n (default 0).
//   - "COREML": CoreML.
//
// Arguments:
//   - device: The device name, e.g. "CPU" or "GPU.0".
//
// Returns:
//   - Config: The provider configuration for the device.
//   - error: ErrUnknownDevice if the name is not recognised.
func ParseDevice(device string) (Config, error) {
	name := strings.ToUpper(strings.TrimSpace(device))

	switch {
	case name == "CPU":
		return Config{Backend: CPUProviderBackend, Options: CPUOptions{}, Device: name}, nil

	case name == "GPU" || name == "NPU" || name == "AUTO" ||
		strings.HasPrefix(name, "AUTO:") || isIndexed(name, "GPU."):
		return Config{
			Backend: OpenVINOProviderBackend,
			Options: OpenVINOOptions{DeviceType: name},
			Device:  name,
		}, nil

	case name == "CUDA" || strings.HasPrefix(name, "CUDA:"):
		id := 0
		if name != "CUDA" {
			n, err := strconv.Atoi(strings.TrimPrefix(name, "CUDA:"))
			if err != nil || n < 0 {
				return Config{}, errors.Wrapf(ErrUnknownDevice, "bad CUDA device id in %q", device)
			}
			id = n
		}
		return Config{Backend: CUDAProviderBackend, Options: CUDAOptions{DeviceID: id}, Device: name}, nil

	case name == "COREML":
		return Config{Backend: CoreMLProviderBackend, Options: CoreMLOptions{}, Device: name}, nil
	}

	return Config{}, errors.Wrapf(ErrUnknownDevice, "%q", device)
}

// isIndexed reports whether name is prefix followed by a non-negative integer.
func isIndexed(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	return err == nil && n >= 0
}
