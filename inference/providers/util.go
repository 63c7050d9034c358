// Package providers - Utility functions.
package providers

import (
	"fmt"
	"runtime"
)

// SharedLibPath returns the path to the ONNX Runtime shared library.
//
// Arguments:
//   - override: A configured path. When non-empty it is returned unchanged.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if no default library is known for this platform.
func SharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return defaultSharedLibPath(runtime.GOOS, runtime.GOARCH)
}

func defaultSharedLibPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		if goarch == "arm64" || goarch == "amd64" {
			return "./third_party/libonnxruntime.1.23.0.dylib", nil
		}
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", fmt.Errorf("no onnxruntime library known for %s/%s", goos, goarch)
}
