//go:build js && wasm

package detector

import "fmt"

// DetectJSON is unavailable in WASM builds; the browser owns the adapter.
func DetectJSON() (string, error) {
	return "", fmt.Errorf("detector: not available under wasm")
}

// Detect is unavailable in WASM builds.
func Detect() (*Report, error) {
	return nil, fmt.Errorf("detector: not available under wasm")
}
