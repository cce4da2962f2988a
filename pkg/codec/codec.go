// Package codec compresses large context payloads before they are
// persisted. Compression is size-gated: short payloads pass through
// untouched, longer ones are gzip-compressed and hex-encoded so they
// remain storable in a TEXT column.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"
)

// DecodeError indicates a persisted payload claimed to be compressed
// but could not be decoded. Callers on the read path skip the affected
// row rather than failing the whole query.
type DecodeError struct {
	Stage string
	Err   error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decoding payload (%s): %v", e.Stage, e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// Compress returns the storable form of payload. When threshold is
// positive and the payload is longer than threshold bytes, the result
// is gzip-compressed and hex-encoded and compressed is true; otherwise
// the payload is returned unchanged.
func Compress(payload string, threshold int) (stored string, compressed bool, err error) {
	if threshold <= 0 || len(payload) <= threshold {
		return payload, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		return "", false, fmt.Errorf("compressing payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", false, fmt.Errorf("compressing payload: %w", err)
	}

	return hex.EncodeToString(buf.Bytes()), true, nil
}

// Decompress reverses Compress for a payload stored with
// compressed=true.
func Decompress(stored string) (string, error) {
	raw, err := hex.DecodeString(stored)
	if err != nil {
		return "", DecodeError{Stage: "hex", Err: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", DecodeError{Stage: "gzip", Err: err}
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return "", DecodeError{Stage: "gzip", Err: err}
	}

	return string(payload), nil
}
