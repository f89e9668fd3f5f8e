package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// maxDecodedSize bounds decompression so a hostile token cannot balloon.
const maxDecodedSize = 1 << 20

// Encode serializes the state, compresses it and encodes the bytes
// URL-safe. The resulting token is what gets placed in a URL fragment.
func Encode(s State) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("session: marshal state: %w", err)
	}
	return encodeRaw(payload)
}

// encodeRaw compresses and base64-encodes an already-marshaled payload.
func encodeRaw(payload []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("session: init compressor: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("session: compress state: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("session: compress state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. A token that fails at any step (malformed
// base64, corrupt compressed bytes, invalid JSON, out-of-range fields)
// reports ok=false and never panics; callers fall back to Default().
func Decode(token string) (State, bool) {
	if token == "" {
		return State{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return State{}, false
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	payload, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil || len(payload) > maxDecodedSize {
		return State{}, false
	}

	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return State{}, false
	}
	if !s.Valid() {
		return State{}, false
	}
	return s, true
}
