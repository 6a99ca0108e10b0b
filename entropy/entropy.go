// Package entropy draws the seed material for unseeded rounds. Seeds feed
// the valuation sampler and the commitment randomness stream, so a weak or
// predictable source lets an observer reconstruct sealed bids.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Bytes reads n bytes of randomness from whatever Reader is passed in, and
// returns those bytes as the requested randomness.
func Bytes(source io.Reader, n int) ([]byte, error) {
	if source == nil {
		source = rand.Reader
	}

	randomBytes := make([]byte, n)
	bytesRead, err := io.ReadFull(source, randomBytes)
	if err != nil || bytesRead != n {
		// If the custom source fails, fall back to the
		// crypto/rand generator rather than seeding short.
		_, err := rand.Read(randomBytes)
		return randomBytes, err
	}
	return randomBytes, nil
}

// Seed draws a round seed from the given source, or from crypto/rand when
// source is nil. The seed is logged by the caller so a round drawn this way
// can still be replayed.
func Seed(source io.Reader) (uint64, error) {
	b, err := Bytes(source, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ScriptReader sources entropy from an external executable, for operators
// that keep a hardware generator behind a script.
type ScriptReader struct {
	Path string
}

var _ io.Reader = &ScriptReader{}

// NewScriptReader creates a new ScriptReader struct
func NewScriptReader(path string) *ScriptReader {
	return &ScriptReader{path}
}

// Read calls the executable as many times as needed to fill p.
// n == len(p) if and only if err == nil.
func (r *ScriptReader) Read(p []byte) (n int, err error) {
	if r.Path == "" {
		return 0, errors.New("no entropy script was provided")
	}
	read := 0
	for read < len(p) {
		var out bytes.Buffer
		cmd := exec.Command(r.Path) // #nosec
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return read, fmt.Errorf("entropy script %s: %w", r.Path, err)
		}
		if out.Len() == 0 {
			return read, fmt.Errorf("entropy script %s produced no output", r.Path)
		}
		read += copy(p[read:], out.Bytes())
	}
	return len(p), nil
}

// GetPath returns the path of the script
func (r *ScriptReader) GetPath() string {
	return r.Path
}
