// Package storage implements the offline cache store: a size-bounded,
// TTL/LRU key-value cache held in memory and optionally persisted to a
// local cache directory, used both as a performance cache and as a
// recovery fallback when the Task Master CLI is unavailable.
package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Transform is a reversible payload codec applied when entries are
// written and inverted when they are read. The default pipeline uses
// identity transforms, so a real codec can be substituted without
// touching call sites.
type Transform interface {
	Name() string
	Apply(data []byte) ([]byte, error)
	Invert(data []byte) ([]byte, error)
}

// Pipeline orders the transforms: compression is applied before
// encryption on write, and undone after it on read.
type Pipeline struct {
	Compression Transform
	Encryption  Transform
}

// DefaultPipeline returns an identity-only pipeline.
func DefaultPipeline() Pipeline {
	return Pipeline{Compression: Identity(), Encryption: Identity()}
}

// Apply runs compression then encryption.
func (p Pipeline) Apply(data []byte) ([]byte, error) {
	out, err := p.Compression.Apply(data)
	if err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	out, err = p.Encryption.Apply(out)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	return out, nil
}

// Invert undoes encryption then compression.
func (p Pipeline) Invert(data []byte) ([]byte, error) {
	out, err := p.Encryption.Invert(data)
	if err != nil {
		return nil, fmt.Errorf("decrypting payload: %w", err)
	}
	out, err = p.Compression.Invert(out)
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	return out, nil
}

// flags reports which non-identity transforms are active, for entry
// metadata.
func (p Pipeline) flags() (compressed, encrypted bool) {
	return p.Compression.Name() != identityName, p.Encryption.Name() != identityName
}

const identityName = "identity"

type identityTransform struct{}

// Identity returns the no-op transform.
func Identity() Transform {
	return identityTransform{}
}

func (identityTransform) Name() string                        { return identityName }
func (identityTransform) Apply(data []byte) ([]byte, error)  { return data, nil }
func (identityTransform) Invert(data []byte) ([]byte, error) { return data, nil }

type gzipTransform struct{}

// Gzip returns a gzip compression transform.
func Gzip() Transform {
	return gzipTransform{}
}

func (gzipTransform) Name() string { return "gzip" }

func (gzipTransform) Apply(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipTransform) Invert(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
