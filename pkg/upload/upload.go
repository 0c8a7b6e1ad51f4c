// Package upload buffers raw media bytes from inbound requests before a
// platform client consumes them. Size and type limits live here, not in
// the OAuth core.
package upload

import (
	"context"
	"fmt"
	"io"
)

type Upload interface {
	Bytes() []byte
	MIMEType() string
	Filename() string
}

type Store interface {
	Put(ctx context.Context, r io.Reader, filename, mimeType string) (Upload, error)
}

type memoryUpload struct {
	data     []byte
	mimeType string
	filename string
}

func (u *memoryUpload) Bytes() []byte    { return u.data }
func (u *memoryUpload) MIMEType() string { return u.mimeType }
func (u *memoryUpload) Filename() string { return u.filename }

// MemoryStore keeps uploads in memory for the duration of one request.
type MemoryStore struct {
	maxBytes     int64
	allowedTypes map[string]bool // nil allows everything
}

func NewMemoryStore(maxBytes int64, allowedTypes []string) *MemoryStore {
	s := &MemoryStore{maxBytes: maxBytes}
	if len(allowedTypes) > 0 {
		s.allowedTypes = make(map[string]bool, len(allowedTypes))
		for _, t := range allowedTypes {
			s.allowedTypes[t] = true
		}
	}
	return s
}

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, filename, mimeType string) (Upload, error) {
	if s.allowedTypes != nil && !s.allowedTypes[mimeType] {
		return nil, fmt.Errorf("media type %q not allowed", mimeType)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("unable to buffer upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("upload exceeds %d byte limit", s.maxBytes)
	}

	return &memoryUpload{data: data, mimeType: mimeType, filename: filename}, nil
}
