package upload

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePut(t *testing.T) {
	store := NewMemoryStore(1024, []string{"image/png"})

	up, err := store.Put(context.Background(), strings.NewReader("png bytes"), "pic.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), up.Bytes())
	assert.Equal(t, "image/png", up.MIMEType())
	assert.Equal(t, "pic.png", up.Filename())
}

func TestMemoryStoreRejectsType(t *testing.T) {
	store := NewMemoryStore(1024, []string{"image/png"})

	_, err := store.Put(context.Background(), strings.NewReader("exe"), "a.exe", "application/octet-stream")
	assert.Error(t, err)
}

func TestMemoryStoreRejectsOversize(t *testing.T) {
	store := NewMemoryStore(4, nil)

	_, err := store.Put(context.Background(), strings.NewReader("too large"), "big.bin", "video/mp4")
	assert.ErrorContains(t, err, "limit")
}
