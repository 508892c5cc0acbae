package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dl-alexandre/docloader/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadChunked_ReportsEveryChunk(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), utils.DownloadChunkSize*2+10)

	var calls []int64
	got, err := ReadChunked(context.Background(), bytes.NewReader(payload), "big.pdf", int64(len(payload)),
		func(name string, done, total int64) {
			assert.Equal(t, "big.pdf", name)
			assert.Equal(t, int64(len(payload)), total)
			calls = append(calls, done)
		})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []int64{utils.DownloadChunkSize, utils.DownloadChunkSize * 2, int64(len(payload))}, calls)
}

func TestReadChunked_Empty(t *testing.T) {
	var calls int
	got, err := ReadChunked(context.Background(), bytes.NewReader(nil), "empty.txt", 0, func(string, int64, int64) { calls++ })
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, calls)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadChunked_ReadError(t *testing.T) {
	_, err := ReadChunked(context.Background(), io.MultiReader(bytes.NewReader([]byte("abc")), failingReader{}), "x", -1, nil)
	require.EqualError(t, err, "connection reset")
}
