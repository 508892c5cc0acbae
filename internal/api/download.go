package api

import (
	"bytes"
	"context"
	"io"

	"github.com/dl-alexandre/docloader/internal/utils"
)

// ReadChunked drains r in DownloadChunkSize reads, reporting progress after
// each chunk. total may be -1 when the size is unknown.
func ReadChunked(ctx context.Context, r io.Reader, name string, total int64, progress func(name string, done, total int64)) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, utils.DownloadChunkSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			done += int64(n)
			if progress != nil {
				progress(name, done, total)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if progress != nil && done == 0 {
		progress(name, 0, total)
	}
	return buf.Bytes(), nil
}
