package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"
)

// ErrNonMonotonicRead reports a read issued at an offset at or before a
// span already consumed. Work units are sorted by ascending offset, so
// hitting this means the caller broke the forward-only contract.
var ErrNonMonotonicRead = errors.New("non-monotonic read offset")

// throttleChunk is the largest single read charged against the rate
// limiter, so a huge record doesn't exceed the limiter burst.
const throttleChunk = 64 * 1024

// Reader performs a single forward-only pass over one corpus file. It is
// scoped to a work unit's lifetime: open once, read every span in
// ascending offset order, close on every exit path.
type Reader struct {
	f       *os.File
	next    int64
	limiter *rate.Limiter
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithThrottle caps read throughput using the given limiter. Useful when
// many workers share a network filesystem.
func WithThrottle(limiter *rate.Limiter) ReaderOption {
	return func(r *Reader) {
		r.limiter = limiter
	}
}

// OpenReader opens a corpus file for one sequential pass.
func OpenReader(path string, opts ...ReaderOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	r := &Reader{f: f}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReadSpan reads exactly length bytes starting at offset. Offsets must be
// non-decreasing relative to the end of the previous span: the reader
// never seeks backward and never re-reads.
func (r *Reader) ReadSpan(ctx context.Context, offset, length int64) ([]byte, error) {
	if offset < r.next {
		return nil, fmt.Errorf("%w: offset %d after reading up to %d", ErrNonMonotonicRead, offset, r.next)
	}
	if offset > r.next {
		if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to offset %d: %w", offset, err)
		}
	}

	buf := make([]byte, length)
	for read := int64(0); read < length; {
		chunk := length - read
		if r.limiter != nil && chunk > throttleChunk {
			chunk = throttleChunk
		}
		if r.limiter != nil {
			if err := r.limiter.WaitN(ctx, int(chunk)); err != nil {
				return nil, err
			}
		}
		n, err := io.ReadFull(r.f, buf[read:read+chunk])
		read += int64(n)
		if err != nil {
			return nil, fmt.Errorf("reading %d bytes at offset %d: %w", length, offset, err)
		}
	}

	r.next = offset + length
	return buf, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
