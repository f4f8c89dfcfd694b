package cas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/observability"
)

// Load resolves d to its blocks and returns a Reader over them.
//
// The content is verified against d only once the Reader is drained:
// a caller that stops early has read unverified bytes.
func (s *Store) Load(ctx context.Context, d string) (_ *Reader, err error) {
	op, ctx := observability.StartOperation(ctx, s.logger, s.metrics, "load",
		attribute.String("digest", d))
	defer func() { op.End(err) }()

	if !s.engine.Valid(d) {
		return nil, fmt.Errorf("%w: %q (want %d lowercase hex characters)", ErrInvalidDigest, d, s.engine.HexLen())
	}

	blocks, err := s.resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	op.Span().SetAttributes(attribute.Int("blocks", len(blocks)))

	return &Reader{
		ctx:    ctx,
		store:  s,
		digest: d,
		blocks: blocks,
		hash:   s.engine.New(),
	}, nil
}

// resolve returns the block digests making up d.
func (s *Store) resolve(ctx context.Context, d string) ([]string, error) {
	ok, err := s.backend.Exists(ctx, blockName(d))
	if err != nil {
		return nil, fmt.Errorf("exists %s: %w", blockName(d), err)
	}
	if ok {
		return []string{d}, nil
	}

	data, err := s.backend.Read(ctx, catalogName(d))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDigest, d)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", catalogName(d), err)
	}
	return s.parseCatalog(d, data)
}

// Get loads d and drains it into memory.
func (s *Store) Get(ctx context.Context, d string) ([]byte, error) {
	r, err := s.Load(ctx, d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader yields the blocks of one digest in order and verifies the
// running hash after the last one. It is not safe for concurrent use.
type Reader struct {
	ctx    context.Context
	store  *Store
	digest string
	blocks []string
	next   int
	hash   hash.Hash
	n      int64
	err    error
}

// Digest returns the digest being read.
func (r *Reader) Digest() string { return r.digest }

// Blocks returns the block digests the content is assembled from.
func (r *Reader) Blocks() []string { return r.blocks }

// Verified reports whether the content has been fully read and matched.
func (r *Reader) Verified() bool { return errors.Is(r.err, io.EOF) }

// Next returns the next block. After the last block it returns io.EOF if
// the content hashed to the digest, or an error wrapping
// ErrChecksumMismatch. Errors are sticky.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.next == len(r.blocks) {
		r.err = r.verify()
		return nil, r.err
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return nil, err
	}

	ref := r.blocks[r.next]
	data, err := r.store.backend.Read(r.ctx, blockName(ref))
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			err = fmt.Errorf("%w: %s referenced by %s", ErrMissingBlock, blockName(ref), catalogName(r.digest))
		} else {
			err = fmt.Errorf("read %s: %w", blockName(ref), err)
		}
		r.err = err
		r.store.metrics.CountError("load", "read")
		return nil, err
	}
	r.next++
	r.hash.Write(data)
	r.n += int64(len(data))
	r.store.metrics.AddBytes("out", len(data))
	return data, nil
}

func (r *Reader) verify() error {
	got := r.store.engine.Hex(r.hash)
	if got != r.digest {
		r.store.metrics.CountError("load", "checksum")
		r.store.logger.DebugContext(r.ctx, "checksum mismatch", "digest", r.digest, "got", got)
		return fmt.Errorf("%w: %s: content hashes to %s", ErrChecksumMismatch, r.digest, got)
	}
	r.store.logger.DebugContext(r.ctx, "content verified", "digest", r.digest, "bytes", r.n)
	return io.EOF
}

// WriteTo drains the Reader into w. It returns nil only if the content
// was verified.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}
