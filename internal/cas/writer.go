package cas

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/scs/internal/observability"
)

// Put stores the stream read from r and returns its digest.
//
// Blocks already present are not rewritten. A stream of exactly one block
// produces no catalog; an empty stream produces an empty catalog.
func (s *Store) Put(ctx context.Context, r io.Reader) (_ string, err error) {
	op, ctx := observability.StartOperation(ctx, s.logger, s.metrics, "store",
		attribute.Int("block_size", s.blockSize),
		attribute.String("algorithm", s.engine.Name()),
	)
	defer func() { op.End(err) }()

	total := s.engine.New()
	var refs []string
	var size int64
	buf := make([]byte, s.blockSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			block := buf[:n]
			ref := s.engine.Sum(block)
			refs = append(refs, ref)
			total.Write(block)
			size += int64(n)
			s.metrics.AddBytes("in", n)
			if err := s.commitIfAbsent(ctx, blockName(ref), block, KindBlock); err != nil {
				return "", err
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("read input: %w", rerr)
		}
	}

	d := s.engine.Hex(total)
	op.Span().SetAttributes(
		attribute.String("digest", d),
		attribute.Int("blocks", len(refs)),
		attribute.Int64("bytes", size),
	)

	if len(refs) != 1 {
		// A block under the same digest already represents the stream.
		isBlock, err := s.backend.Exists(ctx, blockName(d))
		if err != nil {
			return "", fmt.Errorf("exists %s: %w", blockName(d), err)
		}
		if isBlock {
			s.logger.DebugContext(ctx, "stream already stored as a block, skipping catalog", "digest", d)
		} else if err := s.commitIfAbsent(ctx, catalogName(d), encodeCatalog(refs), KindCatalog); err != nil {
			return "", err
		}
	}

	s.logger.DebugContext(ctx, "stream stored", "digest", d, "blocks", len(refs), "bytes", size)
	return d, nil
}
