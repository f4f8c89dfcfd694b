package cas

import (
	"fmt"
	"strings"
)

// encodeCatalog renders block digests as catalog content.
func encodeCatalog(refs []string) []byte {
	var b strings.Builder
	for _, ref := range refs {
		b.WriteString(ref)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// parseCatalog splits catalog content into fixed-width "<digest>\n" records.
func (s *Store) parseCatalog(d string, data []byte) ([]string, error) {
	width := s.engine.HexLen() + 1
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: %s: length %d is not a multiple of %d", ErrMalformedCatalog, catalogName(d), len(data), width)
	}
	refs := make([]string, 0, len(data)/width)
	for off := 0; off < len(data); off += width {
		rec := data[off : off+width]
		ref := string(rec[:width-1])
		if rec[width-1] != '\n' || !s.engine.Valid(ref) {
			return nil, fmt.Errorf("%w: %s: bad record at offset %d", ErrMalformedCatalog, catalogName(d), off)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
