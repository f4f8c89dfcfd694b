package cas

import "errors"

var (
	// ErrInvalidDigest indicates a digest argument of the wrong length or alphabet.
	ErrInvalidDigest = errors.New("invalid digest")

	// ErrUnknownDigest indicates a well-formed digest with no block or catalog.
	ErrUnknownDigest = errors.New("unknown digest")

	// ErrChecksumMismatch indicates recovered bytes that do not hash to the
	// requested digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrRedundantObject indicates a digest stored as both a block and a catalog.
	ErrRedundantObject = errors.New("redundant object")

	// ErrNotImplemented is returned for garbage collection modes other than AllRoots.
	ErrNotImplemented = errors.New("not implemented")

	// ErrMalformedCatalog indicates a catalog whose content is not a sequence
	// of digest records.
	ErrMalformedCatalog = errors.New("malformed catalog")

	// ErrMissingBlock indicates a catalog that references an absent block.
	ErrMissingBlock = errors.New("missing block")
)
