// Package digest resolves a named hash algorithm once and produces the
// lowercase hex names used for content-addressed objects.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Default is the algorithm used when none is configured.
const Default = "sha1"

// ErrUnsupportedAlgorithm is returned by New for names outside the fixed set.
var ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

var algorithms = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512-224": sha512.New512_224,
	"sha512-256": sha512.New512_256,
	"sha3-224":   sha3.New224,
	"sha3-256":   sha3.New256,
	"sha3-384":   sha3.New384,
	"sha3-512":   sha3.New512,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	"blake2b-384": func() hash.Hash {
		h, _ := blake2b.New384(nil)
		return h
	},
	"blake2b-512": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake2s-256": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
	"blake3": func() hash.Hash { return blake3.New() },
}

// Algorithms returns the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine computes digests with one fixed algorithm.
type Engine struct {
	name   string
	newFn  func() hash.Hash
	hexLen int
}

// New resolves name to an Engine.
func New(name string) (*Engine, error) {
	fn, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedAlgorithm, name, strings.Join(Algorithms(), ", "))
	}
	return &Engine{name: name, newFn: fn, hexLen: fn().Size() * 2}, nil
}

// Name returns the algorithm name.
func (e *Engine) Name() string { return e.name }

// HexLen is the length of every digest this engine produces.
func (e *Engine) HexLen() int { return e.hexLen }

// New returns a fresh hash state.
func (e *Engine) New() hash.Hash { return e.newFn() }

// Sum returns the digest of data.
func (e *Engine) Sum(data []byte) string {
	h := e.newFn()
	h.Write(data)
	return e.Hex(h)
}

// Hex finalizes h as lowercase hex.
func (e *Engine) Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether s has the engine's length and is lowercase hex.
func (e *Engine) Valid(s string) bool {
	if len(s) != e.hexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
