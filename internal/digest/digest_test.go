package digest

import (
	"errors"
	"sort"
	"testing"
)

func TestKnownDigests(t *testing.T) {
	sha1, err := New("sha1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"1", "356a192b7913b04c54574d18c28d46e6395428ab"},
		{"1234567890", "01b307acba4f54f55aafc33bb06bbbf6ca803e9a"},
		{"abcdefghij", "d68c19a0a345b7eab78d5e11e991c026ec60db63"},
	}
	for _, tt := range tests {
		if got := sha1.Sum([]byte(tt.in)); got != tt.want {
			t.Errorf("Sum(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	sha256, err := New("sha256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := sha256.Sum(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("sha256 empty = %s", got)
	}
}

func TestHexLen(t *testing.T) {
	tests := map[string]int{
		"md5":         32,
		"sha1":        40,
		"sha224":      56,
		"sha256":      64,
		"sha384":      96,
		"sha512":      128,
		"sha512-224":  56,
		"sha512-256":  64,
		"sha3-224":    56,
		"sha3-256":    64,
		"sha3-384":    96,
		"sha3-512":    128,
		"blake2b-256": 64,
		"blake2b-384": 96,
		"blake2b-512": 128,
		"blake2s-256": 64,
		"blake3":      64,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := New(name)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if e.HexLen() != want {
				t.Errorf("HexLen = %d, want %d", e.HexLen(), want)
			}
			if got := len(e.Sum([]byte("x"))); got != want {
				t.Errorf("len(Sum) = %d, want %d", got, want)
			}
			if e.Name() != name {
				t.Errorf("Name = %q", e.Name())
			}
		})
	}
	if len(Algorithms()) != len(tests) {
		t.Errorf("Algorithms() has %d entries, want %d", len(Algorithms()), len(tests))
	}
}

func TestUnsupported(t *testing.T) {
	_, err := New("crc32")
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("err = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestStreamingMatchesSum(t *testing.T) {
	e, _ := New(Default)
	h := e.New()
	h.Write([]byte("abcdefghij"))
	h.Write([]byte("1234567890"))
	if got, want := e.Hex(h), "787d559439cfd927780996d2c78f635acca40c37"; got != want {
		t.Errorf("streamed = %s, want %s", got, want)
	}
}

func TestValid(t *testing.T) {
	e, _ := New("sha1")
	tests := []struct {
		in   string
		want bool
	}{
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", true},
		{"DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", false},
		{"da39a3ee5e6b4b0d3255bfef95601890afd8070", false},
		{"da39a3ee5e6b4b0d3255bfef95601890afd807090", false},
		{"za39a3ee5e6b4b0d3255bfef95601890afd80709", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := e.Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAlgorithmsSorted(t *testing.T) {
	names := Algorithms()
	if !sort.StringsAreSorted(names) {
		t.Errorf("not sorted: %v", names)
	}
}
