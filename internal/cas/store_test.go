package cas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/backend/memory"
	"github.com/gezibash/scs/internal/digest"
)

const (
	dEmpty      = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	d1          = "356a192b7913b04c54574d18c28d46e6395428ab"
	d123456789  = "f7c3bc1d808e04732adf679965ccc34ca7ae3441"
	d1234567890 = "01b307acba4f54f55aafc33bb06bbbf6ca803e9a"
	d11         = "266dc053a8163e676e83243070241c8917f8a8a3"
	dAbc19      = "691bef900d9d408fb4c74f9f503ccd79ab440c4b"
	dAbc20      = "787d559439cfd927780996d2c78f635acca40c37"
	dAbc21      = "7ff1b2bc3f8b9f0f40260f91714bc4d2250aab84"
	dAbcdefghij = "d68c19a0a345b7eab78d5e11e991c026ec60db63"
)

var fixture = []struct {
	content string
	digest  string
}{
	{"", dEmpty},
	{"1", d1},
	{"123456789", d123456789},
	{"1234567890", d1234567890},
	{"12345678901", d11},
	{"abcdefghij123456789", dAbc19},
	{"abcdefghij1234567890", dAbc20},
	{"abcdefghij12345678901", dAbc21},
}

func newBackend(t *testing.T) backend.Backend {
	t.Helper()
	b, err := memory.NewFactory(context.Background(), nil)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newStore(t *testing.T, b backend.Backend, blockSize int) *Store {
	t.Helper()
	engine, err := digest.New("sha1")
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(b, engine, WithBlockSize(blockSize))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func put(t *testing.T, s *Store, content string) string {
	t.Helper()
	d, err := s.Put(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Put(%q): %v", content, err)
	}
	return d
}

func readObject(t *testing.T, b backend.Backend, name string) string {
	t.Helper()
	data, err := b.Read(context.Background(), name)
	if err != nil {
		t.Fatalf("Read(%s): %v", name, err)
	}
	return string(data)
}

func listNames(t *testing.T, b backend.Backend) []string {
	t.Helper()
	names, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(names)
	return names
}

func TestFixtureLayout(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)

	for _, f := range fixture {
		if got := put(t, s, f.content); got != f.digest {
			t.Errorf("Put(%q) = %s, want %s", f.content, got, f.digest)
		}
	}

	want := map[string]string{
		d1 + ".bin":          "1",
		d123456789 + ".bin":  "123456789",
		d1234567890 + ".bin": "1234567890",
		dAbcdefghij + ".bin": "abcdefghij",
		dEmpty + ".cat":      "",
		d11 + ".cat":         d1234567890 + "\n" + d1 + "\n",
		dAbc19 + ".cat":      dAbcdefghij + "\n" + d123456789 + "\n",
		dAbc20 + ".cat":      dAbcdefghij + "\n" + d1234567890 + "\n",
		dAbc21 + ".cat":      dAbcdefghij + "\n" + d1234567890 + "\n" + d1 + "\n",
	}
	names := listNames(t, b)
	if len(names) != len(want) {
		t.Errorf("objects = %v, want %d entries", names, len(want))
	}
	for name, content := range want {
		if got := readObject(t, b, name); got != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}

	for _, f := range fixture {
		got, err := s.Get(context.Background(), f.digest)
		if err != nil {
			t.Fatalf("Get(%s): %v", f.digest, err)
		}
		if string(got) != f.content {
			t.Errorf("Get(%s) = %q, want %q", f.digest, got, f.content)
		}
	}

	report, err := s.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Blocks != 4 || report.Catalogs != 5 {
		t.Errorf("report = %+v, want 4 blocks and 5 catalogs", report)
	}
}

func TestRoundTrip(t *testing.T) {
	const bs = 16
	s := newStore(t, newBackend(t), bs)
	rng := rand.New(rand.NewSource(1))

	for _, size := range []int{0, 1, bs - 1, bs, bs + 1, 2*bs - 1, 2 * bs, 2*bs + 1, 5*bs + 3} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			data := make([]byte, size)
			rng.Read(data)

			d, err := s.Put(context.Background(), bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if want := s.Engine().Sum(data); d != want {
				t.Errorf("digest = %s, want %s", d, want)
			}
			got, err := s.Get(context.Background(), d)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("round trip mismatch for %d bytes", size)
			}
		})
	}
}

func TestIdempotentStore(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)

	first := put(t, s, "abcdefghij12345678901")
	before := listNames(t, b)
	second := put(t, s, "abcdefghij12345678901")
	after := listNames(t, b)

	if first != second {
		t.Errorf("digests differ: %s vs %s", first, second)
	}
	if !slices.Equal(before, after) {
		t.Errorf("objects changed: %v -> %v", before, after)
	}
}

func TestSingleBlockRule(t *testing.T) {
	for _, content := range []string{"1", "123456789", "1234567890"} {
		b := newBackend(t)
		s := newStore(t, b, 10)
		d := put(t, s, content)

		names := listNames(t, b)
		if len(names) != 1 || names[0] != d+".bin" {
			t.Errorf("Put(%q) objects = %v, want [%s.bin]", content, names, d)
		}
	}
}

func TestEmptyInputCatalog(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	if d := put(t, s, ""); d != dEmpty {
		t.Fatalf("digest = %s", d)
	}
	names := listNames(t, b)
	if len(names) != 1 || names[0] != dEmpty+".cat" {
		t.Errorf("objects = %v", names)
	}
	got, err := s.Get(context.Background(), dEmpty)
	if err != nil || len(got) != 0 {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestElevenBytes(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	if d := put(t, s, "12345678901"); d != d11 {
		t.Fatalf("digest = %s, want %s", d, d11)
	}
	want := []string{d1234567890 + ".bin", d11 + ".cat", d1 + ".bin"}
	slices.Sort(want)
	if got := listNames(t, b); !slices.Equal(got, want) {
		t.Errorf("objects = %v, want %v", got, want)
	}
	if got := readObject(t, b, d11+".cat"); got != d1234567890+"\n"+d1+"\n" {
		t.Errorf("catalog = %q", got)
	}
}

func TestShortReadsDoNotSplitBlocks(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	d, err := s.Put(context.Background(), iotest.OneByteReader(strings.NewReader("abcdefghij12345678901")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if d != dAbc21 {
		t.Errorf("digest = %s, want %s", d, dAbc21)
	}
	if got := len(listNames(t, b)); got != 4 {
		t.Errorf("object count = %d, want 4", got)
	}
}

func TestPutReadError(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	boom := errors.New("boom")
	_, err := s.Put(context.Background(), iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestPutCanceled(t *testing.T) {
	s := newStore(t, newBackend(t), 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCorruptionDetected(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	for _, f := range fixture {
		put(t, s, f.content)
	}
	if err := b.Write(context.Background(), d1234567890+".bin", []byte("0987654321")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(context.Background(), d11); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Get = %v, want ErrChecksumMismatch", err)
	}
	if _, err := s.Check(context.Background()); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Check = %v, want ErrChecksumMismatch", err)
	}
	// Content not depending on the block still loads.
	if _, err := s.Get(context.Background(), dAbc19); err != nil {
		t.Errorf("Get unaffected digest: %v", err)
	}
}

func TestRedundancyDetected(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	d := put(t, s, "1234567890")
	if err := b.Write(context.Background(), d+".cat", []byte(d+"\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Check(context.Background()); !errors.Is(err, ErrRedundantObject) {
		t.Errorf("Check = %v, want ErrRedundantObject", err)
	}
}

func TestCatalogSkippedWhenStoredAsBlock(t *testing.T) {
	b := newBackend(t)
	large := newStore(t, b, 20)
	small := newStore(t, b, 10)

	put(t, large, "12345678901")
	put(t, small, "12345678901")

	if ok, _ := b.Exists(context.Background(), d11+".cat"); ok {
		t.Error("catalog written although the digest is stored as a block")
	}
	if _, err := small.Check(context.Background()); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestLoadInvalidDigest(t *testing.T) {
	s := newStore(t, newBackend(t), 10)
	for _, d := range []string{"", "xyz", strings.ToUpper(d1), d1 + "0", d1[:39], "g" + d1[1:]} {
		if _, err := s.Load(context.Background(), d); !errors.Is(err, ErrInvalidDigest) {
			t.Errorf("Load(%q) = %v, want ErrInvalidDigest", d, err)
		}
	}
}

func TestLoadUnknownDigest(t *testing.T) {
	s := newStore(t, newBackend(t), 10)
	if _, err := s.Load(context.Background(), d1); !errors.Is(err, ErrUnknownDigest) {
		t.Errorf("Load = %v, want ErrUnknownDigest", err)
	}
}

func TestReaderVerifiesOnlyWhenDrained(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	put(t, s, "abcdefghij12345678901")

	r, err := s.Load(context.Background(), dAbc21)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Blocks(); !slices.Equal(got, []string{dAbcdefghij, d1234567890, d1}) {
		t.Errorf("Blocks = %v", got)
	}
	chunk, err := r.Next()
	if err != nil || string(chunk) != "abcdefghij" {
		t.Fatalf("Next = %q, %v", chunk, err)
	}
	if r.Verified() {
		t.Error("Verified before drain")
	}
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if !r.Verified() {
		t.Error("not Verified after drain")
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after EOF = %v", err)
	}

	// A fresh Load restarts the sequence.
	r2, err := s.Load(context.Background(), dAbc21)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := r2.WriteTo(&buf)
	if err != nil || n != 21 || buf.String() != "abcdefghij12345678901" {
		t.Errorf("WriteTo = %d, %q, %v", n, buf.String(), err)
	}
}

func TestMalformedCatalog(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	tests := map[string]string{
		"short record": "abc\n",
		"no newline":   d1 + "x",
		"uppercase":    strings.ToUpper(d1) + "\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if err := b.Write(context.Background(), d11+".cat", []byte(content)); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Load(context.Background(), d11); !errors.Is(err, ErrMalformedCatalog) {
				t.Errorf("Load = %v, want ErrMalformedCatalog", err)
			}
		})
	}
}

func TestMissingBlock(t *testing.T) {
	b := newBackend(t)
	s := newStore(t, b, 10)
	put(t, s, "12345678901")
	if err := b.Remove(context.Background(), d1+".bin"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), d11); !errors.Is(err, ErrMissingBlock) {
		t.Errorf("Get = %v, want ErrMissingBlock", err)
	}
	if _, err := s.Check(context.Background()); !errors.Is(err, ErrMissingBlock) {
		t.Errorf("Check = %v, want ErrMissingBlock", err)
	}
}

func TestNewValidation(t *testing.T) {
	engine, _ := digest.New("sha1")
	b := newBackend(t)
	if _, err := New(b, engine, WithBlockSize(0)); err == nil {
		t.Error("block size 0 accepted")
	}
	if _, err := New(b, engine, WithBlockSize(-1)); err == nil {
		t.Error("negative block size accepted")
	}
	if _, err := New(nil, engine); err == nil {
		t.Error("nil backend accepted")
	}
	if _, err := New(b, nil); err == nil {
		t.Error("nil engine accepted")
	}
	s, err := New(b, engine)
	if err != nil {
		t.Fatal(err)
	}
	if s.BlockSize() != DefaultBlockSize {
		t.Errorf("BlockSize = %d", s.BlockSize())
	}
}

func TestOtherAlgorithm(t *testing.T) {
	engine, err := digest.New("blake3")
	if err != nil {
		t.Fatal(err)
	}
	b := newBackend(t)
	s, err := New(b, engine, WithBlockSize(4))
	if err != nil {
		t.Fatal(err)
	}
	d, err := s.Put(context.Background(), strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if len(d) != 64 {
		t.Errorf("digest length = %d, want 64", len(d))
	}
	got, err := s.Get(context.Background(), d)
	if err != nil || string(got) != "hello world" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := s.Check(context.Background()); err != nil {
		t.Errorf("Check: %v", err)
	}
}
