package resolvable

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/retroenv/retrogolib/assert"
	"github.com/user-none/emweb/emuerr"
)

func TestLooksLikeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"http", "http://example.com/a.nes", true},
		{"https", "https://example.com/a.nes", true},
		{"data", "data:text/plain,hi", true},
		{"blob", "blob:https://example.com/1234", true},
		{"dot relative", "./roms/a.nes", true},
		{"parent relative", "../roms/a.nes", true},
		{"plain name", "game.nes", true},
		{"hash", "#reference \"x\"", false},
		{"json", "{\"a\":1}", false},
		{"multi line", "a = 1\nb = 2", false},
		{"long segment", strings.Repeat("a", 100), false},
		{"short segments", strings.Repeat("a", 99) + "/" + strings.Repeat("b", 99), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeURL(tt.input))
		})
	}
}

func TestClassify(t *testing.T) {
	u, _ := url.Parse("https://example.com/game.nes")
	req := httptest.NewRequest(http.MethodGet, "https://example.com/x.bin", nil)

	tests := []struct {
		name  string
		input any
		check func(t *testing.T, s Spec)
	}{
		{"text", "a = 1\n", func(t *testing.T, s Spec) {
			_, ok := s.(Text)
			assert.True(t, ok)
		}},
		{"locator string", "game.nes", func(t *testing.T, s Spec) {
			loc, ok := s.(Locator)
			assert.True(t, ok)
			assert.Equal(t, "game.nes", loc.URL)
		}},
		{"bytes", []byte{1, 2}, func(t *testing.T, s Spec) {
			_, ok := s.(Bytes)
			assert.True(t, ok)
		}},
		{"url", u, func(t *testing.T, s Spec) {
			loc, ok := s.(Locator)
			assert.True(t, ok)
			assert.Equal(t, "https://example.com/game.nes", loc.String())
		}},
		{"request", req, func(t *testing.T, s Spec) {
			loc, ok := s.(Locator)
			assert.True(t, ok)
			assert.Equal(t, "https://example.com/x.bin", loc.String())
		}},
		{"object", map[string]any{"fileName": "a.nes", "fileContent": []byte{1}}, func(t *testing.T, s Spec) {
			named, ok := s.(Named)
			assert.True(t, ok)
			assert.Equal(t, "a.nes", named.Name)
		}},
		{"supplier", func() any { return "x" }, func(t *testing.T, s Spec) {
			_, ok := s.(Supplier)
			assert.True(t, ok)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Classify(tt.input)
			assert.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestClassifyInvalid(t *testing.T) {
	for _, input := range []any{nil, 42, "", map[string]any{"fileName": "x"}} {
		_, err := Classify(input)
		assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
	}
}

func TestValidFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"game.nes", "game.nes"},
		{"https://example.com/roms/Super%20Game.sfc?x=1", "Super Game.sfc"},
		{"./roms/a.gb", "a.gb"},
		{`a<b*c>.nes`, "a-b-c-.nes"},
		{"100%.nes", "100-.nes"},
		{`pipe|quote".bin`, "pipe-quote-.bin"},
		{"What?.nes", "What-.nes"},
		{"Track #1.nes", "Track #1.nes"},
		{"a?b#c.sfc", "a-b#c.sfc"},
		{"https://example.com/roms/What%3F.nes#top", "What-.nes"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFileName(tt.input))
		})
	}
}

func TestValidFileNameFallback(t *testing.T) {
	first := ValidFileName("https://example.com/")
	second := ValidFileName("data:text/plain,hello")
	assert.True(t, strings.HasPrefix(first, "data"))
	assert.True(t, strings.HasSuffix(first, ".bin"))
	assert.True(t, first != second)
}

func TestResolveNamedKeepsExtension(t *testing.T) {
	f, err := Resolve(context.Background(), Named{Name: "What?.nes", Content: Bytes{1}})
	assert.NoError(t, err)
	assert.Equal(t, "What-.nes", f.Name())
	assert.Equal(t, ".nes", f.Extension())
}

func TestFileNameParts(t *testing.T) {
	f := NewFile("Mario Bros.nes", nil, "")
	assert.Equal(t, "Mario Bros", f.BaseName())
	assert.Equal(t, ".nes", f.Extension())
	assert.Equal(t, DefaultMIMEType, f.MIMEType())

	dot := NewFile(".config", nil, "")
	assert.Equal(t, ".config", dot.BaseName())
	assert.Equal(t, "", dot.Extension())
}

func TestResolveStableName(t *testing.T) {
	ctx := context.Background()
	fetcher := FetcherFunc(func(context.Context, Locator) ([]byte, error) {
		return []byte("rom"), nil
	})

	a, err := Resolve(ctx, "https://example.com/roms/game.nes", WithFetcher(fetcher))
	assert.NoError(t, err)
	b, err := Resolve(ctx, "https://example.com/roms/game.nes", WithFetcher(fetcher))
	assert.NoError(t, err)
	assert.Equal(t, "game.nes", a.Name())
	assert.Equal(t, a.Name(), b.Name())
	assert.Equal(t, "rom", a.Text())
}

func TestResolveNamedAndSupplier(t *testing.T) {
	ctx := context.Background()

	f, err := Resolve(ctx, Named{Name: "bios/scph.bin", Content: Bytes{1, 2, 3}})
	assert.NoError(t, err)
	assert.Equal(t, "scph.bin", f.Name())
	assert.Equal(t, 3, f.Size())

	calls := 0
	supplier := Supplier(func(context.Context) (any, error) {
		calls++
		return func() any { return []byte{9} }, nil
	})
	f, err = Resolve(ctx, supplier, WithName("x.bin"))
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []byte{9}, f.Bytes())
	assert.Equal(t, "x.bin", f.Name())
}

func TestResolveDataURL(t *testing.T) {
	f, err := Resolve(context.Background(), "data:text/plain;base64,aGVsbG8=")
	assert.NoError(t, err)
	assert.Equal(t, "hello", f.Text())
	assert.Equal(t, "text/plain", f.MIMEType())
	assert.True(t, strings.HasPrefix(f.Name(), "data"))
}

func TestResolveAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, Bytes{1})
	assert.True(t, errors.Is(err, emuerr.ErrAborted))
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/core.js":
			_, _ = w.Write([]byte("var Module"))
		case "/packed.wasm":
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			_, _ = bw.Write([]byte("wasm-bytes"))
			_ = bw.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL + "/")
	fetcher := NewHTTPFetcher(WithClient(server.Client()), WithBaseURL(base), WithCacheSize(4))
	ctx := context.Background()

	f, err := Resolve(ctx, "./core.js", WithFetcher(fetcher))
	assert.NoError(t, err)
	assert.Equal(t, "core.js", f.Name())
	assert.Equal(t, "var Module", f.Text())

	_, err = Resolve(ctx, "./core.js", WithFetcher(fetcher))
	assert.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	f, err = Resolve(ctx, server.URL+"/packed.wasm", WithFetcher(fetcher))
	assert.NoError(t, err)
	assert.Equal(t, "wasm-bytes", f.Text())

	_, err = Resolve(ctx, server.URL+"/missing.bin", WithFetcher(fetcher))
	assert.True(t, errors.Is(err, emuerr.ErrLoadFailure))
}

type recordingMinter struct {
	created int
	revoked []string
}

func (m *recordingMinter) CreateObjectURL(data []byte, _ string) (string, error) {
	m.created++
	return "blob:test/" + string(data), nil
}

func (m *recordingMinter) RevokeObjectURL(u string) {
	m.revoked = append(m.revoked, u)
}

func TestObjectURLLifecycle(t *testing.T) {
	minter := &recordingMinter{}
	f := NewFile("a.js", []byte("x"), "application/javascript")

	first, err := f.ObjectURL(minter)
	assert.NoError(t, err)
	second, err := f.ObjectURL(minter)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, minter.created)

	f.Dispose()
	f.Dispose()
	assert.Equal(t, []string{"blob:test/x"}, minter.revoked)
}

func TestDataURLMinter(t *testing.T) {
	u, err := DataURLMinter{}.CreateObjectURL([]byte("hi"), "text/plain")
	assert.NoError(t, err)
	f, err := Resolve(context.Background(), u)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("hi"), f.Bytes()))
}
