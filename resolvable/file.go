package resolvable

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/user-none/emweb/emuerr"
)

// DefaultMIMEType is used for files whose type is not given explicitly.
const DefaultMIMEType = "application/octet-stream"

// maxSupplierDepth limits how many suppliers may return further suppliers.
const maxSupplierDepth = 16

// File is a resolved, immutable in-memory file.
type File struct {
	name     string
	mimeType string
	data     []byte

	textOnce sync.Once
	text     string

	mu        sync.Mutex
	objectURL string
	minter    URLMinter
}

// NewFile wraps already available content. An empty name is replaced by a
// synthetic one.
func NewFile(name string, data []byte, mimeType string) *File {
	if name == "" {
		name = GenerateName()
	} else {
		name = ValidFileName(name)
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return &File{name: name, mimeType: mimeType, data: data}
}

// Name returns the sanitized file name.
func (f *File) Name() string { return f.name }

// BaseName returns the file name without its extension.
func (f *File) BaseName() string {
	base, _ := splitName(f.name)
	return base
}

// Extension returns the extension including the leading dot, or "".
func (f *File) Extension() string {
	_, ext := splitName(f.name)
	return ext
}

// MIMEType returns the content type used when minting object URLs.
func (f *File) MIMEType() string { return f.mimeType }

// Bytes returns the file content. The slice must not be modified.
func (f *File) Bytes() []byte { return f.data }

// Size returns the content length in bytes.
func (f *File) Size() int { return len(f.data) }

// Reader returns a fresh reader over the content.
func (f *File) Reader() *bytes.Reader { return bytes.NewReader(f.data) }

// Text returns the content decoded as UTF-8.
func (f *File) Text() string {
	f.textOnce.Do(func() {
		f.text = string(f.data)
	})
	return f.text
}

// ObjectURL returns a URL referencing the content, minting it on first use.
// The URL stays valid until Dispose is called.
func (f *File) ObjectURL(minter URLMinter) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.objectURL != "" {
		return f.objectURL, nil
	}
	if minter == nil {
		minter = DataURLMinter{}
	}
	u, err := minter.CreateObjectURL(f.data, f.mimeType)
	if err != nil {
		return "", fmt.Errorf("creating object url for %s: %w", f.name, err)
	}
	f.objectURL = u
	f.minter = minter
	return u, nil
}

// Dispose releases the object URL, if one was created.
func (f *File) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.objectURL == "" {
		return
	}
	f.minter.RevokeObjectURL(f.objectURL)
	f.objectURL = ""
	f.minter = nil
}

// URLMinter creates and revokes URLs that reference in-memory content.
type URLMinter interface {
	CreateObjectURL(data []byte, mimeType string) (string, error)
	RevokeObjectURL(u string)
}

// DataURLMinter mints self-contained data: URLs. Revocation is a no-op.
type DataURLMinter struct{}

// CreateObjectURL encodes data as a base64 data: URL.
func (DataURLMinter) CreateObjectURL(data []byte, mimeType string) (string, error) {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// RevokeObjectURL does nothing for data: URLs.
func (DataURLMinter) RevokeObjectURL(string) {}

// Option configures a resolution.
type Option func(*config)

type config struct {
	name     string
	mimeType string
	fetcher  Fetcher
}

// WithName sets the file name, overriding any derived name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithMIMEType sets the content type of the resolved file.
func WithMIMEType(mimeType string) Option {
	return func(c *config) { c.mimeType = mimeType }
}

// WithFetcher sets the fetcher used for locators.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *config) { c.fetcher = fetcher }
}

// Resolve classifies v and materializes it into a File.
func Resolve(ctx context.Context, v any, opts ...Option) (*File, error) {
	spec, err := Classify(v)
	if err != nil {
		return nil, err
	}
	return ResolveSpec(ctx, spec, opts...)
}

// ResolveSpec materializes an already classified spec into a File.
func ResolveSpec(ctx context.Context, spec Spec, opts ...Option) (*File, error) {
	cfg := config{mimeType: DefaultMIMEType}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fetcher == nil {
		cfg.fetcher = DefaultFetcher()
	}
	return resolve(ctx, spec, cfg, 0)
}

func resolve(ctx context.Context, spec Spec, cfg config, depth int) (*File, error) {
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	switch s := spec.(type) {
	case *File:
		return s, nil

	case Text:
		return newResolved(cfg.name, "", []byte(s), cfg.mimeType), nil

	case Bytes:
		return newResolved(cfg.name, "", s, cfg.mimeType), nil

	case Locator:
		return resolveLocator(ctx, s, cfg)

	case Named:
		if s.Content == nil {
			return nil, fmt.Errorf("%w: named file %q has no content", emuerr.ErrInvalidInput, s.Name)
		}
		if cfg.name == "" {
			cfg.name = s.Name
		}
		return resolve(ctx, s.Content, cfg, depth)

	case Supplier:
		if depth >= maxSupplierDepth {
			return nil, fmt.Errorf("%w: supplier chain too deep", emuerr.ErrInvalidInput)
		}
		v, err := s(ctx)
		if err != nil {
			return nil, err
		}
		next, err := Classify(v)
		if err != nil {
			return nil, err
		}
		return resolve(ctx, next, cfg, depth+1)

	default:
		return nil, fmt.Errorf("%w: unsupported file spec %T", emuerr.ErrInvalidInput, spec)
	}
}

func resolveLocator(ctx context.Context, loc Locator, cfg config) (*File, error) {
	target := loc.String()
	if target == "" {
		return nil, fmt.Errorf("%w: empty locator", emuerr.ErrInvalidInput)
	}

	if strings.HasPrefix(target, "data:") {
		data, mimeType, err := decodeDataURL(target)
		if err != nil {
			return nil, err
		}
		if cfg.mimeType == DefaultMIMEType && mimeType != "" {
			cfg.mimeType = mimeType
		}
		return newResolved(cfg.name, "", data, cfg.mimeType), nil
	}

	data, err := cfg.fetcher.Fetch(ctx, loc)
	if err != nil {
		if abortErr := emuerr.CheckAborted(ctx); abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}
	return newResolved(cfg.name, target, data, cfg.mimeType), nil
}

// newResolved names a file from the explicit name, then the source URL, then
// the synthetic counter.
func newResolved(name, source string, data []byte, mimeType string) *File {
	switch {
	case name != "":
		name = ValidFileName(name)
	case source != "":
		name = ValidFileName(source)
	default:
		name = GenerateName()
	}
	return &File{name: name, mimeType: mimeType, data: data}
}

func decodeDataURL(raw string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed data url", emuerr.ErrInvalidInput)
	}

	mimeType := header
	isBase64 := strings.HasSuffix(header, ";base64")
	if isBase64 {
		mimeType = strings.TrimSuffix(header, ";base64")
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: decoding data url: %w", emuerr.ErrInvalidInput, err)
		}
		return data, mimeType, nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decoding data url: %w", emuerr.ErrInvalidInput, err)
	}
	return []byte(text), mimeType, nil
}
