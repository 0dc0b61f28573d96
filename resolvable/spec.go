// Package resolvable turns the many shapes a caller can use to describe a
// file (inline text, raw bytes, URLs, requests, named content, suppliers)
// into a single resolved in-memory File.
package resolvable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/user-none/emweb/emuerr"
)

// Spec is a request to materialize a file. The concrete variants are Text,
// Bytes, Locator, Named, Supplier and *File.
type Spec interface {
	isSpec()
}

// Text is inline file content.
type Text string

// Bytes is raw file content.
type Bytes []byte

// Locator is a fetchable source, either a URL string or a prepared request.
type Locator struct {
	URL     string
	Request *http.Request
}

// Named pairs an explicit file name with any other spec.
type Named struct {
	Name    string
	Content Spec
}

// Supplier produces a value that is classified and resolved in turn.
type Supplier func(ctx context.Context) (any, error)

func (Text) isSpec()     {}
func (Bytes) isSpec()    {}
func (Locator) isSpec()  {}
func (Named) isSpec()    {}
func (Supplier) isSpec() {}
func (*File) isSpec()    {}

// String returns the URL the locator points at.
func (l Locator) String() string {
	if l.Request != nil && l.Request.URL != nil {
		return l.Request.URL.String()
	}
	return l.URL
}

var urlPrefixes = []string{"http://", "https://", "data:", "blob:", "./", "../"}

// maxSegmentLength bounds every path segment of a string treated as a locator.
// Longer segments mean the string is more likely inline content.
const maxSegmentLength = 100

// LooksLikeURL reports whether a string should be fetched rather than used
// as inline text.
func LooksLikeURL(s string) bool {
	for _, prefix := range urlPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "{") {
		return false
	}
	if strings.Contains(s, "\n") {
		return false
	}
	for _, segment := range strings.FieldsFunc(s, isSegmentSeparator) {
		if len(segment) >= maxSegmentLength {
			return false
		}
	}
	return true
}

func isSegmentSeparator(r rune) bool {
	return r == '/' || r == '?' || r == '#'
}

// Classify maps a caller supplied value to its Spec variant. It is called
// once at the API boundary so later stages never probe the value again.
func Classify(v any) (Spec, error) {
	switch value := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil file spec", emuerr.ErrInvalidInput)
	case Spec:
		if f, ok := value.(*File); ok && f == nil {
			return nil, fmt.Errorf("%w: nil file", emuerr.ErrInvalidInput)
		}
		return value, nil
	case string:
		if value == "" {
			return nil, fmt.Errorf("%w: empty string", emuerr.ErrInvalidInput)
		}
		if LooksLikeURL(value) {
			return Locator{URL: value}, nil
		}
		return Text(value), nil
	case []byte:
		return Bytes(value), nil
	case *url.URL:
		if value == nil {
			return nil, fmt.Errorf("%w: nil url", emuerr.ErrInvalidInput)
		}
		return Locator{URL: value.String()}, nil
	case *http.Request:
		if value == nil {
			return nil, fmt.Errorf("%w: nil request", emuerr.ErrInvalidInput)
		}
		return Locator{Request: value}, nil
	case *http.Response:
		if value == nil {
			return nil, fmt.Errorf("%w: nil response", emuerr.ErrInvalidInput)
		}
		return responseSpec(value), nil
	case map[string]any:
		return classifyObject(value)
	case func() any:
		return Supplier(func(context.Context) (any, error) { return value(), nil }), nil
	case func() (any, error):
		return Supplier(func(context.Context) (any, error) { return value() }), nil
	case func(context.Context) (any, error):
		return Supplier(value), nil
	case io.Reader:
		return Supplier(func(context.Context) (any, error) {
			data, err := io.ReadAll(value)
			if err != nil {
				return nil, fmt.Errorf("reading content: %w", err)
			}
			return Bytes(data), nil
		}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported file spec type %T", emuerr.ErrInvalidInput, v)
	}
}

// classifyObject accepts the structured {fileName, fileContent} shape used by
// script callers.
func classifyObject(object map[string]any) (Spec, error) {
	name, _ := firstString(object, "fileName", "name")
	content, ok := firstValue(object, "fileContent", "content")
	if !ok {
		return nil, fmt.Errorf("%w: structured file spec without content", emuerr.ErrInvalidInput)
	}
	inner, err := Classify(content)
	if err != nil {
		return nil, err
	}
	return Named{Name: name, Content: inner}, nil
}

func firstValue(object map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := object[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(object map[string]any, keys ...string) (string, bool) {
	v, ok := firstValue(object, keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func responseSpec(resp *http.Response) Spec {
	name := ""
	if resp.Request != nil && resp.Request.URL != nil {
		name = resp.Request.URL.String()
	}
	return Named{
		Name: name,
		Content: Supplier(func(context.Context) (any, error) {
			defer resp.Body.Close()
			if err := checkStatus(resp); err != nil {
				return nil, err
			}
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: reading response: %w", emuerr.ErrLoadFailure, err)
			}
			return Bytes(data), nil
		}),
	}
}
