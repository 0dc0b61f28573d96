package resolvable

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"
)

// fileCounter numbers synthetic file names across the whole process.
var fileCounter atomic.Uint64

// illegalNameChars are replaced in every file name because the core's
// filesystem or RetroArch itself rejects them.
var illegalNameChars = strings.NewReplacer(
	`"`, "-", "%", "-", "*", "-", "/", "-", ":", "-",
	"<", "-", ">", "-", "?", "-", `\`, "-", "|", "-",
)

// GenerateName returns a unique synthetic file name such as data3.bin.
func GenerateName() string {
	return fmt.Sprintf("data%d.bin", fileCounter.Add(1))
}

// ValidFileName derives a file name from a URL or plain name: the last path
// segment, percent-decoded, with illegal characters replaced by '-'. A
// synthetic name is returned when nothing usable remains.
func ValidFileName(raw string) string {
	name := sanitizeName(urlBaseName(raw))
	if name == "" {
		return GenerateName()
	}
	return name
}

func sanitizeName(name string) string {
	return illegalNameChars.Replace(name)
}

func urlBaseName(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		return ""
	}

	// Only absolute URLs carry a query or fragment; in a bare name '?' and
	// '#' are plain characters.
	pathname := raw
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		if u.Opaque != "" {
			pathname = u.Opaque
		} else {
			pathname = u.EscapedPath()
		}
	}

	name := pathname
	if strings.Contains(name, "/") {
		name = path.Base(name)
	}
	if name == "." || name == "/" {
		return ""
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return norm.NFC.String(name)
}

// splitName returns the base name and extension the way path parsing does,
// treating a leading dot as part of the name.
func splitName(name string) (string, string) {
	ext := path.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
