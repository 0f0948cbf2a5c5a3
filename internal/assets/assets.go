// Package assets names captured resources and computes their storage paths.
// Names are derived from a hash of the source URL so repeat captures of the
// same resource land on the same file.
package assets

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"

	"styleclip/capture"
	"styleclip/internal/urlx"
)

// Naming implements capture.Namer.
type Naming struct{}

// NameFor derives a stable asset name from link. An explicit ext wins;
// otherwise the URL path extension is used, then the mime hint, and for data
// URLs the decoded content is sniffed.
func (Naming) NameFor(link, ext, prefix, mimeHint string) string {
	if ext == "" {
		ext = extensionFor(link, mimeHint)
	}
	name := hashName(link)
	if prefix != "" {
		name = prefix + "-" + name
	}
	if ext != "" {
		name += "." + ext
	}
	return name
}

// FilenameFor is the persistence destination for an asset.
func (Naming) FilenameFor(info capture.StorageInfo, assetName string) string {
	return path.Join(info.AssetFolder, assetName)
}

// PathFor is the reference the main document uses for an asset.
func (Naming) PathFor(info capture.StorageInfo, assetName string) string {
	return path.Join(info.AssetRelPath, assetName)
}

func hashName(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

func extensionFor(link, mimeHint string) string {
	if urlx.IsDataURL(link) {
		mime, data := DecodeDataURL(link)
		if e := extensionByMime(mime); e != "" {
			return e
		}
		if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
			return t.Extension
		}
		return ""
	}
	if u, err := url.Parse(link); err == nil {
		if e := strings.TrimPrefix(path.Ext(u.Path), "."); e != "" {
			return strings.ToLower(e)
		}
	}
	return extensionByMime(mimeHint)
}

// mimeExtensions covers the types seen in stylesheets; anything else falls
// back to the mime subtype.
var mimeExtensions = map[string]string{
	"text/css":                      "css",
	"image/jpeg":                    "jpg",
	"image/png":                     "png",
	"image/gif":                     "gif",
	"image/webp":                    "webp",
	"image/svg+xml":                 "svg",
	"image/x-icon":                  "ico",
	"image/vnd.microsoft.icon":      "ico",
	"font/woff":                     "woff",
	"font/woff2":                    "woff2",
	"font/ttf":                      "ttf",
	"font/otf":                      "otf",
	"application/font-woff":         "woff",
	"application/font-woff2":        "woff2",
	"application/x-font-ttf":        "ttf",
	"application/vnd.ms-fontobject": "eot",
}

func extensionByMime(mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(m, ';'); i != -1 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "" {
		return ""
	}
	if e, ok := mimeExtensions[m]; ok {
		return e
	}
	if i := strings.IndexByte(m, '/'); i != -1 {
		sub := m[i+1:]
		if sub != "" && !strings.ContainsAny(sub, "+.-") {
			return sub
		}
	}
	return ""
}

// DecodeDataURL splits a data URL into its media type and decoded payload.
// Malformed input yields an empty payload.
func DecodeDataURL(s string) (mime string, data []byte) {
	rest := s[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma == -1 {
		return "", nil
	}
	meta, payload := rest[:comma], rest[comma+1:]
	base64Encoded := false
	for i, part := range strings.Split(meta, ";") {
		if i == 0 {
			mime = strings.ToLower(strings.TrimSpace(part))
			continue
		}
		if strings.EqualFold(strings.TrimSpace(part), "base64") {
			base64Encoded = true
		}
	}
	if base64Encoded {
		if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return mime, b
		}
		return mime, nil
	}
	if unescaped, err := url.QueryUnescape(payload); err == nil {
		return mime, []byte(unescaped)
	}
	return mime, []byte(payload)
}
