package ingest

import (
	"net/url"
	"path"
	"strings"
)

// extractPackagePath recognizes download-shaped request paths of the form
//
//	/packages/<source-type>/<index-letter>/<package-name>/<filename>
//
// and returns the package name and artifact filename. Anything else (index
// pages, API endpoints, arbitrary CDN traffic, paths that fail
// percent-decoding) reports ok=false. The grammar is deliberately narrow:
// unrecognized shapes are treated as non-downloads rather than guessed at.
func extractPackagePath(rawPath string) (pkg, filename string, ok bool) {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", "", false
	}
	if !strings.HasPrefix(decoded, "/packages/") {
		return "", "", false
	}
	segments := strings.Split(decoded[1:], "/")
	if len(segments) != 5 {
		return "", "", false
	}
	for _, s := range segments {
		if s == "" {
			return "", "", false
		}
	}
	return segments[3], segments[4], true
}

// packageVersion derives the release version from an artifact filename by
// stripping the distribution suffix and the "<package>-" prefix. A filename
// that does not carry the package prefix reports ok=false, turning the whole
// request into a non-download.
func packageVersion(pkg, filename string) (string, bool) {
	stem, matched := stripDistributionSuffix(filename)
	if !matched {
		// Unknown distribution suffix: drop a single trailing extension
		// so "pkg-1.0.rpm" still yields "1.0".
		stem = strings.TrimSuffix(stem, path.Ext(stem))
	}
	prefix := pkg + "-"
	if !strings.HasPrefix(stem, prefix) || len(stem) == len(prefix) {
		return "", false
	}
	return stem[len(prefix):], true
}
