package ingest

import (
	"strings"
	"time"
)

// Field positions in a CDN access line:
//
//	timestamp node service[pid]: client_ip "ref-date" "referer"
//	"METHOD path PROTOCOL" status bytes_sent bytes_total cache_status ttl
//	"x1" "x2" "user-agent"
//
// Some emitters leave the protocol outside the quoted request field, which
// shifts everything after it by one; the parser only relies on the timestamp,
// the request field, and the trailing user-agent, so both shapes are accepted.
const (
	fieldTimestamp = 0
	fieldRequest   = 6
	minLineFields  = 14
)

// LineParser converts raw access-log lines into download events. Every kind
// of failure (malformed quoting, missing fields, bad timestamp, a path that
// is not a package artifact) reports ok=false; nothing here ever errors.
type LineParser struct {
	ua *UserAgentParser
}

func NewLineParser() *LineParser {
	return &LineParser{ua: NewUserAgentParser()}
}

// Parse processes one line. It returns the download event and true when the
// line records a package download, and (nil, false) for everything else.
func (p *LineParser) Parse(line string) (*Download, bool) {
	fields, ok := tokenize(line)
	if !ok || len(fields) < minLineFields {
		return nil, false
	}

	downloadTime, err := time.Parse(time.RFC3339, fields[fieldTimestamp])
	if err != nil {
		return nil, false
	}
	downloadTime = downloadTime.UTC().Truncate(time.Second)

	_, reqPath, ok := parseRequestLine(fields[fieldRequest])
	if !ok {
		return nil, false
	}

	pkg, filename, ok := extractPackagePath(reqPath)
	if !ok {
		return nil, false
	}
	version, ok := packageVersion(pkg, filename)
	if !ok {
		return nil, false
	}

	return &Download{
		PackageName:      pkg,
		PackageVersion:   version,
		DistributionType: ClassifyDistribution(filename),
		DownloadTime:     downloadTime,
		UserAgent:        p.ua.Parse(fields[len(fields)-1]),
	}, true
}

// parseRequestLine splits the quoted request field into method and path. Two
// tokens (protocol outside the quotes) and three tokens (protocol inside) are
// both well formed.
func parseRequestLine(request string) (method, path string, ok bool) {
	parts := strings.Fields(request)
	if len(parts) != 2 && len(parts) != 3 {
		return "", "", false
	}
	if !strings.HasPrefix(parts[1], "/") {
		return "", "", false
	}
	return parts[0], parts[1], true
}
