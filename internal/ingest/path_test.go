package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractPackagePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		pkg      string
		filename string
		ok       bool
	}{
		{
			name:     "source artifact",
			path:     "/packages/source/I/INITools/INITools-0.2.tar.gz",
			pkg:      "INITools",
			filename: "INITools-0.2.tar.gz",
			ok:       true,
		},
		{
			name:     "wheel artifact",
			path:     "/packages/2.7/r/requests/requests-2.0.1-py2.py3-none-any.whl",
			pkg:      "requests",
			filename: "requests-2.0.1-py2.py3-none-any.whl",
			ok:       true,
		},
		{
			name:     "percent-encoded filename decodes",
			path:     "/packages/source/f/foo/foo-1.0%2Blocal.tar.gz",
			pkg:      "foo",
			filename: "foo-1.0+local.tar.gz",
			ok:       true,
		},
		{name: "index page", path: "/simple/icalendar/3.5", ok: false},
		{name: "api endpoint", path: "/pypi/INITools/json", ok: false},
		{name: "root", path: "/", ok: false},
		{name: "too few segments", path: "/packages/source/I/INITools", ok: false},
		{name: "too many segments", path: "/packages/source/I/INITools/extra/INITools-0.2.tar.gz", ok: false},
		{name: "empty segment", path: "/packages/source//INITools/INITools-0.2.tar.gz", ok: false},
		{name: "bad percent encoding", path: "/packages/source/I/INITools/INITools-%zz.tar.gz", ok: false},
		{name: "wrong category", path: "/mirrors/source/I/INITools/INITools-0.2.tar.gz", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, filename, ok := extractPackagePath(tt.path)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.pkg, pkg)
				require.Equal(t, tt.filename, filename)
			}
		})
	}
}

func TestPackageVersion(t *testing.T) {
	tests := []struct {
		name     string
		pkg      string
		filename string
		version  string
		ok       bool
	}{
		{name: "sdist", pkg: "INITools", filename: "INITools-0.2.tar.gz", version: "0.2", ok: true},
		{name: "wheel keeps tags", pkg: "requests", filename: "requests-2.0.1-py2.py3-none-any.whl", version: "2.0.1-py2.py3-none-any", ok: true},
		{name: "unknown suffix strips one extension", pkg: "foo", filename: "foo-1.0.rpm", version: "1.0", ok: true},
		{name: "prefix mismatch fails closed", pkg: "INITools", filename: "OtherTool-0.2.tar.gz", ok: false},
		{name: "bare package name without version", pkg: "foo", filename: "foo.tar.gz", ok: false},
		{name: "prefix only", pkg: "foo", filename: "foo-.tar.gz", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := packageVersion(tt.pkg, tt.filename)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.version, version)
			}
		})
	}
}
