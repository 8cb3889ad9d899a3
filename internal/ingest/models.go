package ingest

import "time"

// UserAgent holds the client metadata decoded from an access-log user-agent
// string. Empty string means the field could not be determined; the store
// layer maps empty fields to NULL.
type UserAgent struct {
	PythonVersion string
	PythonRelease string
	PythonType    string

	InstallerType    string
	InstallerVersion string

	OperatingSystem        string
	OperatingSystemVersion string
}

// Download is one package-download event extracted from a single log line.
// It is constructed once, handed to the dispatcher, and never read back.
type Download struct {
	PackageName      string
	PackageVersion   string
	DistributionType string // empty when the artifact suffix is unrecognized

	// DownloadTime is normalized to UTC and truncated to seconds.
	DownloadTime time.Time

	UserAgent UserAgent
}
