package ingest

import "strings"

// Distribution type tags persisted with a download.
const (
	DistSdist = "sdist"
	DistWheel = "wheel"
	DistEgg   = "egg"
	DistExe   = "exe"
	DistMsi   = "msi"
	DistDmg   = "dmg"
)

// suffixRule maps one artifact filename suffix to a distribution type.
type suffixRule struct {
	suffix string
	dist   string
}

// distributionSuffixes is evaluated in order; compound suffixes come first so
// ".tar.gz" wins over any shorter overlapping entry.
var distributionSuffixes = []suffixRule{
	{".tar.gz", DistSdist},
	{".tar.bz2", DistSdist},
	{".tgz", DistSdist},
	{".zip", DistSdist},
	{".whl", DistWheel},
	{".egg", DistEgg},
	{".exe", DistExe},
	{".msi", DistMsi},
	{".dmg", DistDmg},
}

// ClassifyDistribution maps an artifact filename to its distribution type.
// Unrecognized filenames yield the empty string, which is not an error.
func ClassifyDistribution(filename string) string {
	for _, rule := range distributionSuffixes {
		if strings.HasSuffix(filename, rule.suffix) {
			return rule.dist
		}
	}
	return ""
}

// stripDistributionSuffix removes the recognized distribution suffix from
// filename. When no entry matches it reports ok=false and returns the input
// unchanged.
func stripDistributionSuffix(filename string) (string, bool) {
	for _, rule := range distributionSuffixes {
		if strings.HasSuffix(filename, rule.suffix) {
			return filename[:len(filename)-len(rule.suffix)], true
		}
	}
	return filename, false
}
