package ingest

import (
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

// uaRule pairs an anchored pattern with an extractor. Rules are evaluated in
// order and the first match wins, so legacy special cases must stay ahead of
// the generic forms.
type uaRule struct {
	re      *regexp.Regexp
	extract func(m []string, p *UserAgentParser) UserAgent
}

// UserAgentParser decodes free-form user-agent strings into structured client
// metadata. Parse is total: any input, including the empty string, yields a
// UserAgent without error.
type UserAgentParser struct {
	rules []uaRule

	// pypyVersions maps a PyPy release to the CPython version it targets.
	// Unknown releases leave PythonVersion unset rather than guessing.
	pypyVersions map[string]string
}

// NewUserAgentParser builds a parser with the default rule order and PyPy
// compatibility table.
func NewUserAgentParser() *UserAgentParser {
	p := &UserAgentParser{pypyVersions: pypyCPythonVersions}
	p.rules = []uaRule{
		// Legacy stdlib-urllib clients announcing an installer token.
		{
			re: regexp.MustCompile(`^Python-urllib/(\S+) (\S+)/(\S+)$`),
			extract: func(m []string, _ *UserAgentParser) UserAgent {
				return UserAgent{
					PythonVersion:    m[1],
					InstallerType:    strings.ToLower(m[2]),
					InstallerVersion: m[3],
				}
			},
		},
		// Bare Python-urllib: early pip releases sent no installer token,
		// so the absence of one after the interpreter token means pip.
		{
			re: regexp.MustCompile(`^Python-urllib/(\S+)$`),
			extract: func(m []string, _ *UserAgentParser) UserAgent {
				return UserAgent{
					PythonVersion: m[1],
					InstallerType: "pip",
				}
			},
		},
		// Modern installer form: installer/version impl/version os/version.
		{
			re: regexp.MustCompile(`^(\S+)/(\S+) (CPython|PyPy|Jython|IronPython)/(\S+) (\S+)/(\S+)$`),
			extract: func(m []string, p *UserAgentParser) UserAgent {
				ua := UserAgent{
					InstallerType:          strings.ToLower(m[1]),
					InstallerVersion:       m[2],
					PythonType:             strings.ToLower(m[3]),
					OperatingSystem:        m[5],
					OperatingSystemVersion: m[6],
				}
				switch ua.PythonType {
				case "cpython":
					ua.PythonVersion = m[4]
				case "pypy":
					ua.PythonRelease = m[4]
					ua.PythonVersion = p.pypyVersions[m[4]]
				default:
					ua.PythonRelease = m[4]
				}
				return ua
			},
		},
		// Parenthetical form used by mirroring tools such as bandersnatch;
		// the OS version may contain spaces.
		{
			re: regexp.MustCompile(`^(\S+)/(\S+) \(CPython ([^,]+), (\S+) ([^)]+)\)$`),
			extract: func(m []string, _ *UserAgentParser) UserAgent {
				return UserAgent{
					InstallerType:          strings.ToLower(m[1]),
					InstallerVersion:       m[2],
					PythonType:             "cpython",
					PythonVersion:          m[3],
					OperatingSystem:        m[4],
					OperatingSystemVersion: m[5],
				}
			},
		},
	}
	return p
}

// Parse decodes one user-agent string. Unrecognized shapes fall through to
// browser detection and finally to the zero value.
func (p *UserAgentParser) Parse(s string) UserAgent {
	for _, rule := range p.rules {
		if m := rule.re.FindStringSubmatch(s); m != nil {
			return rule.extract(m, p)
		}
	}
	if isBrowser(s) {
		return UserAgent{InstallerType: "browser"}
	}
	return UserAgent{}
}

// isBrowser reports whether the string looks like a general-purpose browser.
// The token check covers the legacy Mozilla/Opera stems; the useragent
// library catches browsers that no longer advertise either, restricted to
// names it is known to detect reliably so installer tools never misclassify.
func isBrowser(s string) bool {
	if strings.Contains(s, "Mozilla") || strings.Contains(s, "Opera") {
		return true
	}
	agent := useragent.New(s)
	name, _ := agent.Browser()
	switch name {
	case "Chrome", "Chromium", "Safari", "Firefox", "Edge", "Internet Explorer":
		return true
	}
	return false
}

// pypyCPythonVersions records which CPython version each public PyPy release
// implements. Incomplete by nature; missing releases must not be extrapolated.
var pypyCPythonVersions = map[string]string{
	"1.9":   "2.7.2",
	"2.0":   "2.7.3",
	"2.0.1": "2.7.3",
	"2.0.2": "2.7.3",
	"2.1.0": "2.7.3",
	"2.2.0": "2.7.3",
	"2.2.1": "2.7.3",
	"2.3":   "2.7.6",
	"2.3.1": "2.7.6",
	"2.4.0": "2.7.8",
	"2.5.0": "2.7.8",
	"2.5.1": "2.7.9",
	"2.6.0": "2.7.9",
}
