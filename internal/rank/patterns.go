package rank

import "regexp"

// DefaultSnippetScanBytes bounds how much of a candidate's snippet the
// pattern_match detector scans: regexes are anchored and the scan
// itself is byte-bounded so a 1 MiB snippet costs no more than a 10
// KiB one.
const DefaultSnippetScanBytes = 10240

// PatternMatchCap is the maximum pattern_match factor value.
const PatternMatchCap = 0.8

// detector pairs a structural pattern name with an anchored,
// non-backtracking regex. Every pattern here uses only bounded
// repetition and character classes, never nested quantifiers, so match
// time is linear in the scanned prefix regardless of input.
type detector struct {
	name  string
	score float64
	re    *regexp.Regexp
}

// defaultDetectors is the registry mapping code-pattern keywords to
// structural matchers. Scores are pre-capped at or below PatternMatchCap so
// the registry's own maximum defines the factor's ceiling.
var defaultDetectors = []detector{
	{"singleton", 0.8, regexp.MustCompile(`(?i)\bfunc\s+\w*[Ii]nstance\(\)|\bvar\s+instance\s+\*\w+|\bsync\.Once\b`)},
	{"factory", 0.75, regexp.MustCompile(`(?i)\bfunc\s+New\w{0,64}\(`)},
	{"observer", 0.7, regexp.MustCompile(`(?i)\b(Subscribe|Notify|Listener|EventHandler|AddObserver)\w{0,32}\(`)},
	{"decorator", 0.7, regexp.MustCompile(`(?i)\bfunc\s+\w{1,64}\(\s*\w{0,32}\s+\w{1,64}\)\s+\w{1,64}\s*\{`)},
	{"retry", 0.75, regexp.MustCompile(`(?i)\b(retry|backoff|attempt)\w{0,32}\(`)},
	{"cache", 0.7, regexp.MustCompile(`(?i)\b(cache|lru|memoiz\w{0,8})\w{0,16}\(`)},
	{"repository", 0.7, regexp.MustCompile(`(?i)\b\w{1,64}Repository\b`)},
}

// PatternMatch scores a snippet against the detector registry, scanning
// at most maxBytes of it. Returns the detector's score and the matched
// pattern names (possibly empty) for the explanation formatter.
func PatternMatch(snippet string, maxBytes int, detectors []detector) (float64, []string) {
	if maxBytes <= 0 {
		maxBytes = DefaultSnippetScanBytes
	}
	scanned := snippet
	if len(scanned) > maxBytes {
		scanned = scanned[:maxBytes]
	}

	var best float64
	var matched []string
	for _, d := range detectors {
		if d.re.MatchString(scanned) {
			matched = append(matched, d.name)
			if d.score > best {
				best = d.score
			}
		}
	}
	if best > PatternMatchCap {
		best = PatternMatchCap
	}
	return best, matched
}

// DefaultDetectors exposes the built-in registry for callers that want
// to extend it (e.g. via configuration) without reimplementing the
// scan-bound logic.
func DefaultDetectors() []detector { return append([]detector(nil), defaultDetectors...) }
