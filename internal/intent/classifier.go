// Package intent classifies a raw query string into one of six coarse
// user-goal intents using anchored keyword/regex tables, the same
// style the code-search engine's pattern classifier uses for
// lexical-vs-semantic query typing, applied here to a different
// closed enum.
package intent

import (
	"regexp"
	"strings"

	"github.com/coderag/engine/internal/ragquery"
)

// maxScanBytes bounds classification input the same way the ranking
// engine's pattern detectors bound snippet scans: classify must finish
// in <10ms even on pathological input, so anchored regexes only ever
// see a bounded prefix.
const maxScanBytes = 1024

// table holds one compiled, case-insensitive, non-backtracking pattern
// per intent. Patterns are alternations of whole words, never nested
// quantifiers, so they run in time linear in the input.
var table = []struct {
	intent  ragquery.Intent
	pattern *regexp.Regexp
}{
	{ragquery.IntentDebug, regexp.MustCompile(`(?i)\b(error|exception|stack trace|broken|bug|crash|fails?|failing|panic|traceback)\b`)},
	{ragquery.IntentTest, regexp.MustCompile(`(?i)\b(test|tests|spec|assert|mock|fixture|coverage)\b`)},
	{ragquery.IntentRefactor, regexp.MustCompile(`(?i)\b(refactor|rewrite|clean up|cleanup|simplify|restructure)\b`)},
	{ragquery.IntentDocument, regexp.MustCompile(`(?i)\b(doc|docs|document|comment|describe|documentation|readme)\b`)},
	{ragquery.IntentImplement, regexp.MustCompile(`(?i)\b(implement|build|create|add|write)\b`)},
}

// Classify maps a query's text to an Intent. It is a pure function: no
// I/O, no shared state, safe to call concurrently from many goroutines.
// Priority order (DEBUG > TEST > REFACTOR > DOCUMENT > IMPLEMENT >
// UNDERSTAND) is encoded by the order of table and is significant: when
// a query matches more than one table entry, the first match wins.
func Classify(queryText string) ragquery.Intent {
	text := queryText
	if len(text) > maxScanBytes {
		text = text[:maxScanBytes]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ragquery.IntentUnderstand
	}
	for _, row := range table {
		if row.pattern.MatchString(text) {
			return row.intent
		}
	}
	return ragquery.IntentUnderstand
}
