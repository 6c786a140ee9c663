package rank

import (
	"math"
	"strings"
	"unicode"
)

// logDampen applies the logarithmic dampening the proximity factor
// uses on top of its discrete scale: log(1 + s*4)/log(5).
func logDampen(scale float64) float64 {
	return math.Log(1+scale*4) / math.Log(logDampenBase())
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

func stringSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[strings.ToLower(it)] = true
	}
	return s
}

func tokenSet(tokens []string) map[string]bool {
	return stringSet(tokens)
}

func jaccardSim(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// tokenize splits text into lowercase word tokens for Jaccard-based
// factors; it deliberately does not split camelCase/snake_case since
// RetrievalResult.Tokens already carries normalized identifier tokens
// from the indexer, and query text here only needs coarse overlap.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, strings.ToLower(cur.String()))
	}
	return tokens
}
