// Package enhance expands a query into a bounded list of variants:
// identifier-case rewrites, an intent-specific prefix, and
// framework-aware variants drawn from the current file's imports. The
// tokenizer and casing-variant logic are adapted from the code-search
// engine's query expander.
package enhance

import (
	"strings"
	"unicode"

	"github.com/coderag/engine/internal/ragquery"
)

// MaxVariants bounds the enhanced query's variant list.
const MaxVariants = 10

// intentPrefixes gives one prefix template per intent, added as one
// query variant after any identifier-casing variants. Templates end in
// a space so the original text
// can simply be concatenated.
var intentPrefixes = map[ragquery.Intent]string{
	ragquery.IntentImplement:  "implementation of ",
	ragquery.IntentDebug:      "error handling for ",
	ragquery.IntentUnderstand: "explanation of ",
	ragquery.IntentRefactor:   "refactored version of ",
	ragquery.IntentTest:       "test cases for ",
	ragquery.IntentDocument:   "documentation for ",
}

// frameworkByImport maps a small set of well-known import prefixes to
// the framework term used as a query suffix. Real deployments would
// extend this table or source it from configuration; it exists here so
// rule (c) has something concrete to key off of.
var frameworkByImport = map[string]string{
	"django":               "django",
	"flask":                "flask",
	"react":                "react",
	"gin-gonic/gin":        "gin",
	"net/http":             "http",
	"github.com/gorilla":   "gorilla",
	"express":              "express",
	"spring":               "spring",
}

// Enhance expands queryText into a non-empty, deduplicated list of
// variants, the first of which is always the original text, bounded to
// MaxVariants. imports is the current file's inferred import set (rule
// c); pass nil when no current file context is available.
func Enhance(queryText string, in ragquery.Intent, imports []string) ragquery.EnhancedQuery {
	seen := make(map[string]bool)
	var variants []string

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if seen[key] || len(variants) >= MaxVariants {
			return
		}
		seen[key] = true
		variants = append(variants, v)
	}

	add(queryText)

	tokens := tokenize(queryText)
	if hasIdentifierCasing(tokens) {
		for _, tok := range tokens {
			for _, variant := range generateCasingVariants(tok) {
				add(queryText + " " + variant)
				if len(variants) >= MaxVariants {
					break
				}
			}
		}
	}

	if prefix, ok := intentPrefixes[in]; ok {
		add(prefix + queryText)
	}

	for _, imp := range dominantFrameworks(imports) {
		add(queryText + " " + imp)
		if len(variants) >= MaxVariants {
			break
		}
	}

	if len(variants) == 0 {
		variants = []string{queryText}
	}

	return ragquery.EnhancedQuery{
		Variants:   variants,
		Tokens:     tokens,
		Imports:    imports,
		Frameworks: dominantFrameworks(imports),
	}
}

// dominantFrameworks maps import paths to known framework terms,
// deduplicated, in the order their imports were encountered.
func dominantFrameworks(imports []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, imp := range imports {
		lower := strings.ToLower(imp)
		for key, fw := range frameworkByImport {
			if strings.Contains(lower, key) && !seen[fw] {
				seen[fw] = true
				out = append(out, fw)
			}
		}
	}
	return out
}

// hasIdentifierCasing reports whether any token looks like a code
// identifier (mixed case or underscored) rather than a plain word.
func hasIdentifierCasing(tokens []string) bool {
	for _, t := range tokens {
		if strings.ContainsAny(t, "_") {
			return true
		}
		hasUpper, hasLower := false, false
		for _, r := range t {
			if unicode.IsUpper(r) {
				hasUpper = true
			}
			if unicode.IsLower(r) {
				hasLower = true
			}
		}
		if hasUpper && hasLower {
			return true
		}
	}
	return false
}

// tokenize splits query text into words, then splits each word on
// camelCase/snake_case boundaries.
func tokenize(query string) []string {
	var words []string
	var current strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	var result []string
	for _, w := range words {
		result = append(result, splitCasing(w)...)
	}
	return result
}

// splitCasing splits a token on camelCase, snake_case, and kebab-case
// boundaries.
func splitCasing(token string) []string {
	if strings.ContainsAny(token, "_-") {
		fields := strings.FieldsFunc(token, func(r rune) bool {
			return r == '_' || r == '-'
		})
		var out []string
		for _, f := range fields {
			if f != "" {
				out = append(out, f)
			}
		}
		return out
	}

	var parts []string
	var current strings.Builder
	for i, r := range token {
		if i > 0 && unicode.IsUpper(r) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// generateCasingVariants returns camelCase/snake_case/kebab-case
// rewrites of a single token, excluding the identity rewrite.
func generateCasingVariants(term string) []string {
	if term == "" {
		return nil
	}
	parts := splitCasing(term)
	if len(parts) == 0 {
		return nil
	}

	var lowerParts []string
	for _, p := range parts {
		lowerParts = append(lowerParts, strings.ToLower(p))
	}

	snake := strings.Join(lowerParts, "_")
	kebab := strings.Join(lowerParts, "-")

	var camel strings.Builder
	for i, p := range lowerParts {
		if i == 0 {
			camel.WriteString(p)
			continue
		}
		camel.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}

	var pascal strings.Builder
	for _, p := range lowerParts {
		if p == "" {
			continue
		}
		pascal.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}

	seen := map[string]bool{strings.ToLower(term): true}
	var out []string
	for _, v := range []string{snake, kebab, camel.String(), pascal.String()} {
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}
