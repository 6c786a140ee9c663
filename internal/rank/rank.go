// Package rank computes the eight-factor contextual score for a set of
// retrieval candidates and produces a deterministically ordered list of
// RankedResult. Every normalization step is min-max over the current
// candidate set; no factor depends on any state outside of the single
// rank() call other than the weight vector supplied by the caller,
// which is read once at the start of the call so concurrent weight
// updates cannot affect an in-flight ranking.
package rank

import (
	"path"
	"sort"
	"strings"

	"github.com/coderag/engine/internal/errors"
	"github.com/coderag/engine/internal/ragquery"
)

// CurrentContext carries the caller's current-file context, used by
// context_overlap and proximity. Zero value means "no context," which
// makes context_overlap contribute 0 with confidence 0.
type CurrentContext struct {
	FilePath   string
	Imports    []string
	Frameworks []string
	Language   string
}

// Options configures the ranking engine. SnippetScanBytes defaults to
// DefaultSnippetScanBytes when zero.
type Options struct {
	SnippetScanBytes int
	Detectors        []detector
}

// Engine computes RankedResults for a candidate set. It carries no
// mutable state and is safe for concurrent use.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.SnippetScanBytes <= 0 {
		opts.SnippetScanBytes = DefaultSnippetScanBytes
	}
	if opts.Detectors == nil {
		opts.Detectors = DefaultDetectors()
	}
	return &Engine{opts: opts}
}

// Rank scores and orders candidates. weights is a read-only snapshot
// taken by the caller (the Adaptive Weight Store) before this call
// began; Rank itself never mutates it. Returns ranking_invariant_violated
// if any computed factor is NaN/Inf or out of [0,1].
func (e *Engine) Rank(candidates []ragquery.RetrievalResult, weights ragquery.WeightVector, cc CurrentContext, query string, matchedOut *[][]string) ([]ragquery.RankedResult, error) {
	n := len(candidates)
	if n == 0 {
		return nil, nil
	}

	keyword := make([]float64, n)
	vector := make([]float64, n)
	haveVector := make([]bool, n)
	jaccard := make([]float64, n)
	mtimes := make([]float64, n)
	haveMtime := make([]bool, n)

	queryTokens := tokenSet(tokenize(query))

	for i, c := range candidates {
		keyword[i] = c.KeywordScore
		if c.VectorScore != nil {
			vector[i] = *c.VectorScore
			haveVector[i] = true
		}
		jaccard[i] = jaccardSim(queryTokens, tokenSet(c.Tokens))
		if !c.LastModified.IsZero() {
			mtimes[i] = float64(c.LastModified.Unix())
			haveMtime[i] = true
		}
	}

	textRel := minMax(keyword)

	semSim := make([]float64, n)
	semConf := make([]float64, n)
	if anyTrue(haveVector) {
		vecVals := make([]float64, n)
		for i := range candidates {
			if haveVector[i] {
				vecVals[i] = vector[i]
			} else {
				vecVals[i] = 0
			}
		}
		normed := minMax(vecVals)
		for i := range candidates {
			semSim[i] = normed[i]
			semConf[i] = 1.0
		}
	} else {
		normed := minMax(jaccard)
		for i := range candidates {
			semSim[i] = normed[i]
			semConf[i] = 0.6
		}
	}

	recencyVals := make([]float64, n)
	for i := range candidates {
		if haveMtime[i] {
			recencyVals[i] = mtimes[i]
		}
	}
	recencyNorm := minMax(recencyVals)

	results := make([]ragquery.RankedResult, n)
	matched := make([][]string, n)

	for i, c := range candidates {
		var fv ragquery.FactorVector

		fv[ragquery.FactorTextRelevance] = ragquery.FactorValue{Value: textRel[i], Confidence: 1.0}
		fv[ragquery.FactorSemanticSimilarity] = ragquery.FactorValue{Value: semSim[i], Confidence: semConf[i]}

		if cc.FilePath != "" || len(cc.Imports) > 0 || cc.Language != "" {
			fv[ragquery.FactorContextOverlap] = contextOverlap(c, cc)
		} else {
			fv[ragquery.FactorContextOverlap] = ragquery.FactorValue{Value: 0, Confidence: 0}
		}

		fv[ragquery.FactorImportSimilarity] = ragquery.FactorValue{
			Value:      jaccardSim(stringSet(cc.Imports), stringSet(c.Imports)),
			Confidence: 0.9,
		}

		fv[ragquery.FactorProximity] = proximity(c, cc)

		if haveMtime[i] {
			fv[ragquery.FactorRecency] = ragquery.FactorValue{Value: recencyNorm[i], Confidence: 0.9}
		} else {
			fv[ragquery.FactorRecency] = ragquery.FactorValue{Value: 0.5, Confidence: 0.9}
		}

		fv[ragquery.FactorQuality] = quality(c)

		score, names := PatternMatch(c.Snippet, e.opts.SnippetScanBytes, e.opts.Detectors)
		fv[ragquery.FactorPatternMatch] = ragquery.FactorValue{Value: score, Confidence: 0.7}
		matched[i] = names

		for f := ragquery.Factor(0); f < ragquery.NumFactors; f++ {
			if err := checkFinite(fv[f].Value, f.String()); err != nil {
				return nil, err
			}
			if err := checkFinite(fv[f].Confidence, f.String()+".confidence"); err != nil {
				return nil, err
			}
			if fv[f].Value < 0 || fv[f].Value > 1 {
				return nil, errors.QueryError(errors.KindRankingInvariant,
					"factor "+f.String()+" out of bounds for candidate "+c.ID, nil)
			}
		}

		var final float64
		for f := ragquery.Factor(0); f < ragquery.NumFactors; f++ {
			final += weights[f] * fv[f].Value
		}
		if err := checkFinite(final, "final"); err != nil {
			return nil, err
		}
		final = clamp01(final)

		results[i] = ragquery.RankedResult{Result: c, Score: final, Factors: fv}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return lessRanked(results[a], results[b])
	})
	for i := range results {
		results[i].TieBreak = i + 1
	}

	if matchedOut != nil {
		// Reorder matched pattern names alongside the sort above by
		// recomputing from the sorted result's ID; cheap since n is
		// the candidate-set size, not the corpus size.
		byID := make(map[string][]string, n)
		for i, c := range candidates {
			byID[c.ID] = matched[i]
		}
		ordered := make([][]string, len(results))
		for i, r := range results {
			ordered[i] = byID[r.Result.ID]
		}
		*matchedOut = ordered
	}

	return results, nil
}

// lessRanked implements the stable tie-break: final desc, then
// text_relevance desc, then recency desc, then document id asc.
func lessRanked(a, b ragquery.RankedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	at := a.Factors[ragquery.FactorTextRelevance].Value
	bt := b.Factors[ragquery.FactorTextRelevance].Value
	if at != bt {
		return at > bt
	}
	ar := a.Factors[ragquery.FactorRecency].Value
	br := b.Factors[ragquery.FactorRecency].Value
	if ar != br {
		return ar > br
	}
	return a.Result.ID < b.Result.ID
}

func contextOverlap(c ragquery.RetrievalResult, cc CurrentContext) ragquery.FactorValue {
	importsOverlap := jaccardSim(stringSet(cc.Imports), stringSet(c.Imports))

	usageMatch := 0.0
	if c.FunctionName != "" || c.ClassName != "" {
		for _, imp := range cc.Imports {
			if strings.Contains(imp, c.FunctionName) || strings.Contains(imp, c.ClassName) {
				usageMatch = 1.0
				break
			}
		}
	}

	// RetrievalResult carries imports but not a dedicated framework set;
	// a framework match is inferred from whether any of the current
	// file's dominant frameworks appears among the candidate's imports.
	frameworkMatch := 0.0
	candidateImports := stringSet(c.Imports)
	for _, fw := range cc.Frameworks {
		if candidateImports[strings.ToLower(fw)] {
			frameworkMatch = 1.0
			break
		}
		for imp := range candidateImports {
			if strings.Contains(imp, strings.ToLower(fw)) {
				frameworkMatch = 1.0
				break
			}
		}
	}

	languageMatch := 0.0
	if cc.Language != "" && c.Language != "" && strings.EqualFold(cc.Language, c.Language) {
		languageMatch = 1.0
	}

	value := 0.3*importsOverlap + 0.3*usageMatch + 0.2*frameworkMatch + 0.2*languageMatch
	return ragquery.FactorValue{Value: clamp01(value), Confidence: 0.9}
}

func proximity(c ragquery.RetrievalResult, cc CurrentContext) ragquery.FactorValue {
	if cc.FilePath == "" {
		return ragquery.FactorValue{Value: 0, Confidence: 0.8}
	}
	var scale float64
	switch {
	case c.FilePath == cc.FilePath:
		scale = 1.0
	case path.Dir(c.FilePath) == path.Dir(cc.FilePath):
		scale = 0.7
	case sameModule(c.FilePath, cc.FilePath):
		scale = 0.5
	case c.Repository != "":
		scale = 0.3
	default:
		scale = 0
	}
	dampened := logDampen(scale)
	return ragquery.FactorValue{Value: dampened, Confidence: 0.8}
}

// sameModule treats two paths as "same module" when they share a
// top-level directory component, a coarse proxy for a Go package or
// similar module boundary when no build-system metadata is available.
func sameModule(a, b string) bool {
	as := strings.SplitN(strings.TrimPrefix(a, "/"), "/", 2)
	bs := strings.SplitN(strings.TrimPrefix(b, "/"), "/", 2)
	return len(as) > 0 && len(bs) > 0 && as[0] == bs[0]
}

func logDampenBase() float64 { return 5.0 }

func quality(c ragquery.RetrievalResult) ragquery.FactorValue {
	var sum float64
	var present int
	const numSubSignals = 4 // 0.2 is reserved/zero, never counted as present

	if c.Quality.TestCoverage != nil {
		sum += 0.3 * clamp01(*c.Quality.TestCoverage)
		present++
	}
	if c.Quality.Complexity != nil {
		normComplexity := clamp01(*c.Quality.Complexity)
		sum += 0.2 * (1 - normComplexity)
		present++
	}
	if c.Quality.HasDocstring != nil {
		if *c.Quality.HasDocstring {
			sum += 0.2
		}
		present++
	}
	if c.Quality.HasTests != nil {
		if *c.Quality.HasTests {
			sum += 0.1
		}
		present++
	}

	confidence := float64(present) / float64(numSubSignals)
	return ragquery.FactorValue{Value: clamp01(sum), Confidence: confidence}
}
