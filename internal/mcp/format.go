package mcp

import (
	"github.com/coderag/engine/internal/ragquery"
)

// clampLimit keeps limit within [min,max], substituting defaultVal
// when limit is unset.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// toSearchResultOutput renders one ranked result for wire transport,
// attaching the explanation text when the pipeline produced one.
func toSearchResultOutput(rr ragquery.RankedResult, explanations map[string]string) SearchResultOutput {
	r := rr.Result
	return SearchResultOutput{
		ResultID:     r.ID,
		Repository:   r.Repository,
		FilePath:     r.FilePath,
		FunctionName: r.FunctionName,
		ClassName:    r.ClassName,
		Language:     r.Language,
		Snippet:      r.Snippet,
		StartLine:    r.StartLine,
		EndLine:      r.EndLine,
		Score:        rr.Score,
		Explanation:  explanations[r.ID],
	}
}

// toSearchOutput renders a full pipeline Response for the search tool.
func toSearchOutput(resp ragquery.Response) SearchOutput {
	out := SearchOutput{
		QueryID: resp.QueryID,
		Reason:  resp.Reason,
		Results: make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for _, rr := range resp.Results {
		out.Results = append(out.Results, toSearchResultOutput(rr, resp.Explanations))
	}
	if resp.Timings != nil {
		out.Timings = &TimingsOutput{
			ClassifyMS: resp.Timings.ClassifyMS,
			EnhanceMS:  resp.Timings.EnhanceMS,
			RetrieveMS: resp.Timings.RetrieveMS,
			RankMS:     resp.Timings.RankMS,
			TotalMS:    resp.Timings.TotalMS,
		}
	}
	return out
}
