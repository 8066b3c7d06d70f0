package gateway

import (
	"net/url"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

const (
	defaultSourcesSummary = "Google Search"
	groundingDisclaimer   = "This information was retrieved from web sources. Always verify with official documentation."
	maxSummarySources     = 5
)

// BuildGroundingResult turns a grounded reply into citations and guidance
func BuildGroundingResult(out *entities.ModelOutput) *entities.GroundingResult {
	result := &entities.GroundingResult{
		Guidance: out.Text,
		Sources:  []entities.GroundingSource{},
	}
	if meta := out.Grounding; meta != nil {
		result.Chunks = meta.Chunks
		result.Supports = meta.Supports
		result.SearchEntryPointHTML = meta.SearchEntryPointHTML
	}

	for _, chunk := range result.Chunks {
		if chunk.URI == "" {
			continue
		}
		title := chunk.Title
		if title == "" {
			title = chunk.URI
		}
		result.Sources = append(result.Sources, entities.GroundingSource{URL: chunk.URI, Title: title})
	}

	hasGrounding := len(result.Chunks) > 0 || len(result.Supports) > 0
	result.Grounded = hasGrounding || out.Text != ""
	result.SourcesSummary = SummarizeSources(result.Sources)
	result.Confidence = 0.5
	if hasGrounding {
		result.Confidence = 0.8
		disclaimer := groundingDisclaimer
		result.Disclaimer = &disclaimer
	}
	return result
}

// SummarizeSources joins the first few source titles, falling back to domains
func SummarizeSources(sources []entities.GroundingSource) string {
	if len(sources) > maxSummarySources {
		sources = sources[:maxSummarySources]
	}
	var parts []string
	for _, s := range sources {
		switch {
		case s.Title != "":
			parts = append(parts, s.Title)
		case s.URL != "":
			if u, err := url.Parse(s.URL); err == nil && u.Host != "" {
				parts = append(parts, u.Host)
			} else {
				parts = append(parts, truncate(s.URL, 50))
			}
		}
	}
	if len(parts) == 0 {
		return defaultSourcesSummary
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
