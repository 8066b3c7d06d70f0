package analysis

import (
	"regexp"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// Scanned in order; the first match wins
var (
	criticalKeywords = []string{
		"burning", "smoke", "melting", "swelling battery", "swollen battery",
		"electric shock", "exposed mains", "sparking", "fire",
		"electrocution", "short circuit", "burning smell",
	}
	warningKeywords = []string{
		"paper jam", "toner", "hot", "overheating", "moving parts",
	}
)

// CriticalSafetyMessage is shown when a critical hazard locks the answer
const CriticalSafetyMessage = "STOP. This situation may require professional help. Do NOT attempt DIY repair. Contact a qualified professional."

var keywordPatterns = compileKeywords(append(append([]string{}, criticalKeywords...), warningKeywords...))

func compileKeywords(keywords []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(keywords))
	for _, k := range keywords {
		out[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
	}
	return out
}

// AssessSafety keeps the model's assessment when it flagged a hazard and
// otherwise scans the query text, critical keywords before warnings.
func AssessSafety(model entities.SafetyAssessment, query string) entities.SafetyAssessment {
	if model.Detected {
		if model.Severity == entities.SeverityNone {
			model.Severity = entities.SeverityWarning
		}
		return model
	}

	q := strings.ToLower(query)
	if k := firstKeyword(q, criticalKeywords); k != "" {
		msg := CriticalSafetyMessage
		return entities.SafetyAssessment{
			Detected:           true,
			Severity:           entities.SeverityCritical,
			KeywordsFound:      []string{k},
			Message:            &msg,
			OverrideAnswerType: true,
		}
	}
	if k := firstKeyword(q, warningKeywords); k != "" {
		msg := "Caution: " + k + " detected. Follow safety precautions in the steps below."
		return entities.SafetyAssessment{
			Detected:      true,
			Severity:      entities.SeverityWarning,
			KeywordsFound: []string{k},
			Message:       &msg,
		}
	}
	return entities.SafetyAssessment{Severity: entities.SeverityNone, KeywordsFound: []string{}}
}

func firstKeyword(q string, keywords []string) string {
	for _, k := range keywords {
		if keywordPatterns[k].MatchString(q) {
			return k
		}
	}
	return ""
}
