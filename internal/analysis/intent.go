package analysis

import (
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

var whatIsThisPatterns = []string{
	"what is this",
	"what's this",
	"what is this device",
	"what is this thing",
	"what am i looking at",
	"what device is this",
	"tell me about this",
}

var defaultIntentQuestions = []string{
	"Could you describe what issue you're experiencing?",
	"What would you like help with specifically?",
}

// IsWhatIsThis reports whether the query asks to identify the whole device
func IsWhatIsThis(query string) bool {
	q := strings.ToLower(query)
	for _, p := range whatIsThisPatterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// RepairIntent fixes up a model-classified intent: an unknown answer type
// becomes the default, and "what is this" questions answered with
// identification alone also get an explanation. It reports whether the
// answer type changed.
func RepairIntent(intent entities.QueryIntent, query string) (entities.QueryIntent, bool) {
	before := intent.AnswerType
	if t, ok := entities.ParseAnswerType(string(intent.AnswerType)); !ok {
		intent.AnswerType = t
	}
	if intent.AnswerType == entities.AnswerIdentifyOnly && IsWhatIsThis(query) {
		intent.AnswerType = entities.AnswerMixed
		intent.NeedsExplanation = true
	}
	return intent, intent.AnswerType != before
}

// HeuristicIntent classifies a query from its wording alone. It is used when
// the model reply carries no query section.
func HeuristicIntent(query string) entities.QueryIntent {
	q := strings.ToLower(query)
	intent := entities.QueryIntent{Confidence: 0.3}
	switch {
	case containsAny(q, "what is", "what's", "identify", "what component"):
		intent.QueryType = "identify"
		intent.AnswerType = entities.AnswerIdentifyOnly
	case containsAny(q, "where is", "where's", "locate", "find"):
		intent.QueryType = "locate"
		intent.AnswerType = entities.AnswerLocateOnly
		intent.NeedsLocalization = true
	case containsAny(q, "how to", "how do", "steps", "guide"):
		intent.QueryType = "procedure"
		intent.AnswerType = entities.AnswerTroubleshootSteps
		intent.NeedsSteps = true
	case containsAny(q, "not working", "broken", "won't", "doesn't", "problem", "issue", "error"):
		intent.QueryType = "troubleshoot"
		intent.AnswerType = entities.AnswerTroubleshootSteps
		intent.NeedsSteps = true
	default:
		intent.QueryType = "unclear"
		intent.AnswerType = entities.AnswerAskClarifying
		intent.ClarificationNeeded = true
		intent.ClarifyingQuestions = defaultIntentQuestions
	}
	return intent
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
