package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
)

var (
	hobbyDevices = []string{"arduino", "breadboard", "generic", "usb cable", "prototype board"}

	explicitGroundingTerms = []string{
		"latest", "official", "manufacturer", "firmware", "driver",
		"update", "specs", "specification", "compatibility", "recall",
		"warranty", "manual", "documentation", "download", "support page",
		"error code", "model number", "part number",
	}
)

// ShouldGround decides whether a web-search grounded call is worth the quota.
// The reason is logged with the decision.
func ShouldGround(answerType entities.AnswerType, device entities.DeviceProfile, query string) (bool, string) {
	if !answerType.Valid() || !answerType.Spec().Groundable {
		return false, "answer type does not generate content"
	}
	if containsAny(strings.ToLower(device.DeviceType), hobbyDevices...) {
		return false, "community documentation covers hobby boards better"
	}
	switch {
	case containsAny(strings.ToLower(query), explicitGroundingTerms...):
		return true, "query asks for official or current information"
	case device.HasBrand() && device.HasModel():
		return true, "brand and model identified"
	case device.HasBrand() && (answerType == entities.AnswerTroubleshootSteps || answerType == entities.AnswerDiagnoseOnly):
		return true, "brand identified for a troubleshooting request"
	default:
		return true, "web search is the primary knowledge source"
	}
}

// DeviceLabel renders brand, type and model, leaving out unknown parts
func DeviceLabel(device entities.DeviceProfile) string {
	parts := make([]string, 0, 3)
	if device.HasBrand() {
		parts = append(parts, device.Brand)
	}
	parts = append(parts, device.DeviceType)
	if device.HasModel() {
		parts = append(parts, device.Model)
	}
	return strings.Join(parts, " ")
}

// Ground asks the model for web-search backed guidance about the device
func (a *Analyzer) Ground(ctx context.Context, device entities.DeviceProfile, query, manualContext string) (*entities.GroundingResult, error) {
	res, err := a.gateway.InvokeGrounded(ctx, entities.ModelRequest{
		Purpose:         PurposeGround,
		Parts:           []entities.Part{entities.TextPart(groundingPrompt(device, query, manualContext))},
		Temperature:     0.3,
		MaxOutputTokens: groundingTokens,
		WebSearch:       true,
	})
	if err != nil {
		a.logger.Warn("Web grounding failed", zap.String("device", DeviceLabel(device)), zap.Error(err))
		return nil, err
	}
	a.logger.Info("Web grounding completed",
		zap.String("device", DeviceLabel(device)),
		zap.Bool("grounded", res.Grounded),
		zap.Int("sources", len(res.Sources)))
	return res, nil
}
