package spatial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

const (
	maxDetectedComponents = 12
	maxSpecificWords      = 4

	PurposeLocateBatch  = "localize_batch"
	PurposeLocateSingle = "localize_single"
	PurposeDetect       = "detect_components"
)

var genericTargetWords = []string{"all", "major", "everything", "device", "help", "troubleshoot"}

// Locator finds requested components in an image through the model gateway
type Locator struct {
	gateway repositories.ModelGateway
	floor   float64
	logger  *zap.Logger
}

// NewLocator creates a Locator. A non-positive floor uses DefaultFloor.
func NewLocator(gateway repositories.ModelGateway, floor float64, logger *zap.Logger) *Locator {
	if floor <= 0 {
		floor = DefaultFloor
	}
	return &Locator{gateway: gateway, floor: floor, logger: logger}
}

// Floor is the confidence floor applied to boxes
func (l *Locator) Floor() float64 { return l.floor }

// ShouldAttemptLocalization decides whether localization may run for the
// detected device and classified intent
func ShouldAttemptLocalization(device *entities.DeviceProfile, answerType entities.AnswerType) (bool, string) {
	if device == nil || device.Confidence < entities.MediumConfidenceThreshold {
		return false, "Device identification confidence too low for spatial localization"
	}
	if !device.Identified() {
		return false, "Cannot localize components on unidentified or non-device images"
	}
	if !answerType.Spec().Visual {
		return false, fmt.Sprintf("Localization not needed for answer_type=%s", answerType)
	}
	return true, "Localization appropriate for AR visualization"
}

// LocateAll returns one result per located target. Model failures are folded
// into not_visible results; only invalid input is returned as an error.
func (l *Locator) LocateAll(ctx context.Context, img *entities.ImagePart, targets []string, width, height int, device *entities.DeviceProfile) ([]entities.LocalizationResult, error) {
	if len(targets) == 0 {
		return []entities.LocalizationResult{}, nil
	}
	if img == nil {
		return nil, errors.New("no image to localize against")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	targets = l.expandTargets(ctx, img, targets, device)

	if len(targets) == 1 {
		return []entities.LocalizationResult{l.locateOne(ctx, img, targets[0], width, height, device)}, nil
	}
	return l.locateBatch(ctx, img, targets, width, height, device), nil
}

// expandTargets swaps vague requests for the components actually visible
func (l *Locator) expandTargets(ctx context.Context, img *entities.ImagePart, targets []string, device *entities.DeviceProfile) []string {
	switch {
	case len(targets) == 1 && isGenericRequest(targets[0]):
		if detected := l.detectVisible(ctx, img, device); len(detected) > 0 {
			l.logger.Info("Auto-detected components for generic request", zap.Strings("components", detected))
			return detected
		}
		l.logger.Warn("No components auto-detected, keeping generic target")
	case len(targets) <= 2 && !allSpecific(targets):
		detected := l.detectVisible(ctx, img, device)
		if len(detected) >= len(targets) {
			l.logger.Info("Using auto-detected components",
				zap.Strings("requested", targets),
				zap.Strings("components", detected),
			)
			return detected
		}
	}
	return targets
}

func (l *Locator) locateOne(ctx context.Context, img *entities.ImagePart, target string, width, height int, device *entities.DeviceProfile) entities.LocalizationResult {
	res, err := l.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeLocateSingle,
		Parts:           []entities.Part{entities.TextPart(singlePrompt(target, width, height, device)), entities.ImagePromptPart(img)},
		Schema:          singleSchema,
		Temperature:     0.2,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		l.logger.Error("Single component localization failed", zap.String("target", target), zap.Error(err))
		return entities.NotFoundResult(target, err.Error())
	}
	raw := gjson.ParseBytes(res.Raw)
	if !raw.IsObject() {
		return entities.NotFoundResult(target, "")
	}
	return Reconcile(ParseSingleClaim(raw, target), width, height, l.floor)
}

func (l *Locator) locateBatch(ctx context.Context, img *entities.ImagePart, targets []string, width, height int, device *entities.DeviceProfile) []entities.LocalizationResult {
	l.logger.Info("Localizing components", zap.Int("count", len(targets)), zap.Strings("targets", targets))

	res, err := l.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeLocateBatch,
		Parts:           []entities.Part{entities.TextPart(batchPrompt(targets, width, height, device)), entities.ImagePromptPart(img)},
		Schema:          batchSchema,
		Temperature:     0.2,
		MaxOutputTokens: 16000,
	})
	if err != nil {
		l.logger.Error("Batch localization failed", zap.Error(err))
		out := make([]entities.LocalizationResult, len(targets))
		for i, t := range targets {
			out[i] = entities.NotFoundResult(t, err.Error())
		}
		return out
	}

	results := gjson.GetBytes(res.Raw, "results")
	if !results.IsArray() {
		l.logger.Warn("Batch localization reply has no results list, locating individually")
		out := make([]entities.LocalizationResult, len(targets))
		for i, t := range targets {
			out[i] = l.locateOne(ctx, img, t, width, height, device)
		}
		return out
	}

	entries := results.Array()
	if len(entries) == 0 {
		l.logger.Warn("Batch localization returned no results")
		return []entities.LocalizationResult{}
	}

	claims := make([]Claim, len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		claims[i] = ParseMultiClaim(e)
		names[i] = claims[i].Target
	}
	names = AssignTargets(names, targets)

	out := make([]entities.LocalizationResult, 0, len(targets))
	for i, c := range claims {
		c.Target = names[i]
		out = append(out, Reconcile(c, width, height, l.floor))
	}
	for _, t := range MissingTargets(names, targets) {
		out = append(out, entities.NotFoundResult(t, "The component was not reported for this image"))
	}
	return out
}

func (l *Locator) detectVisible(ctx context.Context, img *entities.ImagePart, device *entities.DeviceProfile) []string {
	res, err := l.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeDetect,
		Parts:           []entities.Part{entities.TextPart(detectionPrompt(device)), entities.ImagePromptPart(img)},
		Schema:          detectionSchema,
		Temperature:     0.2,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		l.logger.Warn("Component auto-detection failed", zap.Error(err))
		return nil
	}
	var detected []string
	for _, c := range gjson.GetBytes(res.Raw, "visible_components").Array() {
		if s := strings.TrimSpace(c.String()); s != "" {
			detected = appendUnique(detected, s)
		}
		if len(detected) == maxDetectedComponents {
			break
		}
	}
	return detected
}

// AssignTargets names unlabeled batch entries. An entry with an empty or
// placeholder target takes the requested target at its own index when no
// other entry claims it, otherwise the next unclaimed target scanning forward.
func AssignTargets(returned, requested []string) []string {
	out := make([]string, len(returned))
	claimed := make([]bool, len(requested))
	for i, name := range returned {
		if isPlaceholderTarget(name) {
			continue
		}
		out[i] = name
		for j, req := range requested {
			if !claimed[j] && sameTarget(name, req) {
				claimed[j] = true
				break
			}
		}
	}
	for i, name := range returned {
		if !isPlaceholderTarget(name) {
			continue
		}
		out[i] = "unknown"
		for k := range requested {
			j := (i + k) % len(requested)
			if !claimed[j] {
				claimed[j] = true
				out[i] = requested[j]
				break
			}
		}
	}
	return out
}

// MissingTargets lists requested targets no returned entry accounts for
func MissingTargets(returned, requested []string) []string {
	var missing []string
	used := make([]bool, len(returned))
	for _, req := range requested {
		matched := false
		for i, name := range returned {
			if !used[i] && sameTarget(name, req) {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			missing = append(missing, req)
		}
	}
	return missing
}

func isPlaceholderTarget(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unknown", "component", "none", "null":
		return true
	}
	return false
}

// sameTarget matches names case-insensitively, allowing one to contain the
// other ("RAM" and "2x RAM slots")
func sameTarget(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

func isGenericRequest(target string) bool {
	t := strings.ToLower(target)
	if strings.Contains(t, "visible components") {
		return true
	}
	return hasWord(t, "all", "major")
}

func allSpecific(targets []string) bool {
	for _, t := range targets {
		if len(strings.Fields(t)) > maxSpecificWords || hasWord(strings.ToLower(t), genericTargetWords...) {
			return false
		}
	}
	return true
}

func hasWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
