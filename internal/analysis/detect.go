package analysis

import (
	"context"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
)

var detectionSchema = &entities.Schema{
	Type: entities.SchemaObject,
	Properties: map[string]*entities.Schema{
		"device_type":          {Type: entities.SchemaString},
		"brand":                {Type: entities.SchemaString, Nullable: true},
		"model":                {Type: entities.SchemaString, Nullable: true},
		"components":           {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
		"device_confidence":    {Type: entities.SchemaNumber},
		"reasoning":            {Type: entities.SchemaString},
		"is_identifiable":      {Type: entities.SchemaBoolean},
		"what_i_see":           {Type: entities.SchemaString},
		"suggestions":          {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
		"clarifying_questions": {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
	},
	Required: []string{"device_type", "device_confidence", "reasoning", "is_identifiable", "what_i_see", "components"},
}

var defaultDeviceQuestions = []string{
	"What type of device is this? (router, printer, laptop, etc.)",
	"Can you take a photo from a different angle?",
	"Are there any visible brand names or labels?",
}

// DetectDevice identifies the device on its own, outside the combined call
func (a *Analyzer) DetectDevice(ctx context.Context, img *entities.ImagePart, query string) entities.DeviceProfile {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeDetect,
		Parts:           []entities.Part{entities.TextPart(detectionPrompt(query)), entities.ImagePromptPart(img)},
		Schema:          detectionSchema,
		Temperature:     0.2,
		MaxOutputTokens: defaultMaxTokens,
	})
	if err != nil {
		a.logger.Error("Device detection failed", zap.Error(err))
		return entities.DeviceProfile{
			DeviceType:         entities.DeviceTypeUnknown,
			Brand:              "unknown",
			Model:              "not visible",
			Reasoning:          "Error during detection: " + err.Error(),
			WhatISee:           "Error analyzing image",
			Suggestions:        []string{"Please try again with a different image"},
			NeedsClarification: true,
			Level:              entities.ConfidenceLow,
			Error:              err.Error(),
		}
	}
	root := gjson.ParseBytes(res.Raw)
	if !root.IsObject() {
		return unknownDevice("Response parsing failed")
	}
	return processDetection(root)
}

func processDetection(root gjson.Result) entities.DeviceProfile {
	p := parseDevice(root)
	p.Level = entities.LevelFor(p.Confidence)
	if p.Confidence < entities.MediumConfidenceThreshold {
		p.NeedsClarification = true
		if len(p.ClarifyingQuestions) == 0 {
			p.ClarifyingQuestions = defaultDeviceQuestions
		}
	}
	return p
}

func unknownDevice(reason string) entities.DeviceProfile {
	return entities.DeviceProfile{
		DeviceType: entities.DeviceTypeUnknown,
		Brand:      "unknown",
		Model:      "not visible",
		Reasoning:  reason,
		WhatISee:   "Could not analyze the image",
		Suggestions: []string{
			"Please ensure the device is clearly visible",
			"Try taking a photo from a different angle",
			"Include any visible brand names or labels",
		},
		ClarifyingQuestions: []string{
			"What type of device is this?",
			"What brand is it?",
		},
		NeedsClarification: true,
		Level:              entities.ConfidenceLow,
	}
}
