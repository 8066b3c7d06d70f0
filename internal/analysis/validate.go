package analysis

import (
	"context"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// ClassificationThreshold is the confidence at which a physical-device
// classification is trusted outside the valid categories
const ClassificationThreshold = 0.6

var validCategories = map[string]bool{
	"device":               true,
	"electronic_component": true,
	"circuit_board":        true,
	"appliance":            true,
}

var rejectionMessages = map[string]string{
	"software_screenshot": "This appears to be a software screenshot or game screen, not a physical device. FixIt AI helps troubleshoot electronic devices like routers, printers, and appliances.",
	"person":              "This image appears to show a person. FixIt AI is designed to help with electronic device troubleshooting only.",
	"document":            "This appears to be a document or text. FixIt AI needs a photo of the actual device you need help with.",
	"artwork":             "This appears to be artwork or an illustration. Please upload a photo of a real electronic device.",
	"nature":              "This appears to be a nature or landscape image. FixIt AI helps troubleshoot electronic devices.",
	"food":                "This appears to be a food image. FixIt AI is designed for electronic device troubleshooting.",
	"unclear":             "The image is too blurry or unclear to identify. Please take a clearer photo of the device.",
	"other":               "This doesn't appear to be an electronic device. FixIt AI helps troubleshoot devices like routers, printers, laptops, and appliances.",
}

var categorySuggestions = map[string]string{
	"software_screenshot": "Please take a photo of the physical device (not the screen contents) that you need help with.",
	"person":              "Please upload a photo of the electronic device you need assistance with.",
	"document":            "Please take a photo of the actual device you want to troubleshoot.",
	"artwork":             "Please upload a real photograph of your device, not an illustration or render.",
	"nature":              "FixIt AI troubleshoots electronic devices. Please upload a device photo.",
	"food":                "Please upload a photo of an electronic device you need help with.",
	"unclear":             "Please take a clearer, well-lit photo of the device from a good angle.",
	"other":               "Upload a clear photo of your electronic device (router, printer, laptop, appliance, etc.)",
}

// SupportedDevices is the device list shown with rejections
var SupportedDevices = []string{
	"WiFi Routers & Modems",
	"Printers & Scanners",
	"Laptops & Computers",
	"Smart Home Devices",
	"Kitchen Appliances",
	"Washing Machines & Dryers",
	"TVs & Monitors",
	"Audio Equipment",
	"Arduino & Circuit Boards",
	"Gaming Consoles",
	"Smartphones & Tablets",
}

var validationSchema = &entities.Schema{
	Type: entities.SchemaObject,
	Properties: map[string]*entities.Schema{
		"image_category":     {Type: entities.SchemaString},
		"is_physical_device": {Type: entities.SchemaBoolean},
		"confidence":         {Type: entities.SchemaNumber},
		"what_i_see":         {Type: entities.SchemaString},
		"rejection_reason":   {Type: entities.SchemaString, Nullable: true},
	},
	Required: []string{"image_category", "is_physical_device", "confidence", "what_i_see"},
}

// ValidCategory applies the validity rule: a troubleshootable category, or a
// confident physical-device classification
func ValidCategory(category string, physical bool, confidence float64) bool {
	return validCategories[category] || (physical && confidence >= ClassificationThreshold)
}

// RejectionMessage returns the canned message for a rejected category
func RejectionMessage(category string, modelReason *string) string {
	if msg, ok := rejectionMessages[category]; ok {
		return msg
	}
	if modelReason != nil && *modelReason != "" {
		return *modelReason
	}
	return rejectionMessages["other"]
}

// SuggestionFor returns what the user should photograph instead
func SuggestionFor(category string) string {
	if s, ok := categorySuggestions[category]; ok {
		return s
	}
	return categorySuggestions["other"]
}

// ValidateImage classifies whether the image shows a troubleshootable device.
// A failed call lets the image through with category "unknown".
func (a *Analyzer) ValidateImage(ctx context.Context, img *entities.ImagePart, query string) entities.ValidationResult {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeValidate,
		Parts:           []entities.Part{entities.TextPart(validationPrompt(query)), entities.ImagePromptPart(img)},
		Schema:          validationSchema,
		Temperature:     0.1,
		MaxOutputTokens: defaultMaxTokens,
	})
	if err != nil {
		a.logger.Error("Image validation failed", zap.Error(err))
		suggestion := "Image validation encountered an error. Proceeding with caution."
		return entities.ValidationResult{
			IsValid:          true,
			Category:         "unknown",
			Suggestion:       &suggestion,
			SupportedDevices: SupportedDevices,
			Error:            err.Error(),
		}
	}
	root := gjson.ParseBytes(res.Raw)
	if !root.IsObject() {
		return unclearValidation()
	}
	return processValidation(root)
}

func processValidation(root gjson.Result) entities.ValidationResult {
	category := normalizeCategory(root.Get("image_category").String())
	if category == "" {
		category = "other"
	}
	r := entities.ValidationResult{
		Category:         category,
		IsPhysicalDevice: root.Get("is_physical_device").Bool(),
		Confidence:       clampUnit(root.Get("confidence").Float()),
		Quality:          entities.QualityGood,
		WhatISee:         root.Get("what_i_see").String(),
		SupportedDevices: SupportedDevices,
	}
	r.IsValid = ValidCategory(r.Category, r.IsPhysicalDevice, r.Confidence)
	if !r.IsValid {
		reason := RejectionMessage(category, optionalString(root.Get("rejection_reason")))
		suggestion := SuggestionFor(category)
		r.RejectionReason = &reason
		r.Suggestion = &suggestion
	}
	return r
}

func unclearValidation() entities.ValidationResult {
	reason := rejectionMessages["unclear"]
	suggestion := "Please upload a clearer photo of the device you need help with."
	return entities.ValidationResult{
		Category:         "unclear",
		RejectionReason:  &reason,
		Suggestion:       &suggestion,
		SupportedDevices: SupportedDevices,
		WhatISee:         "Could not clearly identify the image contents",
	}
}
