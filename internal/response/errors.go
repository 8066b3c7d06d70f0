package response

import (
	"github.com/satriahrh/fixit/server/domain/entities"
)

const errorAudio = "I'm temporarily unable to process your request. Please try again later."

func unknownDeviceInfo() *entities.DeviceInfo {
	return &entities.DeviceInfo{
		DeviceCategory: "unknown",
		DeviceType:     entities.DeviceTypeUnknown,
		Brand:          "unknown",
		Model:          "not visible",
		Components:     []string{},
	}
}

// ErrorDocument is returned with HTTP 200 when the analysis itself failed.
// retryAfter is empty unless the model is known to be unavailable for a while.
func ErrorDocument(message, retryAfter string) *entities.TroubleshootResponse {
	return &entities.TroubleshootResponse{
		AnswerType:        entities.DefaultAnswerType,
		Message:           message,
		SectionTitle:      "Error",
		DeviceInfo:        unknownDeviceInfo(),
		Visualizations:    []*entities.Visualization{},
		AudioInstructions: errorAudio,
		Status:            entities.StatusError,
		DeviceIdentified:  entities.DeviceTypeUnknown,
		ConfidenceLevel:   entities.ConfidenceLow,
		IssueDiagnosis:    message,
		RetryAfter:        retryAfter,
	}
}

// PanicDocument reports an unexpected failure inside the pipeline
func PanicDocument(cause string) *entities.TroubleshootResponse {
	doc := ErrorDocument("An error occurred: "+cause, "")
	doc.IssueDiagnosis = "Error: " + cause
	doc.AudioInstructions = "I encountered an error during analysis. Please try again."
	return doc
}
