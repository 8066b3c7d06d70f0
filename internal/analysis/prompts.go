package analysis

import (
	"fmt"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

const combinedInstructions = `You are FixIt, an assistant that helps people troubleshoot physical devices from a photo.
Analyze the image and the user's question and reply with ONE JSON object with four sections.

"validation": decide whether the photo shows a real physical device.
  image_category: device, electronic_component, circuit_board, appliance, software_screenshot,
    person, document, artwork, nature, food, unclear or other
  is_valid, is_physical_device, confidence (0-1), image_quality (good, blurry, dark, too_far, partial),
  what_i_see, rejection_reason (null when valid), suggestion,
  multiple_devices and device_list when more than one distinct device is shown.

"device": identify the device.
  device_type, device_category, brand ("unknown" if no label is readable), model ("not visible"
  if no model number is readable), brand_model_guidance (where to find the label when unknown),
  device_confidence (0-1), confidence_level (high, medium, low), components (visible parts),
  reasoning, what_i_see, suggestions, clarifying_questions.
  Use device_type "not_a_device" when the photo does not show a device at all.

"query": classify what the user is asking.
  query_type, answer_type (one of: locate_only, identify_only, explain_only, troubleshoot_steps,
  diagnose_only, mixed, ask_clarifying_questions, safety_warning_only), target_component,
  target_components (every component the user names), action_requested, needs_localization,
  needs_steps, needs_explanation, multi_intent_count, detected_intents, clarification_needed,
  clarifying_questions, confidence.
  "Where is X" is locate_only. "What is this" alone is identify_only; together with a question
  about how it works use mixed. Requests for a fix are troubleshoot_steps. Questions about what
  an LED pattern or symptom means are diagnose_only. Use mixed when the user asks for more than one
  of these.

"safety": flag hazards visible in the photo or described in the query.
  safety_detected, safety_severity (none, warning, critical), safety_keywords_found,
  safety_message, override_answer_type.
  Smoke, fire, burning, melting, sparking, exposed mains wiring or a swollen battery are critical:
  set override_answer_type true. Heat, moving parts or toner are warnings: override stays false.`

func combinedPrompt(query, deviceHint string) string {
	var b strings.Builder
	b.WriteString(combinedInstructions)
	fmt.Fprintf(&b, "\n\nUser question: %q", query)
	if hint := strings.TrimSpace(deviceHint); hint != "" {
		fmt.Fprintf(&b, "\nThe user says the device is: %q", hint)
	}
	b.WriteString("\n\nReturn only the JSON object.")
	return b.String()
}

func validationPrompt(query string) string {
	return fmt.Sprintf(`Decide whether this photo shows a physical electronic device or appliance that someone
could need help troubleshooting.

Valid: devices, electronic components, circuit boards and appliances photographed in real life.
Invalid: software or game screenshots, people, documents, artwork or renders, nature, food,
and photos too unclear to identify.

User question: %q

Set image_category, is_physical_device, confidence, what_i_see, and rejection_reason when the
photo is not valid.`, query)
}

func detectionPrompt(query string) string {
	return fmt.Sprintf(`Identify the device in this photo.

Read brand and model only from labels you can actually see; otherwise use "unknown" for brand
and "not visible" for model. List the components you can see. When you are unsure, lower
device_confidence, set is_identifiable false, and add suggestions and clarifying_questions that
would help identify it. Use device_type "not_a_device" when there is no device in the photo.

User question: %q`, query)
}

func groundingPrompt(device entities.DeviceProfile, query, manualContext string) string {
	contextLine := "No manual context available - rely on web search."
	if manualContext != "" {
		contextLine = "Existing manual context: " + truncate(manualContext, 500)
	}
	return fmt.Sprintf(`Search the web for current, official guidance about this device.

Device: %s
User question: %q
%s

Summarize what the manufacturer and reliable sources recommend for this question: known issues,
official troubleshooting procedures, firmware or driver notes and safety advisories. Be concise
and practical.`, DeviceLabel(device), query, contextLine)
}

func contentContext(req ContentRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Device: %s\n", DeviceLabel(req.Device))
	if len(req.Device.Components) > 0 {
		fmt.Fprintf(&b, "Visible components: %s\n", strings.Join(req.Device.Components, ", "))
	}
	fmt.Fprintf(&b, "User question: %q\n", req.Query)
	if req.Spatial != nil {
		fmt.Fprintf(&b, "Located component: %s (%s)\n", req.Spatial.Component, req.Spatial.SpatialDescription)
	}
	if req.Grounding != "" {
		fmt.Fprintf(&b, "Web guidance:\n%s\n", truncate(req.Grounding, 1500))
	}
	if req.Safety.Detected && req.Safety.Message != nil {
		fmt.Fprintf(&b, "Safety concern: %s\n", *req.Safety.Message)
	}
	return b.String()
}

func explainPrompt(req ContentRequest) string {
	return contentContext(req) + `
Explain how this device works for a non-expert: a short overview, the key components with
their function and where they are, how it works, and the most common issues.`
}

func diagnosisPrompt(req ContentRequest) string {
	return contentContext(req) + `
Diagnose the issue the user describes. Interpret any LED colors or blink patterns visible in the
photo. Give the likely issue, severity (low, medium, high, critical), possible causes, the
indicators you used and whether a professional is needed. Do not give repair steps.`
}

func stepsPrompt(req ContentRequest) string {
	return contentContext(req) + `
Write numbered troubleshooting steps for this exact device, simplest and safest first. Each step
has an instruction, a visual cue the user can check, an estimated time and a safety note when
relevant. Add a short diagnosis, spoken audio instructions, warnings and when to seek
professional help.`
}

func cautiousPrompt(req ContentRequest) string {
	return contentContext(req) + `
The device identification is uncertain. Write only general, low-risk troubleshooting steps that
are safe for most devices of this kind. Start with a step asking the user to confirm the device
type. Never suggest opening the device. Add spoken audio instructions and when to seek help.`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
