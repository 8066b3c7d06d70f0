package spatial

import (
	"fmt"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

const (
	batchDeviceComponents  = 8
	singleDeviceComponents = 5
)

var boxSchema = &entities.Schema{
	Type:     entities.SchemaObject,
	Nullable: true,
	Properties: map[string]*entities.Schema{
		"x_min": {Type: entities.SchemaNumber},
		"y_min": {Type: entities.SchemaNumber},
		"x_max": {Type: entities.SchemaNumber},
		"y_max": {Type: entities.SchemaNumber},
	},
	Required: []string{"x_min", "y_min", "x_max", "y_max"},
}

var stringList = &entities.Schema{Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}}

var batchSchema = &entities.Schema{
	Type: entities.SchemaObject,
	Properties: map[string]*entities.Schema{
		"results": {
			Type: entities.SchemaArray,
			Items: &entities.Schema{
				Type: entities.SchemaObject,
				Properties: map[string]*entities.Schema{
					"target": {Type: entities.SchemaString},
					"status": {
						Type: entities.SchemaString,
						Enum: []string{"found", "not_visible", "not_present", "ambiguous"},
					},
					"component_visible":    {Type: entities.SchemaBoolean},
					"spatial_description":  {Type: entities.SchemaString},
					"landmark_description": {Type: entities.SchemaString},
					"bounding_box":         boxSchema,
					"confidence":           {Type: entities.SchemaNumber},
					"suggested_action":     {Type: entities.SchemaString, Nullable: true},
					"visible_alternatives": stringList,
					"typical_location":     {Type: entities.SchemaString},
					"reasoning":            {Type: entities.SchemaString},
				},
				Required: []string{"target", "status", "spatial_description", "confidence"},
			},
		},
	},
	Required: []string{"results"},
}

var singleSchema = &entities.Schema{
	Type: entities.SchemaObject,
	Properties: map[string]*entities.Schema{
		"component_name":    {Type: entities.SchemaString},
		"component_visible": {Type: entities.SchemaBoolean},
		"visibility_status": {
			Type: entities.SchemaString,
			Enum: []string{"visible", "partially_visible", "not_visible", "not_applicable"},
		},
		"visibility_reason":     {Type: entities.SchemaString},
		"spatial_description":   {Type: entities.SchemaString},
		"landmark_description":  {Type: entities.SchemaString},
		"bounding_box":          boxSchema,
		"confidence":            {Type: entities.SchemaNumber},
		"suggested_action":      {Type: entities.SchemaString, Nullable: true},
		"visible_alternatives":  stringList,
		"typical_location":      {Type: entities.SchemaString},
		"disambiguation_needed": {Type: entities.SchemaBoolean},
		"ambiguity_note":        {Type: entities.SchemaString, Nullable: true},
	},
	Required: []string{"component_name", "component_visible", "visibility_status", "confidence"},
}

var detectionSchema = &entities.Schema{
	Type: entities.SchemaObject,
	Properties: map[string]*entities.Schema{
		"visible_components": stringList,
		"reasoning":          {Type: entities.SchemaString},
	},
	Required: []string{"visible_components"},
}

const coordinateRules = `Bounding boxes use normalized coordinates: decimals from 0.0 to 1.0 where
x=0 is the left edge, x=1 the right edge, y=0 the top edge and y=1 the bottom edge.
Never return pixels or percentages. Keep x_min < x_max and y_min < y_max, with each side at
least 0.04. A slightly larger box is better than one that misses the component.`

func deviceContext(device *entities.DeviceProfile, maxComponents int) string {
	if device == nil || !device.Identified() {
		return ""
	}
	s := "This device was identified as: " + device.DeviceType
	if len(device.Components) > 0 {
		n := min(len(device.Components), maxComponents)
		s += "\nAlready detected components: " + strings.Join(device.Components[:n], ", ")
	}
	return s
}

func batchPrompt(targets []string, width, height int, device *entities.DeviceProfile) string {
	quoted := make([]string, len(targets))
	for i, t := range targets {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf(`You locate components in device photos.

The image is %d x %d pixels.
Locate each of these components: %s
%s

If a component can be seen at all, even partially, at an angle or blurred, set status "found",
component_visible true, a bounding box and confidence of at least 0.4. Use "not_visible" only
when it is on the hidden side of the device or fully enclosed, and "not_present" when this
device does not have it.

%s

Return one result per target in the order given. Copy the target name exactly; never use
"unknown" or "component". Keep reasoning to one or two sentences.`,
		width, height, strings.Join(quoted, ", "), deviceContext(device, batchDeviceComponents), coordinateRules)
}

func singlePrompt(target string, width, height int, device *entities.DeviceProfile) string {
	return fmt.Sprintf(`You locate components in device photos.

The image is %d x %d pixels.
Locate: %q
%s

Set component_visible true and give a bounding box when the component can be seen, even
partially. Otherwise explain in visibility_reason why it cannot be seen, where it is typically
located and which related parts are visible. Use visibility_status "not_applicable" when this
device does not have such a component.

%s`,
		width, height, target, deviceContext(device, singleDeviceComponents), coordinateRules)
}

func detectionPrompt(device *entities.DeviceProfile) string {
	var intro string
	if device != nil && device.Identified() {
		intro = fmt.Sprintf("This is a %s.\n", device.DeviceType)
	}
	return intro + `List every major component visible in this image, scanning from top-left to
bottom-right. Include boards and modules, connectors and ports, fans, storage and slots, power
parts, buttons, LEDs and displays. Be specific and include counts where useful, for example
"4x Ethernet LAN ports" or "RAM slot 1". Aim for eight to fifteen entries.`
}
