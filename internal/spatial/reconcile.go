package spatial

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// DefaultFloor is the minimum confidence for keeping a bounding box
const DefaultFloor = 0.3

const unboxedAction = "Please try taking a clearer photo or different angle"

// Claim is one model-reported location before the consistency rules run
type Claim struct {
	Target               string
	Status               entities.LocalizationStatus
	Visible              bool
	Confidence           float64
	Box                  gjson.Result
	SpatialDescription   string
	LandmarkDescription  string
	Reasoning            string
	SuggestedAction      string
	DisambiguationNeeded bool
	AmbiguityNote        *string
	VisibleAlternatives  []string
	TypicalLocation      string
}

// ParseMultiClaim reads one entry of a batched localization reply
func ParseMultiClaim(raw gjson.Result) Claim {
	status := entities.StatusNotVisible
	if s := raw.Get("status"); s.Exists() && s.Type == gjson.String {
		status = entities.LocalizationStatus(strings.ToLower(strings.TrimSpace(s.Str)))
	}
	visible := status == entities.StatusFound
	if v := raw.Get("component_visible"); v.Exists() {
		visible = v.Bool()
	}
	c := baseClaim(raw)
	c.Target = strings.TrimSpace(raw.Get("target").String())
	c.Status = status
	c.Visible = visible
	c.Reasoning = raw.Get("reasoning").String()
	return c
}

// ParseSingleClaim reads a single-component reply and maps it onto the batch
// shape. The requested target always names the result.
func ParseSingleClaim(raw gjson.Result, target string) Claim {
	visible := raw.Get("component_visible").Bool()
	status := entities.StatusNotVisible
	switch {
	case visible:
		status = entities.StatusFound
	case raw.Get("visibility_status").String() == "not_applicable":
		status = entities.StatusNotPresent
	}
	c := baseClaim(raw)
	c.Target = target
	c.Status = status
	c.Visible = visible
	c.Reasoning = raw.Get("visibility_reason").String()
	return c
}

func baseClaim(raw gjson.Result) Claim {
	c := Claim{
		Confidence:           clamp(raw.Get("confidence").Float(), 0, 1),
		Box:                  raw.Get("bounding_box"),
		SpatialDescription:   raw.Get("spatial_description").String(),
		LandmarkDescription:  raw.Get("landmark_description").String(),
		SuggestedAction:      raw.Get("suggested_action").String(),
		DisambiguationNeeded: raw.Get("disambiguation_needed").Bool(),
		TypicalLocation:      raw.Get("typical_location").String(),
	}
	if note := raw.Get("ambiguity_note"); note.Type == gjson.String && note.Str != "" {
		s := note.Str
		c.AmbiguityNote = &s
	}
	for _, alt := range raw.Get("visible_alternatives").Array() {
		if s := strings.TrimSpace(alt.String()); s != "" {
			c.VisibleAlternatives = append(c.VisibleAlternatives, s)
		}
	}
	return c
}

// hasBox reports whether the claim carries at least the horizontal extent of
// a box
func (c Claim) hasBox() bool {
	if !c.Box.IsObject() {
		return false
	}
	_, hasMin := coord(c.Box, "x_min", "xmin")
	_, hasMax := coord(c.Box, "x_max", "xmax")
	return hasMin && hasMax
}

// ForceFoundWhenBoxed treats a returned box as evidence of visibility
func ForceFoundWhenBoxed(c Claim, floor float64) Claim {
	if !c.hasBox() {
		return c
	}
	c.Status = entities.StatusFound
	c.Visible = true
	if c.Confidence < floor {
		c.Confidence = floor
	}
	return c
}

// PromoteVisible marks a visible claim as found unless it is ambiguous
func PromoteVisible(c Claim) Claim {
	if c.Visible && c.Status != entities.StatusFound && c.Status != entities.StatusAmbiguous {
		c.Status = entities.StatusFound
	}
	return c
}

// MarkFoundVisible makes a found claim visible
func MarkFoundVisible(c Claim) Claim {
	if c.Status == entities.StatusFound {
		c.Visible = true
	}
	return c
}

// RejectUnknownStatus maps statuses outside the enumeration to not_visible
func RejectUnknownStatus(c Claim) Claim {
	if !c.Status.Valid() {
		c.Status = entities.StatusNotVisible
	}
	return c
}

// Resolve normalizes the box of a confident visible claim and demotes found
// claims left without one, so that found, visible and boxed always agree
func Resolve(c Claim, width, height int, floor float64) entities.LocalizationResult {
	var box *entities.PixelBox
	if c.Visible && c.Confidence >= floor {
		box = Normalize(c.Box, width, height)
	}

	r := entities.LocalizationResult{
		Target:               c.Target,
		Status:               c.Status,
		Confidence:           c.Confidence,
		SpatialDescription:   c.SpatialDescription,
		LandmarkDescription:  c.LandmarkDescription,
		Reasoning:            c.Reasoning,
		SuggestedAction:      c.SuggestedAction,
		DisambiguationNeeded: c.DisambiguationNeeded,
		AmbiguityNote:        c.AmbiguityNote,
		VisibleAlternatives:  c.VisibleAlternatives,
		TypicalLocation:      c.TypicalLocation,
	}
	if c.Status == entities.StatusFound && box != nil {
		r.ComponentVisible = true
		r.BoundingBox = box
		return r
	}
	if c.Status == entities.StatusFound {
		r.Status = entities.StatusNotVisible
		if r.Reasoning == "" {
			r.Reasoning = "No usable bounding box was returned for this component"
		}
		if r.SuggestedAction == "" {
			r.SuggestedAction = unboxedAction
		}
	}
	return r
}

// Reconcile applies every consistency rule to a claim in order
func Reconcile(c Claim, width, height int, floor float64) entities.LocalizationResult {
	c = ForceFoundWhenBoxed(c, floor)
	c = PromoteVisible(c)
	c = MarkFoundVisible(c)
	c = RejectUnknownStatus(c)
	return Resolve(c, width, height, floor)
}

// Consistent reports whether found, visible and boxed agree
func Consistent(r entities.LocalizationResult) bool {
	found := r.Status == entities.StatusFound
	return found == r.ComponentVisible && found == (r.BoundingBox != nil)
}
