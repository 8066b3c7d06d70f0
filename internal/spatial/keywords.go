package spatial

import "strings"

type keywordRule struct {
	component string
	patterns  []string
}

// Rules are ordered; the first matching component wins for single lookups.
var singleComponentRules = []keywordRule{
	{"reset button", []string{"reset", "reset button"}},
	{"power button", []string{"power button", "power switch", "on/off"}},
	{"power port", []string{"power", "power port", "power jack", "power socket"}},
	{"ethernet port", []string{"ethernet", "lan port", "network port"}},
	{"usb port", []string{"usb", "usb port"}},
	{"hdmi port", []string{"hdmi"}},
	{"led indicator", []string{"light", "led", "indicator", "blinking"}},
	{"screen", []string{"screen", "display", "monitor"}},
	{"speaker", []string{"speaker", "audio"}},
	{"microphone", []string{"microphone", "mic"}},
	{"camera", []string{"camera", "webcam"}},
	{"antenna", []string{"antenna", "wifi antenna"}},
	{"SSD", []string{"ssd", "solid state", "m.2"}},
	{"RAM", []string{"ram", "memory", "dimm"}},
	{"cooling fan", []string{"fan", "cooling", "cooler", "heatsink fan"}},
	{"CPU", []string{"cpu", "processor"}},
	{"GPU", []string{"gpu", "graphics card", "video card"}},
	{"battery", []string{"battery"}},
}

var multiComponentRules = []keywordRule{
	{"reset button", []string{"reset button"}},
	{"power button", []string{"power button", "power switch"}},
	{"power port", []string{"power port", "power jack"}},
	{"ethernet port", []string{"ethernet port", "lan port", "network port"}},
	{"usb port", []string{"usb port", "usb"}},
	{"hdmi port", []string{"hdmi port", "hdmi"}},
	{"led indicator", []string{"led indicator", "led", "indicator light"}},
	{"screen", []string{"screen", "display"}},
	{"speaker", []string{"speaker"}},
	{"SSD", []string{"ssd", "solid state drive", "m.2 drive", "m.2 slot"}},
	{"RAM", []string{"ram", "memory module", "dimm"}},
	{"cooling fan", []string{"cooling fan", "fan", "cooler"}},
	{"CPU", []string{"cpu", "processor"}},
	{"GPU", []string{"gpu", "graphics card", "video card"}},
	{"battery", []string{"battery"}},
	{"heatsink", []string{"heatsink", "heat sink"}},
	{"motherboard", []string{"motherboard", "mainboard"}},
	{"power supply", []string{"power supply", "psu"}},
}

// ComponentFromQuery returns the first component the query mentions, checking
// the keyword table before the detected component names. Empty when none match.
func ComponentFromQuery(query string, detected []string) string {
	q := strings.ToLower(query)
	for _, rule := range singleComponentRules {
		if containsAny(q, rule.patterns) {
			return rule.component
		}
	}
	for _, c := range detected {
		if c != "" && strings.Contains(q, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

// ComponentsFromQuery returns every component the query mentions, in table
// order, followed by mentioned detected components
func ComponentsFromQuery(query string, detected []string) []string {
	q := strings.ToLower(query)
	var found []string
	for _, rule := range multiComponentRules {
		if containsAny(q, rule.patterns) {
			found = appendUnique(found, rule.component)
		}
	}
	for _, c := range detected {
		if c != "" && strings.Contains(q, strings.ToLower(c)) {
			found = appendUnique(found, c)
		}
	}
	return found
}

// TargetsFor picks the components to locate: the intent's list, else its
// single target, else names pulled from the query, else a description of the
// query itself
func TargetsFor(targets []string, query string, detected []string) []string {
	var out []string
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" {
			out = appendUnique(out, t)
		}
	}
	if len(out) > 0 {
		return out
	}
	if found := ComponentsFromQuery(query, detected); len(found) > 0 {
		return found
	}
	if c := ComponentFromQuery(query, detected); c != "" {
		return []string{c}
	}
	return []string{"component relevant to: " + query}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
