package pagecontext

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

type fieldKind int

const (
	textField fieldKind = iota
	yesNoField
)

// Field is one "Label: value" line of a page's context block. Path is a gjson
// path into the page payload.
type Field struct {
	Label   string
	Path    string
	Default string
	kind    fieldKind
}

// Text declares a field rendered verbatim, or as def when the value is unset.
func Text(label, path, def string) Field {
	return Field{Label: label, Path: path, Default: def, kind: textField}
}

// YesNo declares a field rendered as Yes for a truthy value and No otherwise.
func YesNo(label, path string) Field {
	return Field{Label: label, Path: path, kind: yesNoField}
}

// Page is the static prompt configuration for one screen.
type Page struct {
	BasePrompt  string
	Suggestions []string
	Header      string
	Fields      []Field
}

// Render fills the page's context block from data.
func (p Page) Render(data []byte) string {
	var b strings.Builder
	b.WriteString(p.Header)
	for _, f := range p.Fields {
		b.WriteString("\n")
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.value(data))
	}
	return b.String()
}

func (f Field) value(data []byte) string {
	r := gjson.GetBytes(data, f.Path)
	if f.kind == yesNoField {
		if truthy(r) {
			return "Yes"
		}
		return "No"
	}
	if !truthy(r) {
		return f.Default
	}
	return text(r)
}

// text renders r as the client's string interpolation would: arrays are
// joined with commas and null elements become empty.
func text(r gjson.Result) string {
	if !r.IsArray() {
		if r.Type == gjson.Null {
			return ""
		}
		return r.String()
	}
	items := r.Array()
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = text(item)
	}
	return strings.Join(parts, ",")
}

// truthy mirrors the client's notion of a present value: missing, null,
// false, zero and the empty string all count as unset.
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	}
	return true
}

// Pages maps page names to their prompt configuration.
type Pages map[string]Page

// Compose merges the named page's base prompt with its rendered context. An
// unknown page yields the empty string. The result depends only on name and
// data.
func (ps Pages) Compose(name string, data []byte) string {
	p, ok := ps[name]
	if !ok {
		return ""
	}
	return p.BasePrompt + "\n\n" + p.Render(data)
}

// Suggestions returns the page's chips, or nil for an unknown page.
func (ps Pages) Suggestions(name string) []string {
	p, ok := ps[name]
	if !ok {
		return nil
	}
	return append([]string(nil), p.Suggestions...)
}

// Names returns the known page names in sorted order.
func (ps Pages) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultPages holds the crops, carbon and energy screens.
func DefaultPages() Pages {
	return Pages{
		"crops": {
			BasePrompt: `You are an agricultural AI assistant specializing in crop analysis. Help the user understand:
- Current crop performance metrics
- Growth stage analysis
- Yield predictions
- Pest and disease risks
- Recommended actions`,
			Suggestions: []string{
				"Analyze crop health",
				"Predict yield",
				"Check disease risks",
				"Growth timeline",
				"Improvement tips",
			},
			Header: "Analyzing crop data for:",
			Fields: []Field{
				Text("Primary Crop", "result.primaryCrop", "Not specified"),
				Text("Secondary Crop", "result.secondaryCrop", "Not specified"),
				Text("Water Needs", "result.waterNeeds", "Unknown"),
				Text("Climate Match", "result.climateMatch", "Unknown"),
				Text("Soil Type", "result.soilType", "Unknown"),
				Text("Growing Season", "result.growingSeason", "Unknown"),
			},
		},
		"carbon": {
			BasePrompt: `You are a carbon footprint analysis expert. Help the user understand:
- Current carbon emissions
- Carbon reduction opportunities
- Sustainable practices
- Carbon credit potential
- Environmental impact`,
			Suggestions: []string{
				"Current emissions",
				"Reduction strategies",
				"Carbon credits",
				"Best practices",
				"Impact analysis",
			},
			Header: "Analyzing carbon data:",
			Fields: []Field{
				Text("Status", "status", "In Progress"),
				Text("Current Emissions", "emissions", "Not available"),
				Text("Reduction Target", "target", "Not set"),
				YesNo("Credit Eligibility", "creditEligible"),
			},
		},
		"energy": {
			BasePrompt: `You are an agricultural energy efficiency expert. Help the user understand:
- Energy consumption patterns
- Efficiency opportunities
- Renewable energy potential
- Cost optimization
- Sustainable practices`,
			Suggestions: []string{
				"Energy usage",
				"Cost analysis",
				"Efficiency tips",
				"Renewable options",
				"ROI calculator",
			},
			Header: "Analyzing energy data:",
			Fields: []Field{
				Text("Status", "status", "In Progress"),
				Text("Current Usage", "usage", "Not available"),
				Text("Peak Times", "peakTimes", "Unknown"),
				Text("Efficiency Score", "efficiencyScore", "Not calculated"),
			},
		},
	}
}
