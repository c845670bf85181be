package core

import (
	"fmt"
	"image/color"
	"strings"

	"connmatrix/pkg/analyzerapi"
	"connmatrix/pkg/domain"
)

// ColorScale maps a field name and a result's scalar fields to a base
// color. The engine depends only on this signature; the mapping internals
// are the provider's concern.
type ColorScale func(field string, result domain.ElementResult) color.RGBA

// Fixed display constants, preserved exactly for visual parity with the
// original tool.
const (
	// contrastThreshold is the r+g+b channel sum below which text renders
	// white; a sum of exactly 384 renders black.
	contrastThreshold = 384
)

var (
	neutralColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	noDataBG     = color.RGBA{R: 240, G: 240, B: 240, A: 255}
	noDataFG     = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	noDataBorder = color.RGBA{R: 128, G: 128, B: 128, A: 80}
	whiteText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	blackText    = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	defaultEdge  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// DisplayMapper turns one element result into a rendered cell: color scale
// for the background, confidence-weighted desaturation toward neutral,
// luminance-sum text contrast, and templated cell text.
type DisplayMapper struct {
	scale    ColorScale
	fields   []analyzerapi.Field
	defaults []string
	selected string
	template displayTemplate
}

// NewDisplayMapper constructs a mapper with the given scale provider; nil
// falls back to a linear gray-to-blue ramp over [0,1].
func NewDisplayMapper(scale ColorScale) *DisplayMapper {
	if scale == nil {
		scale = defaultColorScale
	}
	return &DisplayMapper{scale: scale}
}

// SetFields re-derives the selectable field options from an analyzer's
// declaration, resetting the selected field and text template to the
// analyzer's defaults. Called whenever the active analyzer changes.
func (m *DisplayMapper) SetFields(fields []analyzerapi.Field, defaults []string) error {
	if len(fields) == 0 {
		return domain.ConfigError{Reason: "analyzer declares no output fields"}
	}
	m.fields = append([]analyzerapi.Field(nil), fields...)
	m.defaults = append([]string(nil), defaults...)
	selected := fields[0].Name
	if len(defaults) > 0 {
		selected = defaults[0]
	}
	if err := m.SelectField(selected); err != nil {
		return err
	}
	return m.SetTemplate("{" + selected + ":%.2f}")
}

// Fields returns the current selectable field options.
func (m *DisplayMapper) Fields() []analyzerapi.Field {
	return append([]analyzerapi.Field(nil), m.fields...)
}

// SelectedField returns the field currently being color-mapped.
func (m *DisplayMapper) SelectedField() string { return m.selected }

// SelectField switches the statistic being color-mapped. Unknown names
// fail against the declared field set.
func (m *DisplayMapper) SelectField(name string) error {
	if m.lookup(name) == nil {
		return domain.InvalidValueError{Field: "display field", Value: name, Allowed: m.fieldNames()}
	}
	m.selected = name
	return nil
}

// SetTemplate installs the cell text template, validating every referenced
// field name eagerly so a bad template fails once at configuration time
// rather than per cell at render time.
func (m *DisplayMapper) SetTemplate(tpl string) error {
	parsed, err := parseDisplayTemplate(tpl)
	if err != nil {
		return err
	}
	for _, seg := range parsed.segments {
		if seg.field == "" {
			continue
		}
		if m.lookup(seg.field) == nil {
			return domain.InvalidValueError{Field: "template field", Value: seg.field, Allowed: m.fieldNames()}
		}
	}
	m.template = parsed
	return nil
}

// Map encodes one result as a display cell. The analyzer's own display
// override, when present and claiming the element, wins outright.
func (m *DisplayMapper) Map(result domain.ElementResult, override analyzerapi.DisplayOverrider) analyzerapi.CellDisplay {
	if override != nil {
		if cell, ok := override.Display(result.Key, result); ok {
			return cell
		}
	}
	if result.NoData {
		return analyzerapi.CellDisplay{Text: "", FG: noDataFG, BG: noDataBG, Border: noDataBorder}
	}

	bg := m.scale(m.selected, result)
	if lower, upper, ok := m.interval(result); ok {
		bg = blendConfidence(bg, lower, upper)
	}
	return analyzerapi.CellDisplay{
		Text:   m.template.render(result),
		FG:     contrastText(bg),
		BG:     bg,
		Border: defaultEdge,
	}
}

func (m *DisplayMapper) lookup(name string) *analyzerapi.Field {
	for i := range m.fields {
		if m.fields[i].Name == name {
			return &m.fields[i]
		}
	}
	return nil
}

func (m *DisplayMapper) fieldNames() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Name
	}
	return out
}

// interval resolves the confidence-interval bounds for the selected field:
// the field's declared companion first, then the conventional name.
func (m *DisplayMapper) interval(result domain.ElementResult) (lower, upper float64, ok bool) {
	if f := m.lookup(m.selected); f != nil && f.Interval != "" {
		if lo, hi, found := result.Interval(f.Interval); found {
			return lo, hi, true
		}
	}
	return result.Interval("confidence_interval")
}

// blendConfidence desaturates the base color toward neutral gray by
// squared interval-width confidence: a zero-width interval keeps the base
// color, a unit-width interval collapses to neutral. Low-confidence
// buckets stay visible instead of being discarded.
func blendConfidence(base color.RGBA, lower, upper float64) color.RGBA {
	confidence := 1 - (upper - lower)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	confidence *= confidence
	mix := func(b, n uint8) uint8 {
		return uint8(float64(b)*confidence + float64(n)*(1-confidence) + 0.5)
	}
	return color.RGBA{
		R: mix(base.R, neutralColor.R),
		G: mix(base.G, neutralColor.G),
		B: mix(base.B, neutralColor.B),
		A: base.A,
	}
}

// contrastText picks white text when the background channel sum falls
// below the fixed threshold, black otherwise (384 itself renders black).
// Deliberately a luminance-sum heuristic, not perceptual luminance.
func contrastText(bg color.RGBA) color.RGBA {
	if int(bg.R)+int(bg.G)+int(bg.B) < contrastThreshold {
		return whiteText
	}
	return blackText
}

// defaultColorScale linearly ramps the selected field value from light
// gray to saturated blue over [0, 1], clamping outside the range.
func defaultColorScale(field string, result domain.ElementResult) color.RGBA {
	value, ok := result.Float(field)
	if !ok {
		return neutralColor
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	ramp := func(from, to uint8) uint8 {
		return uint8(float64(from) + (float64(to)-float64(from))*value + 0.5)
	}
	return color.RGBA{R: ramp(230, 0), G: ramp(230, 60), B: ramp(230, 255), A: 255}
}

// displayTemplate is a parsed cell text template: literal runs mixed with
// {field:verb} placeholders formatted against the result's field mapping.
type displayTemplate struct {
	segments []templateSegment
}

type templateSegment struct {
	literal string
	field   string
	verb    string
}

func parseDisplayTemplate(tpl string) (displayTemplate, error) {
	var parsed displayTemplate
	for len(tpl) > 0 {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			parsed.segments = append(parsed.segments, templateSegment{literal: tpl})
			break
		}
		if open > 0 {
			parsed.segments = append(parsed.segments, templateSegment{literal: tpl[:open]})
		}
		tpl = tpl[open+1:]
		end := strings.IndexByte(tpl, '}')
		if end < 0 {
			return displayTemplate{}, fmt.Errorf("unterminated placeholder in template")
		}
		body := tpl[:end]
		tpl = tpl[end+1:]
		field, verb := body, "%v"
		if colon := strings.IndexByte(body, ':'); colon >= 0 {
			field, verb = body[:colon], body[colon+1:]
		}
		if field == "" {
			return displayTemplate{}, fmt.Errorf("empty field name in template placeholder")
		}
		parsed.segments = append(parsed.segments, templateSegment{field: field, verb: verb})
	}
	return parsed, nil
}

func (t displayTemplate) render(result domain.ElementResult) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.field == "" {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := result.Fields[seg.field]
		if !ok {
			b.WriteString("-")
			continue
		}
		fmt.Fprintf(&b, seg.verb, value)
	}
	return b.String()
}
