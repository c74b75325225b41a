// MotoLink Core
// Copyright (c) 2026 The MotoLink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MotoLink Core.
//
// MotoLink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MotoLink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MotoLink Core.  If not, see <http://www.gnu.org/licenses/>.

package protocol

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Transform names the scaling applied to a raw channel value. Transforms
// are tied to the channel they scale, not generic arithmetic.
type Transform string

const (
	TransformNone        Transform = "none"
	TransformRPM         Transform = "rpm"
	TransformTPS         Transform = "tps"
	TransformTemperature Transform = "temperature"
	TransformBattery     Transform = "battery"
)

// Hidden is the ShowAtPos value of a field that is decoded but never
// displayed.
const Hidden = -1

func (t Transform) valid() bool {
	switch t {
	case "", TransformNone, TransformRPM, TransformTPS, TransformTemperature, TransformBattery:
		return true
	default:
		return false
	}
}

// Apply scales a raw value and returns it along with its display text.
func (t Transform) Apply(raw int) (float64, string) {
	switch t {
	case TransformRPM:
		// integer truncation matches the ECU scaling, do not simplify
		v := raw * 69 / 10 * 10
		return float64(v), strconv.Itoa(v)
	case TransformTPS:
		v := (raw - 58) * 6 / 10
		return float64(v), strconv.Itoa(v)
	case TransformTemperature:
		v := raw - 40
		return float64(v), strconv.Itoa(v)
	case TransformBattery:
		v := 0.0
		if raw > 0 {
			v = float64((raw+109)*5) / 100.0
		}
		return v, strconv.FormatFloat(v, 'f', 1, 64)
	default:
		return float64(raw), strconv.Itoa(raw)
	}
}

// FieldSpec describes one positional channel of a telemetry frame.
type FieldSpec struct {
	Label     string    `csv:"label" json:"label"`
	Unit      string    `csv:"unit" json:"unit"`
	Transform Transform `csv:"transform" json:"transform"`
	RawIndex  int       `csv:"raw_index" json:"rawIndex"`
	ShowAtPos int       `csv:"show_at_pos" json:"showAtPos"`
}

// Visible reports whether the field is part of a decoded reading.
func (f FieldSpec) Visible() bool {
	return f.ShowAtPos >= 0
}

// FieldTable is a validated, immutable set of FieldSpecs.
type FieldTable struct {
	fields  []FieldSpec
	visible []FieldSpec
}

// NewFieldTable validates specs and builds a table. RawIndex values must be
// unique and contiguous from 0, and visible fields must not share a
// display slot.
func NewFieldTable(specs []FieldSpec) (*FieldTable, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidTable)
	}

	fields := slices.Clone(specs)
	slices.SortFunc(fields, func(a, b FieldSpec) int {
		return a.RawIndex - b.RawIndex
	})

	slots := make(map[int]string)
	visible := make([]FieldSpec, 0, len(fields))
	for i, f := range fields {
		if f.RawIndex != i {
			return nil, fmt.Errorf(
				"%w: raw index %d is missing or duplicated", ErrInvalidTable, i)
		}
		if f.Label == "" {
			return nil, fmt.Errorf("%w: field %d has no label", ErrInvalidTable, i)
		}
		if !f.Transform.valid() {
			return nil, fmt.Errorf(
				"%w: field %s has unknown transform %q", ErrInvalidTable, f.Label, f.Transform)
		}
		if f.Transform == "" {
			fields[i].Transform = TransformNone
		}
		if f.ShowAtPos < Hidden {
			fields[i].ShowAtPos = Hidden
			continue
		}
		if !f.Visible() {
			continue
		}
		if other, ok := slots[f.ShowAtPos]; ok {
			return nil, fmt.Errorf(
				"%w: fields %s and %s share display slot %d",
				ErrInvalidTable, other, f.Label, f.ShowAtPos)
		}
		slots[f.ShowAtPos] = f.Label
		visible = append(visible, fields[i])
	}

	slices.SortFunc(visible, func(a, b FieldSpec) int {
		return a.ShowAtPos - b.ShowAtPos
	})

	return &FieldTable{fields: fields, visible: visible}, nil
}

// Fields returns every field in wire order.
func (t *FieldTable) Fields() []FieldSpec {
	return slices.Clone(t.fields)
}

// Visible returns the displayed fields in display order.
func (t *FieldTable) Visible() []FieldSpec {
	return slices.Clone(t.visible)
}

// Labels returns the field labels in wire order.
func (t *FieldTable) Labels() []string {
	labels := make([]string, len(t.fields))
	for i, f := range t.fields {
		labels[i] = f.Label
	}
	return labels
}

// Equal reports whether both tables hold the same fields.
func (t *FieldTable) Equal(other *FieldTable) bool {
	if t == nil || other == nil {
		return t == other
	}
	return slices.Equal(t.fields, other.fields)
}

func (t *FieldTable) Len() int {
	return len(t.fields)
}

// Lookup finds a field by label.
func (t *FieldTable) Lookup(label string) (FieldSpec, bool) {
	for _, f := range t.fields {
		if f.Label == label {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Labels of the channels the bridge firmware reports.
const (
	LabelRPM  = "RPM"
	LabelTPS  = "TPS"
	LabelECT  = "ECT"
	LabelIAT  = "IAT"
	LabelBatt = "BATT"
	LabelGear = "Gear"
)

// telemetryFields is the number of payload channels in a full frame.
const telemetryFields = TelemetryFrameLength - HeaderSize

// textLeadingFields is the number of tokens the legacy text format sends
// ahead of the first payload channel.
const textLeadingFields = 2

var knownFields = map[int]FieldSpec{
	17: {Label: LabelRPM, Unit: "rpm", Transform: TransformRPM, ShowAtPos: 0},
	19: {Label: LabelTPS, Unit: "%", Transform: TransformTPS, ShowAtPos: 1},
	21: {Label: LabelECT, Unit: "°C", Transform: TransformTemperature, ShowAtPos: 2},
	22: {Label: LabelIAT, Unit: "°C", Transform: TransformTemperature, ShowAtPos: 3},
	24: {Label: LabelBatt, Unit: "V", Transform: TransformBattery, ShowAtPos: 4},
	26: {Label: LabelGear, Transform: TransformNone, ShowAtPos: 5},
}

// DefaultFieldTable returns the field table for the SV650 bridge firmware
// in the given encoding. Text lines carry two leading tokens before the
// first payload channel.
func DefaultFieldTable(enc Encoding) *FieldTable {
	offset := 0
	if enc == EncodingText {
		offset = textLeadingFields
	}

	specs := make([]FieldSpec, 0, telemetryFields+offset)
	for i := range offset {
		specs = append(specs, FieldSpec{
			Label:     "H" + strconv.Itoa(i),
			Transform: TransformNone,
			RawIndex:  i,
			ShowAtPos: Hidden,
		})
	}
	for i := range telemetryFields {
		spec, ok := knownFields[i]
		if !ok {
			spec = FieldSpec{
				Label:     fmt.Sprintf("D%02d", i),
				Transform: TransformNone,
				ShowAtPos: Hidden,
			}
		}
		spec.RawIndex = i + offset
		specs = append(specs, spec)
	}

	table, err := NewFieldTable(specs)
	if err != nil {
		panic(fmt.Sprintf("default field table: %v", err))
	}
	return table
}

type yamlField struct {
	ShowAtPos *int      `yaml:"show_at_pos"`
	Label     string    `yaml:"label"`
	Unit      string    `yaml:"unit"`
	Transform Transform `yaml:"transform"`
	RawIndex  int       `yaml:"raw_index"`
}

type yamlTable struct {
	Fields []yamlField `yaml:"fields"`
}

// LoadFieldTable reads a field table from YAML:
//
//	fields:
//	  - label: RPM
//	    unit: rpm
//	    raw_index: 0
//	    show_at_pos: 0
//	    transform: rpm
//
// A field without show_at_pos is hidden.
func LoadFieldTable(r io.Reader) (*FieldTable, error) {
	var doc yamlTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	specs := make([]FieldSpec, len(doc.Fields))
	for i, f := range doc.Fields {
		pos := Hidden
		if f.ShowAtPos != nil {
			pos = *f.ShowAtPos
		}
		specs[i] = FieldSpec{
			Label:     f.Label,
			Unit:      f.Unit,
			Transform: f.Transform,
			RawIndex:  f.RawIndex,
			ShowAtPos: pos,
		}
	}

	return NewFieldTable(specs)
}
