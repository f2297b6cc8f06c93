/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed scene.schema.json
var schemaJSON []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// wireObject is the persisted form of one object: a flat record tagged with "type".
type wireObject struct {
	Type   string  `json:"type"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle,omitempty"`
	FlipX  bool    `json:"flipX,omitempty"`
	FlipY  bool    `json:"flipY,omitempty"`

	Fill         string          `json:"fill,omitempty"`
	Stroke       string          `json:"stroke,omitempty"`
	StrokeWidth  float64         `json:"strokeWidth,omitempty"`
	Opacity      *float64        `json:"opacity,omitempty"`
	Text         string          `json:"text,omitempty"`
	TextColor    string          `json:"textColor,omitempty"`
	FontFamily   string          `json:"fontFamily,omitempty"`
	FontWeight   json.RawMessage `json:"fontWeight,omitempty"`
	FontSize     float64         `json:"fontSize,omitempty"`
	TextAlign    string          `json:"textAlign,omitempty"`
	LineHeight   float64         `json:"lineHeight,omitempty"`
	CornerRadius float64         `json:"cornerRadius,omitempty"`
	Src          string          `json:"src,omitempty"`

	Visible  *bool    `json:"visible,omitempty"`
	Locked   bool     `json:"locked,omitempty"`
	Metadata Metadata `json:"metadata"`
}

var metadataKeys = map[string]bool{"id": true, "createdAt": true, "kind": true, "customName": true, "isMainFrame": true, "aspectRatio": true}

// MarshalJSON flattens Extra next to the known keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+6)
	for k, v := range m.Extra {
		if !metadataKeys[k] {
			out[k] = v
		}
	}
	out["id"] = m.ID
	if !m.CreatedAt.IsZero() {
		out["createdAt"] = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if m.Kind != "" {
		out["kind"] = string(m.Kind)
	}
	if m.CustomName != "" {
		out["customName"] = m.CustomName
	}
	if m.IsMainFrame {
		out["isMainFrame"] = true
	}
	if m.AspectRatio != 0 {
		out["aspectRatio"] = m.AspectRatio
	}
	return json.Marshal(out)
}

// UnmarshalJSON keeps unknown keys in Extra. createdAt accepts RFC 3339 or epoch millis.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &m.ID)
		case "kind":
			var s string
			err = json.Unmarshal(v, &s)
			m.Kind = Kind(s)
		case "customName":
			err = json.Unmarshal(v, &m.CustomName)
		case "isMainFrame":
			err = json.Unmarshal(v, &m.IsMainFrame)
		case "aspectRatio":
			err = json.Unmarshal(v, &m.AspectRatio)
		case "createdAt":
			m.CreatedAt = parseCreatedAt(v)
		default:
			var x any
			if err = json.Unmarshal(v, &x); err == nil {
				if m.Extra == nil {
					m.Extra = make(map[string]any)
				}
				m.Extra[k] = x
			}
		}
		if err != nil {
			return fmt.Errorf("metadata.%s: %w", k, err)
		}
	}
	return nil
}

func parseCreatedAt(v json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(v, &s) == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}
	var ms int64
	if json.Unmarshal(v, &ms) == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// parseWeight accepts 400, "400", "bold" and "normal".
func parseWeight(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return 0
	}
	switch strings.ToLower(s) {
	case "bold":
		return 700
	case "normal":
		return 400
	}
	n, _ = strconv.Atoi(s)
	return n
}

func toWire(o Object) wireObject {
	g, v := o.Geometry, o.Visual
	w := wireObject{
		Type: TypeTag(o.Kind),
		Left: g.Left, Top: g.Top, Width: g.Width, Height: g.Height,
		ScaleX: g.ScaleX, ScaleY: g.ScaleY, Angle: g.Angle, FlipX: g.FlipX, FlipY: g.FlipY,
		Fill: v.Fill, Stroke: v.Stroke, StrokeWidth: v.StrokeWidth, Opacity: Ptr(v.Opacity),
		Text: v.Text, TextColor: v.TextColor, FontFamily: v.FontFamily, FontSize: v.FontSize,
		TextAlign: v.TextAlign, LineHeight: v.LineHeight, CornerRadius: v.CornerRadius, Src: v.Src,
		Visible: Ptr(o.Visible), Locked: o.Locked, Metadata: o.Metadata,
	}
	if v.FontWeight != 0 {
		w.FontWeight = json.RawMessage(strconv.Itoa(v.FontWeight))
	}
	w.Metadata.ID = o.ID
	w.Metadata.Kind = o.Kind
	return w
}

func fromWire(w wireObject, kind Kind) Object {
	o := Object{
		ID:   w.Metadata.ID,
		Kind: kind,
		Geometry: Geometry{Left: w.Left, Top: w.Top, Width: w.Width, Height: w.Height,
			ScaleX: w.ScaleX, ScaleY: w.ScaleY, Angle: w.Angle, FlipX: w.FlipX, FlipY: w.FlipY},
		Visual: Visual{Fill: w.Fill, Stroke: w.Stroke, StrokeWidth: w.StrokeWidth, Opacity: 1,
			Text: w.Text, TextColor: w.TextColor, FontFamily: w.FontFamily, FontWeight: parseWeight(w.FontWeight),
			FontSize: w.FontSize, TextAlign: w.TextAlign, LineHeight: w.LineHeight,
			CornerRadius: w.CornerRadius, Src: w.Src},
		Metadata: w.Metadata,
		Visible:  true,
		Locked:   w.Locked,
	}
	if w.Opacity != nil {
		o.Visual.Opacity = *w.Opacity
	}
	if w.Visible != nil {
		o.Visible = *w.Visible
	}
	if o.Geometry.ScaleX == 0 {
		o.Geometry.ScaleX = 1
	}
	if o.Geometry.ScaleY == 0 {
		o.Geometry.ScaleY = 1
	}
	o.Metadata.Kind = kind
	o.Metadata.IsMainFrame = kind == KindFrame
	if o.IsFrame() && o.Metadata.AspectRatio == 0 && o.Geometry.Height != 0 {
		o.Metadata.AspectRatio = o.Geometry.Width / o.Geometry.Height
	}
	return o
}

// EncodeScene writes objs, in order, as a JSON array.
func EncodeScene(objs []Object) ([]byte, error) {
	wire := make([]wireObject, len(objs))
	for i, o := range objs {
		wire[i] = toWire(o)
	}
	return json.MarshalIndent(wire, "", "  ")
}

// DecodeResult is the outcome of DecodeScene.
type DecodeResult struct {
	Objects []Object
	// Skipped counts entries with a missing or unknown type.
	Skipped int
}

// ValidateScene checks data against the embedded scene schema.
func ValidateScene(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load scene schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Validationf("import", "", "parse scene: %v", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Validationf("import", "", "scene does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeScene validates and reconstructs objects in array order. Entries whose type
// cannot be classified are skipped. Missing or repeated ids get a fresh id; only the
// first frame keeps the frame flag, later ones become shapes.
func DecodeScene(data []byte) (DecodeResult, error) {
	var res DecodeResult
	if err := ValidateScene(data); err != nil {
		return res, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return res, Validationf("import", "", "decode scene: %v", err)
	}
	seen := make(map[string]bool, len(raw))
	haveFrame := false
	for i, r := range raw {
		var w wireObject
		if err := json.Unmarshal(r, &w); err != nil {
			return res, Validationf("import", "", "object %d: %v", i, err)
		}
		kind := ClassifyKind(w.Type, w.Metadata)
		if kind == "" {
			res.Skipped++
			continue
		}
		if kind == KindFrame {
			if haveFrame {
				kind = KindShape
				w.Metadata.IsMainFrame = false
			}
			haveFrame = true
		}
		o := fromWire(w, kind)
		if o.ID == "" || seen[o.ID] {
			o.ID = NewID()
			o.Metadata.ID = o.ID
		}
		seen[o.ID] = true
		res.Objects = append(res.Objects, o)
	}
	return res, nil
}

// ExportScene encodes the current object list.
func (s *State) ExportScene() ([]byte, error) { return EncodeScene(s.Objects()) }

// ImportScene replaces the scene with the decoded objects. The frame is sent to the
// back; callers republish frame bounds and clipping afterwards.
func (s *State) ImportScene(data []byte) (DecodeResult, error) {
	res, err := DecodeScene(data)
	if err != nil {
		return res, err
	}
	return res, s.Replace(res.Objects)
}
