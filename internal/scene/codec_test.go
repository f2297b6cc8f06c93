/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"strings"
	"testing"
)

func TestExportImportKeepsOrderAndMetadata(t *testing.T) {
	s := NewState()
	f := newFrame(100, 50, 300, 600)
	_ = s.Add(f)
	txt := New(KindText, Geometry{Left: 120, Top: 80, Width: 200, Height: 30})
	txt.Visual.Text = "Hello"
	txt.Visual.FontWeight = 700
	txt.Metadata.Extra = map[string]any{"campaign": "spring"}
	_ = s.Add(txt)

	data, err := s.ExportScene()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	other := NewState()
	res, err := other.ImportScene(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Skipped != 0 || other.Len() != 2 {
		t.Fatalf("import result %+v len %d", res, other.Len())
	}
	objs := other.Objects()
	if objs[0].ID != txt.ID || objs[0].Visual.FontWeight != 700 || objs[0].Metadata.Extra["campaign"] != "spring" {
		t.Fatalf("text not restored: %+v", objs[0])
	}
	fr, ok := other.Frame()
	if !ok || fr.ID != f.ID || fr.Metadata.AspectRatio != 0.5 {
		t.Fatalf("frame not restored: %+v", fr)
	}
}

func TestImportSkipsUnknownAndSendsFrameBack(t *testing.T) {
	data := `[
	  {"type":"rect","left":0,"top":0,"width":300,"height":600,"metadata":{"id":"f","isMainFrame":true}},
	  {"type":"video","metadata":{"id":"v"}},
	  {"metadata":{"id":"untyped"}},
	  {"type":"textbox","text":"hi","fontWeight":"bold","metadata":{"id":"t","createdAt":1700000000000}},
	  {"type":"image","src":"a.png","metadata":{"id":"t"}}
	]`
	s := NewState()
	res, err := s.ImportScene([]byte(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", res.Skipped)
	}
	objs := s.Objects()
	if len(objs) != 3 || !objs[2].IsFrame() {
		t.Fatalf("frame should be last: %+v", objs)
	}
	if objs[0].Visual.FontWeight != 700 || objs[0].Metadata.CreatedAt.IsZero() {
		t.Fatalf("text fields not parsed: %+v", objs[0])
	}
	if objs[1].ID == "t" || objs[1].Kind != KindImage {
		t.Fatalf("duplicate id should be replaced: %+v", objs[1])
	}
}

func TestImportRejectsSchemaViolations(t *testing.T) {
	for _, in := range []string{`{"type":"rect"}`, `[{"type":"rect","width":"wide"}]`, `[1]`} {
		_, err := DecodeScene([]byte(in))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: want validation error, got %v", in, err)
		}
	}
}

func TestMetadataExtraDoesNotShadowKnownKeys(t *testing.T) {
	m := Metadata{ID: "x", Extra: map[string]any{"id": "evil", "tag": 1.0}}
	b, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "evil") {
		t.Fatalf("extra overwrote id: %s", b)
	}
	var back Metadata
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != "x" || back.Extra["tag"] != 1.0 {
		t.Fatalf("round trip = %+v", back)
	}
}
