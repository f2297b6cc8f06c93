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
	"testing"
)

func newShape(name string, left, top, w, h float64) Object {
	o := New(KindShape, Geometry{Left: left, Top: top, Width: w, Height: h})
	o.Metadata.CustomName = name
	return o
}

func newFrame(left, top, w, h float64) Object {
	o := New(KindFrame, Geometry{Left: left, Top: top, Width: w, Height: h})
	o.Metadata.IsMainFrame = true
	o.Metadata.AspectRatio = w / h
	return o
}

func ids(objs []Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Metadata.CustomName
	}
	return out
}

func TestInsertKeepsFrameLast(t *testing.T) {
	s := NewState()
	f := newFrame(0, 0, 100, 100)
	f.Metadata.CustomName = "frame"
	if err := s.Add(f); err != nil {
		t.Fatalf("add frame: %v", err)
	}
	a, b := newShape("a", 0, 0, 10, 10), newShape("b", 0, 0, 10, 10)
	_ = s.Add(a)
	_ = s.Add(b)
	if err := s.Insert(newShape("c", 0, 0, 1, 1), 99); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got := ids(s.Objects())
	want := []string{"b", "a", "c", "frame"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if err := s.Add(newFrame(0, 0, 1, 1)); !errors.Is(err, ErrValidation) {
		t.Fatalf("second frame: want validation error, got %v", err)
	}
}

func TestZStepsNeverCrossFrame(t *testing.T) {
	s := NewState()
	f := newFrame(0, 0, 100, 100)
	_ = s.Add(f)
	a := newShape("a", 0, 0, 10, 10)
	_ = s.Add(a)
	if err := s.SendBackward(a.ID); err != nil {
		t.Fatalf("send backward: %v", err)
	}
	if s.IndexOf(a.ID) != 0 || s.IndexOf(f.ID) != 1 {
		t.Fatalf("object moved below frame")
	}
	if err := s.BringForward(f.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("bring frame forward: want validation error, got %v", err)
	}
}

func TestMutationsPublishAndRender(t *testing.T) {
	s := NewState()
	renders := 0
	s.SetRenderHook(func() { renders++ })
	var revs []uint64
	unsub := s.Changes().Subscribe(func(r uint64) { revs = append(revs, r) })
	defer unsub()

	a := newShape("a", 1, 2, 3, 4)
	_ = s.Add(a)
	if err := s.Select(a.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.Update(a.ID, func(o *Object) { o.Geometry.Left = 50 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if renders != 3 {
		t.Fatalf("renders = %d, want 3", renders)
	}
	if len(revs) != 4 || revs[3] != 3 {
		t.Fatalf("revisions = %v", revs)
	}
	sel := s.SelectedObject().Current()
	if sel == nil || sel.Geometry.Left != 50 {
		t.Fatalf("selected object not refreshed: %+v", sel)
	}
	props, ok := s.SelectedProperties().Current().(ShapeProperties)
	if !ok || props.Left != 50 {
		t.Fatalf("selected properties = %#v", s.SelectedProperties().Current())
	}

	if _, _, err := s.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.SelectedID() != "" || s.SelectedObject().Current() != nil {
		t.Fatalf("selection should clear when the object is removed")
	}
}

func TestMissingObjectIsStateError(t *testing.T) {
	s := NewState()
	err := s.Update("nope", func(*Object) {})
	if ClassOf(err) != ClassState || !errors.Is(err, ErrState) {
		t.Fatalf("want state error, got %v", err)
	}
	if s.Revision() != 0 {
		t.Fatalf("failed update must not bump revision")
	}
}

func TestUpdateManyIsAllOrNothing(t *testing.T) {
	s := NewState()
	a := newShape("a", 0, 0, 1, 1)
	_ = s.Add(a)
	err := s.UpdateMany([]string{a.ID, "gone"}, func(o *Object) { o.Geometry.Left = 9 })
	if !errors.Is(err, ErrState) {
		t.Fatalf("want state error, got %v", err)
	}
	got, _ := s.Get(a.ID)
	if got.Geometry.Left != 0 {
		t.Fatalf("partial update applied")
	}
}

func TestObjectsAreCopies(t *testing.T) {
	s := NewState()
	a := newShape("a", 0, 0, 1, 1)
	a.Metadata.Extra = map[string]any{"k": "v"}
	_ = s.Add(a)
	objs := s.Objects()
	objs[0].Geometry.Left = 100
	objs[0].Metadata.Extra["k"] = "changed"
	got, _ := s.Get(a.ID)
	if got.Geometry.Left != 0 || got.Metadata.Extra["k"] != "v" {
		t.Fatalf("scene leaked its own object")
	}
}

func TestChannelReplaysCurrentValue(t *testing.T) {
	c := NewChannel(1)
	c.Publish(2)
	var got []int
	unsub := c.Subscribe(func(v int) { got = append(got, v) })
	c.Publish(3)
	unsub()
	c.Publish(4)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("got %v", got)
	}
	if c.Current() != 4 {
		t.Fatalf("current = %d", c.Current())
	}
}

func TestGuidesAreNotObjects(t *testing.T) {
	s := NewState()
	s.SetGuides([]GuideLine{{Orientation: "vertical", Position: 10}})
	if s.Len() != 0 {
		t.Fatalf("guides must not enter the object list")
	}
	if len(s.Guides().Current()) != 1 {
		t.Fatalf("guides not published")
	}
	s.ClearGuides()
	if len(s.Guides().Current()) != 0 {
		t.Fatalf("guides not cleared")
	}
}
