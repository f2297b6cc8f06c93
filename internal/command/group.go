/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"bannerforge/internal/scene"
)

// Group runs several commands as one undo point, e.g. a frame resize together with
// the sibling moves that keep objects inside the new frame. Members run in order and
// are inverted in reverse order.
type Group struct {
	base
	name string
	cmds []Command
}

// NewGroup bundles cmds under name. Nil members are dropped.
func NewGroup(name string, cmds ...Command) (*Group, error) {
	g := &Group{name: name}
	for _, c := range cmds {
		if c != nil {
			g.cmds = append(g.cmds, c)
		}
	}
	if len(g.cmds) == 0 {
		return nil, scene.Validationf(name, "", "empty command group")
	}
	return g, nil
}

func (g *Group) Name() string { return g.name }

func (g *Group) Targets() []string {
	var ids []string
	for _, c := range g.cmds {
		ids = append(ids, c.Targets()...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Members returns the bundled commands in apply order.
func (g *Group) Members() []Command { return slices.Clone(g.cmds) }

// Apply runs every member. When one fails the members already applied are inverted,
// so the scene is left as it was.
func (g *Group) Apply(ctx context.Context) error {
	for i, c := range g.cmds {
		if err := c.Apply(ctx); err != nil {
			return g.rollback(ctx, i, fmt.Errorf("%s: %s: %w", g.name, c.Name(), err))
		}
	}
	return nil
}

func (g *Group) Invert(ctx context.Context) error {
	for i := len(g.cmds) - 1; i >= 0; i-- {
		if err := g.cmds[i].Invert(ctx); err != nil {
			return fmt.Errorf("%s: %s invert: %w", g.name, g.cmds[i].Name(), err)
		}
	}
	return nil
}

func (g *Group) Reapply(ctx context.Context) error {
	for _, c := range g.cmds {
		if err := c.Reapply(ctx); err != nil {
			return fmt.Errorf("%s: %s reapply: %w", g.name, c.Name(), err)
		}
	}
	return nil
}

func (g *Group) rollback(ctx context.Context, applied int, cause error) error {
	errs := []error{cause}
	for i := applied - 1; i >= 0; i-- {
		if err := g.cmds[i].Invert(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s rollback: %w", g.cmds[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
