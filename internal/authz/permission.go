// Copyright 2026 The TestForge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is an atomic (scope, action) capability identity. Scope names
// the resource type being acted on, not the level at which a grant lives:
// a workspace-level role may legitimately carry permissions whose scope is
// "project".
type Permission struct {
	Scope  string
	Action string
}

// String returns the canonical "scope:action" form.
func (p Permission) String() string {
	return p.Scope + ":" + p.Action
}

// ParsePermission parses a "scope:action" string. Both parts must be
// non-empty; there is no wildcard form.
func ParsePermission(s string) (Permission, error) {
	scope, action, ok := strings.Cut(s, ":")
	if !ok || scope == "" || action == "" {
		return Permission{}, fmt.Errorf("%w: %q", ErrMalformedPermission, s)
	}
	return Permission{Scope: scope, Action: action}, nil
}

// Catalog is the closed, immutable set of permissions and system role
// definitions. It is built once at process start from a static declaration
// and injected into the Engine and Bootstrapper; nothing mutates it at
// runtime.
type Catalog struct {
	descriptions map[Permission]string
	roles        map[string][]Permission
}

// NewCatalog builds a catalog from a role-name -> permission-strings
// declaration. A malformed permission string in any role definition is a
// configuration error: the catalog is the validation boundary, so decision
// code never re-parses role contents.
func NewCatalog(roles map[string][]string) (*Catalog, error) {
	c := &Catalog{
		descriptions: make(map[Permission]string),
		roles:        make(map[string][]Permission, len(roles)),
	}
	for name, perms := range roles {
		if name == "" {
			return nil, fmt.Errorf("%w: role with empty name", ErrConfiguration)
		}
		bundle := make([]Permission, 0, len(perms))
		for _, s := range perms {
			p, err := ParsePermission(s)
			if err != nil {
				return nil, fmt.Errorf("%w: role %q references invalid permission %q", ErrConfiguration, name, s)
			}
			if _, ok := c.descriptions[p]; !ok {
				c.descriptions[p] = fmt.Sprintf("Permission to %s %s", p.Action, p.Scope)
			}
			bundle = append(bundle, p)
		}
		c.roles[name] = bundle
	}
	return c, nil
}

// Contains reports whether the permission is part of the catalog.
func (c *Catalog) Contains(p Permission) bool {
	_, ok := c.descriptions[p]
	return ok
}

// Description returns the seeded description for a permission.
func (c *Catalog) Description(p Permission) string {
	return c.descriptions[p]
}

// Permissions returns all catalog permissions in a stable order.
func (c *Catalog) Permissions() []Permission {
	out := make([]Permission, 0, len(c.descriptions))
	for p := range c.descriptions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// RoleNames returns the declared role names in a stable order.
func (c *Catalog) RoleNames() []string {
	out := make([]string, 0, len(c.roles))
	for name := range c.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RolePermissions returns the permission bundle declared for a role, or nil
// if the role is not part of the catalog.
func (c *Catalog) RolePermissions(name string) []Permission {
	return c.roles[name]
}
