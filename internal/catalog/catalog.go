// Package catalog validates marker definitions and maintains the active
// catalog snapshot shared by all sessions.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leandeep/marker-engine/internal/dsl"
	"github.com/leandeep/marker-engine/internal/marker"
)

// Catalog is an immutable, validated set of marker definitions with the
// derived structures evaluation needs: compiled patterns and rules, the
// per-level ordering and the reverse dependency index.
type Catalog struct {
	version string
	order   []string
	markers map[string]*marker.Definition
	byLevel map[marker.Level][]*marker.Definition

	patterns map[string]*regexp.Regexp
	rules    map[string]*dsl.Rule

	// dependents maps a marker id to the ids of definitions whose rules
	// reference it, in definition order.
	dependents map[string][]string
	// driftDependents lists definitions whose rules reference DRIFT_HIGH.
	driftDependents []string
}

// Load validates definitions and builds a catalog. Validation collects
// every offending definition before failing; on any error the load
// returns marker.ValidationErrors and no catalog is produced.
func Load(defs []marker.Definition) (*Catalog, error) {
	c := &Catalog{
		markers:    make(map[string]*marker.Definition, len(defs)),
		byLevel:    make(map[marker.Level][]*marker.Definition),
		patterns:   make(map[string]*regexp.Regexp),
		rules:      make(map[string]*dsl.Rule),
		dependents: make(map[string][]string),
	}

	var errs marker.ValidationErrors
	addErr := func(id, field, reason string) {
		errs = append(errs, &marker.ValidationError{MarkerID: id, Field: field, Reason: reason})
	}

	effectiveDeps := make(map[string][]string)

	for i := range defs {
		d := defs[i]
		id := d.MarkerID
		if id == "" {
			addErr(fmt.Sprintf("(definition %d)", i), "marker_id", "required")
			continue
		}
		if _, dup := c.markers[id]; dup {
			addErr(id, "marker_id", "duplicate marker id")
			continue
		}
		if !marker.ValidLevels[d.Level] {
			addErr(id, "level", fmt.Sprintf("unknown level %q", string(d.Level)))
			continue
		}
		if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
			addErr(id, "confidence_threshold", fmt.Sprintf("%g outside [0,1]", d.ConfidenceThreshold))
		}
		if d.Weight < 0 {
			addErr(id, "weight", fmt.Sprintf("%g is negative", d.Weight))
		}

		deps := append([]string(nil), d.Dependencies...)

		if d.Level == marker.LevelATO {
			if d.Pattern == "" {
				addErr(id, "pattern", "required for ATO markers")
			} else if re, err := regexp.Compile("(?i)" + d.Pattern); err != nil {
				addErr(id, "pattern", err.Error())
			} else {
				c.patterns[id] = re
			}
			if d.ActivationRule != "" {
				addErr(id, "activation_rule", "not allowed for ATO markers")
			}
			if len(d.Dependencies) != 0 {
				addErr(id, "dependencies", "not allowed for ATO markers")
			}
		} else {
			if d.Pattern != "" {
				addErr(id, "pattern", "only ATO markers carry a pattern")
			}
			if d.ActivationRule == "" {
				addErr(id, "activation_rule", fmt.Sprintf("required for %s markers", string(d.Level)))
			} else if rule, err := dsl.Parse(d.ActivationRule); err != nil {
				addErr(id, "activation_rule", err.Error())
			} else {
				c.rules[id] = rule
				for _, dep := range rule.Deps {
					if !containsString(deps, dep) {
						deps = append(deps, dep)
					}
				}
				if rule.UsesDrift {
					c.driftDependents = append(c.driftDependents, id)
				}
			}
		}

		d.Dependencies = deps
		effectiveDeps[id] = deps
		c.markers[id] = &d
		c.order = append(c.order, id)
		c.byLevel[d.Level] = append(c.byLevel[d.Level], &d)
	}

	// Dependency edges must point at known markers of strictly lower level.
	for _, id := range c.order {
		d := c.markers[id]
		for _, dep := range effectiveDeps[id] {
			target, ok := c.markers[dep]
			if !ok {
				addErr(id, "dependencies", (&marker.UnknownMarkerError{MarkerID: dep}).Error())
				continue
			}
			if target.Level.Rank() >= d.Level.Rank() {
				addErr(id, "dependencies", fmt.Sprintf(
					"dependency chain %s -> %s violates level order (%s is not below %s)",
					id, dep, string(target.Level), string(d.Level)))
			}
		}
	}

	for _, cycle := range findCycles(c.order, effectiveDeps, c.markers) {
		addErr(cycle[0], "dependencies", "dependency cycle: "+strings.Join(cycle, " -> "))
	}

	if len(errs) > 0 {
		return nil, errs
	}

	for _, id := range c.order {
		for _, dep := range effectiveDeps[id] {
			c.dependents[dep] = append(c.dependents[dep], id)
		}
	}
	c.version = computeVersion(c)
	return c, nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// findCycles runs a three-color depth-first search over the dependency
// graph and returns each cycle as the chain of ids closing on itself.
func findCycles(order []string, deps map[string][]string, known map[string]*marker.Definition) [][]string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(order))
	var cycles [][]string
	var path []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		path = append(path, id)
		for _, dep := range deps[id] {
			if _, ok := known[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case inStack:
				for i, p := range path {
					if p == dep {
						cycle := append(append([]string(nil), path[i:]...), dep)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
	}

	for _, id := range order {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// computeVersion hashes the definitional content of the catalog. Two
// loads of the same definitions produce the same version regardless of
// order or import timestamps.
func computeVersion(c *Catalog) string {
	type canon struct {
		ID          string         `json:"id"`
		Level       marker.Level   `json:"level"`
		Pattern     string         `json:"pattern,omitempty"`
		Rule        string         `json:"rule,omitempty"`
		Deps        []string       `json:"deps,omitempty"`
		Threshold   float64        `json:"threshold"`
		Weight      float64        `json:"weight"`
		Category    string         `json:"category,omitempty"`
		Description string         `json:"description,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}
	entries := make([]canon, 0, len(c.order))
	for _, id := range c.order {
		d := c.markers[id]
		deps := append([]string(nil), d.Dependencies...)
		sort.Strings(deps)
		entries = append(entries, canon{
			ID:          d.MarkerID,
			Level:       d.Level,
			Pattern:     d.Pattern,
			Rule:        d.ActivationRule,
			Deps:        deps,
			Threshold:   d.ConfidenceThreshold,
			Weight:      d.Weight,
			Category:    d.Category,
			Description: d.Description,
			Metadata:    d.Metadata,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	raw, _ := json.Marshal(entries)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12]
}

// Version identifies the loaded definition set.
func (c *Catalog) Version() string {
	return c.version
}

// Size returns the number of definitions.
func (c *Catalog) Size() int {
	return len(c.order)
}

// Lookup returns the definition for id, or an UnknownMarkerError.
func (c *Catalog) Lookup(id string) (*marker.Definition, error) {
	d, ok := c.markers[id]
	if !ok {
		return nil, &marker.UnknownMarkerError{MarkerID: id}
	}
	return d, nil
}

// ByLevel returns the definitions at a level, in definition order.
func (c *Catalog) ByLevel(l marker.Level) []*marker.Definition {
	return c.byLevel[l]
}

// Definitions returns all definitions in definition order.
func (c *Catalog) Definitions() []*marker.Definition {
	out := make([]*marker.Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.markers[id])
	}
	return out
}

// Pattern returns the compiled pattern for an ATO marker, or nil.
func (c *Catalog) Pattern(id string) *regexp.Regexp {
	return c.patterns[id]
}

// Rule returns the compiled activation rule for a marker, or nil.
func (c *Catalog) Rule(id string) *dsl.Rule {
	return c.rules[id]
}

// Dependents returns the ids of definitions whose rules reference id,
// in definition order.
func (c *Catalog) Dependents(id string) []string {
	return c.dependents[id]
}

// DriftDependents returns the ids of definitions whose rules reference
// the drift state.
func (c *Catalog) DriftDependents() []string {
	return c.driftDependents
}
