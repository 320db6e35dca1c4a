package loader

import (
	"fmt"
	"strings"

	"github.com/sentientmushes/smadventure/engine"
)

// ValidationError collects all validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// validate checks the compiled defs for referential integrity.
func validate(defs engine.Defs) error {
	ve := &ValidationError{}

	places := map[string]bool{}
	for _, p := range defs.Places {
		if places[p.Name] {
			ve.add("place %q defined twice", p.Name)
		}
		places[p.Name] = true
	}
	if len(places) == 0 {
		ve.add("no places defined")
	}

	items := map[string]bool{}
	for _, it := range defs.Items {
		items[it.Name] = true
	}
	for _, p := range defs.Places {
		for item := range p.Items {
			if !items[item] {
				ve.add("place %q holds undefined item %q", p.Name, item)
			}
		}
	}

	for _, name := range defs.Beginning {
		if !places[name] {
			ve.add("beginning place %q not found in defined places", name)
		}
	}

	for i, path := range defs.Paths {
		for _, name := range path {
			if !places[name] {
				ve.add("path %d references undefined place %q", i+1, name)
			}
		}
	}

	for i, sp := range defs.Spawns {
		if !places[sp.Place] {
			ve.add("spawn %d references undefined place %q", i+1, sp.Place)
		}
		t := defs.Types.Lookup(sp.Type)
		if t == nil {
			ve.add("spawn %d references undefined entity type %q", i+1, sp.Type)
			continue
		}
		if sp.Variant == "*" {
			continue
		}
		for _, v := range strings.Split(sp.Variant, ";") {
			if v = strings.TrimSpace(v); v != "" && t.Variant(v) == nil {
				ve.add("spawn %d references undefined variant %q of type %q", i+1, v, sp.Type)
			}
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
