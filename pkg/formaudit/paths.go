// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// paths.go computes canonical JSON extraction paths. The strings built
// here are matched literally against machine-generated SQL, so the rules
// must not drift: a one-character difference turns every audit into a
// false positive.

package formaudit

import "strings"

// Zone identifies which structural part of a form an element lives in.
// The zone decides the JSON root its extraction path hangs from.
type Zone int

const (
	// ZoneMain is the form body. Fields live under "$.fields." except
	// for the reserved "inputs" group, which sits at the document root.
	ZoneMain Zone = iota

	// ZoneRepeat is the inside of a repeat group. The repeat's array
	// element is the JSON root for its children, so paths start at "$.".
	ZoneRepeat

	// ZoneDocGroup is the inside of a db-doc group, materialized as its
	// own document. Same root rule as ZoneRepeat.
	ZoneDocGroup
)

// inputsGroup is the reserved top-level group whose fields are stored at
// the document root rather than under "fields".
const inputsGroup = "inputs"

// namePlaceholder is the cell value a blank name cell coerces to; rows
// carrying it never get a JSON path.
const namePlaceholder = "nan"

// ResolveJSONPath maps an element's position to its canonical JSON
// extraction path. ancestors are the enclosing plain-group names within
// the element's zone, innermost last. Returns "" for group markers,
// notes, and blank or placeholder names.
func ResolveJSONPath(ancestors []string, name string, zone Zone, kind string, isGroup bool) string {
	if isGroup || kind == "note" || name == "" || name == namePlaceholder {
		return ""
	}
	segments := make([]string, 0, len(ancestors)+1)
	segments = append(segments, ancestors...)
	segments = append(segments, name)
	if len(segments) == 0 || (len(segments) == 1 && segments[0] == "") {
		// Degenerate single-field legacy forms resolve to the root.
		return "$"
	}

	dotted := strings.Join(segments, ".")
	switch zone {
	case ZoneRepeat, ZoneDocGroup:
		return "$." + dotted
	default:
		if segments[0] == inputsGroup {
			return "$." + dotted
		}
		return "$.fields." + dotted
	}
}

// RepeatEmbeddingPath returns the path at which a repeat group's array is
// embedded in the enclosing form's document. The repeat name is treated
// as a main-zone field regardless of where the repeat sits.
func RepeatEmbeddingPath(mainAncestors []string, repeatName string) string {
	segments := make([]string, 0, len(mainAncestors)+1)
	segments = append(segments, mainAncestors...)
	segments = append(segments, repeatName)
	return "$.fields." + strings.Join(segments, ".")
}
