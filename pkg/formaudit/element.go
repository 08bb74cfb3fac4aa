// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// element.go defines the Element value type produced by the form parser.

package formaudit

import "strings"

// Element is a single row of a form definition sheet: a question, a
// calculated field, a note, or a group marker. Its identity across form
// versions is Path; its identity against generated SQL is JSONPath.
type Element struct {
	// Name is the value of the row's name cell. May be empty for
	// unnamed rows.
	Name string

	// IsGroup reports whether the row is a group or repeat marker.
	IsGroup bool

	// Kind is the raw type cell ("text", "calculate", "note",
	// "begin group", "begin repeat", ...).
	Kind string

	// Path is the ODK-style slash-delimited position from the form
	// root, e.g. "/my_form/groupA/q1". Inside a repeat or db-doc group
	// the root segment is the repeat/group name instead of the form id.
	Path string

	// Row is the 1-based spreadsheet row the element came from
	// (row 1 is the header), kept for diagnostics.
	Row int

	// JSONPath is the canonical extraction path expected verbatim in
	// generated SQL. Empty for group markers, notes, and unnamed rows.
	JSONPath string

	// Titles maps a language code (fr, en, bm) to the row's label.
	// Populated when the sheet carries label columns.
	Titles map[string]string

	// Calculation is the formula text for calculate-type rows.
	Calculation string
}

// FormID returns the root segment of the element's path.
func (e Element) FormID() string {
	parts := strings.Split(e.Path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// BelongsTo reports whether e is a descendant of the given group
// element, by path prefix.
func (e Element) BelongsTo(group Element) bool {
	if !group.IsGroup {
		return false
	}
	return strings.HasPrefix(e.Path, group.Path+"/")
}

// sameTitles compares the fr/en/bm labels of two elements.
func sameTitles(a, b map[string]string) bool {
	for _, lang := range []string{"fr", "en", "bm"} {
		if a[lang] != b[lang] {
			return false
		}
	}
	return true
}
