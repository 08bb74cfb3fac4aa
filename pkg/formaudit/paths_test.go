// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import "testing"

// --- ResolveJSONPath tests ---

func TestResolveJSONPath(t *testing.T) {
	tests := []struct {
		name      string
		ancestors []string
		field     string
		zone      Zone
		kind      string
		isGroup   bool
		want      string
	}{
		{"main top-level", nil, "patient_name", ZoneMain, "text", false, "$.fields.patient_name"},
		{"main nested", []string{"grp_a", "grp_b"}, "age", ZoneMain, "integer", false, "$.fields.grp_a.grp_b.age"},
		{"inputs group", []string{"inputs"}, "source", ZoneMain, "hidden", false, "$.inputs.source"},
		{"inputs nested", []string{"inputs", "contact"}, "_id", ZoneMain, "db:person", false, "$.inputs.contact._id"},
		{"repeat child", nil, "fup_date", ZoneRepeat, "date", false, "$.fup_date"},
		{"repeat nested child", []string{"details"}, "fup_date", ZoneRepeat, "date", false, "$.details.fup_date"},
		{"doc group child", nil, "drug", ZoneDocGroup, "text", false, "$.drug"},
		{"doc group nested child", []string{"inner"}, "dose", ZoneDocGroup, "text", false, "$.inner.dose"},
		{"group marker", nil, "grp", ZoneMain, "begin group", true, ""},
		{"note", nil, "info", ZoneMain, "note", false, ""},
		{"blank name", nil, "", ZoneMain, "text", false, ""},
		{"placeholder name", nil, "nan", ZoneMain, "text", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveJSONPath(tt.ancestors, tt.field, tt.zone, tt.kind, tt.isGroup)
			if got != tt.want {
				t.Errorf("ResolveJSONPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- RepeatEmbeddingPath tests ---

func TestRepeatEmbeddingPath(t *testing.T) {
	tests := []struct {
		name      string
		ancestors []string
		repeat    string
		want      string
	}{
		{"top-level repeat", nil, "visit", "$.fields.visit"},
		{"nested repeat", []string{"visits_wrap"}, "visit", "$.fields.visits_wrap.visit"},
		{"deeply nested", []string{"a", "b"}, "rep", "$.fields.a.b.rep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepeatEmbeddingPath(tt.ancestors, tt.repeat)
			if got != tt.want {
				t.Errorf("RepeatEmbeddingPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
