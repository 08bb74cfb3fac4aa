// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildForm assembles an in-memory form definition workbook. header is
// the survey sheet's first row; rows are the data rows. An empty formID
// omits the settings sheet.
func buildForm(t *testing.T, formID string, header []string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", surveySheet)
	if err := f.SetSheetRow(surveySheet, "A1", &header); err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(surveySheet, ref, &row); err != nil {
			t.Fatal(err)
		}
	}

	if formID != "" {
		if _, err := f.NewSheet(settingsSheet); err != nil {
			t.Fatal(err)
		}
		settingsHeader := []string{"form_id"}
		settingsValues := []string{formID}
		if err := f.SetSheetRow(settingsSheet, "A1", &settingsHeader); err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(settingsSheet, "A2", &settingsValues); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var basicHeader = []string{"type", "name", "label::fr", "label::en", "label::bm", "calculation", "instance::db-doc"}

// --- ParseForm tests ---

func TestParseForm_MainBodyPaths(t *testing.T) {
	data := buildForm(t, "fp_follow_up", basicHeader, [][]string{
		{"begin group", "inputs"},
		{"hidden", "source"},
		{"end group", ""},
		{"text", "patient_name", "Nom", "Name"},
		{"begin group", "grp"},
		{"integer", "age"},
		{"end group", ""},
		{"note", "info_note", "Note"},
	})

	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}
	if parsed.FormID != "fp_follow_up" {
		t.Errorf("FormID = %q, want fp_follow_up", parsed.FormID)
	}

	byName := map[string]Element{}
	for _, el := range parsed.MainElements {
		byName[el.Name] = el
	}

	if got := byName["source"].JSONPath; got != "$.inputs.source" {
		t.Errorf("source path = %q, want $.inputs.source", got)
	}
	if got := byName["patient_name"].JSONPath; got != "$.fields.patient_name" {
		t.Errorf("patient_name path = %q, want $.fields.patient_name", got)
	}
	if got := byName["age"].JSONPath; got != "$.fields.grp.age" {
		t.Errorf("age path = %q, want $.fields.grp.age", got)
	}
	if got := byName["info_note"].JSONPath; got != "" {
		t.Errorf("note path = %q, want empty", got)
	}
	if !byName["grp"].IsGroup {
		t.Error("grp should be a group marker")
	}
	if got := byName["grp"].JSONPath; got != "" {
		t.Errorf("group path = %q, want empty", got)
	}
	if got := byName["patient_name"].Titles["fr"]; got != "Nom" {
		t.Errorf("patient_name fr title = %q, want Nom", got)
	}
	if got := byName["patient_name"].Path; got != "/fp_follow_up/patient_name" {
		t.Errorf("patient_name ODK path = %q", got)
	}
	if got := byName["age"].Path; got != "/fp_follow_up/grp/age" {
		t.Errorf("age ODK path = %q", got)
	}
}

func TestParseForm_RepeatGroup(t *testing.T) {
	data := buildForm(t, "pnc", basicHeader, [][]string{
		{"begin group", "visits_wrap"},
		{"begin repeat", "visit"},
		{"date", "fup_date"},
		{"end repeat", ""},
		{"end group", ""},
	})

	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}
	if len(parsed.RepeatOrder) != 1 || parsed.RepeatOrder[0] != "visit" {
		t.Fatalf("RepeatOrder = %v, want [visit]", parsed.RepeatOrder)
	}

	rg := parsed.RepeatGroups["visit"]
	if rg.JSONPathInParent != "$.fields.visits_wrap.visit" {
		t.Errorf("embedding path = %q, want $.fields.visits_wrap.visit", rg.JSONPathInParent)
	}
	if len(rg.Elements) != 1 {
		t.Fatalf("got %d repeat elements, want 1", len(rg.Elements))
	}
	if got := rg.Elements[0].JSONPath; got != "$.fup_date" {
		t.Errorf("fup_date path = %q, want $.fup_date", got)
	}
	// Repeat children never leak into the main body.
	for _, el := range parsed.MainElements {
		if el.Name == "fup_date" {
			t.Error("repeat child found in MainElements")
		}
	}
}

func TestParseForm_DocGroup(t *testing.T) {
	data := buildForm(t, "stock", basicHeader, [][]string{
		{"begin group", "prescription_summary", "", "", "", "", "TRUE"},
		{"begin group", "inner"},
		{"text", "drug"},
		{"end group", ""},
		{"text", "dose"},
		{"end group", ""},
		{"text", "after"},
	})

	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}
	if len(parsed.DocOrder) != 1 || parsed.DocOrder[0] != "prescription_summary" {
		t.Fatalf("DocOrder = %v, want [prescription_summary]", parsed.DocOrder)
	}

	elements := parsed.DocGroups["prescription_summary"]
	if len(elements) != 2 {
		t.Fatalf("got %d doc elements, want 2", len(elements))
	}
	if got := elements[0].JSONPath; got != "$.inner.drug" {
		t.Errorf("drug path = %q, want $.inner.drug", got)
	}
	if got := elements[1].JSONPath; got != "$.dose" {
		t.Errorf("dose path = %q, want $.dose", got)
	}

	// The element after the closing end group is back in the main body.
	found := false
	for _, el := range parsed.MainElements {
		if el.Name == "after" && el.JSONPath == "$.fields.after" {
			found = true
		}
	}
	if !found {
		t.Error("element after the db-doc group should be a main-body field")
	}
}

func TestParseForm_NestedRepeatRejected(t *testing.T) {
	data := buildForm(t, "bad", basicHeader, [][]string{
		{"begin repeat", "outer"},
		{"begin repeat", "inner"},
	})

	_, err := ParseForm(data)
	if err == nil {
		t.Fatal("expected error for nested repeat")
	}
	if !IsParseError(err) {
		t.Errorf("expected a ParseError, got %T: %v", err, err)
	}
}

func TestParseForm_NotAWorkbook(t *testing.T) {
	_, err := ParseForm([]byte("this is not a spreadsheet"))
	if !IsParseError(err) {
		t.Errorf("expected a ParseError, got %v", err)
	}
}

func TestParseForm_MissingNameColumn(t *testing.T) {
	data := buildForm(t, "x", []string{"type"}, [][]string{{"text"}})
	_, err := ParseForm(data)
	if !IsParseError(err) {
		t.Errorf("expected a ParseError, got %v", err)
	}
}

func TestParseForm_DefaultFormID(t *testing.T) {
	data := buildForm(t, "", basicHeader, [][]string{
		{"text", "q1"},
	})
	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}
	if parsed.FormID != "my_form" {
		t.Errorf("FormID = %q, want my_form", parsed.FormID)
	}
}

func TestParseForm_BlankNameSkipped(t *testing.T) {
	data := buildForm(t, "x", basicHeader, [][]string{
		{"text", ""},
		{"text", "kept"},
	})
	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}
	if len(parsed.MainElements) != 1 || parsed.MainElements[0].Name != "kept" {
		t.Errorf("MainElements = %+v, want just kept", parsed.MainElements)
	}
}

func TestParsedForm_AllElements(t *testing.T) {
	data := buildForm(t, "x", basicHeader, [][]string{
		{"text", "a"},
		{"begin repeat", "rep"},
		{"text", "b"},
		{"end repeat", ""},
		{"begin group", "doc", "", "", "", "", "true"},
		{"text", "c"},
		{"end group", ""},
	})
	parsed, err := ParseForm(data)
	if err != nil {
		t.Fatalf("ParseForm failed: %v", err)
	}

	var names []string
	for _, el := range parsed.AllElements() {
		names = append(names, el.Name)
	}
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("AllElements names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("AllElements[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

// --- SurveyMarkdown tests ---

func TestSurveyMarkdown(t *testing.T) {
	data := buildForm(t, "x", basicHeader, [][]string{
		{"text", "q1", "Question|1"},
		{"calculate", "c1", "", "", "", "1 + 1"},
	})

	md, err := SurveyMarkdown(data)
	if err != nil {
		t.Fatalf("SurveyMarkdown failed: %v", err)
	}
	if !strings.HasPrefix(md, "| type | name |") {
		t.Errorf("markdown header missing: %q", md)
	}
	if !strings.Contains(md, `Question\|1`) {
		t.Error("pipe in a cell should be escaped")
	}
	if !strings.Contains(md, "1 + 1") {
		t.Error("calculation column missing from markdown")
	}
	if strings.Contains(md, "instance::db-doc") {
		t.Error("irrelevant columns should be dropped")
	}
}
