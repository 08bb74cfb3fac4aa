// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// parser.go turns a form definition workbook into a partitioned element
// set. It is a single forward pass over the survey sheet with three
// possible zones: the main body, at most one open repeat group, and at
// most one open db-doc group. The zone is carried as explicit context
// values rather than a scatter of nullable flags.

package formaudit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	surveySheet   = "survey"
	settingsSheet = "settings"

	// dbDocColumn flags a group that is materialized as its own
	// document (and therefore its own warehouse view).
	dbDocColumn = "instance::db-doc"

	// defaultFormID is used when the settings sheet is absent or lacks
	// a form_id column.
	defaultFormID = "my_form"
)

// RepeatGroup holds the elements collected inside one repeat group and
// the path at which the repeat's array is embedded in the parent form's
// document.
type RepeatGroup struct {
	Elements         []Element
	JSONPathInParent string
}

// ParsedForm is the parser's output: the main-body elements plus the
// repeat and db-doc groups split out of it. RepeatOrder and DocOrder
// record first-appearance order so downstream reports are deterministic.
type ParsedForm struct {
	FormID       string
	MainElements []Element
	RepeatGroups map[string]RepeatGroup
	RepeatOrder  []string
	DocGroups    map[string][]Element
	DocOrder     []string
}

// repeatContext is the parse-time state of the open repeat group.
// Repeats do not nest; there is at most one.
type repeatContext struct {
	name             string
	groups           []string
	elements         []Element
	jsonPathInParent string
}

// docGroupContext is the parse-time state of the open db-doc group.
// Plain groups may nest inside it; groups tracks them so the end-group
// row that empties the stack is the one that closes the context.
type docGroupContext struct {
	name     string
	groups   []string
	elements []Element
}

// ParseForm parses a form definition workbook. It returns a *ParseError
// when the bytes are not a workbook or the survey sheet is missing or
// has no type/name columns. Individual malformed cells are tolerated:
// blank names coerce to a placeholder and the row is skipped.
func ParseForm(data []byte) (*ParsedForm, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: "not a valid workbook", Err: err}
	}
	defer f.Close()

	formID := readFormID(f)

	rows, err := f.GetRows(surveySheet)
	if err != nil {
		return nil, &ParseError{Reason: "missing survey sheet", Err: err}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Reason: "survey sheet is empty"}
	}

	cols := indexColumns(rows[0])
	if _, ok := cols["type"]; !ok {
		return nil, &ParseError{Reason: "survey sheet has no type column"}
	}
	if _, ok := cols["name"]; !ok {
		return nil, &ParseError{Reason: "survey sheet has no name column"}
	}

	result := &ParsedForm{
		FormID:       formID,
		RepeatGroups: map[string]RepeatGroup{},
		DocGroups:    map[string][]Element{},
	}

	var mainStack []string
	var repeat *repeatContext
	var doc *docGroupContext

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, row 1 is the header
		kind := strings.TrimSpace(cell(row, cols, "type"))
		name := strings.TrimSpace(cell(row, cols, "name"))
		if name == "" {
			name = namePlaceholder
		}

		switch {
		case strings.Contains(kind, "begin group"):
			if doc != nil {
				doc.groups = append(doc.groups, name)
				continue
			}
			if repeat != nil {
				repeat.groups = append(repeat.groups, name)
				continue
			}
			if isDBDoc(cell(row, cols, dbDocColumn)) {
				doc = &docGroupContext{name: name}
				continue
			}
			result.MainElements = append(result.MainElements, Element{
				Name:    name,
				IsGroup: true,
				Kind:    kind,
				Path:    odkPath(formID, mainStack, name),
				Row:     rowNum,
				Titles:  readTitles(row, cols),
			})
			mainStack = append(mainStack, name)

		case strings.Contains(kind, "end group"):
			switch {
			case doc != nil:
				if len(doc.groups) > 0 {
					doc.groups = doc.groups[:len(doc.groups)-1]
					continue
				}
				if _, dup := result.DocGroups[doc.name]; !dup {
					result.DocOrder = append(result.DocOrder, doc.name)
				}
				result.DocGroups[doc.name] = doc.elements
				doc = nil
			case repeat != nil && len(repeat.groups) > 0:
				repeat.groups = repeat.groups[:len(repeat.groups)-1]
			case len(mainStack) > 0:
				mainStack = mainStack[:len(mainStack)-1]
			}

		case strings.Contains(kind, "begin repeat"):
			if repeat != nil {
				return nil, &ParseError{Reason: fmt.Sprintf(
					"nested repeat group %q inside %q at row %d is unsupported", name, repeat.name, rowNum)}
			}
			repeat = &repeatContext{
				name:             name,
				jsonPathInParent: RepeatEmbeddingPath(mainStack, name),
			}

		case strings.Contains(kind, "end repeat"):
			if repeat == nil {
				continue
			}
			if _, dup := result.RepeatGroups[repeat.name]; !dup {
				result.RepeatOrder = append(result.RepeatOrder, repeat.name)
			}
			result.RepeatGroups[repeat.name] = RepeatGroup{
				Elements:         repeat.elements,
				JSONPathInParent: repeat.jsonPathInParent,
			}
			repeat = nil

		default:
			if name == namePlaceholder {
				continue
			}
			el := Element{
				Name:        name,
				Kind:        kind,
				Row:         rowNum,
				Titles:      readTitles(row, cols),
				Calculation: cell(row, cols, "calculation"),
			}
			switch {
			case doc != nil:
				el.Path = odkPath(doc.name, doc.groups, name)
				el.JSONPath = ResolveJSONPath(doc.groups, name, ZoneDocGroup, kind, false)
				doc.elements = append(doc.elements, el)
			case repeat != nil:
				el.Path = odkPath(repeat.name, repeat.groups, name)
				el.JSONPath = ResolveJSONPath(repeat.groups, name, ZoneRepeat, kind, false)
				repeat.elements = append(repeat.elements, el)
			default:
				el.Path = odkPath(formID, mainStack, name)
				el.JSONPath = ResolveJSONPath(mainStack, name, ZoneMain, kind, false)
				result.MainElements = append(result.MainElements, el)
			}
		}
	}

	return result, nil
}

// AllElements returns the form's leaf and group elements across every
// zone, main body first, then repeat groups and db-doc groups in
// first-appearance order.
func (p *ParsedForm) AllElements() []Element {
	out := make([]Element, 0, len(p.MainElements))
	out = append(out, p.MainElements...)
	for _, name := range p.RepeatOrder {
		out = append(out, p.RepeatGroups[name].Elements...)
	}
	for _, name := range p.DocOrder {
		out = append(out, p.DocGroups[name]...)
	}
	return out
}

// readFormID extracts the form id from the settings sheet, falling back
// to defaultFormID when the sheet or column is absent.
func readFormID(f *excelize.File) string {
	rows, err := f.GetRows(settingsSheet)
	if err != nil || len(rows) < 2 {
		return defaultFormID
	}
	cols := indexColumns(rows[0])
	idx, ok := cols["form_id"]
	if !ok || idx >= len(rows[1]) {
		return defaultFormID
	}
	id := strings.TrimSpace(rows[1][idx])
	if id == "" {
		return defaultFormID
	}
	return id
}

// indexColumns maps header names to column indexes.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

// cell returns the named column's value for a row, or "" when the column
// is absent or the row is short.
func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readTitles(row []string, cols map[string]int) map[string]string {
	return map[string]string{
		"fr": cell(row, cols, "label::fr"),
		"en": cell(row, cols, "label::en"),
		"bm": cell(row, cols, "label::bm"),
	}
}

func isDBDoc(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// odkPath assembles the slash-delimited position of an element under
// root (the form id, or the repeat/db-doc group name for those zones).
func odkPath(root string, groups []string, name string) string {
	if len(groups) == 0 {
		return "/" + root + "/" + name
	}
	return "/" + root + "/" + strings.Join(groups, "/") + "/" + name
}

// relevantColumns are the survey columns worth carrying into the
// markdown context handed to the description oracle. Everything else is
// noise that inflates the prompt.
var relevantColumns = []string{
	"type", "name", "label", "label::fr", "label::en", "label::bm",
	"calculation", "required", "relevant", "constraint", "choice_filter",
}

// SurveyMarkdown renders the survey sheet as a markdown table restricted
// to the columns in relevantColumns that actually exist in the sheet.
func SurveyMarkdown(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", &ParseError{Reason: "not a valid workbook", Err: err}
	}
	defer f.Close()

	rows, err := f.GetRows(surveySheet)
	if err != nil {
		return "", &ParseError{Reason: "missing survey sheet", Err: err}
	}
	if len(rows) == 0 {
		return "", nil
	}

	cols := indexColumns(rows[0])
	var keep []string
	for _, c := range relevantColumns {
		if _, ok := cols[c]; ok {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(keep, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(keep)) + "\n")
	for _, row := range rows[1:] {
		values := make([]string, len(keep))
		for i, c := range keep {
			values[i] = strings.ReplaceAll(cell(row, cols, c), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(values, " | ") + " |\n")
	}
	return b.String(), nil
}
