// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// sqlmatch.go detects the three extraction idioms the view generator
// emits: a bare JSON-path literal (scalar column), an UNNEST over a
// JSON array (repeat group flattened into the main view), and a scalar
// extraction from the unnest loop variable (repeat child column). The
// generated SQL is pretty-printed, so every pattern tolerates arbitrary
// whitespace between tokens. Keyword matching is case-insensitive; the
// JSON path itself never is.

package formaudit

import (
	"fmt"
	"regexp"
	"strings"
)

// ContainsLiteral reports whether jsonPath occurs verbatim in sqlText.
func ContainsLiteral(sqlText, jsonPath string) bool {
	return jsonPath != "" && strings.Contains(sqlText, jsonPath)
}

// FindLiteralReferences returns the occurrence count of jsonPath in
// sqlText and the 1-based line number of each occurrence.
func FindLiteralReferences(sqlText, jsonPath string) (count int, lines []int) {
	if jsonPath == "" {
		return 0, nil
	}
	offset := 0
	for {
		idx := strings.Index(sqlText[offset:], jsonPath)
		if idx < 0 {
			return count, lines
		}
		at := offset + idx
		count++
		lines = append(lines, 1+strings.Count(sqlText[:at], "\n"))
		offset = at + len(jsonPath)
	}
}

// HasArrayUnnestPattern reports whether sqlText unnests a JSON array
// extracted at embeddingPath, i.e. contains a construct of the shape
//
//	UNNEST(JSON_EXTRACT_ARRAY(f.doc, '$.fields.visits'))
//
// with any table-alias expression before the comma and either quote
// character around the path.
func HasArrayUnnestPattern(sqlText, embeddingPath string) bool {
	if embeddingPath == "" {
		return false
	}
	pattern := fmt.Sprintf(
		`(?i:UNNEST)\s*\(\s*(?i:JSON_EXTRACT_ARRAY)\s*\(\s*[^,]+,\s*['"]%s['"]\s*\)\s*\)`,
		regexp.QuoteMeta(embeddingPath))
	return matchPattern(pattern, sqlText)
}

// HasStructScalarExtraction reports whether sqlText extracts a scalar at
// elementPath from the unnest loop variable, i.e. contains
//
//	JSON_EXTRACT_SCALAR(item, '$.fup_date')
//
// (or the JSON_VALUE spelling) modulo whitespace.
func HasStructScalarExtraction(sqlText, elementPath string) bool {
	if elementPath == "" {
		return false
	}
	pattern := fmt.Sprintf(
		`(?i:JSON_(?:VALUE|EXTRACT_SCALAR))\s*\(\s*item\s*,\s*['"]%s['"]\s*\)`,
		regexp.QuoteMeta(elementPath))
	return matchPattern(pattern, sqlText)
}

// matchPattern compiles and runs pattern against text. A compile failure
// degrades to no-match: a form with unusual characters in a field name
// must surface as a reported discrepancy, not a crash.
func matchPattern(pattern, text string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
