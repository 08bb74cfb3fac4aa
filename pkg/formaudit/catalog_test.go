// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SQL column parsing tests ---

func TestParseSQLColumns(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []ParsedColumn
	}{
		{
			"simple extraction defaults to string",
			`SELECT JSON_VALUE(f.doc, '$.fields.name') AS name FROM t`,
			[]ParsedColumn{{ColumnName: "name", JSONPath: "$.fields.name", SQLType: "STRING"}},
		},
		{
			"safe cast carries the declared type",
			`SELECT SAFE_CAST(JSON_VALUE(f.doc, '$.fields.age') AS INT64) AS age FROM t`,
			[]ParsedColumn{{ColumnName: "age", JSONPath: "$.fields.age", SQLType: "INT64"}},
		},
		{
			"json_extract_scalar spelling",
			`SELECT JSON_EXTRACT_SCALAR(f.doc, '$.fields.name') AS name FROM t`,
			[]ParsedColumn{{ColumnName: "name", JSONPath: "$.fields.name", SQLType: "STRING"}},
		},
		{
			"cast pass wins over simple pass",
			`SELECT SAFE_CAST(JSON_VALUE(f.doc, '$.fields.age') AS FLOAT64) AS age FROM t`,
			[]ParsedColumn{{ColumnName: "age", JSONPath: "$.fields.age", SQLType: "FLOAT64"}},
		},
		{
			"dedupe is case-insensitive, first match kept",
			`SELECT JSON_VALUE(a, '$.x') AS col, JSON_VALUE(b, '$.y') AS COL FROM t`,
			[]ParsedColumn{{ColumnName: "col", JSONPath: "$.x", SQLType: "STRING"}},
		},
		{
			"multiple columns keep source order",
			`SELECT
				SAFE_CAST(JSON_VALUE(f.doc, '$.fields.age') AS INT64) AS age,
				JSON_VALUE(f.doc, '$.fields.name') AS name
			FROM t`,
			[]ParsedColumn{
				{ColumnName: "age", JSONPath: "$.fields.age", SQLType: "INT64"},
				{ColumnName: "name", JSONPath: "$.fields.name", SQLType: "STRING"},
			},
		},
		{
			"no extractions",
			`SELECT 1 AS one FROM t`,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSQLColumns(tt.sql))
		})
	}
}

// --- Catalog build tests ---

func catalogFixture(t *testing.T) (fakeSource, fakeWarehouse) {
	t.Helper()
	data := buildForm(t, "fp_follow_up", basicHeader, [][]string{
		{"text", "patient_name", "Nom du patient", "Patient name", "Tɔgɔ"},
		{"calculate", "risk_score", "", "", "", "${a} + ${b}"},
	})
	source := fakeSource{files: map[string][]byte{
		"muso-mali/forms/app/fp_follow_up.xlsx": data,
	}}
	warehouse := fakeWarehouse{views: map[string]string{
		"formview_fp_follow_up": `SELECT
			JSON_VALUE(f.doc, '$.fields.patient_name') AS patient_name,
			SAFE_CAST(JSON_VALUE(f.doc, '$.fields.risk_score') AS INT64) AS risk_score,
			JSON_VALUE(f.doc, '$.fields.unmapped') AS unmapped
		FROM t`,
	}}
	return source, warehouse
}

func TestCatalogBuilder_Build(t *testing.T) {
	source, warehouse := catalogFixture(t)
	b := NewCatalogBuilder(Config{}, fakeLister{forms: []string{"fp_follow_up"}}, source, warehouse, nil, nil)

	result, err := b.Build(context.Background(), "MALI")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2, "the unmapped column has no form element and is skipped")

	name := result.Rows[1]
	assert.Equal(t, "formview_fp_follow_up", name.FormviewName)
	assert.Equal(t, "fp_follow_up", name.XLSFormName)
	assert.Equal(t, "patient_name", name.ColumnName)
	assert.Equal(t, "STRING", name.SQLType)
	assert.Equal(t, "text", name.ODKType)
	assert.Equal(t, "Nom du patient", name.LabelFR)
	assert.Equal(t, "Patient name", name.LabelEN)
	assert.Equal(t, "Tɔgɔ", name.LabelBM)

	score := result.Rows[0]
	assert.Equal(t, "risk_score", score.ColumnName)
	assert.Equal(t, "INT64", score.SQLType)
	assert.Equal(t, "calculate", score.ODKType)
	assert.Equal(t, "${a} + ${b}", score.Calculation)
}

func TestCatalogBuilder_BuildSkipsMissingArtifacts(t *testing.T) {
	source, warehouse := catalogFixture(t)
	b := NewCatalogBuilder(Config{},
		fakeLister{forms: []string{"absent", "fp_follow_up"}}, source, warehouse, nil, nil)

	result, err := b.Build(context.Background(), "MALI")
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2, "the absent form is skipped, not fatal")
}

func TestCatalogBuilder_BuildUnknownCountry(t *testing.T) {
	b := NewCatalogBuilder(Config{}, fakeLister{}, fakeSource{}, fakeWarehouse{}, nil, nil)
	_, err := b.Build(context.Background(), "FRANCE")
	require.Error(t, err)
}

// --- Enrichment tests ---

func enrichFixture(t *testing.T, oracle SimilarityOracle) (*CatalogBuilder, *CatalogResult) {
	t.Helper()
	source, warehouse := catalogFixture(t)
	b := NewCatalogBuilder(Config{}, fakeLister{forms: []string{"fp_follow_up"}}, source, warehouse, oracle, nil)
	result, err := b.Build(context.Background(), "MALI")
	require.NoError(t, err)
	return b, &result
}

func TestCatalogBuilder_EnrichFill(t *testing.T) {
	oracle := &fakeOracle{descriptions: map[string]string{
		"fr": "Score de risque", "en": "Risk score", "bm": "Faratiba hakɛ",
	}}
	b, result := enrichFixture(t, oracle)

	err := b.Enrich(context.Background(), result, "MALI", EnrichFill, "All")
	require.NoError(t, err)

	score := result.Rows[0]
	assert.Equal(t, "Score de risque", score.LabelFR)
	assert.Equal(t, "Risk score", score.LabelEN)
	assert.Equal(t, "Faratiba hakɛ", score.LabelBM)

	// The text column is untouched: enrichment only describes
	// calculated columns.
	assert.Equal(t, "Nom du patient", result.Rows[1].LabelFR)
}

func TestCatalogBuilder_EnrichFillSkipsLabeled(t *testing.T) {
	oracle := &fakeOracle{descriptions: map[string]string{"fr": "généré"}}
	b, result := enrichFixture(t, oracle)
	result.Rows[0].LabelFR = "déjà renseigné"

	err := b.Enrich(context.Background(), result, "MALI", EnrichFill, "All")
	require.NoError(t, err)
	assert.Equal(t, "déjà renseigné", result.Rows[0].LabelFR)
}

func TestCatalogBuilder_EnrichOverwriteReplacesLabeled(t *testing.T) {
	oracle := &fakeOracle{descriptions: map[string]string{"fr": "généré"}}
	b, result := enrichFixture(t, oracle)
	result.Rows[0].LabelFR = "ancien"

	err := b.Enrich(context.Background(), result, "MALI", EnrichOverwrite, "All")
	require.NoError(t, err)
	assert.Equal(t, "généré", result.Rows[0].LabelFR)
}

func TestCatalogBuilder_EnrichFormFilter(t *testing.T) {
	oracle := &fakeOracle{descriptions: map[string]string{"fr": "généré"}}
	b, result := enrichFixture(t, oracle)

	err := b.Enrich(context.Background(), result, "MALI", EnrichOverwrite, "formview_some_other_view")
	require.NoError(t, err)
	assert.Empty(t, result.Rows[0].LabelFR, "filtered-out rows stay untouched")
}

func TestCatalogBuilder_EnrichRequiresOracle(t *testing.T) {
	b, result := enrichFixture(t, nil)
	err := b.Enrich(context.Background(), result, "MALI", EnrichFill, "All")
	require.Error(t, err)
}
