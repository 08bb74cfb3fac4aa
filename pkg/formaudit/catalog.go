// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// catalog.go builds a denormalized data catalog by correlating the
// columns of each generated view with the form fields they extract, and
// optionally backfills human-readable descriptions for calculated
// columns through the similarity oracle.

package formaudit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ParsedColumn is a single column lifted out of a view definition.
type ParsedColumn struct {
	ColumnName string
	JSONPath   string
	SQLType    string
}

// castColumnPattern matches extractions wrapped in an explicit SAFE_CAST,
// capturing path, SQL type, and column alias:
//
//	SAFE_CAST(JSON_VALUE(f.doc, '$.fields.age') AS INT64) AS age
var castColumnPattern = regexp.MustCompile(
	`(?i)SAFE_CAST\s*\(\s*JSON_(?:VALUE|EXTRACT_SCALAR)\s*\([^,]+,\s*'([^']+)'\s*\)\s+AS\s+([A-Z0-9_]+)\s*\)\s+AS\s+([a-zA-Z0-9_]+)`)

// simpleColumnPattern matches bare extractions with a column alias:
//
//	JSON_VALUE(f.doc, '$.fields.name') AS name
var simpleColumnPattern = regexp.MustCompile(
	`(?i)JSON_(?:VALUE|EXTRACT_SCALAR)\s*\([^,]+,\s*'([^']+)'\s*\)\s+AS\s+([a-zA-Z0-9_]+)`)

// ParseSQLColumns extracts the JSON-backed columns of a view definition.
// The SAFE_CAST pass runs first and wins: it knows the column's declared
// type. Columns only seen by the simple pass default to STRING. Results
// are deduplicated by lowercased column name, in first-match order.
func ParseSQLColumns(sqlText string) []ParsedColumn {
	seen := map[string]bool{}
	var columns []ParsedColumn

	for _, m := range castColumnPattern.FindAllStringSubmatch(sqlText, -1) {
		key := strings.ToLower(m[3])
		if seen[key] {
			continue
		}
		seen[key] = true
		columns = append(columns, ParsedColumn{
			ColumnName: m[3],
			JSONPath:   m[1],
			SQLType:    strings.ToUpper(m[2]),
		})
	}
	for _, m := range simpleColumnPattern.FindAllStringSubmatch(sqlText, -1) {
		key := strings.ToLower(m[2])
		if seen[key] {
			continue
		}
		seen[key] = true
		columns = append(columns, ParsedColumn{
			ColumnName: m[2],
			JSONPath:   m[1],
			SQLType:    "STRING",
		})
	}
	return columns
}

// CatalogRow is one line of the data catalog. Unlike the audit DTOs it
// is mutable: the enrichment pass fills the label fields in place.
type CatalogRow struct {
	FormviewName string
	XLSFormName  string
	ColumnName   string
	SQLType      string
	JSONPath     string
	ODKType      string
	Calculation  string
	LabelFR      string
	LabelEN      string
	LabelBM      string
}

// CatalogResult holds the generated catalog rows.
type CatalogResult struct {
	Rows []CatalogRow
}

// CatalogBuilder correlates view columns with form fields.
type CatalogBuilder struct {
	cfg       Config
	lister    FormLister
	source    SourceRepository
	warehouse WarehouseRepository
	oracle    SimilarityOracle
	log       Logger
}

// NewCatalogBuilder returns a CatalogBuilder. Zero-value Config fields
// get defaults. The oracle is only needed for Enrich and may be nil
// otherwise.
func NewCatalogBuilder(cfg Config, lister FormLister, source SourceRepository, warehouse WarehouseRepository, oracle SimilarityOracle, log Logger) *CatalogBuilder {
	cfg.applyDefaults()
	if log == nil {
		log = NopLogger{}
	}
	return &CatalogBuilder{cfg: cfg, lister: lister, source: source, warehouse: warehouse, oracle: oracle, log: log}
}

// datasetFor returns the warehouse dataset for a country, honoring any
// configuration override.
func (b *CatalogBuilder) datasetFor(country string) string {
	if d, ok := b.cfg.Warehouse.Datasets[strings.ToUpper(country)]; ok {
		return d
	}
	return DatasetID(country)
}

// Build generates the catalog for every installed form of a country.
// Forms whose artifacts are missing are skipped with a warning; any
// other per-form failure is logged and the batch continues.
func (b *CatalogBuilder) Build(ctx context.Context, country string) (CatalogResult, error) {
	if !ValidCountry(country) {
		return CatalogResult{}, fmt.Errorf("unknown country code %q", country)
	}

	b.log.Infof("starting data catalog generation for country %s", country)
	formIDs, err := b.lister.ListInstalledForms(ctx, country)
	if err != nil {
		return CatalogResult{}, fmt.Errorf("listing installed forms for %s: %w", country, err)
	}

	var result CatalogResult
	for _, formID := range formIDs {
		rows, err := b.buildForm(ctx, country, formID)
		switch {
		case IsNotFound(err):
			b.log.Warnf("skipping form %s: artifact not found: %v", formID, err)
		case err != nil:
			b.log.Errorf("unexpected error processing form %s: %v", formID, err)
		default:
			result.Rows = append(result.Rows, rows...)
		}
	}
	b.log.Infof("data catalog generation finished: %d rows", len(result.Rows))
	return result, nil
}

// buildForm produces the catalog rows of a single form's main view.
func (b *CatalogBuilder) buildForm(ctx context.Context, country, formID string) ([]CatalogRow, error) {
	data, err := b.source.DownloadFile(ctx, b.cfg.Source.Branch, FormPath(country, formID))
	if err != nil {
		return nil, err
	}

	viewName := MainViewName(country, formID)
	sqlText, err := b.warehouse.ViewQuery(ctx, b.cfg.Warehouse.Project, b.datasetFor(country), viewName)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseForm(data)
	if err != nil {
		return nil, err
	}

	// Main-body paths take precedence; repeat and db-doc children only
	// fill gaps (their paths share the "$." root with inputs fields).
	byPath := map[string]Element{}
	for _, el := range parsed.AllElements() {
		if el.JSONPath == "" {
			continue
		}
		if _, ok := byPath[el.JSONPath]; !ok {
			byPath[el.JSONPath] = el
		}
	}

	var rows []CatalogRow
	for _, col := range ParseSQLColumns(sqlText) {
		el, ok := byPath[col.JSONPath]
		if !ok {
			b.log.Warnf("no form element matches column %q (%s) in form %s", col.ColumnName, col.JSONPath, formID)
			continue
		}
		rows = append(rows, CatalogRow{
			FormviewName: viewName,
			XLSFormName:  formID,
			ColumnName:   col.ColumnName,
			SQLType:      col.SQLType,
			JSONPath:     col.JSONPath,
			ODKType:      el.Kind,
			Calculation:  el.Calculation,
			LabelFR:      el.Titles["fr"],
			LabelEN:      el.Titles["en"],
			LabelBM:      el.Titles["bm"],
		})
	}
	return rows, nil
}

// Enrichment modes.
const (
	// EnrichOverwrite regenerates descriptions for every calculated row.
	EnrichOverwrite = "overwrite"
	// EnrichFill only describes rows with an empty French label.
	EnrichFill = "fill"
)

// Enrich backfills the label fields of calculated-column rows with
// oracle-generated descriptions, mutating result in place. formFilter
// restricts the pass to one view name; "All" (or "") processes
// everything. Per-row failures are logged and skipped.
func (b *CatalogBuilder) Enrich(ctx context.Context, result *CatalogResult, country, mode, formFilter string) error {
	if b.oracle == nil {
		return fmt.Errorf("enrichment requires a similarity oracle")
	}
	b.log.Infof("starting catalog enrichment: country=%s mode=%s filter=%s", country, mode, formFilter)

	// Group row indexes by form, in first-seen order, so the survey
	// context is fetched once per form.
	byForm := map[string][]int{}
	var formOrder []string
	for i, row := range result.Rows {
		if formFilter != "" && formFilter != "All" && row.FormviewName != formFilter {
			continue
		}
		if _, ok := byForm[row.XLSFormName]; !ok {
			formOrder = append(formOrder, row.XLSFormName)
		}
		byForm[row.XLSFormName] = append(byForm[row.XLSFormName], i)
	}

	enriched := 0
	for _, formID := range formOrder {
		contextMD, err := b.formContext(ctx, country, formID)
		if err != nil {
			b.log.Errorf("could not load form context for %s, skipping its rows: %v", formID, err)
			continue
		}

		for _, i := range byForm[formID] {
			row := &result.Rows[i]
			if row.ODKType != "calculate" || row.Calculation == "" {
				continue
			}
			if mode == EnrichFill && row.LabelFR != "" {
				continue
			}
			descriptions, err := b.oracle.DescribeFormula(ctx, row.Calculation, contextMD)
			if err != nil {
				b.log.Errorf("describing formula for column %s: %v", row.ColumnName, err)
				continue
			}
			if v, ok := descriptions["fr"]; ok {
				row.LabelFR = v
			}
			if v, ok := descriptions["en"]; ok {
				row.LabelEN = v
			}
			if v, ok := descriptions["bm"]; ok {
				row.LabelBM = v
			}
			enriched++
		}
	}
	b.log.Infof("enrichment complete: %d rows updated", enriched)
	return nil
}

// formContext downloads a form definition and renders its survey sheet
// as the markdown context handed to the description oracle.
func (b *CatalogBuilder) formContext(ctx context.Context, country, formID string) (string, error) {
	data, err := b.source.DownloadFile(ctx, b.cfg.Source.Branch, FormPath(country, formID))
	if err != nil {
		return "", err
	}
	return SurveyMarkdown(data)
}
