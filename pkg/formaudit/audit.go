// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// audit.go reconciles form definitions against their generated warehouse
// views, one form at a time. Each form is processed independently and
// best-effort: a missing artifact or a broken spreadsheet becomes a
// report entry, never an aborted batch.

package formaudit

import (
	"context"
	"fmt"
	"strings"
)

// FormLister returns the form ids installed on a country's instance.
type FormLister interface {
	ListInstalledForms(ctx context.Context, country string) ([]string, error)
}

// SourceRepository fetches raw file bytes from source control. A missing
// file is reported as an ErrNotFound wrap.
type SourceRepository interface {
	DownloadFile(ctx context.Context, branch, path string) ([]byte, error)
}

// WarehouseRepository fetches the SQL definition of a named view. A
// missing view is reported as an ErrNotFound wrap.
type WarehouseRepository interface {
	ViewQuery(ctx context.Context, project, dataset, view string) (string, error)
}

// Repeat-group handling methods, in the order the audit tries them.
const (
	HandlingArrayInMainView = "ARRAY_IN_MAIN_VIEW"
	HandlingSeparateView    = "SEPARATE_VIEW"
	HandlingNotFound        = "NOT_FOUND"
)

// NotFoundElement identifies a form field with no trace in the SQL.
type NotFoundElement struct {
	ElementName string
	JSONPath    string
}

// FoundReference records where a form field's extraction path appears in
// the SQL.
type FoundReference struct {
	ElementName string
	JSONPath    string
	Count       int
	Lines       []int
}

// ComparisonResult is the per-view outcome of matching a set of elements
// against one SQL text. NotFoundBM collects `_bm` suffixed elements for
// RCI, where Bambara labels are expected to be absent from views.
type ComparisonResult struct {
	Founds     []FoundReference
	NotFounds  []NotFoundElement
	NotFoundBM []NotFoundElement
}

// RepeatGroupAuditResult describes how one repeat group is handled by
// the generated SQL and which of its children are missing.
type RepeatGroupAuditResult struct {
	Name           string
	HandlingMethod string
	Comparison     ComparisonResult
}

// DocGroupAuditResult describes the audit of one db-doc group view.
type DocGroupAuditResult struct {
	Name       string
	ViewFound  bool
	Comparison ComparisonResult
}

// SingleFormAuditResult collects every discrepancy found for one form.
type SingleFormAuditResult struct {
	FormID           string
	NotFoundElements []NotFoundElement
	RepeatGroups     []RepeatGroupAuditResult
	DocGroups        []DocGroupAuditResult
}

// HasDiscrepancies reports whether anything in the form needs attention.
func (r SingleFormAuditResult) HasDiscrepancies() bool {
	if len(r.NotFoundElements) > 0 {
		return true
	}
	for _, rg := range r.RepeatGroups {
		if rg.HandlingMethod == HandlingNotFound || len(rg.Comparison.NotFounds) > 0 {
			return true
		}
	}
	for _, dg := range r.DocGroups {
		if !dg.ViewFound || len(dg.Comparison.NotFounds) > 0 {
			return true
		}
	}
	return false
}

// BulkAuditResult is the outcome of auditing every installed form of a
// country. ComparedForms holds only forms with at least one discrepancy;
// clean forms are implicitly OK.
type BulkAuditResult struct {
	ComparedForms   []SingleFormAuditResult
	MissingXLSForms []string
	InvalidXLSForms []string
	MissingViews    []string
}

// Auditor wires the reconciliation engine to its collaborators.
type Auditor struct {
	cfg       Config
	lister    FormLister
	source    SourceRepository
	warehouse WarehouseRepository
	log       Logger
}

// NewAuditor returns an Auditor. Zero-value Config fields get defaults;
// a nil logger is replaced with NopLogger.
func NewAuditor(cfg Config, lister FormLister, source SourceRepository, warehouse WarehouseRepository, log Logger) *Auditor {
	cfg.applyDefaults()
	if log == nil {
		log = NopLogger{}
	}
	return &Auditor{cfg: cfg, lister: lister, source: source, warehouse: warehouse, log: log}
}

// datasetFor returns the warehouse dataset for a country, honoring any
// configuration override.
func (a *Auditor) datasetFor(country string) string {
	if d, ok := a.cfg.Warehouse.Datasets[strings.ToUpper(country)]; ok {
		return d
	}
	return DatasetID(country)
}

// Audit reconciles every installed form of a country against its
// warehouse views. Only listing failures abort the run; any per-form
// failure degrades to a report entry.
func (a *Auditor) Audit(ctx context.Context, country string) (BulkAuditResult, error) {
	if !ValidCountry(country) {
		return BulkAuditResult{}, fmt.Errorf("unknown country code %q", country)
	}

	a.log.Infof("starting bulk audit for country %s", country)
	formIDs, err := a.lister.ListInstalledForms(ctx, country)
	if err != nil {
		return BulkAuditResult{}, fmt.Errorf("listing installed forms for %s: %w", country, err)
	}

	var result BulkAuditResult
	for _, formID := range formIDs {
		a.auditForm(ctx, country, formID, &result)
	}
	a.log.Infof("bulk audit finished: %d forms with discrepancies, %d missing forms, %d invalid forms, %d missing views",
		len(result.ComparedForms), len(result.MissingXLSForms), len(result.InvalidXLSForms), len(result.MissingViews))
	return result, nil
}

// auditForm processes one form and appends its findings to result.
func (a *Auditor) auditForm(ctx context.Context, country, formID string, result *BulkAuditResult) {
	a.log.Infof("auditing form %s", formID)

	data, err := a.source.DownloadFile(ctx, a.cfg.Source.Branch, FormPath(country, formID))
	switch {
	case IsNotFound(err):
		a.log.Warnf("form definition not found in source control: %s", formID)
		result.MissingXLSForms = append(result.MissingXLSForms, formID)
		return
	case err != nil:
		a.log.Errorf("could not process form %s: %v", formID, err)
		result.MissingXLSForms = append(result.MissingXLSForms, formID+" (Processing Error)")
		return
	}

	parsed, err := ParseForm(data)
	if err != nil {
		if IsParseError(err) {
			a.log.Warnf("form definition is not parseable: %s: %v", formID, err)
			result.InvalidXLSForms = append(result.InvalidXLSForms, formID)
		} else {
			a.log.Errorf("could not process form %s: %v", formID, err)
			result.MissingXLSForms = append(result.MissingXLSForms, formID+" (Processing Error)")
		}
		return
	}

	mainSQL := ""
	viewName := MainViewName(country, formID)
	sqlText, err := a.warehouse.ViewQuery(ctx, a.cfg.Warehouse.Project, a.datasetFor(country), viewName)
	switch {
	case IsNotFound(err):
		a.log.Warnf("main view %s not found for form %s", viewName, formID)
		result.MissingViews = append(result.MissingViews, formID)
	case err != nil:
		a.log.Errorf("could not process form %s: %v", formID, err)
		result.MissingXLSForms = append(result.MissingXLSForms, formID+" (Processing Error)")
		return
	default:
		mainSQL = sqlText
	}

	form := SingleFormAuditResult{FormID: formID}

	// Main body: a field is present iff its path appears verbatim.
	// Skipped entirely when the main view is missing.
	if mainSQL != "" {
		for _, el := range parsed.MainElements {
			if el.JSONPath == "" {
				continue
			}
			if !ContainsLiteral(mainSQL, el.JSONPath) {
				form.NotFoundElements = append(form.NotFoundElements,
					NotFoundElement{ElementName: el.Name, JSONPath: el.JSONPath})
			}
		}
	}

	form.RepeatGroups = a.auditRepeatGroups(ctx, country, formID, parsed, mainSQL)
	form.DocGroups = a.auditDocGroups(ctx, country, formID, parsed)

	if form.HasDiscrepancies() {
		a.log.Warnf("form %s has discrepancies", formID)
		result.ComparedForms = append(result.ComparedForms, form)
	}
}

// auditRepeatGroups audits each repeat group of a parsed form. A repeat
// is first checked for the UNNEST-in-main-view idiom; failing that, its
// separate view is fetched; failing that too it is NOT_FOUND.
func (a *Auditor) auditRepeatGroups(ctx context.Context, country, formID string, parsed *ParsedForm, mainSQL string) []RepeatGroupAuditResult {
	var results []RepeatGroupAuditResult
	for _, name := range parsed.RepeatOrder {
		rg := parsed.RepeatGroups[name]
		res := RepeatGroupAuditResult{Name: name}

		if mainSQL != "" && HasArrayUnnestPattern(mainSQL, rg.JSONPathInParent) {
			res.HandlingMethod = HandlingArrayInMainView
			// Children sit one level inside the unnested item, so
			// the bare path literal never appears; only the
			// item-scoped extraction counts.
			for _, el := range rg.Elements {
				if el.JSONPath == "" {
					continue
				}
				if HasStructScalarExtraction(mainSQL, el.JSONPath) {
					count, lines := FindLiteralReferences(mainSQL, el.JSONPath)
					res.Comparison.Founds = append(res.Comparison.Founds,
						FoundReference{ElementName: el.Name, JSONPath: el.JSONPath, Count: count, Lines: lines})
				} else {
					res.Comparison.NotFounds = append(res.Comparison.NotFounds,
						NotFoundElement{ElementName: el.Name, JSONPath: el.JSONPath})
				}
			}
			results = append(results, res)
			continue
		}

		viewName := RepeatViewName(formID, name)
		sqlText, err := a.warehouse.ViewQuery(ctx, a.cfg.Warehouse.Project, a.datasetFor(country), viewName)
		switch {
		case IsNotFound(err):
			res.HandlingMethod = HandlingNotFound
		case err != nil:
			a.log.Errorf("fetching repeat view %s for form %s: %v", viewName, formID, err)
			res.HandlingMethod = HandlingNotFound
		default:
			res.HandlingMethod = HandlingSeparateView
			res.Comparison = compareElements(rg.Elements, sqlText, "")
		}
		results = append(results, res)
	}
	return results
}

// auditDocGroups audits each db-doc group view of a parsed form. When
// the view is missing every element is reported not-found, mirroring the
// repeat-group NOT_FOUND convention.
func (a *Auditor) auditDocGroups(ctx context.Context, country, formID string, parsed *ParsedForm) []DocGroupAuditResult {
	var results []DocGroupAuditResult
	for _, name := range parsed.DocOrder {
		elements := parsed.DocGroups[name]
		res := DocGroupAuditResult{Name: name}

		viewName := DocGroupViewName(formID, name)
		sqlText, err := a.warehouse.ViewQuery(ctx, a.cfg.Warehouse.Project, a.datasetFor(country), viewName)
		switch {
		case IsNotFound(err):
			res.ViewFound = false
			for _, el := range elements {
				if el.JSONPath == "" {
					continue
				}
				res.Comparison.NotFounds = append(res.Comparison.NotFounds,
					NotFoundElement{ElementName: el.Name, JSONPath: el.JSONPath})
			}
		case err != nil:
			a.log.Errorf("fetching db-doc view %s for form %s: %v", viewName, formID, err)
			res.ViewFound = false
		default:
			res.ViewFound = true
			res.Comparison = compareElements(elements, sqlText, "")
		}
		results = append(results, res)
	}
	return results
}

// compareElements matches elements against sqlText by literal path. When
// country is RCI, elements with a `_bm` suffix land in the non-critical
// bucket: Bambara mirrors are not expected in RCI views.
func compareElements(elements []Element, sqlText, country string) ComparisonResult {
	var res ComparisonResult
	for _, el := range elements {
		if el.JSONPath == "" {
			continue
		}
		count, lines := FindLiteralReferences(sqlText, el.JSONPath)
		if count > 0 {
			res.Founds = append(res.Founds,
				FoundReference{ElementName: el.Name, JSONPath: el.JSONPath, Count: count, Lines: lines})
			continue
		}
		nf := NotFoundElement{ElementName: el.Name, JSONPath: el.JSONPath}
		if strings.EqualFold(country, "RCI") && strings.HasSuffix(el.Name, "_bm") {
			res.NotFoundBM = append(res.NotFoundBM, nf)
		} else {
			res.NotFounds = append(res.NotFounds, nf)
		}
	}
	return res
}

// FormSQLComparison is the result of comparing one form definition
// against one main-view SQL text, including its repeat and db-doc group
// audits.
type FormSQLComparison struct {
	Main         ComparisonResult
	RepeatGroups []RepeatGroupAuditResult
	DocGroups    []DocGroupAuditResult
}

// CompareFormWithSQL audits a single form whose definition bytes and
// main-view SQL are already at hand (uploaded or fetched by the caller).
// Secondary views for repeat and db-doc groups are still fetched through
// the warehouse; pass a nil warehouse to skip them.
func (a *Auditor) CompareFormWithSQL(ctx context.Context, xlsData []byte, sqlText, country, formID string) (FormSQLComparison, error) {
	parsed, err := ParseForm(xlsData)
	if err != nil {
		return FormSQLComparison{}, err
	}
	if formID == "" {
		formID = parsed.FormID
	}

	result := FormSQLComparison{
		Main: compareElements(parsed.MainElements, sqlText, country),
	}
	if a.warehouse != nil {
		result.RepeatGroups = a.auditRepeatGroups(ctx, country, formID, parsed, sqlText)
		result.DocGroups = a.auditDocGroups(ctx, country, formID, parsed)
	}
	return result, nil
}
