// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/musohealth/formaudit/pkg/formaudit"
)

func renderJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderAuditReport(result formaudit.BulkAuditResult) {
	if len(result.MissingXLSForms) > 0 {
		fmt.Println("Forms with no definition in source control:")
		for _, id := range result.MissingXLSForms {
			fmt.Printf("  - %s\n", id)
		}
		fmt.Println()
	}
	if len(result.InvalidXLSForms) > 0 {
		fmt.Println("Forms whose definition could not be parsed:")
		for _, id := range result.InvalidXLSForms {
			fmt.Printf("  - %s\n", id)
		}
		fmt.Println()
	}
	if len(result.MissingViews) > 0 {
		fmt.Println("Forms with no main view in the warehouse:")
		for _, id := range result.MissingViews {
			fmt.Printf("  - %s\n", id)
		}
		fmt.Println()
	}

	if len(result.ComparedForms) == 0 {
		fmt.Println("No field-level discrepancies found.")
		return
	}
	for _, form := range result.ComparedForms {
		fmt.Printf("Form %s:\n", form.FormID)
		for _, nf := range form.NotFoundElements {
			fmt.Printf("  missing in main view: %s (%s)\n", nf.ElementName, nf.JSONPath)
		}
		for _, rg := range form.RepeatGroups {
			fmt.Printf("  repeat group %s: %s\n", rg.Name, rg.HandlingMethod)
			for _, nf := range rg.Comparison.NotFounds {
				fmt.Printf("    missing: %s (%s)\n", nf.ElementName, nf.JSONPath)
			}
		}
		for _, dg := range form.DocGroups {
			status := "view found"
			if !dg.ViewFound {
				status = "view missing"
			}
			fmt.Printf("  db-doc group %s: %s\n", dg.Name, status)
			for _, nf := range dg.Comparison.NotFounds {
				fmt.Printf("    missing: %s (%s)\n", nf.ElementName, nf.JSONPath)
			}
		}
		fmt.Println()
	}
}

func renderFormComparison(result formaudit.FormSQLComparison) {
	fmt.Printf("Main view: %d found, %d missing", len(result.Main.Founds), len(result.Main.NotFounds))
	if len(result.Main.NotFoundBM) > 0 {
		fmt.Printf(", %d missing Bambara mirrors", len(result.Main.NotFoundBM))
	}
	fmt.Println()
	for _, f := range result.Main.Founds {
		fmt.Printf("  found: %s (%s) x%d, lines %s\n", f.ElementName, f.JSONPath, f.Count, joinInts(f.Lines))
	}
	for _, nf := range result.Main.NotFounds {
		fmt.Printf("  missing: %s (%s)\n", nf.ElementName, nf.JSONPath)
	}
	for _, nf := range result.Main.NotFoundBM {
		fmt.Printf("  missing (bm): %s (%s)\n", nf.ElementName, nf.JSONPath)
	}
	for _, rg := range result.RepeatGroups {
		fmt.Printf("Repeat group %s: %s\n", rg.Name, rg.HandlingMethod)
		for _, nf := range rg.Comparison.NotFounds {
			fmt.Printf("  missing: %s (%s)\n", nf.ElementName, nf.JSONPath)
		}
	}
	for _, dg := range result.DocGroups {
		status := "view found"
		if !dg.ViewFound {
			status = "view missing"
		}
		fmt.Printf("Db-doc group %s: %s\n", dg.Name, status)
		for _, nf := range dg.Comparison.NotFounds {
			fmt.Printf("  missing: %s (%s)\n", nf.ElementName, nf.JSONPath)
		}
	}
}

func renderFormDiff(diff formaudit.FormDiff) {
	fmt.Printf("%d unchanged, %d modified, %d added, %d removed\n\n",
		len(diff.Unchanged), len(diff.Modified), len(diff.Added), len(diff.Removed))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range diff.Modified {
		fmt.Fprintf(w, "modified\t%s\t%s\t%s\n", m.Old.Name, m.New.Name, m.Reason)
	}
	for _, el := range diff.Added {
		fmt.Fprintf(w, "added\t%s\t%s\t\n", el.Name, el.Path)
	}
	for _, el := range diff.Removed {
		fmt.Fprintf(w, "removed\t%s\t%s\t\n", el.Name, el.Path)
	}
	w.Flush()
}

var catalogHeader = []string{
	"formview_name", "xlsform_name", "column_name", "sql_type",
	"json_path", "odk_type", "calculation", "label_fr", "label_en", "label_bm",
}

func catalogRecord(row formaudit.CatalogRow) []string {
	return []string{
		row.FormviewName, row.XLSFormName, row.ColumnName, row.SQLType,
		row.JSONPath, row.ODKType, row.Calculation, row.LabelFR, row.LabelEN, row.LabelBM,
	}
}

func renderCatalogCSV(result formaudit.CatalogResult) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(catalogHeader); err != nil {
		return fmt.Errorf("writing catalog CSV: %w", err)
	}
	for _, row := range result.Rows {
		if err := w.Write(catalogRecord(row)); err != nil {
			return fmt.Errorf("writing catalog CSV: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func renderCatalogTable(result formaudit.CatalogResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(catalogHeader, "\t"))
	for _, row := range result.Rows {
		fmt.Fprintln(w, strings.Join(catalogRecord(row), "\t"))
	}
	w.Flush()
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
