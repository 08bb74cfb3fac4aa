// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// viewnames.go holds the naming conventions tying a form to its
// warehouse views and its spreadsheet location, including the historical
// exception tables. The tables are data, not behavior: they exist
// because a handful of views were created before the formview_{form_id}
// convention settled, and renaming warehouse views would break
// downstream dashboards.

package formaudit

import (
	"fmt"
	"strings"
)

// WarehouseProject is the BigQuery project holding every country dataset.
const WarehouseProject = "musoitproducts"

// SourceBranch is the branch form definitions are deployed from.
const SourceBranch = "master"

// countryDatasets maps an upper-cased country code to its warehouse
// dataset.
var countryDatasets = map[string]string{
	"MALI": "cht_mali_prod",
	"RCI":  "cht_rci_prod",
}

// countryFormPrefixes maps an upper-cased country code to the
// source-control directory its form definitions live under.
var countryFormPrefixes = map[string]string{
	"MALI": "muso-mali/forms/app/",
	"RCI":  "muso-cdi/forms/app/",
}

// mainViewExceptions lists the main views whose names predate the
// formview_{form_id} convention, per country.
var mainViewExceptions = map[string]map[string]string{
	"MALI": {
		"patient_assessment":        "formview_assessment",
		"patient_assessment_over_5": "formview_assessment_over_5",
		"referral_followup_under_5": "formview_referral_followup_under5",
		"treatment_followup":        "formview_treatment_follow_up",
		"prenatal_followup":         "formview_prenatal",
		"behavior_change":           "formview_behaviour_change",
	},
	"RCI": {
		"patient_assessment":        "formview_assessment",
		"patient_assessment_over_5": "formview_assessment_over_5",
		"referral_followup_under_5": "formview_referral_followup_under5",
		"treatment_followup":        "formview_treatment_followup",
		"prenatal_followup":         "formview_prenatal",
	},
}

// repeatViewExceptions lists repeat-group views whose names do not
// follow formview_{form_id}_{repeat_name}, keyed by form then repeat.
var repeatViewExceptions = map[string]map[string]string{
	"supervision_with_chw_proccm": {
		"s_patient_evaluation_list": "formview_supervision_with_chw_proccm_evaluations",
	},
	"supervision_without_chw_proccm": {
		"pregnant_women_list":   "formview_supervision_without_chw_proccm_pregnants",
		"s_free_care_audit_repeat": "formview_supervision_without_chw_proccm_services",
	},
}

// docGroupViewExceptions lists db-doc group views with irregular names.
// The lookup is flat: db-doc group names are unique across all forms.
var docGroupViewExceptions = map[string]string{
	"prescription_summary": "formview_stock_prescription_summary",
}

// ValidCountry reports whether code names a supported country
// (case-insensitive).
func ValidCountry(code string) bool {
	_, ok := countryDatasets[strings.ToUpper(code)]
	return ok
}

// DatasetID returns the warehouse dataset for a country.
func DatasetID(country string) string {
	return countryDatasets[strings.ToUpper(country)]
}

// FormPath returns the source-control path of a form's definition file.
func FormPath(country, formID string) string {
	return countryFormPrefixes[strings.ToUpper(country)] + formID + ".xlsx"
}

// MainViewName returns the warehouse view holding a form's main body,
// applying the per-country exception table.
func MainViewName(country, formID string) string {
	if formID == "" {
		return ""
	}
	if name, ok := mainViewExceptions[strings.ToUpper(country)][formID]; ok {
		return name
	}
	return "formview_" + formID
}

// RepeatViewName returns the view a repeat group materializes into when
// it is not flattened into the main view.
func RepeatViewName(formID, repeatName string) string {
	if name, ok := repeatViewExceptions[formID][repeatName]; ok {
		return name
	}
	return fmt.Sprintf("formview_%s_%s", formID, repeatName)
}

// DocGroupViewName returns the view a db-doc group materializes into.
func DocGroupViewName(formID, groupName string) string {
	if name, ok := docGroupViewExceptions[groupName]; ok {
		return name
	}
	return fmt.Sprintf("formview_%s_%s", formID, groupName)
}
