// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// compare.go implements cross-version differential comparison of two
// form definitions. Matching runs in three layers: exact path, exact
// name, then an AI-assisted semantic layer for whatever is left. The
// semantic layer is deliberately greedy first-match rather than an
// optimal assignment: oracle calls are slow and billed, and the layer
// only exists to rescue renamed-and-moved fields.

package formaudit

import (
	"context"
	"strings"
)

// SimilarityOracle answers best-effort equivalence questions about field
// labels and formulas, and generates multilingual formula descriptions.
// It is a capability, not a client: the engines never see what model is
// behind it.
type SimilarityOracle interface {
	TitlesSimilar(ctx context.Context, a, b string) (bool, error)
	FormulasSimilar(ctx context.Context, a, b string) (bool, error)
	DescribeFormula(ctx context.Context, formula, formContext string) (map[string]string, error)
}

// CompareOptions toggles the comparator's exclusion filters and semantic
// matching layers.
type CompareOptions struct {
	ExcludeNotes        bool
	ExcludeInputs       bool
	ExcludePrescription bool
	UseTitleMatching    bool
	UseFormulaMatching  bool
}

// ElementPair couples the old and new version of a matched element.
type ElementPair struct {
	Old Element
	New Element
}

// ModifiedElement is a matched pair that differs, with the reason(s):
// "Reworded", "Calculation Changed", "Moved", "Reworded (Title Match)"
// or "Reworded (Formula Match)".
type ModifiedElement struct {
	Old    Element
	New    Element
	Reason string
}

// FormDiff classifies every leaf element of two form versions.
type FormDiff struct {
	Unchanged []ElementPair
	Modified  []ModifiedElement
	Added     []Element
	Removed   []Element
}

// Comparator diffs two versions of a form definition.
type Comparator struct {
	oracle SimilarityOracle
	log    Logger
}

// NewComparator returns a Comparator. The oracle may be nil when neither
// semantic layer is enabled.
func NewComparator(oracle SimilarityOracle, log Logger) *Comparator {
	if log == nil {
		log = NopLogger{}
	}
	return &Comparator{oracle: oracle, log: log}
}

// Compare parses both versions and classifies every leaf element as
// unchanged, modified, added, or removed. Pools are kept in sheet order,
// so the result is deterministic for identical inputs.
func (c *Comparator) Compare(ctx context.Context, oldData, newData []byte, opts CompareOptions) (FormDiff, error) {
	oldParsed, err := ParseForm(oldData)
	if err != nil {
		return FormDiff{}, err
	}
	newParsed, err := ParseForm(newData)
	if err != nil {
		return FormDiff{}, err
	}

	oldPool := filterElements(oldParsed.AllElements(), opts)
	newPool := filterElements(newParsed.AllElements(), opts)

	var diff FormDiff

	// Layer 1: exact path. A pair sharing a path never reaches the
	// later layers, even when titles and names also changed.
	newByPath := make(map[string]int, len(newPool))
	for i, el := range newPool {
		newByPath[el.Path] = i
	}
	usedOld := make([]bool, len(oldPool))
	usedNew := make([]bool, len(newPool))
	for i, oldEl := range oldPool {
		j, ok := newByPath[oldEl.Path]
		if !ok || usedNew[j] {
			continue
		}
		newEl := newPool[j]
		usedOld[i], usedNew[j] = true, true

		reason := ""
		if !sameTitles(oldEl.Titles, newEl.Titles) {
			reason += "Reworded "
		}
		if oldEl.Calculation != newEl.Calculation {
			reason += "Calculation Changed"
		}
		if reason != "" {
			diff.Modified = append(diff.Modified,
				ModifiedElement{Old: oldEl, New: newEl, Reason: strings.TrimSpace(reason)})
		} else {
			diff.Unchanged = append(diff.Unchanged, ElementPair{Old: oldEl, New: newEl})
		}
	}

	// Layer 2: exact name, anywhere in the form. Always a move.
	for i, oldEl := range oldPool {
		if usedOld[i] {
			continue
		}
		for j, newEl := range newPool {
			if usedNew[j] || newEl.Name != oldEl.Name {
				continue
			}
			usedOld[i], usedNew[j] = true, true
			diff.Modified = append(diff.Modified,
				ModifiedElement{Old: oldEl, New: newEl, Reason: "Moved"})
			break
		}
	}

	// Layer 3: semantic rescue, first satisfying candidate wins.
	if (opts.UseTitleMatching || opts.UseFormulaMatching) && c.oracle != nil {
		for i, oldEl := range oldPool {
			if usedOld[i] {
				continue
			}
			for j, newEl := range newPool {
				if usedNew[j] {
					continue
				}
				reason, ok := c.semanticMatch(ctx, oldEl, newEl, opts)
				if !ok {
					continue
				}
				usedOld[i], usedNew[j] = true, true
				diff.Modified = append(diff.Modified,
					ModifiedElement{Old: oldEl, New: newEl, Reason: reason})
				break
			}
		}
	}

	for i, el := range oldPool {
		if !usedOld[i] {
			diff.Removed = append(diff.Removed, el)
		}
	}
	for j, el := range newPool {
		if !usedNew[j] {
			diff.Added = append(diff.Added, el)
		}
	}
	return diff, nil
}

// semanticMatch asks the oracle whether two unmatched elements are the
// same field. Formulas are compared for calculate pairs, French titles
// for everything else; mixed pairs never match. Oracle failures degrade
// to no-match.
func (c *Comparator) semanticMatch(ctx context.Context, oldEl, newEl Element, opts CompareOptions) (string, bool) {
	oldCalc := oldEl.Kind == "calculate"
	newCalc := newEl.Kind == "calculate"
	switch {
	case opts.UseFormulaMatching && oldCalc && newCalc:
		same, err := c.oracle.FormulasSimilar(ctx, oldEl.Calculation, newEl.Calculation)
		if err != nil {
			c.log.Errorf("formula comparison failed for %s vs %s: %v", oldEl.Name, newEl.Name, err)
			return "", false
		}
		if same {
			return "Reworded (Formula Match)", true
		}
	case opts.UseTitleMatching && !oldCalc && !newCalc:
		same, err := c.oracle.TitlesSimilar(ctx, oldEl.Titles["fr"], newEl.Titles["fr"])
		if err != nil {
			c.log.Errorf("title comparison failed for %s vs %s: %v", oldEl.Name, newEl.Name, err)
			return "", false
		}
		if same {
			return "Reworded (Title Match)", true
		}
	}
	return "", false
}

// filterElements applies the exclusion filters and drops group markers:
// only leaf elements take part in matching.
func filterElements(elements []Element, opts CompareOptions) []Element {
	var out []Element
	for _, el := range elements {
		if el.IsGroup {
			continue
		}
		if opts.ExcludeNotes && el.Kind == "note" {
			continue
		}
		if opts.ExcludeInputs && strings.HasPrefix(el.JSONPath, "$.inputs") {
			continue
		}
		if opts.ExcludePrescription && strings.Contains(el.JSONPath, "prescription_summary") {
			continue
		}
		out = append(out, el)
	}
	return out
}
