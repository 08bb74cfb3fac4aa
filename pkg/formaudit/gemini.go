// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiOracle implements SimilarityOracle on Vertex AI Gemini models.
type GeminiOracle struct {
	client *genai.Client
	cfg    OracleConfig
	log    Logger
}

// NewGeminiOracle returns a GeminiOracle backed by the configured
// Vertex AI project and model.
func NewGeminiOracle(ctx context.Context, cfg OracleConfig, log Logger) (*GeminiOracle, error) {
	if log == nil {
		log = NopLogger{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.Project,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return &GeminiOracle{client: client, cfg: cfg, log: log}, nil
}

// TitlesSimilar asks the model whether two French field labels name the
// same concept. Empty labels never match.
func (o *GeminiOracle) TitlesSimilar(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" {
		return false, nil
	}
	prompt := fmt.Sprintf(`You are an expert in French language.
Consider the following two field labels written in French:
Label 1: '%s'
Label 2: '%s'
Do these two labels refer to the same concept, even if the wording is different?
Answer only with 'YES' or 'NO'.`, a, b)

	answer, err := o.generate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("comparing titles: %w", err)
	}
	return strings.Contains(strings.ToUpper(answer), "YES"), nil
}

// FormulasSimilar asks the model whether two ODK calculation formulas
// compute the same result. Empty formulas never match.
func (o *GeminiOracle) FormulasSimilar(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" {
		return false, nil
	}
	prompt := fmt.Sprintf(`You are an ODK XForm expert and developer.
You are comparing two calculation formulas from two calculate type fields of a form.
The syntax is ODK XForms.
Formula 1: '%s'
Formula 2: '%s'
Do these two formulas achieve the same result, even if the formulas are different?
Answer only with 'YES' or 'NO'.`, a, b)

	answer, err := o.generate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("comparing formulas: %w", err)
	}
	return strings.Contains(strings.ToUpper(answer), "YES"), nil
}

// DescribeFormula asks the model for short French, English, and Bambara
// descriptions of a calculation formula, using the form's survey sheet
// as context. Keys of the returned map are "fr", "en" and "bm".
func (o *GeminiOracle) DescribeFormula(ctx context.Context, formula, formContext string) (map[string]string, error) {
	if formula == "" {
		return nil, fmt.Errorf("formula must be non-empty")
	}
	prompt := fmt.Sprintf(`You are an ODK XForm expert and developer.
The following table is the survey sheet of an ODK form:

%s

Explain, in one short sentence per language, what this calculation formula computes:
'%s'

Answer only with a JSON object of the shape
{"fr": "...", "en": "...", "bm": "..."}
where "fr" is French, "en" is English and "bm" is Bambara.`, formContext, formula)

	answer, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("describing formula: %w", err)
	}

	descriptions := map[string]string{}
	if err := json.Unmarshal([]byte(stripCodeFences(answer)), &descriptions); err != nil {
		return nil, fmt.Errorf("parsing formula description %q: %w", answer, err)
	}
	return descriptions, nil
}

func (o *GeminiOracle) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Models.GenerateContent(ctx, o.cfg.Model, genai.Text(prompt),
		&genai.GenerateContentConfig{MaxOutputTokens: int32(o.cfg.MaxOutputTokens)})
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", o.cfg.Model, err)
	}
	return resp.Text(), nil
}

// stripCodeFences unwraps a ```json ... ``` block when the model adds
// one around its answer.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
