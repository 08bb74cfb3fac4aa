// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// Command formaudit reconciles XLSForm definitions against their
// generated BigQuery views, diffs form versions, and builds the data
// catalog.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musohealth/formaudit/pkg/formaudit"
)

var (
	configPath string
	jsonOutput bool

	compareExcludeNotes        bool
	compareExcludeInputs       bool
	compareExcludePrescription bool
	compareTitleMatch          bool
	compareFormulaMatch        bool

	catalogEnrichMode string
	catalogFormFilter string
	catalogCSV        bool
)

var rootCmd = &cobra.Command{
	Use:           "formaudit",
	Short:         "Audit XLSForm definitions against their warehouse views",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a formaudit.yaml with default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := formaudit.WriteDefaultConfig(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <country>",
	Short: "Audit every installed form of a country against its views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		source, err := formaudit.NewGitHubSource(cfg.Source, log)
		if err != nil {
			return err
		}
		warehouse := formaudit.NewBigQueryWarehouse(log)
		defer warehouse.Close()
		lister := formaudit.NewCHTFormLister(cfg.Instance, log)

		auditor := formaudit.NewAuditor(cfg, lister, source, warehouse, log)
		result, err := auditor.Audit(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return renderJSON(result)
		}
		renderAuditReport(result)
		return nil
	},
}

var auditFormCmd = &cobra.Command{
	Use:   "audit-form <country> <form.xlsx> <view.sql>",
	Short: "Audit one local form definition against a local view definition",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		xlsData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading form definition: %w", err)
		}
		sqlData, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading view definition: %w", err)
		}

		// No warehouse: secondary views are not audited in local mode.
		auditor := formaudit.NewAuditor(cfg, nil, nil, nil, log)
		result, err := auditor.CompareFormWithSQL(cmd.Context(), xlsData, string(sqlData), args[0], "")
		if err != nil {
			return err
		}

		if jsonOutput {
			return renderJSON(result)
		}
		renderFormComparison(result)
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <old.xlsx> <new.xlsx>",
	Short: "Diff two versions of a form definition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		oldData, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading old version: %w", err)
		}
		newData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading new version: %w", err)
		}

		var oracle formaudit.SimilarityOracle
		if compareTitleMatch || compareFormulaMatch {
			g, err := formaudit.NewGeminiOracle(cmd.Context(), cfg.Oracle, log)
			if err != nil {
				return err
			}
			oracle = g
		}

		comparator := formaudit.NewComparator(oracle, log)
		diff, err := comparator.Compare(cmd.Context(), oldData, newData, formaudit.CompareOptions{
			ExcludeNotes:        compareExcludeNotes,
			ExcludeInputs:       compareExcludeInputs,
			ExcludePrescription: compareExcludePrescription,
			UseTitleMatching:    compareTitleMatch,
			UseFormulaMatching:  compareFormulaMatch,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return renderJSON(diff)
		}
		renderFormDiff(diff)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog <country>",
	Short: "Build the data catalog for a country's installed forms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		source, err := formaudit.NewGitHubSource(cfg.Source, log)
		if err != nil {
			return err
		}
		warehouse := formaudit.NewBigQueryWarehouse(log)
		defer warehouse.Close()
		lister := formaudit.NewCHTFormLister(cfg.Instance, log)

		var oracle formaudit.SimilarityOracle
		if catalogEnrichMode != "" {
			g, err := formaudit.NewGeminiOracle(cmd.Context(), cfg.Oracle, log)
			if err != nil {
				return err
			}
			oracle = g
		}

		builder := formaudit.NewCatalogBuilder(cfg, lister, source, warehouse, oracle, log)
		result, err := builder.Build(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if catalogEnrichMode != "" {
			mode := strings.ToLower(catalogEnrichMode)
			if mode != formaudit.EnrichOverwrite && mode != formaudit.EnrichFill {
				return fmt.Errorf("invalid enrichment mode %q: use %q or %q",
					catalogEnrichMode, formaudit.EnrichOverwrite, formaudit.EnrichFill)
			}
			if err := builder.Enrich(cmd.Context(), &result, args[0], mode, catalogFormFilter); err != nil {
				return err
			}
		}

		switch {
		case jsonOutput:
			return renderJSON(result)
		case catalogCSV:
			return renderCatalogCSV(result)
		default:
			renderCatalogTable(result)
			return nil
		}
	},
}

// setup loads the configuration (falling back to defaults when the file
// is absent) and builds the shared logger.
func setup() (formaudit.Config, formaudit.Logger, error) {
	log := formaudit.NewTextLogger()

	if _, err := os.Stat(configPath); err != nil {
		if configPath != formaudit.DefaultConfigFile {
			return formaudit.Config{}, nil, fmt.Errorf("config file %s not found", configPath)
		}
		return formaudit.DefaultConfig(), log, nil
	}
	cfg, err := formaudit.LoadConfig(configPath)
	if err != nil {
		return formaudit.Config{}, nil, err
	}
	return cfg, log, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", formaudit.DefaultConfigFile, "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of a text report")

	compareCmd.Flags().BoolVar(&compareExcludeNotes, "exclude-notes", false, "ignore note fields")
	compareCmd.Flags().BoolVar(&compareExcludeInputs, "exclude-inputs", false, "ignore fields under the inputs group")
	compareCmd.Flags().BoolVar(&compareExcludePrescription, "exclude-prescription", false, "ignore prescription summary fields")
	compareCmd.Flags().BoolVar(&compareTitleMatch, "title-match", false, "rescue renamed fields by AI title similarity")
	compareCmd.Flags().BoolVar(&compareFormulaMatch, "formula-match", false, "rescue renamed fields by AI formula similarity")

	catalogCmd.Flags().StringVar(&catalogEnrichMode, "enrich", "", "enrich calculated columns: overwrite or fill")
	catalogCmd.Flags().StringVar(&catalogFormFilter, "form", "All", "restrict enrichment to one view name")
	catalogCmd.Flags().BoolVar(&catalogCSV, "csv", false, "emit the catalog as CSV")

	rootCmd.AddCommand(initConfigCmd, auditCmd, auditFormCmd, compareCmd, catalogCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
