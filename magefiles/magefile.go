// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides the mage build targets for the formaudit
// repository.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"

	"github.com/musohealth/formaudit/pkg/formaudit"
)

// Test groups the testing targets.
type Test mg.Namespace

// Config ensures a formaudit.yaml exists next to the binary, writing
// the defaults when it is absent.
func Config() error {
	if _, err := os.Stat(formaudit.DefaultConfigFile); errors.Is(err, os.ErrNotExist) {
		if err := formaudit.WriteDefaultConfig(formaudit.DefaultConfigFile); err != nil {
			return fmt.Errorf("creating %s: %w", formaudit.DefaultConfigFile, err)
		}
		fmt.Fprintf(os.Stderr, "created default %s\n", formaudit.DefaultConfigFile)
	}
	return nil
}

// Build compiles the formaudit binary into bin/.
func Build() error {
	return run("go", "build", "-o", "bin/formaudit", "./cmd/formaudit")
}

// Install runs go install for the formaudit command.
func Install() error {
	return run("go", "install", "./cmd/formaudit")
}

// Lint runs golangci-lint on the repository.
func Lint() error {
	return run("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll("bin")
}

// Unit runs go test on all packages.
func (Test) Unit() error {
	return run("go", "test", "./...")
}

// Cover runs go test with coverage and opens the HTML report.
func (Test) Cover() error {
	if err := run("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return run("go", "tool", "cover", "-html=coverage.out")
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
