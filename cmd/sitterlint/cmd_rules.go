// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sitterlint/services/lint/language"
	"github.com/AleutianAI/sitterlint/services/lint/registry"
)

func newRulesCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the registered rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang != "" {
				if _, ok := language.Builtin().ByName(lang); !ok {
					return usageError(fmt.Errorf("%w: %s", language.ErrUnsupportedLanguage, lang))
				}
			}
			if err := a.loadConfig(nil); err != nil {
				return err
			}
			printRules(a.stdout, a.ruleSet(), lang)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "", "Only rules that run on this language")
	return cmd
}

// printRules writes one line per rule followed by the rejected rules.
func printRules(w io.Writer, set *registry.RuleSet, lang string) {
	rules := set.Rules()
	idWidth := len("RULE")
	for _, r := range rules {
		idWidth = max(idWidth, len(r.ID))
	}

	fmt.Fprintf(w, "%-*s  %-8s  %-3s  %s\n", idWidth, "RULE", "SEVERITY", "FIX", "LANGUAGES")
	for _, r := range rules {
		if lang != "" && !set.Supports(r.ID, lang) {
			continue
		}
		fix := ""
		if r.Fixable {
			fix = "yes"
		}
		fmt.Fprintf(w, "%-*s  %-8s  %-3s  %s\n", idWidth, r.ID, r.Severity, fix, strings.Join(set.SupportedLanguages(r.ID), ","))
		if r.Description != "" {
			fmt.Fprintf(w, "%-*s  %s\n", idWidth, "", r.Description)
		}
	}
	for _, rej := range set.Rejected() {
		fmt.Fprintf(w, "rejected: %v\n", rej)
	}
}

func newLanguagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages and their file extensions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, lang := range language.Builtin().All() {
				files := append(append([]string{}, lang.Extensions...), lang.Filenames...)
				fmt.Fprintf(a.stdout, "%-12s %s\n", lang.Name, strings.Join(files, " "))
			}
		},
	}
}
