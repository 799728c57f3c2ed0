package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fleetgrid/warden/pkg/compiler"
	"fleetgrid/warden/pkg/policy"
)

var (
	compileFile string
	compileJSON bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a policy document and preview the resulting rules",
	Long: `Compile reads a policy YAML document, compiles its requirements into
rules in dry-run mode, and prints what would be enforced. The policy is not
activated and nothing is enforced; this is the preview a policy author uses
before promoting a draft.`,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileFile, "file", "f", "", "policy YAML file (required)")
	compileCmd.Flags().BoolVar(&compileJSON, "json", false, "print compiled rules as JSON")
	compileCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(compileFile)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var p policy.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	if err := policy.Validate(&p); err != nil {
		return err
	}

	c := compiler.New(nil)
	result, err := c.Preview(&p)
	if err != nil {
		return err
	}

	if compileJSON {
		return printJSON(cmd.OutOrStdout(), result.Rules)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Policy: %s (tenant %s, version %d)\n", p.Name, p.TenantID, p.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Requirements: %d, rules: %d, coverage: %.0f%%\n\n",
		result.RequirementCount, len(result.Rules), result.Coverage()*100)

	for _, r := range result.Rules {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s\n", r.Kind, r.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "      trigger: %s (%s), priority %d\n",
			r.Trigger.Operation, r.Trigger.Timing, r.Priority)
		for _, a := range r.Actions {
			if a.Target != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "      action: %s -> %s\n", a.Type, a.Target)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "      action: %s\n", a.Type)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", w.String())
		}
	}
	return nil
}
