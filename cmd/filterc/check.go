package main

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

type checkResult struct {
	Filter    string `json:"filter"`
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "check --type <record> <filter>...",
		Short: "Compile filters against a record type",
		Long: `Compile every filter against a contoso record type and report all
failures. Exits with status 1 when any filter fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := recordType(typeName)
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)

			var result error
			results := make([]checkResult, len(args))
			lines := make([]string, len(args))
			for i, text := range args {
				out.VerboseLog("checking %q against %s", text, t.Name())
				results[i] = checkResult{Filter: text, Valid: true}
				f, err := filter.ParseType(text, t, rootOpts.filterOptions(cmd)...)
				if err != nil {
					results[i].Valid = false
					results[i].Error = err.Error()
					if kind := failure.KindOf(err); kind != 0 {
						results[i].Kind = kind.String()
					}
					lines[i] = fmt.Sprintf("FAIL %s: %v", text, err)
					result = multierror.Append(result, errors.Wrapf(err, "filter %d", i+1))
					continue
				}
				results[i].Canonical = f.String()
				lines[i] = "ok   " + text
			}

			if result == nil {
				return out.Success(strings.Join(lines, "\n"), results)
			}
			if out.Format != "json" {
				if err := out.Success(strings.Join(lines, "\n"), nil); err != nil {
					return err
				}
			}
			return out.Failure(ExitFailure, "check failed", result, results)
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "Course", "record type (Course|Enrollment|Student)")

	return cmd
}
