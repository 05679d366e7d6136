package main

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
)

type fmtResult struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
	Changed   bool   `json:"changed"`
	Diff      string `json:"diff,omitempty"`
}

func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "fmt <filter>",
		Short: "Print the canonical text of a filter",
		Long: `Print the canonical, fully parenthesized text of a filter. With --diff the
changes from the input are printed instead, deletions as [-text-] and
insertions as {+text+}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			node, err := syntax.ParseText(args[0])
			if err != nil {
				return out.Failure(ExitFailure, "parse failed", err, nil)
			}
			result := fmtResult{Input: args[0]}
			if node != nil {
				result.Canonical = node.String()
			}
			result.Changed = result.Canonical != result.Input
			if !showDiff {
				return out.Success(result.Canonical, result)
			}
			result.Diff = wordDiff(result.Input, result.Canonical)
			return out.Success(result.Diff, result)
		},
	}

	cmd.Flags().BoolVar(&showDiff, "diff", false, "print the changes instead of the canonical text")

	return cmd
}

func wordDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
