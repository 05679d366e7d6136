package main

import (
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
)

func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <filter>",
		Short: "Print the syntax tree of a filter",
		Long: `Parse a filter and print its fully parenthesized rendering, or the node
tree with --format json. Members are not resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			node, err := syntax.ParseText(args[0])
			if err != nil {
				return out.Failure(ExitFailure, "parse failed", err, nil)
			}
			if node == nil {
				return out.Success("", nil)
			}
			return out.Success(node.String(), tree(node))
		},
	}
}

// treeNode is the JSON rendering of a syntax node.
type treeNode struct {
	Kind      string      `json:"kind"`
	Literal   string      `json:"literal,omitempty"`
	Name      string      `json:"name,omitempty"`
	Op        string      `json:"op,omitempty"`
	Parameter string      `json:"parameter,omitempty"`
	Target    *treeNode   `json:"target,omitempty"`
	Operand   *treeNode   `json:"operand,omitempty"`
	Left      *treeNode   `json:"left,omitempty"`
	Right     *treeNode   `json:"right,omitempty"`
	Body      *treeNode   `json:"body,omitempty"`
	Args      []*treeNode `json:"args,omitempty"`
}

func tree(n syntax.Node) *treeNode {
	if n == nil {
		return nil
	}
	result := &treeNode{Kind: syntax.KindName(n)}
	switch n := n.(type) {
	case *syntax.Constant:
		result.Literal = n.String()
	case *syntax.Identifier:
		result.Name = n.Name
	case *syntax.MemberAccess:
		result.Name = n.Name
		result.Target = tree(n.Target)
	case *syntax.Unary:
		result.Op = n.Op.String()
		result.Operand = tree(n.Operand)
	case *syntax.Binary:
		result.Op = n.Op.String()
		result.Left = tree(n.Left)
		result.Right = tree(n.Right)
	case *syntax.Lambda:
		result.Parameter = n.Parameter
		result.Body = tree(n.Body)
	case *syntax.Call:
		result.Target = tree(n.Target)
		for _, arg := range n.Args {
			result.Args = append(result.Args, tree(arg))
		}
	}
	return result
}
