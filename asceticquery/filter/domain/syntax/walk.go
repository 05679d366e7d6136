package syntax

import "github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/tokens"

// Inspect traverses n depth-first, calling fn for every node until fn
// returns false.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *MemberAccess:
		Inspect(n.Target, fn)
	case *Unary:
		Inspect(n.Operand, fn)
	case *Binary:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *Lambda:
		Inspect(n.Body, fn)
	case *Call:
		Inspect(n.Target, fn)
		for _, arg := range n.Args {
			Inspect(arg, fn)
		}
	}
}

// HasContextReference reports whether the tree mentions the ambient context.
func HasContextReference(n Node) bool {
	found := false
	Inspect(n, func(n Node) bool {
		switch n := n.(type) {
		case *Identifier:
			found = found || n.Name == tokens.ContextIdentifier
		case *MemberAccess:
			found = found || (n.Target == nil && n.Name == tokens.ContextIdentifier)
		}
		return !found
	})
	return found
}
