package syntax

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/tokens"
)

// Parse consumes one expression from s and leaves whatever follows on the
// stream.
func Parse(s *tokens.Stream) (Node, error) {
	p := parser{stream: s}
	return p.lambda()
}

// ParseText parses a complete filter. Blank text yields a nil node, which
// callers treat as match-all.
func ParseText(text string) (Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	s, err := tokens.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, nil
	}
	n, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if err := ExpectEnd(s); err != nil {
		return nil, err
	}
	return n, nil
}

// ExpectEnd fails when tokens remain after a complete parse.
func ExpectEnd(s *tokens.Stream) error {
	tok, ok := s.Peek()
	if !ok {
		return nil
	}
	if tok.Kind == tokens.KindComma {
		return failure.Syntacticf("Unexpected trailing comma, did you use the correct decimal separator?").At(tok.Position)
	}
	return failure.Syntacticf("Unexpected trailing content: %s", tok).At(tok.Position)
}

type parser struct {
	stream *tokens.Stream
}

func (p *parser) lambda() (Node, error) {
	if matched, ok := p.stream.MatchSequence(tokens.KindIdentifier, tokens.KindColon); ok {
		body, err := p.or()
		if err != nil {
			return nil, err
		}
		return &Lambda{Parameter: matched[0].Value, Body: body}, nil
	}
	return p.or()
}

// binaryLevel parses operand (op operand)* left-associatively.
func (p *parser) binaryLevel(operand func() (Node, error), ops map[tokens.Kind]BinaryOp) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	kinds := make([]tokens.Kind, 0, len(ops))
	for k := range ops {
		kinds = append(kinds, k)
	}
	for {
		tok, ok := p.stream.Match(kinds...)
		if !ok {
			return left, nil
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: ops[tok.Kind], Left: left, Right: right}
	}
}

var (
	orOps             = map[tokens.Kind]BinaryOp{tokens.KindOr: Or}
	andOps            = map[tokens.Kind]BinaryOp{tokens.KindAnd: And}
	equalityOps       = map[tokens.Kind]BinaryOp{tokens.KindEq: Equal, tokens.KindNeq: NotEqual}
	relationalOps     = map[tokens.Kind]BinaryOp{tokens.KindGt: Greater, tokens.KindGte: GreaterOrEqual, tokens.KindLt: Less, tokens.KindLte: LessOrEqual}
	additiveOps       = map[tokens.Kind]BinaryOp{tokens.KindPlus: Add, tokens.KindMinus: Subtract}
	multiplicativeOps = map[tokens.Kind]BinaryOp{tokens.KindStar: Multiply, tokens.KindSlash: Divide, tokens.KindPercent: Modulo}
)

func (p *parser) or() (Node, error)         { return p.binaryLevel(p.and, orOps) }
func (p *parser) and() (Node, error)        { return p.binaryLevel(p.equality, andOps) }
func (p *parser) equality() (Node, error)   { return p.binaryLevel(p.relational, equalityOps) }
func (p *parser) relational() (Node, error) { return p.binaryLevel(p.additive, relationalOps) }
func (p *parser) additive() (Node, error)   { return p.binaryLevel(p.multiplicative, additiveOps) }
func (p *parser) multiplicative() (Node, error) {
	return p.binaryLevel(p.unary, multiplicativeOps)
}

func (p *parser) unary() (Node, error) {
	tok, ok := p.stream.Match(tokens.KindNot, tokens.KindMinus)
	if !ok {
		return p.memberOrCall()
	}
	operand, err := p.unary()
	if err != nil {
		return nil, err
	}
	op := Not
	if tok.Kind == tokens.KindMinus {
		op = Negate
	}
	return &Unary{Op: op, Operand: operand}, nil
}

func (p *parser) memberOrCall() (Node, error) {
	root, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.stream.Match(tokens.KindDot, tokens.KindLParen)
		if !ok {
			break
		}
		if tok.Kind == tokens.KindDot {
			name, err := p.stream.Expect(tokens.KindIdentifier)
			if err != nil {
				return nil, err
			}
			root = &MemberAccess{Name: name.Value, Target: root}
			continue
		}
		args, err := p.arguments()
		if err != nil {
			return nil, err
		}
		root = &Call{Target: root, Args: args}
	}
	if ident, ok := root.(*Identifier); ok {
		return &MemberAccess{Name: ident.Name}, nil
	}
	return root, nil
}

func (p *parser) arguments() ([]Node, error) {
	args := []Node{}
	if _, ok := p.stream.Match(tokens.KindRParen); ok {
		return args, nil
	}
	for {
		arg, err := p.lambda()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if _, ok := p.stream.Match(tokens.KindComma); ok {
			continue
		}
		if _, err := p.stream.Expect(tokens.KindRParen); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) primary() (Node, error) {
	tok, err := p.stream.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case tokens.KindLParen:
		inner, err := p.lambda()
		if err != nil {
			return nil, err
		}
		if _, err := p.stream.Expect(tokens.KindRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokens.KindDecimal:
		d, _, err := apd.NewFromString(tok.Value)
		if err != nil {
			return nil, failure.Lexicalf("Invalid numeric constant '%s'", tok.Value).At(tok.Position)
		}
		return &Constant{Value: *d}, nil
	case tokens.KindInteger:
		i, err := strconv.Atoi(tok.Value)
		if err != nil {
			return nil, failure.Lexicalf("Integer constant '%s' is out of range", tok.Value).At(tok.Position)
		}
		return &Constant{Value: i}, nil
	case tokens.KindString:
		return &Constant{Value: tok.Value}, nil
	case tokens.KindTrue:
		return &Constant{Value: true}, nil
	case tokens.KindFalse:
		return &Constant{Value: false}, nil
	case tokens.KindNull:
		return &Constant{Value: nil}, nil
	case tokens.KindIdentifier:
		return &Identifier{Name: tok.Value}, nil
	}
	return nil, failure.Syntacticf("Unexpected token '%s'", tok).At(tok.Position)
}
