package operators

type Operator string

const (
	// Comparison

	OperatorEq  Operator = "="
	OperatorGt  Operator = ">"
	OperatorLt  Operator = "<"
	OperatorGte Operator = ">="
	OperatorLte Operator = "<="
	OperatorNe  Operator = "!="

	// Logical operators

	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
	OperatorNot Operator = "NOT"

	// Mathematical

	OperatorAdd Operator = "+"
	OperatorSub Operator = "-"
	OperatorMul Operator = "*"
	OperatorDiv Operator = "/"
	OperatorMod Operator = "%"

	OperatorNeg Operator = "-neg"

	// Postfix

	OperatorIsNull    Operator = "IS NULL"
	OperatorIsNotNull Operator = "IS NOT NULL"
)

func (op Operator) IsComparison() bool {
	switch op {
	case OperatorEq, OperatorNe, OperatorGt, OperatorLt, OperatorGte, OperatorLte:
		return true
	}
	return false
}

func (op Operator) IsArithmetic() bool {
	switch op {
	case OperatorAdd, OperatorSub, OperatorMul, OperatorDiv, OperatorMod:
		return true
	}
	return false
}
