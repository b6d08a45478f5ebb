package transpile

import "fmt"

// ErrorKind is a machine-readable rejection reason. The translator never
// recovers from one: the first violation aborts the whole translation.
type ErrorKind string

const (
	UnsupportedExpression   ErrorKind = "UnsupportedExpression"
	MissingFromClause       ErrorKind = "MissingFromClause"
	MultipleFromRelations   ErrorKind = "MultipleFromRelations"
	UnsupportedJoinType     ErrorKind = "UnsupportedJoinType"
	NonEquiJoin             ErrorKind = "NonEquiJoin"
	ConstantInJoin          ErrorKind = "ConstantInJoin"
	SelfJoinUnsupported     ErrorKind = "SelfJoinUnsupported"
	UnknownRelation         ErrorKind = "UnknownRelation"
	ForeignColumnWithoutJoin ErrorKind = "ForeignColumnWithoutJoin"
	CastOutsideTarget       ErrorKind = "CastOutsideTarget"
	UnsupportedAggregate    ErrorKind = "UnsupportedAggregate"
	AggregateArgumentShape  ErrorKind = "AggregateArgumentShape"
	GroupByWithoutAggregate ErrorKind = "GroupByWithoutAggregate"
	GroupByMissingTarget    ErrorKind = "GroupByMissingTarget"
	HavingUnsupported       ErrorKind = "HavingUnsupported"
	InvalidLimit            ErrorKind = "InvalidLimit"
	InvalidOffset           ErrorKind = "InvalidOffset"
	UnsupportedOperator     ErrorKind = "UnsupportedOperator"
	InvalidJsonPath         ErrorKind = "InvalidJsonPath"
)

// Error is the single error type the translator produces. Node is the
// offending AST sub-node, nil when none applies; it is carried as `any`
// because callers that only care about Kind and Msg shouldn't need to
// import pg_query to handle errors.
type Error struct {
	Kind ErrorKind
	Msg  string
	Node any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errf(kind ErrorKind, node any, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Node: node}
}
