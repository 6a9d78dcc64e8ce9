package salary

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/types"
)

// AttributionInput is what a policy sees for one completed stage.
type AttributionInput struct {
	// Contribution is the pay of every line of the stage's order.
	Contribution types.Money
	// CompletedStages counts the completed stages of the order, this one included.
	CompletedStages int
	TotalStages     int
	// CompletedRank is this stage's place among the completed stages, from 1.
	CompletedRank int
}

// AttributionPolicy decides how much of an order's pay one completed stage earns.
type AttributionPolicy interface {
	Name() string
	Attribute(in AttributionInput) (types.Money, error)
}

// Policy names accepted by NewAttributionPolicy.
const (
	PolicyEqualSplit = "equal_split"
	PolicyExpression = "expression"
)

// NewAttributionPolicy builds the policy named in configuration.
func NewAttributionPolicy(name, expr string) (AttributionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyEqualSplit:
		return EqualSplitAttributionPolicy{}, nil
	case PolicyExpression:
		return NewExpressionAttributionPolicy(expr)
	default:
		return nil, fmt.Errorf("unknown attribution policy %q", name)
	}
}

// EqualSplitAttributionPolicy divides the order's pay evenly between its
// completed stages, whoever completed them. Shares are cut to cents and the
// last completed stage takes the remainder, so the shares of an order add up
// to its pay exactly.
type EqualSplitAttributionPolicy struct{}

func (EqualSplitAttributionPolicy) Name() string { return PolicyEqualSplit }

func (EqualSplitAttributionPolicy) Attribute(in AttributionInput) (types.Money, error) {
	n := int64(in.CompletedStages)
	if n < 1 {
		n = 1
	}
	pay := in.Contribution.Round(types.MoneyPlaces)
	share := pay.Div(decimal.NewFromInt(n)).Truncate(types.MoneyPlaces)
	if int64(in.CompletedRank) == n {
		return pay.Sub(share.Mul(decimal.NewFromInt(n - 1))), nil
	}
	return share, nil
}

// ExpressionAttributionPolicy evaluates a CEL expression returning a double,
// e.g. "contribution / double(completed_stages)".
// Variables: contribution (double), completed_stages (int), total_stages (int),
// completed_rank (int). CEL has no decimal type, so the result is rounded to
// cents and no remainder is carried between stages.
type ExpressionAttributionPolicy struct {
	expr    string
	program cel.Program
}

// NewExpressionAttributionPolicy compiles expr.
func NewExpressionAttributionPolicy(expr string) (*ExpressionAttributionPolicy, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("attribution expression is empty")
	}
	env, err := cel.NewEnv(
		cel.Variable("contribution", cel.DoubleType),
		cel.Variable("completed_stages", cel.IntType),
		cel.Variable("total_stages", cel.IntType),
		cel.Variable("completed_rank", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile attribution expression: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("attribution expression must return double, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build attribution program: %w", err)
	}
	return &ExpressionAttributionPolicy{expr: expr, program: prg}, nil
}

func (p *ExpressionAttributionPolicy) Name() string { return PolicyExpression }

func (p *ExpressionAttributionPolicy) Attribute(in AttributionInput) (types.Money, error) {
	out, _, err := p.program.Eval(map[string]any{
		"contribution":     in.Contribution.InexactFloat64(),
		"completed_stages": int64(in.CompletedStages),
		"total_stages":     int64(in.TotalStages),
		"completed_rank":   int64(in.CompletedRank),
	})
	if err != nil {
		return types.Zero(), fmt.Errorf("evaluate %q: %w", p.expr, err)
	}
	f, ok := out.Value().(float64)
	if !ok {
		return types.Zero(), fmt.Errorf("evaluate %q: unexpected result %T", p.expr, out.Value())
	}
	share := decimal.NewFromFloat(f).Round(types.MoneyPlaces)
	if share.IsNegative() {
		return types.Zero(), fmt.Errorf("evaluate %q: negative share %s", p.expr, share)
	}
	return share, nil
}
