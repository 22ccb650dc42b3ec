// internal/service/promotion/infrastructure/rule/cel_rule_engine.go
package rule

import (
	"context"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"storefront/internal/service/promotion/domain"
)

// CELRuleEngine 是 domain.RuleEngine 的 CEL 实现，编译结果按表达式缓存
type CELRuleEngine struct {
	env      *cel.Env
	programs sync.Map // expr -> cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("product_ids", cel.ListType(cel.StringType)),
		cel.Variable("user_id", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	return &CELRuleEngine{env: env}, nil
}

func (e *CELRuleEngine) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *CELRuleEngine) program(expr string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile rule %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build program for rule %q", expr)
	}
	e.programs.Store(expr, prg)
	return prg, nil
}

func (e *CELRuleEngine) Evaluate(ctx context.Context, expr string, facts domain.RuleFacts) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.ContextEval(ctx, map[string]interface{}{
		"subtotal":    facts.Subtotal.InexactFloat64(),
		"item_count":  int64(facts.ItemCount),
		"product_ids": facts.ProductIDs,
		"user_id":     facts.UserID,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate rule %q", expr)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule %q returned %T, want bool", expr, out.Value())
	}
	return result, nil
}
