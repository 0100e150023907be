package app

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"survey-service/internal/domain"
)

const defaultRuleMessage = "Enter a valid value."

// ruleEnv is the shape rule expressions are compiled against. Constraints see
// the cleaned value of their own question as value; every rule sees the
// cleaned answers keyed by question id. Both fields are interfaces so the
// checker leaves their types to run time.
type ruleEnv struct {
	Value   any            `expr:"value"`
	Answers map[string]any `expr:"answers"`
}

func newRuleEnv(value any, answers map[string]any) ruleEnv {
	if answers == nil {
		answers = map[string]any{}
	}
	return ruleEnv{Value: value, Answers: answers}
}

var programs sync.Map

// CompileRule checks that expression is a valid boolean rule.
func CompileRule(expression string) error {
	_, err := compileRule(expression)
	return err
}

func compileRule(expression string) (*vm.Program, error) {
	if cached, ok := programs.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression,
		expr.Env(ruleEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	programs.Store(expression, program)
	return program, nil
}

// evalRule reports whether rule holds for env. A rule that fails to run counts
// as violated.
func evalRule(rule domain.Rule, env ruleEnv) (bool, error) {
	program, err := compileRule(rule.Expression)
	if err != nil {
		return false, fmt.Errorf("compile rule %q: %w", rule.Expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("run rule %q: %w", rule.Expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func ruleMessage(rule domain.Rule) string {
	if rule.Message != "" {
		return rule.Message
	}
	return defaultRuleMessage
}

// checkSurveyRules evaluates the survey-wide rules against the complete answers.
func checkSurveyRules(rules []domain.Rule, answers map[string]any) domain.FieldErrors {
	errs := domain.FieldErrors{}
	for _, rule := range rules {
		ok, err := evalRule(rule, newRuleEnv(nil, answers))
		if err != nil || !ok {
			errs.Add(domain.NonFieldKey, ruleMessage(rule))
		}
	}
	return errs
}
