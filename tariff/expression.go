package tariff

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// expressionCostLimit bounds the work a single expression condition may do
const expressionCostLimit = 100000

var (
	expressionEnvs   = map[SubjectType]*cel.Env{}
	expressionEnvsMu sync.Mutex
)

// expressionEnv returns the CEL environment for a subject kind. The subject
// is exposed as a map variable named after its type ("patient" or "item")
// alongside the evaluation instant "now".
func expressionEnv(subject SubjectType) (*cel.Env, error) {
	expressionEnvsMu.Lock()
	defer expressionEnvsMu.Unlock()

	if env, ok := expressionEnvs[subject]; ok {
		return env, nil
	}
	env, err := cel.NewEnv(
		cel.Variable(string(subject), cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	expressionEnvs[subject] = env
	return env, nil
}

// Expression is a compiled CEL predicate over one subject
type Expression struct {
	source  string
	program cel.Program
}

// CompileExpression compiles a boolean CEL expression for the given subject kind
func CompileExpression(subject SubjectType, source string) (*Expression, error) {
	env, err := expressionEnv(subject)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression yields %s, want bool", out)
	}

	prog, err := env.Program(ast, cel.CostLimit(expressionCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Expression{source: source, program: prog}, nil
}

func (e *Expression) String() string { return e.source }

// Satisfies evaluates a compiled expression against the bound subject
func (c Comparator) Satisfies(expr *Expression) (bool, error) {
	fields := c.subject.Fields()
	subject := make(map[string]any, len(fields))
	for name, v := range fields {
		subject[name] = v.Native()
	}

	out, _, err := expr.program.Eval(map[string]any{
		string(c.subjectType): subject,
		"now":                 c.now,
	})
	if err != nil {
		return false, c.fail(OpSatisfies, expr.source, "evaluation error: %v", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, c.fail(OpSatisfies, expr.source, "expression yielded %v, want bool", out.Value())
	}
	return matched, nil
}

func resolveExpression(subject SubjectType, c Condition) (check, error) {
	source, ok := c.Value.(string)
	if !ok || source == "" {
		return nil, configErr(subject, c, "satisfies needs a CEL expression string")
	}
	expr, err := CompileExpression(subject, source)
	if err != nil {
		return nil, configErr(subject, c, "%v", err)
	}
	return func(cmp Comparator) (bool, error) { return cmp.Satisfies(expr) }, nil
}
