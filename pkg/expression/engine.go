package expression

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles and runs workflow condition expressions against trigger data.
// Programs are cached per expression text; variables are resolved at run time
// so the same program serves every event.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{programCache: make(map[string]*vm.Program)}
}

// Validate reports syntax errors without running the expression
func (e *Engine) Validate(expression string) error {
	_, err := e.getProgram(expression)
	return err
}

// Evaluate compiles (if needed) and runs an expression against env
func (e *Engine) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = map[string]interface{}{}
	}
	return expr.Run(program, env)
}

// EvaluateBool runs expression and requires a boolean result.
// An empty expression is true.
func (e *Engine) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	out, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression must evaluate to a boolean, got %T", out)
	}
	return b, nil
}

func (e *Engine) getProgram(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programCache[expression]; ok {
		return prog, nil
	}

	program, err := expr.Compile(expression, append(functions(), expr.AllowUndefinedVariables())...)
	if err != nil {
		return nil, err
	}
	e.programCache[expression] = program
	return program, nil
}

func functions() []expr.Option {
	return []expr.Option{
		expr.Function("NOW", func(params ...interface{}) (interface{}, error) {
			return time.Now().Format(time.RFC3339), nil
		}),
		expr.Function("TODAY", func(params ...interface{}) (interface{}, error) {
			return time.Now().Format("2006-01-02"), nil
		}),
		expr.Function("LOWER", func(params ...interface{}) (interface{}, error) {
			s, err := oneString("LOWER", params)
			return strings.ToLower(s), err
		}),
		expr.Function("UPPER", func(params ...interface{}) (interface{}, error) {
			s, err := oneString("UPPER", params)
			return strings.ToUpper(s), err
		}),
		expr.Function("LEN", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LEN requires 1 argument")
			}
			switch v := params[0].(type) {
			case nil:
				return 0, nil
			case string:
				return len(v), nil
			case []interface{}:
				return len(v), nil
			case []string:
				return len(v), nil
			}
			return nil, fmt.Errorf("LEN argument must be string or list")
		}),
		// CONTAINS is a case-insensitive substring match
		expr.Function("CONTAINS", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("CONTAINS requires 2 arguments")
			}
			s, _ := params[0].(string)
			sub, _ := params[1].(string)
			return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
		}),
		expr.Function("HAS_TAG", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("HAS_TAG requires 2 arguments (tags, tag)")
			}
			tag, _ := params[1].(string)
			for _, t := range toStrings(params[0]) {
				if strings.EqualFold(t, tag) {
					return true, nil
				}
			}
			return false, nil
		}),
		expr.Function("DAYS_SINCE", func(params ...interface{}) (interface{}, error) {
			s, err := oneString("DAYS_SINCE", params)
			if err != nil {
				return nil, err
			}
			t, err := parseDate(s)
			if err != nil {
				return nil, fmt.Errorf("DAYS_SINCE date format invalid")
			}
			return int(time.Since(t).Hours() / 24), nil
		}),
		expr.Function("IF", func(params ...interface{}) (interface{}, error) {
			if len(params) != 3 {
				return nil, fmt.Errorf("IF requires 3 arguments (condition, true_value, false_value)")
			}
			cond, ok := params[0].(bool)
			if !ok {
				return nil, fmt.Errorf("IF condition must be boolean")
			}
			if cond {
				return params[1], nil
			}
			return params[2], nil
		}),
	}
}

func oneString(name string, params []interface{}) (string, error) {
	if len(params) != 1 {
		return "", fmt.Errorf("%s requires 1 argument", name)
	}
	if params[0] == nil {
		return "", nil
	}
	s, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("%s argument must be string", name)
	}
	return s, nil
}

func toStrings(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
