package tools

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

// Calculator evaluates arithmetic expressions.
type Calculator struct{}

func (Calculator) Schema() Schema {
	return Schema{
		Name:        "calc",
		Description: "Evaluate an arithmetic expression. Supports + - * / %, parentheses, pi, e and sqrt, abs, ln, log10, exp, sin, cos, tan, floor, ceil, pow, min, max.",
		Parameters: []SchemaField{
			{Name: "expr", Type: "string", Description: "Expression such as (2+3)*sqrt(16)", Required: true},
		},
	}
}

func (Calculator) Run(_ context.Context, args map[string]interface{}) (string, error) {
	expr, _ := args["expr"].(string)
	v, err := Eval(expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

// Eval evaluates a floating point expression.
func Eval(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, fmt.Errorf("expression is empty")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}
	v, err := eval(node)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result of %q is not finite", expr)
	}
	return v, nil
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var unaryFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"ln":    math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"floor": math.Floor,
	"ceil":  math.Ceil,
}

var binaryFuncs = map[string]func(float64, float64) float64{
	"pow": math.Pow,
	"min": math.Min,
	"max": math.Max,
}

func eval(n ast.Expr) (float64, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.Ident:
		if v, ok := constants[strings.ToLower(n.Name)]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown identifier %q", n.Name)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, fmt.Errorf("unsupported unary operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return math.Mod(x, y), nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.CallExpr:
		ident, ok := n.Fun.(*ast.Ident)
		if !ok {
			return 0, fmt.Errorf("unsupported call")
		}
		name := strings.ToLower(ident.Name)
		argv := make([]float64, 0, len(n.Args))
		for _, a := range n.Args {
			v, err := eval(a)
			if err != nil {
				return 0, err
			}
			argv = append(argv, v)
		}
		if fn, ok := unaryFuncs[name]; ok {
			if len(argv) != 1 {
				return 0, fmt.Errorf("%s takes 1 argument", name)
			}
			return fn(argv[0]), nil
		}
		if fn, ok := binaryFuncs[name]; ok {
			if len(argv) != 2 {
				return 0, fmt.Errorf("%s takes 2 arguments", name)
			}
			return fn(argv[0], argv[1]), nil
		}
		return 0, fmt.Errorf("unknown function %q", ident.Name)
	}
	return 0, fmt.Errorf("unsupported expression")
}
