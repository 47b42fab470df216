// Package calculator is the bundled arithmetic tool. It parses a restricted
// expression grammar with its own recursive-descent parser; it is never a
// general-purpose evaluator.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/glassboxlabs/glasstrace/agent"
)

// Name is the tool name the calculator registers under.
const Name = "calculator"

var (
	errDivideByZero = errors.New("Cannot divide by zero")
	errUnrecognized = errors.New("unrecognized expression")
)

// Definition declares the calculator's argument schema for the model.
func Definition() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        Name,
		Description: "Performs basic arithmetic calculations (+, -, *, /). Returns the numeric result as text or an error message.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Mathematical expression to evaluate, e.g. \"2 + 3 * 4\"",
				},
			},
			"required": []string{"expression"},
		},
	}
}

// Handler adapts Evaluate to the registry handler contract. Domain failures
// come back as errors so the registry can render them as error results.
func Handler(_ context.Context, args map[string]any) (string, error) {
	expression, _ := args["expression"].(string)
	return Evaluate(expression)
}

// Evaluate computes a restricted arithmetic expression: the four basic
// operators, unary minus, and parentheses over decimal numbers.
func Evaluate(expression string) (string, error) {
	p := &parser{input: expression}
	value, err := p.parseExpression()
	if err != nil {
		return "", err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return "", errUnrecognized
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

// Grammar:
//
//	expression = term { ("+" | "-") term }
//	term       = factor { ("*" | "/") factor }
//	factor     = number | "-" factor | "(" expression ")"
type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpression() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOperator("+", "-")
		if !ok {
			return value, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			value += right
		} else {
			value -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOperator("*", "/")
		if !ok {
			return value, nil
		}
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			value *= right
			continue
		}
		if right == 0 {
			return 0, errDivideByZero
		}
		value /= right
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, errUnrecognized
	}

	switch p.input[p.pos] {
	case '-':
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	case '(':
		p.pos++
		value, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, errUnrecognized
		}
		p.pos++
		return value, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, errUnrecognized
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errUnrecognized, strings.TrimSpace(p.input[start:p.pos]))
	}
	return value, nil
}

func (p *parser) peekOperator(candidates ...string) (string, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return "", false
	}
	for _, candidate := range candidates {
		if strings.HasPrefix(p.input[p.pos:], candidate) {
			p.pos += len(candidate)
			return candidate, true
		}
	}
	return "", false
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}
