// Package template renders {{path}} placeholders in node configuration against the run context.
//
// Supported forms are {{a.b.c}}, {{a.[key with spaces]}}, {{items.0}} and
// {{JSON a.b}}, which pretty prints the value. Triple braces are accepted and behave
// like double braces; nothing is HTML escaped.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/itchyny/gojq"

	"github.com/nodeflow/nodeflow/pkg/models"
)

const (
	segment     = `(?:[^\s{}.\[\]]+|\[[^\]]*\])`
	pathPattern = segment + `(?:\.` + segment + `)*`
)

var (
	placeholder = regexp.MustCompile(`\{\{\{?\s*(JSON\s+)?(` + pathPattern + `)\s*\}?\}\}`)
	block       = regexp.MustCompile(`\{\{\s*[#/^]`)
	numeric     = regexp.MustCompile(`^[0-9]+$`)

	compiled sync.Map // path -> *gojq.Code
)

// Render expands the placeholders in input using data.
func Render(input string, data models.Context) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	normalized, err := normalize(data)
	if err != nil {
		return "", err
	}

	if block.MatchString(input) {
		return "", fmt.Errorf("failed to parse template '%s': block helpers are not supported", input)
	}

	rewritten := rewrite(input)

	tmpl, err := template.New("node").
		Funcs(template.FuncMap{
			"lookup": func(path string) (any, error) {
				return Lookup(normalized, path)
			},
			"text": Text,
			"json": JSON,
		}).Parse(rewritten)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("failed to render template '%s': %w", input, err)
	}

	return buf.String(), nil
}

// rewrite turns placeholders into template actions. Any other braces are emitted as
// literal text, so configuration can never run template actions of its own.
func rewrite(input string) string {
	var buf strings.Builder

	last := 0

	for _, loc := range placeholder.FindAllStringSubmatchIndex(input, -1) {
		buf.WriteString(escapeDelims(input[last:loc[0]]))

		path := strconv.Quote(input[loc[4]:loc[5]])
		if loc[2] >= 0 {
			buf.WriteString("{{json (lookup " + path + ")}}")
		} else {
			buf.WriteString("{{text (lookup " + path + ")}}")
		}

		last = loc[1]
	}

	buf.WriteString(escapeDelims(input[last:]))

	return buf.String()
}

func escapeDelims(text string) string {
	return strings.ReplaceAll(text, "{{", `{{"{{"}}`)
}

// Lookup resolves a dotted path against JSON-shaped data. Missing paths yield nil.
func Lookup(data any, path string) (any, error) {
	code, err := compile(path)
	if err != nil {
		return nil, err
	}

	iter := code.Run(data)

	value, ok := iter.Next()
	if !ok {
		return nil, nil
	}

	if err, isErr := value.(error); isErr {
		return nil, fmt.Errorf("failed to resolve '%s': %w", path, err)
	}

	return value, nil
}

// Text formats a resolved value the way it appears inline in rendered output.
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		encoded, err := marshal(v, "")
		if err != nil {
			return fmt.Sprint(v)
		}

		return encoded
	}
}

// JSON pretty prints value with two space indentation.
func JSON(value any) string {
	encoded, err := marshal(value, "  ")
	if err != nil {
		return fmt.Sprint(value)
	}

	return encoded
}

func marshal(value any, indent string) (string, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if indent != "" {
		encoder.SetIndent("", indent)
	}

	if err := encoder.Encode(value); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// compile turns a dotted path into a jq program that walks objects by key and arrays by
// index, yielding null for anything missing.
func compile(path string) (*gojq.Code, error) {
	if cached, ok := compiled.Load(path); ok {
		return cached.(*gojq.Code), nil
	}

	var query strings.Builder

	query.WriteString(".")

	for _, part := range splitPath(path) {
		key, _ := json.Marshal(part)

		if numeric.MatchString(part) {
			fmt.Fprintf(&query, ` | (if type == "array" then .[%s] elif type == "object" then .[%s] else null end)`, part, key)

			continue
		}

		fmt.Fprintf(&query, ` | (if type == "object" then .[%s] else null end)`, key)
	}

	parsed, err := gojq.Parse(query.String())
	if err != nil {
		return nil, fmt.Errorf("invalid template path '%s': %w", path, err)
	}

	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("invalid template path '%s': %w", path, err)
	}

	compiled.Store(path, code)

	return code, nil
}

func splitPath(path string) []string {
	var (
		parts   []string
		current strings.Builder
		bracket bool
	)

	for _, r := range path {
		switch {
		case r == '[' && !bracket && current.Len() == 0:
			bracket = true
		case r == ']' && bracket:
			bracket = false
		case r == '.' && !bracket:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	parts = append(parts, current.String())

	// "this" refers to the root, as in {{JSON this}}
	if len(parts) == 1 && parts[0] == "this" {
		return nil
	}

	return parts
}

// normalize converts data into the JSON value space gojq operates on.
func normalize(data models.Context) (any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("context is not serializable: %w", err)
	}

	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}

	return out, nil
}
