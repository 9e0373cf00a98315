package dbtools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a structurally invalid tool argument, caught
// before any SQL text is assembled.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, v ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, v...)}
}

// Field is one column/value pair of a tool argument object.
type Field struct {
	Key   string
	Value interface{}
}

// Fields is an ordered sequence of column/value pairs. Column order and
// placeholder order must match, so the order is carried explicitly instead
// of living in map iteration.
type Fields []Field

// UnmarshalJSON decodes a JSON object into Fields preserving document
// order, which Go maps discard. Used wherever raw argument JSON is
// available; arguments that arrive pre-decoded as maps go through
// FieldsFromMap instead.
func (f *Fields) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object for fields, got %v", tok)
	}

	fields := make(Fields, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		fields = append(fields, Field{Key: key, Value: value})
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = fields
	return nil
}

// FieldsFromMap converts an already-decoded JSON object into Fields. Go
// maps carry no document order, so keys are sorted to keep statement text
// deterministic.
func FieldsFromMap(m map[string]interface{}) Fields {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(Fields, 0, len(m))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: m[k]})
	}
	return fields
}

// Statement pairs parameterized SQL text with its bound values, in
// placeholder order. Placeholder count always equals len(Args).
type Statement struct {
	SQL  string
	Args []interface{}
}

// quoteIdent wraps an identifier in double quotes, doubling any embedded
// quote. Identifiers cannot be bound as parameters, so table and column
// names are embedded as quoted text; the names themselves are trusted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BuildInsert builds an INSERT over data's columns with placeholders
// $1..$n and RETURNING *.
func BuildInsert(table string, data Fields) (Statement, error) {
	if len(data) == 0 {
		return Statement{}, validationErrorf("insert into %q: data must not be empty", table)
	}

	cols := make([]string, len(data))
	placeholders := make([]string, len(data))
	args := make([]interface{}, len(data))
	for i, f := range data {
		cols[i] = quoteIdent(f.Key)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = f.Value
	}

	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return Statement{SQL: text, Args: args}, nil
}

// BuildUpdate builds an UPDATE with SET placeholders $1..$k over data and
// WHERE placeholders $(k+1)..$(k+m) over where. Args is the concatenation
// of data values then where values, tracking the placeholder indices.
func BuildUpdate(table string, data, where Fields) (Statement, error) {
	if len(data) == 0 {
		return Statement{}, validationErrorf("update %q: data must not be empty", table)
	}
	if len(where) == 0 {
		return Statement{}, validationErrorf("update %q: where must not be empty (it would match every row)", table)
	}

	args := make([]interface{}, 0, len(data)+len(where))

	sets := make([]string, len(data))
	for i, f := range data {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(f.Key), i+1)
		args = append(args, f.Value)
	}

	conds := make([]string, len(where))
	for i, f := range where {
		conds[i] = fmt.Sprintf("%s = $%d", quoteIdent(f.Key), len(data)+i+1)
		args = append(args, f.Value)
	}

	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		quoteIdent(table), strings.Join(sets, ", "), strings.Join(conds, " AND "))
	return Statement{SQL: text, Args: args}, nil
}

// BuildDelete builds a DELETE with WHERE placeholders $1..$m over where.
func BuildDelete(table string, where Fields) (Statement, error) {
	if len(where) == 0 {
		return Statement{}, validationErrorf("delete from %q: where must not be empty (it would match every row)", table)
	}

	args := make([]interface{}, len(where))
	conds := make([]string, len(where))
	for i, f := range where {
		conds[i] = fmt.Sprintf("%s = $%d", quoteIdent(f.Key), i+1)
		args[i] = f.Value
	}

	text := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING *",
		quoteIdent(table), strings.Join(conds, " AND "))
	return Statement{SQL: text, Args: args}, nil
}
