// Package language is the boundary to the query-language parser. The rest of
// the module depends on these aliases, never on the parser package directly.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Error is a parse-level error with source positions.
type Error = gqlerror.Error

// ParseQuery parses an executable document (operations plus fragments).
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
