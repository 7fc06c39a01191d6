// Package scope interprets a scope's preface and body: it classifies the
// scope as a class, namespace or neither, and extracts the declarations
// opted in with [[ovd::...]] attribute blocks.
package scope

import (
	"fmt"
	"strings"

	"github.com/phobologic/ovdmap/internal/model"
	"github.com/phobologic/ovdmap/internal/span"
)

// Declarations are the tagged declarations found directly in a scope body.
type Declarations struct {
	Variables   []model.Variable
	Callables   []model.Callable
	Definitions []model.Definition
}

// Build classifies preface and extracts the declarations in body. base is the
// absolute offset of body, used for diagnostics.
func Build(preface, body string, base int) (model.Scope, []model.Diagnostic) {
	typ, name := Classify(preface)
	decls, diags := Extract(body, base)
	return model.Scope{
		Node:        -1,
		Type:        typ,
		Name:        name,
		Variables:   decls.Variables,
		Callables:   decls.Callables,
		Definitions: decls.Definitions,
	}, diags
}

// Classify determines the scope type from the first "class" keyword in
// preface, else the first "namespace" keyword. Occurrences inside a template
// parameter list are ignored. The name is the text after the keyword, cut at
// an inheritance colon and trimmed.
func Classify(preface string) (model.ScopeType, string) {
	if idx := findKeyword(preface, "class"); idx >= 0 {
		return model.ClassScope, scopeName(preface[idx+len("class"):])
	}
	if idx := findKeyword(preface, "namespace"); idx >= 0 {
		return model.NamespaceScope, scopeName(preface[idx+len("namespace"):])
	}
	return model.UnknownScope, model.UnknownScopeName
}

func findKeyword(text, keyword string) int {
	from := 0
	for {
		idx := span.Index(text, from, keyword)
		if idx == span.NotFound {
			return -1
		}
		end := idx + len(keyword)
		bounded := (idx == 0 || !isIdent(text[idx-1])) && (end == len(text) || !isIdent(text[end]))
		if bounded && angleDepth(text[:idx]) == 0 {
			return idx
		}
		from = end
	}
}

func angleDepth(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}

func scopeName(rest string) string {
	for i := 0; i < len(rest); i++ {
		if rest[i] != ':' {
			continue
		}
		if i+1 < len(rest) && rest[i+1] == ':' {
			i++
			continue
		}
		rest = rest[:i]
		break
	}
	name, _ := span.TrimWhitespace(rest)
	return name
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ParseAttributes parses the interior of an attribute block. Tags are comma
// separated and matched exactly; unknown tags contribute nothing.
func ParseAttributes(interior string) model.Attribute {
	result := model.AttrNone
	for _, part := range strings.Split(interior, ",") {
		tag, _ := span.TrimWhitespace(part)
		switch tag {
		case model.TagCallable:
			result |= model.AttrCallable
		case model.TagDefined:
			result |= model.AttrDefinition
		case model.TagVariable:
			result |= model.AttrVariable
		}
	}
	return result
}

// ShapeError reports a tag combination that does not fit the declaration it
// is attached to.
type ShapeError struct {
	Attrs  model.Attribute
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("[[%s]]: %s", e.Attrs, e.Reason)
}

// CheckShape validates attrs against the declaration's shape: a variable has
// neither parameters nor body, a definition has parameters and no body, and a
// callable has parameters.
func CheckShape(attrs model.Attribute, hasParameters, hasBody bool) error {
	fail := func(reason string) error {
		return &ShapeError{Attrs: attrs, Reason: reason}
	}
	if attrs.HasVariable() {
		if hasParameters {
			return fail("variable declaration has a parameter list")
		}
		if hasBody {
			return fail("variable declaration has a body")
		}
	}
	if attrs.HasDefinition() {
		if !hasParameters {
			return fail("defined declaration has no parameter list")
		}
		if hasBody {
			return fail("defined declaration already has a body")
		}
	}
	if attrs.HasCallable() && !hasParameters {
		return fail("callable declaration has no parameter list")
	}
	return nil
}

// ParseTypeAndName splits a single declarator into type and name. The type
// ends at the first whitespace, '&' or '*'; the name starts at the next
// character that is none of those.
func ParseTypeAndName(expr string) (typ, name string) {
	trimmed, ok := span.TrimWhitespace(expr)
	if !ok {
		return "", ""
	}
	typeEnd, nameBegin := -1, -1
	for i := 0; i < len(trimmed) && nameBegin < 0; i++ {
		sep := isDeclSeparator(trimmed[i])
		if typeEnd < 0 {
			if sep {
				typeEnd = i
			}
		} else if !sep {
			nameBegin = i
		}
	}
	switch {
	case typeEnd < 0:
		return trimmed, ""
	case nameBegin < 0:
		return trimmed[:typeEnd], ""
	}
	return trimmed[:typeEnd], trimmed[nameBegin:]
}

func isDeclSeparator(c byte) bool {
	return span.IsSpace(c) || c == '&' || c == '*'
}

// ParseParameters splits a parameter list on commas into variables.
func ParseParameters(list string) []model.Variable {
	if _, ok := span.TrimWhitespace(list); !ok {
		return nil
	}
	var params []model.Variable
	for _, part := range strings.Split(list, ",") {
		if _, ok := span.TrimWhitespace(part); !ok {
			continue
		}
		typ, name := ParseTypeAndName(part)
		params = append(params, model.Variable{Type: typ, Name: name})
	}
	return params
}

// Extract finds each attribute block directly in body and builds the
// declaration that follows it. Brace blocks and comments between
// declarations are skipped. Problems are reported and the declaration is
// dropped; extraction continues with the rest of the body.
func Extract(body string, base int) (Declarations, []model.Diagnostic) {
	var (
		decls Declarations
		diags []model.Diagnostic
	)
	report := func(kind model.DiagnosticKind, offset int, msg string) {
		diags = append(diags, model.Diagnostic{Kind: kind, Offset: base + offset, Message: msg})
	}
	unmatched := func(offset int, open, close string) {
		diags = append(diags, model.Diagnostic{
			Kind:    model.MalformedDelimiter,
			Offset:  base + offset,
			Message: fmt.Sprintf("unmatched %q (no %q follows)", open, close),
			Open:    open,
		})
	}

	pos := 0
	for {
		at := nextAttribute(body, pos)
		if at == span.NotFound {
			break
		}
		attrEnd := span.Index(body, at+2, "]]")
		if attrEnd == span.NotFound {
			unmatched(at, "[[", "]]")
			break
		}

		declStart := attrEnd + 2
		declEnd, next := len(body), len(body)
		hasBody := false
		if term := span.IndexAny(body, declStart, "{;}"); term != span.NotFound {
			declEnd, next = term, term+1
			if body[term] == '{' {
				hasBody = true
				end, err := span.MatchBrace(term, body)
				if err != nil {
					unmatched(term, "{", "}")
					break
				}
				next = end
			}
		}
		pos = next

		attrs := ParseAttributes(body[at+2 : attrEnd])
		if attrs.IsNone() {
			continue
		}
		decl := body[declStart:declEnd]
		open := strings.IndexByte(decl, '(')
		if err := CheckShape(attrs, open >= 0, hasBody); err != nil {
			report(model.AttributeShape, at, err.Error())
			continue
		}

		if attrs.HasVariable() {
			typ, name := ParseTypeAndName(decl)
			decls.Variables = append(decls.Variables, model.Variable{Type: typ, Name: name})
			continue
		}

		closeAt := strings.IndexByte(decl[open:], ')')
		if closeAt < 0 {
			unmatched(declStart+open, "(", ")")
			continue
		}
		returnType, name := ParseTypeAndName(decl[:open])
		callable := model.Callable{
			Name:       name,
			Parameters: ParseParameters(decl[open+1 : open+closeAt]),
			ReturnType: returnType,
		}
		if attrs.HasCallable() {
			decls.Callables = append(decls.Callables, callable)
		}
		if attrs.HasDefinition() {
			decls.Definitions = append(decls.Definitions, model.Definition{
				Callable: callable,
				Callees:  []string{},
			})
		}
	}
	return decls, diags
}

// nextAttribute returns the offset of the next "[[" at or after pos that is
// not inside a brace block or a comment.
func nextAttribute(body string, pos int) int {
	for i := pos; i < len(body); i++ {
		switch {
		case strings.HasPrefix(body[i:], "[["):
			return i
		case strings.HasPrefix(body[i:], "//"):
			nl := span.Index(body, i, "\n")
			if nl == span.NotFound {
				return span.NotFound
			}
			i = nl
		case strings.HasPrefix(body[i:], "/*"):
			end := span.Index(body, i+2, "*/")
			if end == span.NotFound {
				return span.NotFound
			}
			i = end + 1
		case body[i] == '{':
			end, err := span.MatchBrace(i, body)
			if err != nil {
				return span.NotFound
			}
			i = end - 1
		}
	}
	return span.NotFound
}
