// Package scan splits source text into comment, directive, scope and
// expression nodes, and splits expressions into attribute, parameter,
// keyword and symbol nodes.
//
// Attribute, template and parameter blocks are matched against the first
// closing token, so nested blocks of the same kind are not supported.
package scan

import (
	"errors"
	"fmt"

	"github.com/phobologic/ovdmap/internal/document"
	"github.com/phobologic/ovdmap/internal/model"
	"github.com/phobologic/ovdmap/internal/span"
)

const (
	whitespace      = " \n\r\t\v\f"
	symbolDelimiter = whitespace + "(<["
)

type scanner struct {
	doc   *document.Document
	src   string
	diags []model.Diagnostic

	// offsets of openers already reported as unmatched
	reported map[int]struct{}
}

// Block scans doc's source in [start, end) as a sequence of comments,
// directives, scopes and terminated expressions, adding nodes under parent.
// Scopes are scanned recursively before their siblings.
func Block(doc *document.Document, parent document.NodeID, start, end int) []model.Diagnostic {
	s := &scanner{doc: doc, src: doc.Source()}
	s.block(parent, start, end)
	return s.diags
}

// Expression scans doc's source in [start, end) as a single declaration or
// statement, adding fine-grained nodes under parent.
func Expression(doc *document.Document, parent document.NodeID, start, end int) []model.Diagnostic {
	s := &scanner{doc: doc, src: doc.Source()}
	s.expression(parent, start, end)
	return s.diags
}

func (s *scanner) report(kind model.DiagnosticKind, offset int, format string, args ...any) {
	s.diags = append(s.diags, model.Diagnostic{
		Kind:    kind,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *scanner) unmatched(err error) {
	var ue *span.UnmatchedError
	if !errors.As(err, &ue) {
		return
	}
	if _, seen := s.reported[ue.Offset]; seen {
		return
	}
	if s.reported == nil {
		s.reported = make(map[int]struct{})
	}
	s.reported[ue.Offset] = struct{}{}
	s.report(model.MalformedDelimiter, ue.Offset, "unmatched %q (no %q follows)", ue.Open, ue.Close)
	s.diags[len(s.diags)-1].Open = ue.Open
}

func (s *scanner) block(parent document.NodeID, start, end int) {
	text := s.src[:end]
	pos := start
	for {
		for {
			pos = span.SkipWhitespace(pos, text)
			prev := pos
			pos = s.commentsAndDirectives(parent, pos, text)
			if span.IsEnd(pos, text) || pos == prev {
				break
			}
		}
		if span.IsEnd(pos, text) {
			return
		}
		pos = s.scopeOrExpression(parent, pos, text)
		if span.IsEnd(pos, text) {
			return
		}
	}
}

// commentsAndDirectives consumes one comment or preprocessor directive at
// pos, if there is one.
func (s *scanner) commentsAndDirectives(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	if span.IsEnd(pos, text) {
		return pos
	}

	begin := pos
	switch {
	case text[pos] == '#' || hasPrefixAt(text, pos, "//"):
		kind := document.Comment
		if text[pos] == '#' {
			kind = document.PreprocessorDirective
		}
		nl := lineEnd(text, pos)
		if nl == span.NotFound {
			s.doc.Add(parent, kind, begin, len(text))
			s.report(model.Unterminated, begin, "%s runs to end of input without a newline", kind)
			return len(text)
		}
		s.doc.Add(parent, kind, begin, nl)
		return nl + 1

	case hasPrefixAt(text, pos, "/*"):
		close := span.Index(text, pos+2, "*/")
		if close == span.NotFound {
			s.doc.Add(parent, document.Comment, begin, len(text))
			s.report(model.Unterminated, begin, "block comment has no closing */")
			return len(text)
		}
		s.doc.Add(parent, document.Comment, begin, close+2)
		return close + 2
	}
	return pos
}

// lineEnd finds the newline ending the line that starts at pos, following
// backslash continuations.
func lineEnd(text string, pos int) int {
	nl := pos
	for {
		nl = span.Index(text, nl+1, "\n")
		if nl == span.NotFound {
			return nl
		}
		prev := nl - 1
		if text[prev] == '\r' && prev > pos {
			prev--
		}
		if text[prev] != '\\' {
			return nl
		}
	}
}

func (s *scanner) scopeOrExpression(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	last := pos
	at := span.IndexAny(text, pos, "{;")
	if at == span.NotFound {
		if trimmed, ok := span.TrimWhitespace(text[last:]); ok {
			s.doc.Add(parent, document.Unknown, last, last+len(trimmed))
		}
		return len(text)
	}

	if text[at] == ';' {
		id := s.doc.Add(parent, document.Expression, last, at+1)
		s.expression(id, last, at+1)
		return at + 1
	}

	end, err := span.MatchBrace(at, text)
	bodyEnd := end - 1
	if err != nil {
		s.unmatched(err)
		end, bodyEnd = len(text), len(text)
	}
	id := s.doc.AddScope(parent,
		document.Span{Start: last, End: at},
		document.Span{Start: at + 1, End: bodyEnd},
		end)
	s.expression(id, last, at)
	s.block(id, at+1, bodyEnd)
	return end
}

func (s *scanner) expression(parent document.NodeID, start, end int) {
	text := s.src[:end]
	pos := start
	for {
		pos = span.SkipWhitespace(pos, text)
		if span.IsEnd(pos, text) {
			return
		}
		initial := pos
		pos = s.commentsAndDirectives(parent, pos, text)
		pos = s.attributes(parent, pos, text)
		pos = s.templateParameters(parent, pos, text)
		pos = s.keywords(parent, pos, text)
		pos = s.functionParameters(parent, pos, text)
		if pos == initial {
			pos = s.symbol(parent, pos, text)
		}
	}
}

func (s *scanner) attributes(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	end, err := span.ParseSection(pos, text, "[[", "]]")
	if err != nil {
		s.unmatched(err)
		return pos
	}
	if end == span.NotFound {
		return pos
	}
	s.doc.Add(parent, document.Attribute, pos+2, end-2)
	return end
}

// templateParameters consumes a <...> block. A '<' with no '>' after it is
// left for symbol to emit as an operator.
func (s *scanner) templateParameters(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	end, err := span.ParseSection(pos, text, "<", ">")
	if err != nil || end == span.NotFound {
		return pos
	}
	s.doc.Add(parent, document.TemplateParameters, pos+1, end-1)
	return end
}

func (s *scanner) keywords(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	if span.IsEnd(pos, text) {
		return pos
	}
	end := span.IndexAny(text, pos, whitespace)
	if end == span.NotFound {
		end = len(text)
	}
	if !IsKeyword(text[pos:end]) {
		return pos
	}
	s.doc.Add(parent, document.Keyword, pos, end)
	return end
}

func (s *scanner) functionParameters(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	end, err := span.ParseSection(pos, text, "(", ")")
	if err != nil {
		s.unmatched(err)
		return pos
	}
	if end == span.NotFound {
		return pos
	}
	s.doc.Add(parent, document.FunctionParameters, pos+1, end-1)
	return end
}

// symbol consumes a token up to whitespace or one of ( < [. A delimiter that
// could not open a section becomes a one-byte operator.
func (s *scanner) symbol(parent document.NodeID, pos int, text string) int {
	pos = span.SkipWhitespace(pos, text)
	if span.IsEnd(pos, text) {
		return pos
	}
	end := span.IndexAny(text, pos, symbolDelimiter)
	if end == span.NotFound {
		end = len(text)
	}
	if end == pos {
		s.doc.Add(parent, document.Operator, pos, pos+1)
		return pos + 1
	}
	s.doc.Add(parent, document.Symbol, pos, end)
	return end
}

func hasPrefixAt(text string, pos int, prefix string) bool {
	return pos+len(prefix) <= len(text) && text[pos:pos+len(prefix)] == prefix
}
