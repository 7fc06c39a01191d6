// Package parse scans a source buffer into a node tree and derives the
// declaration model of every scope in it.
package parse

import (
	"sort"
	"strings"

	"github.com/phobologic/ovdmap/internal/document"
	"github.com/phobologic/ovdmap/internal/model"
	"github.com/phobologic/ovdmap/internal/scan"
	"github.com/phobologic/ovdmap/internal/scope"
	"github.com/phobologic/ovdmap/internal/span"
)

// Result is everything extracted from one buffer. It is not modified after
// Source returns.
type Result struct {
	Document *document.Document

	// Global holds tagged declarations outside any brace block.
	Global model.Scope

	// Scopes has one entry per scope node, in node creation order.
	Scopes []model.Scope

	Includes    []model.Include
	Diagnostics []model.Diagnostic
}

// Source scans text and builds the declaration model. Problems never abort
// the scan; they are returned in Result.Diagnostics ordered by offset.
func Source(text string) *Result {
	doc := document.New(text)
	lines := newLineIndex(text)
	res := &Result{Document: doc}

	diags := scan.Block(doc, doc.Root(), 0, len(text))

	global, gd := scope.Build("", text, 0)
	global.Node = int(doc.Root())
	global.Line = 1
	res.Global = global
	diags = append(diags, gd...)

	for _, n := range doc.NodesOfKind(document.Scope) {
		sc, sd := scope.Build(doc.Text(n.Preface), doc.Text(n.Body), n.Body.Start)
		sc.Node = int(n.ID)
		sc.Offset = n.Start
		sc.Line = lines.line(n.Start)
		res.Scopes = append(res.Scopes, sc)
		diags = append(diags, sd...)
	}

	for _, n := range doc.NodesOfKind(document.PreprocessorDirective) {
		if inc, ok := parseInclude(n.Text); ok {
			inc.Line = lines.line(n.Start)
			res.Includes = append(res.Includes, inc)
		}
	}

	res.Diagnostics = dedupe(diags, lines)
	return res
}

// File scans source and returns the file model. Scopes that are neither a
// class nor a namespace are kept only when they declare something.
func File(path, language string, source []byte) model.FileInfo {
	res := Source(string(source))

	fi := model.FileInfo{
		Path:        path,
		Language:    language,
		Includes:    res.Includes,
		Diagnostics: res.Diagnostics,
	}
	if !res.Global.Empty() {
		fi.Scopes = append(fi.Scopes, res.Global)
	}
	for _, sc := range res.Scopes {
		if sc.Type != model.UnknownScope || !sc.Empty() {
			fi.Scopes = append(fi.Scopes, sc)
		}
	}
	return fi
}

// parseInclude reads the target of an #include directive.
func parseInclude(directive string) (model.Include, bool) {
	rest := strings.TrimLeft(directive[1:], " \t")
	if !strings.HasPrefix(rest, "include") {
		return model.Include{}, false
	}
	rest = strings.TrimLeft(rest[len("include"):], " \t")
	if rest == "" {
		return model.Include{}, false
	}

	var closer byte
	switch rest[0] {
	case '"':
		closer = '"'
	case '<':
		closer = '>'
	default:
		return model.Include{}, false
	}
	end := strings.IndexByte(rest[1:], closer)
	if end <= 0 {
		return model.Include{}, false
	}
	return model.Include{Path: rest[1 : end+1], System: closer == '>'}, true
}

// dedupe drops diagnostics reported twice for the same problem, fills in line
// numbers and orders them by offset.
func dedupe(diags []model.Diagnostic, lines lineIndex) []model.Diagnostic {
	type key struct {
		kind   model.DiagnosticKind
		offset int
	}
	seen := make(map[key]struct{}, len(diags))
	var out []model.Diagnostic
	for _, d := range diags {
		k := key{d.Kind, d.Offset}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		d.Line = lines.line(d.Offset)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	var nl lineIndex
	for pos := span.Index(text, 0, "\n"); pos != span.NotFound; pos = span.Index(text, pos+1, "\n") {
		nl = append(nl, pos)
	}
	return nl
}

func (l lineIndex) line(offset int) int {
	return sort.SearchInts(l, offset) + 1
}
