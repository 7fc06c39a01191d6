// Package audit lists declarations in class, namespace and file bodies that
// are not opted in with an ovd attribute. It uses tree-sitter so that
// untagged declarations are found even where the ovd scanner skips them.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/ovdmap/internal/lang"
	"github.com/phobologic/ovdmap/internal/model"
)

// Bodies whose direct declarations are audited.
var containers = map[string]struct{}{
	"translation_unit":       {},
	"declaration_list":       {},
	"field_declaration_list": {},
}

var declarations = map[string]struct{}{
	"field_declaration":   {},
	"function_definition": {},
	"declaration":         {},
}

var names = map[string]struct{}{
	"identifier":           {},
	"field_identifier":     {},
	"qualified_identifier": {},
	"destructor_name":      {},
	"operator_name":        {},
}

const maxDeclaratorDepth = 16

// Untagged parses source and returns the untagged declarations ordered by
// line. The parser must be created for the correct language.
func Untagged(parser *sitter.Parser, source []byte) ([]model.Untagged, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	var out []model.Untagged
	collect(tree.RootNode(), source, &out)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Line < out[j].Line
	})
	return out, nil
}

func collect(n *sitter.Node, source []byte, out *[]model.Untagged) {
	_, container := containers[n.Type()]
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if _, ok := declarations[child.Type()]; ok && container {
			if u, ok := untagged(child, n, source); ok {
				*out = append(*out, u)
			}
		}
		// Function bodies hold statements, not members.
		if child.Type() == "compound_statement" {
			continue
		}
		collect(child, source, out)
	}
}

func untagged(decl, parent *sitter.Node, source []byte) (model.Untagged, bool) {
	// Attributes may be attached to the declaration or precede it, so look
	// at everything since the previous sibling.
	start := parent.StartByte()
	if prev := decl.PrevSibling(); prev != nil {
		start = prev.EndByte()
	}
	region := source[start:decl.EndByte()]
	if bytes.Contains(region, []byte("[[")) && bytes.Contains(region, []byte("ovd::")) {
		return model.Untagged{}, false
	}

	name, isFunc := declaratorName(decl.ChildByFieldName("declarator"), source)
	if name == "" {
		return model.Untagged{}, false
	}
	kind := model.UntaggedField
	if isFunc || decl.Type() == "function_definition" {
		kind = model.UntaggedFunction
	}
	return model.Untagged{
		Name: name,
		Kind: kind,
		Line: int(decl.StartPoint().Row) + 1,
	}, true
}

// declaratorName unwraps pointer, reference, init and function declarators
// down to the declared name.
func declaratorName(d *sitter.Node, source []byte) (name string, isFunc bool) {
	for depth := 0; d != nil && depth < maxDeclaratorDepth; depth++ {
		if _, ok := names[d.Type()]; ok {
			return lang.NodeText(d, source), isFunc
		}
		if d.Type() == "function_declarator" {
			isFunc = true
		}
		next := d.ChildByFieldName("declarator")
		if next == nil && d.NamedChildCount() > 0 {
			next = d.NamedChild(int(d.NamedChildCount()) - 1)
		}
		d = next
	}
	return "", isFunc
}
