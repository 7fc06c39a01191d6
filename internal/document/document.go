// Package document holds the node tree produced by scanning one source
// buffer. A Document owns every node in a single table; nodes refer to their
// parent and children by index.
package document

// Kind classifies a node's span of source text.
type Kind int

const (
	Symbol Kind = iota
	Comment
	Keyword
	Operator
	PreprocessorDirective
	Attribute
	FunctionParameters
	TemplateParameters
	Scope
	Expression
	File
	Unknown
)

var kindNames = [...]string{
	Symbol:                "symbol",
	Comment:               "comment",
	Keyword:               "keyword",
	Operator:              "operator",
	PreprocessorDirective: "preprocessor-directive",
	Attribute:             "attribute",
	FunctionParameters:    "function-parameters",
	TemplateParameters:    "template-parameters",
	Scope:                 "scope",
	Expression:            "expression",
	File:                  "document",
	Unknown:               "unknown",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// NodeID indexes a node in its Document.
type NodeID int

// NoParent is the parent of the root node.
const NoParent NodeID = -1

// Span is a half-open byte range [Start, End) of the source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// Node is a classified span of source text. Text shares memory with the
// document source.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	Start    int
	End      int
	Text     string

	// Set only for Scope nodes. Preface is the text before the opening
	// brace; Body excludes both braces.
	Preface Span
	Body    Span
}

// Document owns all nodes created while scanning one source buffer.
type Document struct {
	source string
	nodes  []Node
}

// New creates a document over source with a root node spanning all of it.
func New(source string) *Document {
	d := &Document{source: source}
	d.nodes = append(d.nodes, Node{
		ID:     0,
		Kind:   File,
		Parent: NoParent,
		Start:  0,
		End:    len(source),
		Text:   source,
	})
	return d
}

// Source returns the buffer the document was built from.
func (d *Document) Source() string { return d.source }

// Root returns the id of the document node.
func (d *Document) Root() NodeID { return 0 }

// Len returns the number of nodes, including the root.
func (d *Document) Len() int { return len(d.nodes) }

// Node returns a copy of the node with the given id.
func (d *Document) Node(id NodeID) Node { return d.nodes[id] }

// Text returns the source text of a span.
func (d *Document) Text(s Span) string { return d.source[s.Start:s.End] }

// Children returns the ids of a node's children in creation order.
func (d *Document) Children(id NodeID) []NodeID { return d.nodes[id].Children }

// Add appends a node covering [start, end) under parent and returns its id.
func (d *Document) Add(parent NodeID, kind Kind, start, end int) NodeID {
	id := NodeID(len(d.nodes))
	d.nodes = append(d.nodes, Node{
		ID:     id,
		Kind:   kind,
		Parent: parent,
		Start:  start,
		End:    end,
		Text:   d.source[start:end],
	})
	d.nodes[parent].Children = append(d.nodes[parent].Children, id)
	return id
}

// AddScope appends a scope node. The node covers preface through the
// closing brace; body excludes the braces.
func (d *Document) AddScope(parent NodeID, preface, body Span, end int) NodeID {
	id := d.Add(parent, Scope, preface.Start, end)
	d.nodes[id].Preface = preface
	d.nodes[id].Body = body
	return id
}

// NodesOfKind returns all nodes of the given kind in creation order.
func (d *Document) NodesOfKind(kind Kind) []Node {
	var out []Node
	for i := range d.nodes {
		if d.nodes[i].Kind == kind {
			out = append(out, d.nodes[i])
		}
	}
	return out
}

// Walk visits id and its descendants depth-first in child order. Returning
// false from fn skips the node's children.
func (d *Document) Walk(id NodeID, fn func(n *Node) bool) {
	n := &d.nodes[id]
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		d.Walk(c, fn)
	}
}
