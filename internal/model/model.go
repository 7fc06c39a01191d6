// Package model defines core data structures for ovdmap.
package model

import "fmt"

// ScopeType classifies a brace-delimited scope by the keyword in its preface.
type ScopeType string

const (
	ClassScope     ScopeType = "class"
	NamespaceScope ScopeType = "namespace"
	UnknownScope   ScopeType = "unknown"
)

// UnknownScopeName is the name given to scopes that are neither a class nor
// a namespace, including the file-level scope.
const UnknownScopeName = "::"

// Attribute is the set of ovd tags found in one attribute block.
type Attribute uint8

const (
	AttrCallable Attribute = 1 << iota
	AttrDefinition
	AttrVariable

	AttrNone Attribute = 0
)

// Attribute tag vocabulary.
const (
	TagCallable = "ovd::callable"
	TagDefined  = "ovd::defined"
	TagVariable = "ovd::variable"
)

func (a Attribute) HasCallable() bool   { return a&AttrCallable != 0 }
func (a Attribute) HasDefinition() bool { return a&AttrDefinition != 0 }
func (a Attribute) HasVariable() bool   { return a&AttrVariable != 0 }
func (a Attribute) IsNone() bool        { return a == AttrNone }

func (a Attribute) String() string {
	if a.IsNone() {
		return "none"
	}
	var s string
	add := func(tag string) {
		if s != "" {
			s += ","
		}
		s += tag
	}
	if a.HasCallable() {
		add(TagCallable)
	}
	if a.HasDefinition() {
		add(TagDefined)
	}
	if a.HasVariable() {
		add(TagVariable)
	}
	return s
}

// Variable is a typed declaration with no parameter list and no body.
type Variable struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// Callable is a declaration with a parenthesized parameter list.
type Callable struct {
	Name       string     `yaml:"name"`
	Parameters []Variable `yaml:"parameters"`
	ReturnType string     `yaml:"return_type"`
}

// Definition is a callable selected for definition downstream. Callees is
// always empty for now.
type Definition struct {
	Callable Callable `yaml:"callable"`
	Callees  []string `yaml:"callees"`
}

// Scope is the declaration model derived from one scope node. Node is the
// document node index; the file-level scope uses the root node.
type Scope struct {
	Node        int          `yaml:"-"`
	Type        ScopeType    `yaml:"type"`
	Name        string       `yaml:"name"`
	Offset      int          `yaml:"offset"`
	Line        int          `yaml:"line"`
	Variables   []Variable   `yaml:"variables,omitempty"`
	Callables   []Callable   `yaml:"callables,omitempty"`
	Definitions []Definition `yaml:"definitions,omitempty"`
}

// Empty reports whether the scope produced no declarations.
func (s *Scope) Empty() bool {
	return len(s.Variables) == 0 && len(s.Callables) == 0 && len(s.Definitions) == 0
}

// DiagnosticKind names a class of problem found while scanning.
type DiagnosticKind string

const (
	MalformedDelimiter DiagnosticKind = "malformed-delimiter"
	AttributeShape     DiagnosticKind = "attribute-shape"
	Unterminated       DiagnosticKind = "unterminated"
)

// Diagnostic is a recoverable problem keyed to a byte offset in the source.
type Diagnostic struct {
	Kind    DiagnosticKind `yaml:"kind"`
	Offset  int            `yaml:"offset"`
	Line    int            `yaml:"line"`
	Message string         `yaml:"message"`

	// Open is the unmatched opening token of a malformed-delimiter diagnostic.
	Open string `yaml:"open,omitempty"`
}

func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", d.Line, d.Kind, d.Message)
	}
	return fmt.Sprintf("offset %d: %s: %s", d.Offset, d.Kind, d.Message)
}

// Include is a #include directive found in a file.
type Include struct {
	Path   string `yaml:"path"`
	System bool   `yaml:"system,omitempty"`
	Line   int    `yaml:"line"`
}

// UntaggedKind is the syntactic kind of an untagged declaration.
type UntaggedKind string

const (
	UntaggedFunction UntaggedKind = "function"
	UntaggedField    UntaggedKind = "field"
)

// Untagged is a declaration that carries no ovd attribute.
type Untagged struct {
	Name string       `yaml:"name"`
	Kind UntaggedKind `yaml:"kind"`
	Line int          `yaml:"line"`
}

// FileInfo holds the extracted model for a single source file.
type FileInfo struct {
	Path        string       `yaml:"path"`
	Language    string       `yaml:"language"`
	Scopes      []Scope      `yaml:"scopes,omitempty"`
	Includes    []Include    `yaml:"includes,omitempty"`
	Diagnostics []Diagnostic `yaml:"diagnostics,omitempty"`
	Untagged    []Untagged   `yaml:"untagged,omitempty"`
	Rank        float64      `yaml:"rank"`
}

// Dependency represents an edge in the include graph:
// Source includes Target.
type Dependency struct {
	Source   string   `yaml:"source"`
	Target   string   `yaml:"target"`
	Includes []string `yaml:"includes"`
}

// RepoMap is the complete analyzed repository map, ready for serialization.
type RepoMap struct {
	RepoName     string       `yaml:"repo"`
	Root         string       `yaml:"root"`
	Files        []FileInfo   `yaml:"files"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`

	// Cycles lists groups of files that include each other, directly or
	// transitively. Each group is sorted.
	Cycles [][]string `yaml:"cycles,omitempty"`
}
