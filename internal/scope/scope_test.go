package scope

import (
	"errors"
	"testing"

	"github.com/phobologic/ovdmap/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		preface  string
		wantType model.ScopeType
		wantName string
	}{
		{"class", "class Widget", model.ClassScope, "Widget"},
		{"class trailing space", "class Widget ", model.ClassScope, "Widget"},
		{"class with base", "class Widget : public Base ", model.ClassScope, "Widget"},
		{"class with base no space", "class Derived: Base", model.ClassScope, "Derived"},
		{"enum class", "enum class Color ", model.ClassScope, "Color"},
		{"template class", "template <class T> class Box ", model.ClassScope, "Box"},
		{"template struct", "template <class T> struct Box ", model.UnknownScope, "::"},
		{"namespace", "namespace ovd ", model.NamespaceScope, "ovd"},
		{"nested namespace", "namespace a::b ", model.NamespaceScope, "a::b"},
		{"anonymous namespace", "namespace ", model.NamespaceScope, ""},
		{"class wins over namespace", "namespace x class Y", model.ClassScope, "Y"},
		{"struct", "struct S ", model.UnknownScope, "::"},
		{"function", "[[ovd::callable]] int classify(int x) ", model.UnknownScope, "::"},
		{"empty", "", model.UnknownScope, "::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			typ, name := Classify(tt.preface)
			if typ != tt.wantType || name != tt.wantName {
				t.Errorf("Classify(%q) = %q, %q; want %q, %q", tt.preface, typ, name, tt.wantType, tt.wantName)
			}
		})
	}
}

func TestParseAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want model.Attribute
	}{
		{"ovd::variable", model.AttrVariable},
		{"ovd::callable", model.AttrCallable},
		{"ovd::defined", model.AttrDefinition},
		{" ovd::callable , ovd::defined ", model.AttrCallable | model.AttrDefinition},
		{"ovd::variable,ovd::foo", model.AttrVariable},
		{"OVD::callable", model.AttrNone},
		{"ovd::foo", model.AttrNone},
		{"nodiscard", model.AttrNone},
		{"", model.AttrNone},
	}

	for _, tt := range tests {
		if got := ParseAttributes(tt.in); got != tt.want {
			t.Errorf("ParseAttributes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheckShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attrs   model.Attribute
		params  bool
		body    bool
		wantErr bool
	}{
		{"variable ok", model.AttrVariable, false, false, false},
		{"variable with params", model.AttrVariable, true, false, true},
		{"variable with body", model.AttrVariable, false, true, true},
		{"defined ok", model.AttrDefinition, true, false, false},
		{"defined without params", model.AttrDefinition, false, false, true},
		{"defined with body", model.AttrDefinition, true, true, true},
		{"callable declaration", model.AttrCallable, true, false, false},
		{"callable with body", model.AttrCallable, true, true, false},
		{"callable without params", model.AttrCallable, false, false, true},
		{"none", model.AttrNone, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckShape(tt.attrs, tt.params, tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckShape = %v, wantErr %v", err, tt.wantErr)
			}
			var se *ShapeError
			if err != nil && !errors.As(err, &se) {
				t.Errorf("error %T is not *ShapeError", err)
			}
		})
	}
}

func TestParseTypeAndName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantType string
		wantName string
	}{
		{"int x", "int", "x"},
		{"  float   ratio  ", "float", "ratio"},
		{"std::string name", "std::string", "name"},
		{"Widget* w", "Widget", "w"},
		{"Widget *w", "Widget", "w"},
		{"int & ref", "int", "ref"},
		{"const char* s", "const", "char* s"},
		{"int", "int", ""},
		{"int*", "int", ""},
		{"", "", ""},
		{"   ", "", ""},
	}

	for _, tt := range tests {
		typ, name := ParseTypeAndName(tt.in)
		if typ != tt.wantType || name != tt.wantName {
			t.Errorf("ParseTypeAndName(%q) = %q, %q; want %q, %q", tt.in, typ, name, tt.wantType, tt.wantName)
		}
	}
}

func TestParseParameters(t *testing.T) {
	t.Parallel()

	got := ParseParameters(" int a, const Widget& w ,float f")
	want := []model.Variable{{Type: "int", Name: "a"}, {Type: "const", Name: "Widget& w"}, {Type: "float", Name: "f"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("param %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := ParseParameters(""); len(got) != 0 {
		t.Errorf("empty list = %v", got)
	}
	if got := ParseParameters("  "); len(got) != 0 {
		t.Errorf("blank list = %v", got)
	}
	if got := ParseParameters("int a,"); len(got) != 1 || got[0].Name != "a" {
		t.Errorf("trailing comma = %v", got)
	}
}

func TestExtractVariable(t *testing.T) {
	t.Parallel()

	decls, diags := Extract(" [[ovd::variable]] int x; ", 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(decls.Variables) != 1 || decls.Variables[0] != (model.Variable{Type: "int", Name: "x"}) {
		t.Errorf("variables = %+v", decls.Variables)
	}
	if len(decls.Callables) != 0 || len(decls.Definitions) != 0 {
		t.Errorf("unexpected callables/definitions: %+v", decls)
	}
}

func TestExtractCallableWithBody(t *testing.T) {
	t.Parallel()

	decls, diags := Extract("[[ovd::callable]] int add(int a, int b) { return a+b; }", 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(decls.Callables) != 1 {
		t.Fatalf("callables = %+v", decls.Callables)
	}
	c := decls.Callables[0]
	if c.Name != "add" || c.ReturnType != "int" {
		t.Errorf("callable = %+v", c)
	}
	want := []model.Variable{{Type: "int", Name: "a"}, {Type: "int", Name: "b"}}
	if len(c.Parameters) != 2 || c.Parameters[0] != want[0] || c.Parameters[1] != want[1] {
		t.Errorf("parameters = %+v", c.Parameters)
	}
	if len(decls.Definitions) != 0 || len(decls.Variables) != 0 {
		t.Errorf("unexpected declarations: %+v", decls)
	}
}

func TestExtractDefinition(t *testing.T) {
	t.Parallel()

	decls, diags := Extract("[[ovd::defined]] void run(int x);", 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(decls.Definitions) != 1 {
		t.Fatalf("definitions = %+v", decls.Definitions)
	}
	d := decls.Definitions[0]
	if d.Callable.Name != "run" || d.Callable.ReturnType != "void" {
		t.Errorf("definition = %+v", d)
	}
	if len(d.Callable.Parameters) != 1 || d.Callable.Parameters[0] != (model.Variable{Type: "int", Name: "x"}) {
		t.Errorf("parameters = %+v", d.Callable.Parameters)
	}
	if d.Callees == nil || len(d.Callees) != 0 {
		t.Errorf("callees = %#v, want empty", d.Callees)
	}
	if len(decls.Callables) != 0 {
		t.Errorf("defined-only tag should not add a callable: %+v", decls.Callables)
	}
}

func TestExtractDefinitionWithBodyReported(t *testing.T) {
	t.Parallel()

	body := "[[ovd::defined]] void run(int x) { x++; } [[ovd::variable]] int after;"
	decls, diags := Extract(body, 40)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v", diags)
	}
	if diags[0].Kind != model.AttributeShape || diags[0].Offset != 40 {
		t.Errorf("diagnostic = %+v", diags[0])
	}
	if len(decls.Definitions) != 0 {
		t.Errorf("invalid definition kept: %+v", decls.Definitions)
	}
	if len(decls.Variables) != 1 || decls.Variables[0].Name != "after" {
		t.Errorf("scan did not continue: %+v", decls.Variables)
	}
}

func TestExtractCallableAndDefined(t *testing.T) {
	t.Parallel()

	decls, _ := Extract("[[ovd::callable, ovd::defined]] Widget* make();", 0)
	if len(decls.Callables) != 1 || len(decls.Definitions) != 1 {
		t.Fatalf("decls = %+v", decls)
	}
	if decls.Callables[0].Name != "make" || decls.Callables[0].ReturnType != "Widget" {
		t.Errorf("callable = %+v", decls.Callables[0])
	}
	if len(decls.Callables[0].Parameters) != 0 {
		t.Errorf("parameters = %+v", decls.Callables[0].Parameters)
	}
	if decls.Definitions[0].Callable.Name != "make" {
		t.Errorf("definition = %+v", decls.Definitions[0])
	}
}

func TestExtractUnknownTagDropped(t *testing.T) {
	t.Parallel()

	decls, diags := Extract("[[ovd::foo]] int x; [[ovd::variable]] float y;", 0)
	if len(diags) != 0 {
		t.Fatalf("unknown tag should not be reported: %v", diags)
	}
	if len(decls.Variables) != 1 || decls.Variables[0] != (model.Variable{Type: "float", Name: "y"}) {
		t.Errorf("variables = %+v", decls.Variables)
	}
	if len(decls.Callables) != 0 || len(decls.Definitions) != 0 {
		t.Errorf("unexpected declarations: %+v", decls)
	}
}

func TestExtractShapeMismatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"variable with params", "[[ovd::variable]] int f(int a);"},
		{"variable with body", "[[ovd::variable]] int f { }"},
		{"callable without params", "[[ovd::callable]] int x;"},
		{"defined without params", "[[ovd::defined]] int x;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decls, diags := Extract(tt.body+" [[ovd::variable]] int ok;", 0)
			if len(diags) != 1 || diags[0].Kind != model.AttributeShape {
				t.Fatalf("diagnostics = %v", diags)
			}
			if len(decls.Variables) != 1 || decls.Variables[0].Name != "ok" {
				t.Errorf("variables = %+v", decls.Variables)
			}
		})
	}
}

func TestExtractSkipsNestedBlocksAndComments(t *testing.T) {
	t.Parallel()

	body := `
	// [[ovd::variable]] int commented;
	/* [[ovd::variable]] int blocked; */
	class Inner { [[ovd::variable]] int hidden; };
	void plain() { [[ovd::variable]] int local; }
	[[ovd::variable]] int shown;
`
	decls, diags := Extract(body, 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(decls.Variables) != 1 || decls.Variables[0].Name != "shown" {
		t.Errorf("variables = %+v", decls.Variables)
	}
}

func TestExtractUnmatchedAttribute(t *testing.T) {
	t.Parallel()

	decls, diags := Extract("int a; [[ovd::variable int x;", 10)
	if len(diags) != 1 || diags[0].Kind != model.MalformedDelimiter || diags[0].Offset != 17 || diags[0].Open != "[[" {
		t.Fatalf("diagnostics = %v", diags)
	}
	if len(decls.Variables) != 0 {
		t.Errorf("variables = %+v", decls.Variables)
	}
}

func TestExtractUnmatchedOpeners(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		offset int
		open   string
	}{
		{"paren", "[[ovd::callable]] int f(int a;", 23, "("},
		{"brace", "[[ovd::callable]] void g() { int x;", 27, "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decls, diags := Extract(tt.body, 0)
			if len(diags) != 1 {
				t.Fatalf("diagnostics = %v", diags)
			}
			d := diags[0]
			if d.Kind != model.MalformedDelimiter || d.Offset != tt.offset || d.Open != tt.open {
				t.Errorf("diagnostic = %+v, want offset %d open %q", d, tt.offset, tt.open)
			}
			if len(decls.Callables) != 0 || len(decls.Definitions) != 0 {
				t.Errorf("declarations = %+v", decls)
			}
		})
	}
}

func TestExtractMissingTerminator(t *testing.T) {
	t.Parallel()

	decls, diags := Extract(" [[ovd::variable]] int last ", 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(decls.Variables) != 1 || decls.Variables[0] != (model.Variable{Type: "int", Name: "last"}) {
		t.Errorf("variables = %+v", decls.Variables)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	sc, diags := Build("class Widget ", " [[ovd::variable]] int x; [[ovd::callable]] void draw(); ", 100)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if sc.Type != model.ClassScope || sc.Name != "Widget" {
		t.Errorf("scope = %q %q", sc.Type, sc.Name)
	}
	if len(sc.Variables) != 1 || len(sc.Callables) != 1 || len(sc.Definitions) != 0 {
		t.Errorf("scope declarations = %+v", sc)
	}
	if sc.Callables[0].Name != "draw" || sc.Callables[0].ReturnType != "void" {
		t.Errorf("callable = %+v", sc.Callables[0])
	}
}
