package lang

import (
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	// Headers are registered as C++ since the ovd tags are C++ attributes.
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Extensions: []string{".h", ".hh", ".hpp", ".hxx", ".inl", ".ipp", ".cc", ".cpp", ".cxx"},
		lang:       cpp.GetLanguage(),
	}
	Languages["c"] = &Language{
		Name:       "c",
		Extensions: []string{".c"},
		lang:       c.GetLanguage(),
	}
}
