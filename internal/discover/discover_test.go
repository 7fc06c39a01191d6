package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverHeadersAndSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "widget.h", "class Widget {};")
	writeFile(t, dir, "src/widget.cpp", "#include \"widget.h\"")
	writeFile(t, dir, "src/legacy.c", "int x;")
	// Unregistered extension should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.h", "secret")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(entries), paths)
	}

	// Should be sorted
	want := []struct{ path, lang string }{
		{filepath.Join("src", "legacy.c"), "c"},
		{filepath.Join("src", "widget.cpp"), "cpp"},
		{"widget.h", "cpp"},
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].Language != w.lang {
			t.Errorf("entry %d = %+v, want %s (%s)", i, entries[i], w.path, w.lang)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.cpp", "int main();")
	writeFile(t, dir, "build/gen.h", "int g;")
	writeFile(t, dir, "third_party/lib.h", "int l;")
	writeFile(t, dir, ".hidden/secret.h", "int s;")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.cpp" {
		t.Errorf("expected main.cpp, got %q", entries[0].Path)
	}
}

func TestDiscoverLanguageFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "a.hpp", "")
	writeFile(t, dir, "b.cc", "")
	writeFile(t, dir, "c.c", "")

	entries, err := Files(dir, Options{Languages: []string{"cpp"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for cpp filter, got %d", len(entries))
	}

	entries, err = Files(dir, Options{Languages: []string{"python"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for python filter, got %d", len(entries))
	}
}

func TestDiscoverExtraExtensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "shapes.ovd", "")
	writeFile(t, dir, "shapes.h", "")

	entries, err := Files(dir, Options{Extensions: []string{".OVD"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Path != "shapes.h" || entries[1].Path != "shapes.ovd" {
		t.Errorf("entries = %+v", entries)
	}
	if entries[1].Language != "cpp" {
		t.Errorf("extra extension language = %q, want cpp", entries[1].Language)
	}
}

func TestDiscoverGitignoreAndConfiguredIgnore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "keep.h", "")
	writeFile(t, dir, "generated/skip.h", "")
	writeFile(t, dir, "mocks/mock_widget.h", "")

	entries, err := Files(dir, Options{Ignore: []string{"mocks/"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "keep.h" {
		t.Fatalf("entries = %+v, want only keep.h", entries)
	}
}

func TestDiscoverSkipTests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "widget.h", "")
	writeFile(t, dir, "widget_test.cpp", "")
	writeFile(t, dir, "tests/fixture.h", "")

	entries, err := Files(dir, Options{SkipTests: true})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "widget.h" {
		t.Fatalf("entries = %+v, want only widget.h", entries)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.h", "")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.h"), filepath.Join(dir, "link.h"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.h" {
		t.Errorf("expected real.h, got %q", entries[0].Path)
	}
}

func TestLanguage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path  string
		extra []string
		want  string
	}{
		{"a/widget.hpp", nil, "cpp"},
		{"legacy.c", nil, "c"},
		{"notes.md", nil, ""},
		{"shapes.ovd", []string{".ovd"}, "cpp"},
	}
	for _, tc := range cases {
		if got := Language(tc.path, tc.extra); got != tc.want {
			t.Errorf("Language(%q, %v) = %q, want %q", tc.path, tc.extra, got, tc.want)
		}
	}
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		// Test directory components
		{"tests/fixture.h", true},
		{"src/test/widget.cpp", true},
		{"lib/unittest/main.cc", true},
		// Filename patterns
		{"widget_test.cpp", true},
		{"widget_unittest.cc", true},
		{"test_widget.cpp", true},
		{"src/WidgetTest.cpp", true},
		// Production files
		{"src/widget.cpp", false},
		{"include/Test.h", false},
		{"contest.h", false},
		{"testing_utils.h", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got := IsTestFile(tc.path)
			if got != tc.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
