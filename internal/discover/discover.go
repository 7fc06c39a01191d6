// Package discover finds annotated C and C++ source files in a repository.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/ovdmap/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to repo root
	Language string
}

// Options narrows discovery.
type Options struct {
	// Languages keeps only files of the listed languages when non-empty.
	Languages []string
	// Extensions are extra file extensions scanned as C++.
	Extensions []string
	// Ignore holds gitignore-style patterns applied on top of the
	// repository's own ignore rules.
	Ignore []string
	// SkipTests drops files for which IsTestFile is true.
	SkipTests bool
}

var skipDirs = map[string]struct{}{
	".git":                {},
	".hg":                 {},
	".svn":                {},
	"node_modules":        {},
	"build":               {},
	"out":                 {},
	"cmake-build-debug":   {},
	"cmake-build-release": {},
	"CMakeFiles":          {},
	"third_party":         {},
	"vendor":              {},
	"bazel-out":           {},
}

// Files discovers scannable source files under root, sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[l] = struct{}{}
	}
	extra := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extra[strings.ToLower(ext)] = struct{}{}
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}
	var configured *ignore.GitIgnore
	if len(opts.Ignore) > 0 {
		configured = ignore.CompileIgnoreLines(opts.Ignore...)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if configured != nil && configured.MatchesPath(rel) {
			return nil
		}
		if opts.SkipTests && IsTestFile(rel) {
			return nil
		}

		langName := languageFor(filepath.Ext(name), extra)
		if langName == "" {
			return nil
		}

		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Language returns the language for a single file path, honouring extra
// extensions, or "" if the file is not scannable.
func Language(path string, extensions []string) string {
	extra := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extra[strings.ToLower(ext)] = struct{}{}
	}
	return languageFor(filepath.Ext(path), extra)
}

func languageFor(ext string, extra map[string]struct{}) string {
	if name := lang.ForExtension(ext); name != "" {
		return name
	}
	if _, ok := extra[strings.ToLower(ext)]; ok {
		return "cpp"
	}
	return ""
}

var testDirs = map[string]struct{}{
	"test":      {},
	"tests":     {},
	"testing":   {},
	"unittest":  {},
	"unittests": {},
}

// IsTestFile reports whether rel looks like test code: a file under a test
// directory, or one named *_test.*, *_unittest.*, *Test.* or test_*.
func IsTestFile(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[strings.ToLower(dir)]; ok {
			return true
		}
	}

	base := parts[len(parts)-1]
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	switch {
	case strings.HasSuffix(stem, "_test"), strings.HasSuffix(stem, "_unittest"):
		return true
	case strings.HasPrefix(stem, "test_"):
		return true
	case len(stem) > len("Test") && strings.HasSuffix(stem, "Test"):
		return true
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
