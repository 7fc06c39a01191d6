// Package ranking selects and filters files of a repo map.
package ranking

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/phobologic/ovdmap/internal/model"
)

// SelectFiles returns a new RepoMap with only the top-ranked files.
// If maxFiles is <= 0 or >= len(files), all files are returned.
func SelectFiles(rm *model.RepoMap, maxFiles int) *model.RepoMap {
	if maxFiles <= 0 || maxFiles >= len(rm.Files) {
		return rm
	}

	selected := rm.Files[:maxFiles]
	selectedPaths := make(map[string]struct{}, maxFiles)
	for i := range selected {
		selectedPaths[selected[i].Path] = struct{}{}
	}

	var deps []model.Dependency
	for i := range rm.Dependencies {
		d := &rm.Dependencies[i]
		_, srcOK := selectedPaths[d.Source]
		_, tgtOK := selectedPaths[d.Target]
		if srcOK && tgtOK {
			deps = append(deps, *d)
		}
	}

	var cycles [][]string
	for _, c := range rm.Cycles {
		all := true
		for _, p := range c {
			if _, ok := selectedPaths[p]; !ok {
				all = false
				break
			}
		}
		if all {
			cycles = append(cycles, c)
		}
	}

	return &model.RepoMap{
		RepoName:     rm.RepoName,
		Root:         rm.Root,
		Files:        selected,
		Dependencies: deps,
		Cycles:       cycles,
	}
}

// FilterByName returns a new RepoMap narrowed to declarations whose name
// contains substr (case-insensitive). A scope whose own name matches is kept
// whole; other scopes keep only their matching variables, callables and
// definitions and are dropped when nothing matches. Dependency edges
// touching a surviving file are kept.
func FilterByName(rm *model.RepoMap, substr string) *model.RepoMap {
	lower := strings.ToLower(substr)
	match := func(name string) bool {
		return strings.Contains(strings.ToLower(name), lower)
	}

	matchedFiles := make(map[string]struct{})
	var files []model.FileInfo
	for i := range rm.Files {
		fi := rm.Files[i]
		var scopes []model.Scope
		for _, sc := range fi.Scopes {
			if sc.Type != model.UnknownScope && match(sc.Name) {
				scopes = append(scopes, sc)
				continue
			}
			if narrowed, ok := narrowScope(sc, match); ok {
				scopes = append(scopes, narrowed)
			}
		}
		if len(scopes) == 0 {
			continue
		}
		fi.Scopes = scopes
		files = append(files, fi)
		matchedFiles[fi.Path] = struct{}{}
	}

	return &model.RepoMap{
		RepoName:     rm.RepoName,
		Root:         rm.Root,
		Files:        files,
		Dependencies: touching(rm.Dependencies, matchedFiles),
		Cycles:       cyclesTouching(rm.Cycles, matchedFiles),
	}
}

func narrowScope(sc model.Scope, match func(string) bool) (model.Scope, bool) {
	var (
		vars  []model.Variable
		calls []model.Callable
		defs  []model.Definition
	)
	for _, v := range sc.Variables {
		if match(v.Name) {
			vars = append(vars, v)
		}
	}
	for _, c := range sc.Callables {
		if match(c.Name) {
			calls = append(calls, c)
		}
	}
	for _, d := range sc.Definitions {
		if match(d.Callable.Name) {
			defs = append(defs, d)
		}
	}
	sc.Variables, sc.Callables, sc.Definitions = vars, calls, defs
	return sc, !sc.Empty()
}

// FilterByFile returns a new RepoMap containing only files whose path
// contains substr (case-insensitive), with all dependency edges touching
// those files. A pattern holding glob metacharacters is matched as a glob
// against the whole slash-separated path instead.
func FilterByFile(rm *model.RepoMap, substr string) *model.RepoMap {
	match := pathMatcher(substr)

	matchedFiles := make(map[string]struct{})
	var files []model.FileInfo
	for i := range rm.Files {
		if match(rm.Files[i].Path) {
			matchedFiles[rm.Files[i].Path] = struct{}{}
			files = append(files, rm.Files[i])
		}
	}

	return &model.RepoMap{
		RepoName:     rm.RepoName,
		Root:         rm.Root,
		Files:        files,
		Dependencies: touching(rm.Dependencies, matchedFiles),
		Cycles:       cyclesTouching(rm.Cycles, matchedFiles),
	}
}

// pathMatcher compiles pattern as a glob when it has glob metacharacters and
// compiles cleanly, else as a case-insensitive substring.
func pathMatcher(pattern string) func(string) bool {
	if strings.ContainsAny(pattern, "*?[{") {
		if g, err := glob.Compile(pattern, '/'); err == nil {
			return func(path string) bool {
				return g.Match(filepath.ToSlash(path))
			}
		}
	}
	lower := strings.ToLower(pattern)
	return func(path string) bool {
		return strings.Contains(strings.ToLower(path), lower)
	}
}

func cyclesTouching(all [][]string, paths map[string]struct{}) [][]string {
	var cycles [][]string
	for _, c := range all {
		for _, p := range c {
			if _, ok := paths[p]; ok {
				cycles = append(cycles, c)
				break
			}
		}
	}
	return cycles
}

func touching(all []model.Dependency, paths map[string]struct{}) []model.Dependency {
	var deps []model.Dependency
	for i := range all {
		d := &all[i]
		_, srcOK := paths[d.Source]
		_, tgtOK := paths[d.Target]
		if srcOK || tgtOK {
			deps = append(deps, *d)
		}
	}
	return deps
}
