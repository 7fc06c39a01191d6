// Package graph builds the #include dependency graph and computes PageRank.
package graph

import (
	"errors"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"sort"
	"strings"

	dgraph "github.com/dominikbraun/graph"

	"github.com/phobologic/ovdmap/internal/model"
)

// BuildGraph resolves quoted #include directives against the scanned files
// and returns one dependency per (includer, included) pair. System includes
// and includes that match no scanned file produce no edge.
func BuildGraph(fileInfos []model.FileInfo) []model.Dependency {
	idx := newIndex(fileInfos)

	type edgeKey struct{ src, tgt string }
	edgeIncludes := make(map[edgeKey][]string)

	for i := range fileInfos {
		fi := &fileInfos[i]
		for _, inc := range fi.Includes {
			if inc.System {
				continue
			}
			target := idx.resolve(fi.Path, inc.Path)
			if target == "" || target == fi.Path {
				continue // unresolved or self-include
			}
			key := edgeKey{fi.Path, target}
			if !contains(edgeIncludes[key], inc.Path) {
				edgeIncludes[key] = append(edgeIncludes[key], inc.Path)
			}
		}
	}

	var deps []model.Dependency
	for key, incs := range edgeIncludes {
		deps = append(deps, model.Dependency{
			Source:   key.src,
			Target:   key.tgt,
			Includes: incs,
		})
	}

	// Sort for deterministic output
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// Cycles returns the include cycles among deps: every strongly connected
// component with more than one file. Files in a cycle are sorted, and cycles
// are ordered by their first file.
func Cycles(deps []model.Dependency) ([][]string, error) {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed())
	for _, d := range deps {
		for _, v := range []string{d.Source, d.Target} {
			if err := g.AddVertex(v); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("adding %s: %w", v, err)
			}
		}
		if err := g.AddEdge(d.Source, d.Target); err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("adding edge %s -> %s: %w", d.Source, d.Target, err)
		}
	}

	components, err := dgraph.StronglyConnectedComponents(g)
	if err != nil {
		return nil, fmt.Errorf("finding cycles: %w", err)
	}

	var cycles [][]string
	for _, c := range components {
		if len(c) < 2 {
			continue
		}
		sort.Strings(c)
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i][0] < cycles[j][0]
	})
	return cycles, nil
}

// index maps slash-separated paths and base names to scanned files.
type index struct {
	paths  map[string]string              // slash path → file path
	byBase map[string]map[string]struct{} // base name → slash paths
}

func newIndex(fileInfos []model.FileInfo) *index {
	idx := &index{
		paths:  make(map[string]string, len(fileInfos)),
		byBase: make(map[string]map[string]struct{}),
	}
	for i := range fileInfos {
		p := filepath.ToSlash(fileInfos[i].Path)
		idx.paths[p] = fileInfos[i].Path
		base := path.Base(p)
		if idx.byBase[base] == nil {
			idx.byBase[base] = make(map[string]struct{})
		}
		idx.byBase[base][p] = struct{}{}
	}
	return idx
}

// resolve finds the file an include refers to: relative to the including
// file, then relative to the root, then the only file whose path ends with
// the include path. It returns "" when none or several match.
func (idx *index) resolve(from, include string) string {
	include = path.Clean(strings.ReplaceAll(include, "\\", "/"))

	dir := path.Dir(filepath.ToSlash(from))
	if p, ok := idx.paths[path.Join(dir, include)]; ok {
		return p
	}
	if p, ok := idx.paths[include]; ok {
		return p
	}

	var match string
	for _, candidate := range sortedKeys(idx.byBase[path.Base(include)]) {
		if candidate != include && !strings.HasSuffix(candidate, "/"+include) {
			continue
		}
		if match != "" {
			return "" // ambiguous
		}
		match = candidate
	}
	if match == "" {
		return ""
	}
	return idx.paths[match]
}

// Rank applies PageRank to fileInfos and sorts them by rank descending.
// Files included by many others rank highest.
func Rank(fileInfos []model.FileInfo, deps []model.Dependency) {
	if len(fileInfos) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(fileInfos))
		for i := range fileInfos {
			fileInfos[i].Rank = uniform
		}
		return
	}

	// Build adjacency for PageRank
	// Edge from source to target means source includes target.
	// Count edges per (source, target) pair.
	outEdges := make(map[string][]string) // node → list of targets (with repeats for multi-edges)
	outDegree := make(map[string]int)     // total out-edges per node
	nodes := make(map[string]struct{})

	for i := range fileInfos {
		nodes[fileInfos[i].Path] = struct{}{}
	}

	for _, d := range deps {
		// Each include directive is an edge
		for range d.Includes {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range fileInfos {
		fileInfos[i].Rank = ranks[fileInfos[i].Path]
	}

	sort.SliceStable(fileInfos, func(i, j int) bool {
		return fileInfos[i].Rank > fileInfos[j].Rank
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
