// ovdmap scans C and C++ sources for [[ovd::...]] annotated declarations
// and prints a repository map in TOON or YAML format.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/ovdmap/internal/audit"
	"github.com/phobologic/ovdmap/internal/config"
	"github.com/phobologic/ovdmap/internal/discover"
	"github.com/phobologic/ovdmap/internal/graph"
	"github.com/phobologic/ovdmap/internal/lang"
	"github.com/phobologic/ovdmap/internal/logger"
	"github.com/phobologic/ovdmap/internal/model"
	"github.com/phobologic/ovdmap/internal/parse"
	"github.com/phobologic/ovdmap/internal/ranking"
	"github.com/phobologic/ovdmap/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	maxFiles    int
	fileFilter  string
	nameFilter  string
	format      string
	languages   string
	audit       bool
	skipTests   bool
	cachePath   string
	maxFileSize int64
	configPath  string
	workers     int
	showVersion bool
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("ovdmap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "usage: ovdmap [flags] [path]\n       ovdmap init [flags] [dir]\n\npath is a directory (default .) or a single source file.\n\n")
		fs.PrintDefaults()
	}

	var opts options
	fs.IntVar(&opts.maxFiles, "n", 0, "maximum number of files to include")
	fs.IntVar(&opts.maxFiles, "max-files", 0, "maximum number of files to include")
	fs.StringVar(&opts.fileFilter, "f", "", "only files whose path contains this substring")
	fs.StringVar(&opts.fileFilter, "file", "", "only files whose path contains this substring")
	fs.StringVar(&opts.nameFilter, "s", "", "only declarations whose name contains this substring")
	fs.StringVar(&opts.nameFilter, "name", "", "only declarations whose name contains this substring")
	fs.StringVar(&opts.format, "format", config.FormatTOON, "output format: toon or yaml")
	fs.StringVar(&opts.languages, "lang", "", "comma-separated languages to scan (c, cpp)")
	fs.BoolVar(&opts.audit, "audit", false, "report declarations without an ovd tag")
	fs.BoolVar(&opts.skipTests, "skip-tests", false, "skip test sources")
	fs.StringVar(&opts.cachePath, "cache", "", "cache file path")
	fs.Int64Var(&opts.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")
	fs.StringVar(&opts.configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	fs.IntVar(&opts.workers, "workers", 0, "parallel parse workers (default GOMAXPROCS)")
	fs.BoolVar(&opts.showVersion, "V", false, "show version and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if opts.showVersion {
		_, _ = fmt.Fprintf(stdout, "ovdmap %s\n", version)
		return nil
	}

	target := "."
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}

	target, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	root := target
	if !info.IsDir() {
		root = filepath.Dir(target)
	}

	cfg, err := config.Load(root, opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(fs, cfg, &opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	log := logger.New(stderr, cfg.Log.Level, cfg.Log.Format)

	var files []discover.FileEntry
	if info.IsDir() {
		files, err = discover.Files(root, discover.Options{
			Languages:  cfg.Languages,
			Extensions: cfg.Extensions,
			Ignore:     cfg.Ignore,
			SkipTests:  cfg.SkipTests,
		})
		if err != nil {
			return fmt.Errorf("discovering files: %w", err)
		}
	} else {
		language := discover.Language(target, cfg.Extensions)
		if language == "" {
			return fmt.Errorf("%s: unsupported file type", target)
		}
		if len(cfg.Languages) > 0 && !slices.Contains(cfg.Languages, language) {
			return fmt.Errorf("%s: language %s is not enabled", target, language)
		}
		files = []discover.FileEntry{{Path: filepath.Base(target), Language: language}}
	}
	if len(files) == 0 {
		return fmt.Errorf("no parseable files found")
	}
	log.Debug("discovered files", "root", root, "count", len(files))

	// Filtered and YAML runs neither read nor write the cache.
	useCache := opts.cachePath != "" && opts.fileFilter == "" && opts.nameFilter == "" &&
		cfg.Format == config.FormatTOON

	var key string
	if useCache {
		key = cacheKey(cfg, files)
		if data, ok := readCache(opts.cachePath, key, root, files); ok {
			log.Debug("serving cached map", "path", opts.cachePath)
			_, _ = stdout.Write(data)
			return nil
		}
	}

	// Filter by size
	files = filterBySize(root, files, cfg.MaxFileSize, log)
	if len(files) == 0 {
		return fmt.Errorf("no parseable files found (all exceeded size limit)")
	}

	fileInfos, err := parseFilesConcurrent(context.Background(), root, files, cfg, log)
	if err != nil {
		return err
	}
	if len(fileInfos) == 0 {
		return fmt.Errorf("no files could be parsed")
	}

	// Build graph and rank
	deps := graph.BuildGraph(fileInfos)
	graph.Rank(fileInfos, deps)

	cycles, err := graph.Cycles(deps)
	if err != nil {
		log.WithError(err).Warn("include cycle detection failed")
	}
	for _, c := range cycles {
		log.Info("include cycle", "files", c)
	}

	rm := &model.RepoMap{
		RepoName:     filepath.Base(root),
		Root:         filepath.Base(root),
		Files:        fileInfos,
		Dependencies: deps,
		Cycles:       cycles,
	}

	if opts.fileFilter != "" {
		rm = ranking.FilterByFile(rm, opts.fileFilter)
	}
	if opts.nameFilter != "" {
		rm = ranking.FilterByName(rm, opts.nameFilter)
	}

	// Select top N files
	if cfg.MaxFiles > 0 {
		rm = ranking.SelectFiles(rm, cfg.MaxFiles)
	}

	output, err := encode(rm, cfg.Format)
	if err != nil {
		return err
	}

	// Write cache
	if useCache {
		if err := writeCache(opts.cachePath, key, output); err != nil {
			log.WithError(err).Warn("writing cache", "path", opts.cachePath)
		}
	}

	_, _ = fmt.Fprintln(stdout, output)
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *flag.FlagSet, cfg *config.Config, opts *options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n", "max-files":
			cfg.MaxFiles = opts.maxFiles
		case "format":
			cfg.Format = opts.format
		case "lang":
			cfg.Languages = splitList(opts.languages)
		case "audit":
			cfg.Audit = opts.audit
		case "skip-tests":
			cfg.SkipTests = opts.skipTests
		case "max-file-size":
			cfg.MaxFileSize = opts.maxFileSize
		case "workers":
			cfg.Workers = opts.workers
		}
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func encode(rm *model.RepoMap, format string) (string, error) {
	switch format {
	case config.FormatYAML:
		data, err := yaml.Marshal(rm)
		if err != nil {
			return "", fmt.Errorf("encoding yaml: %w", err)
		}
		return string(data), nil
	default:
		return toon.Encode(rm), nil
	}
}

const cacheHeader = "# ovdmap cache "

// cacheKey fingerprints every setting that shapes the output together with
// the discovered file set, so a cache written under other settings is stale.
func cacheKey(cfg *config.Config, files []discover.FileEntry) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\nmax_files=%d\nmax_file_size=%d\nformat=%s\naudit=%t\nskip_tests=%t\n",
		version, cfg.MaxFiles, cfg.MaxFileSize, cfg.Format, cfg.Audit, cfg.SkipTests)
	_, _ = fmt.Fprintf(h, "extensions=%q\nlanguages=%q\nignore=%q\n", cfg.Extensions, cfg.Languages, cfg.Ignore)
	for _, f := range files {
		_, _ = fmt.Fprintf(h, "%s\t%s\n", f.Path, f.Language)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// readCache returns the cached map when it was written under key and no
// source file has changed since.
func readCache(cachePath, key, root string, files []discover.FileEntry) ([]byte, bool) {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	cacheMtime := cacheInfo.ModTime()

	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			return nil, false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return nil, false
		}
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	header, body, ok := bytes.Cut(data, []byte("\n"))
	if !ok || string(header) != cacheHeader+key {
		return nil, false
	}
	return body, true
}

func writeCache(cachePath, key, output string) error {
	return os.WriteFile(cachePath, []byte(cacheHeader+key+"\n"+output+"\n"), 0o644)
}

func filterBySize(root string, files []discover.FileEntry, maxSize int64, log *logger.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > maxSize {
			log.WithFile(f.Path).Warn("skipped: file too large", "bytes", fi.Size(), "limit", maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// parserPool hands out tree-sitter parsers per language. A parser is used by
// one goroutine at a time.
type parserPool struct {
	pools map[string]*sync.Pool
}

func newParserPool() *parserPool {
	pp := &parserPool{pools: make(map[string]*sync.Pool, len(lang.Languages))}
	for name, l := range lang.Languages {
		pp.pools[name] = &sync.Pool{New: func() any { return l.NewParser() }}
	}
	return pp
}

func (pp *parserPool) get(language string) (*sitter.Parser, func()) {
	pool, ok := pp.pools[language]
	if !ok {
		return nil, func() {}
	}
	p := pool.Get().(*sitter.Parser)
	return p, func() { pool.Put(p) }
}

// parseFilesConcurrent scans files with a bounded worker group. Unreadable
// files are logged and dropped; the rest keep discovery order.
func parseFilesConcurrent(ctx context.Context, root string, files []discover.FileEntry, cfg *config.Config, log *logger.Logger) ([]model.FileInfo, error) {
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	var parsers *parserPool
	if cfg.Audit {
		parsers = newParserPool()
	}

	indexed := make([]model.FileInfo, len(files))
	valid := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			flog := log.WithFile(f.Path)

			source, err := os.ReadFile(filepath.Join(root, f.Path))
			if err != nil {
				flog.WithError(err).Warn("failed to read")
				return nil
			}

			fi := parse.File(f.Path, f.Language, source)
			for _, d := range fi.Diagnostics {
				flog.Debug("diagnostic", "kind", d.Kind, "line", d.Line, "message", d.Message)
			}

			if parsers != nil {
				p, release := parsers.get(f.Language)
				if p != nil {
					untagged, err := audit.Untagged(p, source)
					release()
					if err != nil {
						flog.WithError(err).Warn("audit failed")
					}
					fi.Untagged = untagged
				}
			}

			indexed[i] = fi
			valid[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parsing files: %w", err)
	}

	var fileInfos []model.FileInfo
	for i, v := range valid {
		if v {
			fileInfos = append(fileInfos, indexed[i])
		}
	}

	return fileInfos, nil
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-n": true, "--n": true,
	"-max-files": true, "--max-files": true,
	"-f": true, "--f": true,
	"-file": true, "--file": true,
	"-s": true, "--s": true,
	"-name": true, "--name": true,
	"-format": true, "--format": true,
	"-lang": true, "--lang": true,
	"-cache": true, "--cache": true,
	"-max-file-size": true, "--max-file-size": true,
	"-config": true, "--config": true,
	"-workers": true, "--workers": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
