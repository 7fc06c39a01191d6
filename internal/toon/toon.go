// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/ovdmap/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a RepoMap into TOON format. The cycles, diagnostics and
// untagged tables are emitted only when non-empty.
func Encode(rm *model.RepoMap) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("repo: %s", encodeValue(rm.RepoName)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(rm.Root)))

	var fileRows [][]string
	for i := range rm.Files {
		fi := &rm.Files[i]
		fileRows = append(fileRows, []string{
			fi.Path,
			fi.Language,
			fmt.Sprintf("%.4f", fi.Rank),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "rank"}, fileRows))

	var scopeRows, varRows, callRows, defRows [][]string
	for i := range rm.Files {
		fi := &rm.Files[i]
		for j := range fi.Scopes {
			sc := &fi.Scopes[j]
			scopeRows = append(scopeRows, []string{
				fi.Path,
				string(sc.Type),
				sc.Name,
				strconv.Itoa(sc.Line),
			})
			for _, v := range sc.Variables {
				varRows = append(varRows, []string{fi.Path, sc.Name, v.Type, v.Name})
			}
			for _, c := range sc.Callables {
				callRows = append(callRows, []string{fi.Path, sc.Name, c.Name, c.ReturnType, parameters(c.Parameters)})
			}
			for _, d := range sc.Definitions {
				defRows = append(defRows, []string{
					fi.Path,
					sc.Name,
					d.Callable.Name,
					d.Callable.ReturnType,
					parameters(d.Callable.Parameters),
					strings.Join(d.Callees, " "),
				})
			}
		}
	}
	parts = append(parts, formatTabular("scopes", []string{"file", "type", "name", "line"}, scopeRows))
	parts = append(parts, formatTabular("variables", []string{"file", "scope", "type", "name"}, varRows))
	parts = append(parts, formatTabular("callables", []string{"file", "scope", "name", "return_type", "parameters"}, callRows))
	parts = append(parts, formatTabular("definitions", []string{"file", "scope", "name", "return_type", "parameters", "callees"}, defRows))

	var depRows [][]string
	for i := range rm.Dependencies {
		d := &rm.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Includes, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "includes"}, depRows))

	if len(rm.Cycles) > 0 {
		var cycleRows [][]string
		for _, c := range rm.Cycles {
			cycleRows = append(cycleRows, []string{strconv.Itoa(len(c)), strings.Join(c, " ")})
		}
		parts = append(parts, formatTabular("cycles", []string{"size", "files"}, cycleRows))
	}

	var diagRows, untaggedRows [][]string
	for i := range rm.Files {
		fi := &rm.Files[i]
		for _, d := range fi.Diagnostics {
			diagRows = append(diagRows, []string{fi.Path, string(d.Kind), strconv.Itoa(d.Line), d.Message})
		}
		for _, u := range fi.Untagged {
			untaggedRows = append(untaggedRows, []string{fi.Path, u.Name, string(u.Kind), strconv.Itoa(u.Line)})
		}
	}
	if len(diagRows) > 0 {
		parts = append(parts, formatTabular("diagnostics", []string{"file", "kind", "line", "message"}, diagRows))
	}
	if len(untaggedRows) > 0 {
		parts = append(parts, formatTabular("untagged", []string{"file", "name", "kind", "line"}, untaggedRows))
	}

	return strings.Join(parts, "\n")
}

// parameters renders a parameter list as "type name, type name".
func parameters(params []model.Variable) string {
	rendered := make([]string, len(params))
	for i, p := range params {
		rendered[i] = strings.TrimSpace(p.Type + " " + p.Name)
	}
	return strings.Join(rendered, ", ")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
