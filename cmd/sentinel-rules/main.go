// Package main provides a CLI tool for validating sentinel YAML rules.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"sentinel/internal/rules"
	"sentinel/internal/schema"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "list":
		runListCmd(os.Args[2:])
	case "builtin":
		runBuiltinCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("sentinel-rules %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: sentinel-rules <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate  Validate YAML rule files or directories\n")
	fmt.Fprintf(os.Stderr, "  list      List rules found in files or directories\n")
	fmt.Fprintf(os.Stderr, "  builtin   List the built-in rule catalog\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func runValidateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show detailed rule information")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel-rules validate [--verbose] <path> [<path>...]\n")
		os.Exit(1)
	}

	os.Exit(runValidate(os.Stdout, paths, *verbose))
}

func runListCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"rules"}
	}

	os.Exit(runList(os.Stdout, paths))
}

func runBuiltinCmd(args []string) {
	fs := flag.NewFlagSet("builtin", flag.ExitOnError)
	stats := fs.Bool("stats", false, "Print counts by severity, category and scope")
	fs.Parse(args)

	os.Exit(runBuiltin(os.Stdout, *stats))
}

// runValidate checks each file on its own and then the combined set for
// duplicate IDs.
func runValidate(w io.Writer, paths []string, verbose bool) int {
	var totalFiles, validFiles, invalidFiles int
	var all []*rules.Rule

	for _, path := range paths {
		files, err := rules.CollectFiles(path)
		if err != nil {
			fmt.Fprintf(w, "  FAIL  %s: %v\n", path, err)
			invalidFiles++
			continue
		}
		for _, f := range files {
			totalFiles++
			rs, ok := validateFile(w, f, verbose)
			if !ok {
				invalidFiles++
				continue
			}
			validFiles++
			all = append(all, rs...)
		}
	}

	if _, _, err := rules.Load(all); err != nil {
		fmt.Fprintf(w, "  FAIL  %v\n", err)
		invalidFiles++
	}

	fmt.Fprintf(w, "\nResults: %d files checked, %d valid, %d invalid\n", totalFiles, validFiles, invalidFiles)

	if invalidFiles > 0 {
		return 1
	}
	return 0
}

func validateFile(w io.Writer, path string, verbose bool) ([]*rules.Rule, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "  FAIL  %s: %v\n", path, err)
		return nil, false
	}

	rs, err := rules.ParseRules(data)
	if err != nil {
		fmt.Fprintf(w, "  FAIL  %s: %v\n", path, err)
		return nil, false
	}

	// Load compiles every predicate, so a bad regex surfaces here.
	_, rejected, err := rules.Load(rs)
	if err != nil {
		fmt.Fprintf(w, "  FAIL  %s: %v\n", path, err)
		return nil, false
	}
	if len(rejected) > 0 {
		fmt.Fprintf(w, "  FAIL  %s\n", path)
		for _, r := range rejected {
			fmt.Fprintf(w, "        - %v\n", r)
		}
		return nil, false
	}

	fmt.Fprintf(w, "  OK    %s (%d rule(s))\n", path, len(rs))

	if verbose {
		for _, rule := range rs {
			fmt.Fprintf(w, "        - [%s] %s (category=%s, severity=%s)\n",
				rule.ID, rule.Name, rule.Category, rule.Severity)
			if rule.SWC != "" || rule.CWE != "" {
				fmt.Fprintf(w, "          refs: %s\n", strings.Join(nonEmpty(rule.SWC, rule.CWE), ", "))
			}
			if rule.Scope != "" {
				fmt.Fprintf(w, "          scope: %s\n", rule.Scope)
			}
			if len(rule.Requires) > 0 {
				fmt.Fprintf(w, "          requires: %s\n", strings.Join(rule.Requires, ", "))
			}
		}
	}

	return rs, true
}

func runList(w io.Writer, paths []string) int {
	for _, path := range paths {
		rs, err := rules.LoadFiles([]string{path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			continue
		}
		for _, rule := range rs {
			printRule(w, rule)
		}
	}
	return 0
}

func runBuiltin(w io.Writer, withStats bool) int {
	store, err := rules.Builtin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for r := range store.All() {
		printRule(w, r)
	}

	if withStats {
		st := store.Stats()
		fmt.Fprintf(w, "\n%d rules\n", st.Total)
		for _, sev := range schema.Severities {
			if n := st.BySeverity[sev]; n > 0 {
				fmt.Fprintf(w, "  %-10s %d\n", sev, n)
			}
		}
		cats := make([]string, 0, len(st.ByCategory))
		for c := range st.ByCategory {
			cats = append(cats, string(c))
		}
		slices.Sort(cats)
		for _, c := range cats {
			fmt.Fprintf(w, "  %-24s %d\n", c, st.ByCategory[schema.Category(c)])
		}
	}
	return 0
}

func printRule(w io.Writer, rule *rules.Rule) {
	fmt.Fprintf(w, "%-40s  %-20s  %-8s  %s\n",
		rule.ID, rule.Category, rule.Severity, rule.Name)
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
