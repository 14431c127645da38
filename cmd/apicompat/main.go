// Package main fails when a regenerated swagger document drops an endpoint
// or a documented response that API clients may rely on.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// apiDoc maps path -> method -> documented response codes.
type apiDoc map[string]map[string]map[string]struct{}

type rawDoc struct {
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type rawOperation struct {
	Responses map[string]yaml.Node `yaml:"responses"`
}

func main() {
	basePath := flag.String("base", "", "swagger document of the released API (yaml or json)")
	revisionPath := flag.String("revision", "", "regenerated swagger document")
	showAdded := flag.Bool("added", false, "also list operations the revision adds")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" || strings.TrimSpace(*revisionPath) == "" {
		fmt.Fprintln(os.Stderr, "usage: apicompat -base <path> -revision <path> [-added]")
		os.Exit(2)
	}

	base, err := loadDoc(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base document: %v\n", err)
		os.Exit(1)
	}
	revision, err := loadDoc(*revisionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision document: %v\n", err)
		os.Exit(1)
	}

	if *showAdded {
		for _, op := range added(base, revision) {
			fmt.Printf("+ %s\n", op)
		}
	}

	issues := breaking(base, revision)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("api compatibility check passed")
}

func loadDoc(path string) (apiDoc, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDoc(raw)
}

// parseDoc accepts swagger 2 and OpenAPI 3 documents; JSON parses as YAML.
func parseDoc(raw []byte) (apiDoc, error) {
	var doc rawDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	out := make(apiDoc, len(doc.Paths))
	for path, item := range doc.Paths {
		ops := make(map[string]map[string]struct{})
		for method, node := range item {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := supportedMethods[method]; !ok {
				continue
			}
			var op rawOperation
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			codes := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					codes[code] = struct{}{}
				}
			}
			ops[method] = codes
		}
		if len(ops) > 0 {
			out[path] = ops
		}
	}
	return out, nil
}

func breaking(base, revision apiDoc) []string {
	var issues []string

	for path, baseOps := range base {
		revOps, ok := revision[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseCodes := range baseOps {
			revCodes, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}

			for code := range baseCodes {
				if _, ok := revCodes[code]; !ok {
					issues = append(issues, fmt.Sprintf(
						"removed response code: %s %s -> %s",
						strings.ToUpper(method), path, strings.ToUpper(code),
					))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func added(base, revision apiDoc) []string {
	var ops []string
	for path, revOps := range revision {
		for method := range revOps {
			if _, ok := base[path][method]; !ok {
				ops = append(ops, strings.ToUpper(method)+" "+path)
			}
		}
	}
	sort.Strings(ops)
	return ops
}
