package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// Discover expands paths into scenario files. Directories are searched
// recursively for *.yaml and *.yml files; files are taken as given.
func Discover(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// RunFiles loads and runs each scenario file. A file that cannot be loaded
// or run counts as a failure; it does not stop the batch.
func RunFiles(ctx context.Context, paths []string) *SuiteResult {
	result := &SuiteResult{}
	for _, path := range paths {
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", err.Error())
			continue
		}
		run, err := RunContext(ctx, scenario)
		if err != nil {
			result.fail(path, scenario.Name, err.Error())
			continue
		}
		if !run.Pass {
			result.fail(path, scenario.Name, run.Errors...)
			continue
		}
		result.Passed++
	}
	return result
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Path: path, Name: name, Errors: errs})
}

// Summary is a one-line description of the result.
func (r *SuiteResult) Summary() string {
	return fmt.Sprintf("%d scenarios: %d passed, %d failed", r.Total, r.Passed, r.Failed)
}
