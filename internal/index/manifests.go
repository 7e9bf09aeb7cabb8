package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/BurntSushi/toml"
)

// gradlePluginRE and gradleDepRE extract plugin ids and dependency
// coordinates from Groovy or Kotlin DSL Gradle build files without a real
// Groovy/Kotlin parser, matching both `id 'java'` and `id("java")`, and the
// common dependency-configuration call forms.
var (
	gradlePluginRE = regexp.MustCompile(`id\s*\(\s*['"]([^'"]+)['"]\s*\)|id\s+['"]([^'"]+)['"]`)
	gradleDepRE    = regexp.MustCompile(`(?:implementation|api|compileOnly|runtimeOnly|testImplementation|testCompileOnly|testRuntimeOnly)\s*[\('"]([^)'"]+)[\)'"]`)
)

// DeepConfig parses the well-known manifests spec §4.E names
// (pyproject.toml, package.json, tsconfig.json, Cargo.toml, and Gradle
// build files) under root and merges their relevant sections into a single
// map suitable for the root node's `extra.config`. Missing or unparseable
// files contribute nothing; there is no error return because a manifest
// that fails to parse is treated the same as one that is absent.
func DeepConfig(root string) map[string]interface{} {
	result := map[string]interface{}{}

	mergeInto(result, parsePyproject(root))
	mergeInto(result, parsePackageJSON(root))
	mergeInto(result, parseTsconfig(root))
	mergeInto(result, parseCargoToml(root))
	mergeInto(result, parseGradle(root))

	return result
}

// mergeInto folds src into dst, concatenating "scripts" and "workspaces"
// keys across manifests instead of letting a later source clobber an
// earlier one (npm and Python projects can both declare scripts).
func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		switch k {
		case "scripts":
			existing, _ := dst[k].(map[string]interface{})
			incoming, ok := v.(map[string]interface{})
			if ok {
				if existing == nil {
					existing = map[string]interface{}{}
				}
				for sk, sv := range incoming {
					existing[sk] = sv
				}
				dst[k] = existing
				continue
			}
		case "workspaces":
			existing, _ := dst[k].([]string)
			incoming, ok := v.([]string)
			if ok {
				seen := map[string]bool{}
				merged := make([]string, 0, len(existing)+len(incoming))
				for _, s := range append(existing, incoming...) {
					if !seen[s] {
						seen[s] = true
						merged = append(merged, s)
					}
				}
				dst[k] = merged
				continue
			}
		}
		dst[k] = v
	}
}

func readToml(path string, out interface{}) bool {
	if _, err := toml.DecodeFile(path, out); err != nil {
		return false
	}
	return true
}

func readJSON(path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// parsePyproject extracts [project.scripts], [tool.pytest.ini_options],
// [tool.ruff], and [build-system] from pyproject.toml.
func parsePyproject(root string) map[string]interface{} {
	var data struct {
		Project struct {
			Scripts map[string]string `toml:"scripts"`
		} `toml:"project"`
		Tool struct {
			Pytest struct {
				IniOptions map[string]interface{} `toml:"ini_options"`
			} `toml:"pytest"`
			Ruff map[string]interface{} `toml:"ruff"`
		} `toml:"tool"`
		BuildSystem map[string]interface{} `toml:"build-system"`
	}
	if !readToml(filepath.Join(root, "pyproject.toml"), &data) {
		return nil
	}

	result := map[string]interface{}{}
	if len(data.Project.Scripts) > 0 {
		scripts := map[string]interface{}{}
		for k, v := range data.Project.Scripts {
			scripts[k] = v
		}
		result["scripts"] = scripts
	}
	if len(data.Tool.Pytest.IniOptions) > 0 {
		result["pytest"] = data.Tool.Pytest.IniOptions
	}
	if len(data.Tool.Ruff) > 0 {
		result["ruff"] = data.Tool.Ruff
	}
	if len(data.BuildSystem) > 0 {
		result["build_system"] = data.BuildSystem
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// parseCargoToml extracts [workspace] members and [features] from
// Cargo.toml.
func parseCargoToml(root string) map[string]interface{} {
	var data struct {
		Workspace struct {
			Members []string `toml:"members"`
		} `toml:"workspace"`
		Features map[string]interface{} `toml:"features"`
	}
	if !readToml(filepath.Join(root, "Cargo.toml"), &data) {
		return nil
	}

	result := map[string]interface{}{}
	if len(data.Workspace.Members) > 0 {
		result["workspaces"] = data.Workspace.Members
	}
	if len(data.Features) > 0 {
		result["features"] = data.Features
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// parsePackageJSON extracts scripts, workspaces, and engines from
// package.json. Yarn-style `{workspaces: {packages: [...]}}` is folded to
// a plain list, same as a plain `workspaces: [...]` array.
func parsePackageJSON(root string) map[string]interface{} {
	var data map[string]interface{}
	if !readJSON(filepath.Join(root, "package.json"), &data) {
		return nil
	}

	result := map[string]interface{}{}
	if scripts, ok := data["scripts"].(map[string]interface{}); ok && len(scripts) > 0 {
		result["scripts"] = scripts
	}
	switch ws := data["workspaces"].(type) {
	case []interface{}:
		if len(ws) > 0 {
			result["workspaces"] = toStringSlice(ws)
		}
	case map[string]interface{}:
		if packages, ok := ws["packages"].([]interface{}); ok && len(packages) > 0 {
			result["workspaces"] = toStringSlice(packages)
		}
	}
	if engines, ok := data["engines"].(map[string]interface{}); ok && len(engines) > 0 {
		result["engines"] = engines
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// parseTsconfig extracts compilerOptions.paths and compilerOptions.baseUrl
// from tsconfig.json.
func parseTsconfig(root string) map[string]interface{} {
	var data struct {
		CompilerOptions struct {
			Paths   map[string]interface{} `json:"paths"`
			BaseURL string                 `json:"baseUrl"`
		} `json:"compilerOptions"`
	}
	if !readJSON(filepath.Join(root, "tsconfig.json"), &data) {
		return nil
	}

	result := map[string]interface{}{}
	if len(data.CompilerOptions.Paths) > 0 {
		result["path_aliases"] = data.CompilerOptions.Paths
	}
	if data.CompilerOptions.BaseURL != "" {
		result["base_url"] = data.CompilerOptions.BaseURL
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// parseGradle extracts plugin ids and dependency coordinates from
// build.gradle or build.gradle.kts via regex, since neither a Groovy nor a
// Kotlin DSL parser is part of the dependency stack.
func parseGradle(root string) map[string]interface{} {
	path := filepath.Join(root, "build.gradle")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(root, "build.gradle.kts")
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	result := map[string]interface{}{}
	if plugins := dedupeMatches(gradlePluginRE.FindAllStringSubmatch(string(content), -1)); len(plugins) > 0 {
		result["gradle_plugins"] = plugins
	}
	if deps := dedupeSingle(gradleDepRE.FindAllStringSubmatch(string(content), -1)); len(deps) > 0 {
		result["gradle_dependencies"] = deps
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// dedupeMatches collects whichever alternation group matched (group 1 or 2)
// from each regex match, deduplicates, and sorts.
func dedupeMatches(matches [][]string) []string {
	seen := map[string]bool{}
	for _, m := range matches {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if v != "" {
			seen[v] = true
		}
	}
	return sortedKeys(seen)
}

func dedupeSingle(matches [][]string) []string {
	seen := map[string]bool{}
	for _, m := range matches {
		if len(m) > 1 && m[1] != "" {
			seen[m[1]] = true
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toStringSlice(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
