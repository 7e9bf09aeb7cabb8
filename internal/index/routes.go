package index

import (
	"regexp"
	"strings"
)

// Route is one HTTP route found by ExtractRoutes, matching the shape
// recorded in a node's `extra.routes` list.
type Route struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Handler   string `json:"handler"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Framework string `json:"framework"`
}

// pyDecoratorRE matches FastAPI/Flask-style `@app.get("/path")` or
// `@router.post('/path')` decorators. The handler name is taken from the
// next non-blank `def`/`async def` line.
var pyDecoratorRE = regexp.MustCompile(`^\s*@(\w+)\.(get|post|put|patch|delete)\(\s*["']([^"']+)["']`)

// pyFlaskRouteRE matches Flask's `@app.route("/path", methods=[...])`,
// which names the method(s) in a keyword argument instead of the call name.
var pyFlaskRouteRE = regexp.MustCompile(`^\s*@(\w+)\.route\(\s*["']([^"']+)["'](?:.*methods\s*=\s*\[([^\]]*)\])?`)

var pyDefRE = regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`)

// jsRouteRE matches Express/Koa-style `app.get('/path', handler)` or
// `router.post("/path", handler)`.
var jsRouteRE = regexp.MustCompile(`\b(\w+)\.(get|post|put|patch|delete)\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]\s*,\s*([\w.]+)`)

// goGorillaRouteRE matches gorilla/mux's `r.HandleFunc("/path", handler).Methods("GET")`.
var goGorillaRouteRE = regexp.MustCompile(`\.HandleFunc\(\s*"([^"]+)"\s*,\s*([\w.]+)\s*\)\.Methods\(\s*"([A-Z]+)"`)

// goStdlibRouteRE matches stdlib `http.HandleFunc("/path", handler)`, which
// carries no explicit method and defaults to GET.
var goStdlibRouteRE = regexp.MustCompile(`http\.HandleFunc\(\s*"([^"]+)"\s*,\s*([\w.]+)\s*\)`)

// ExtractRoutes scans content for the decorator and method-call patterns of
// common web frameworks (spec §4.E: "common web-framework decorator/method
// -call patterns"). It is line-based and best-effort: a handler it cannot
// resolve is left empty rather than failing the whole file.
func ExtractRoutes(relPath string, content []byte) []Route {
	lines := strings.Split(string(content), "\n")
	var routes []Route

	switch {
	case strings.HasSuffix(relPath, ".py"):
		routes = append(routes, extractPythonRoutes(relPath, lines)...)
	case strings.HasSuffix(relPath, ".js") || strings.HasSuffix(relPath, ".ts") ||
		strings.HasSuffix(relPath, ".jsx") || strings.HasSuffix(relPath, ".tsx"):
		routes = append(routes, extractJSRoutes(relPath, lines)...)
	case strings.HasSuffix(relPath, ".go"):
		routes = append(routes, extractGoRoutes(relPath, lines)...)
	}
	return routes
}

func extractPythonRoutes(relPath string, lines []string) []Route {
	var routes []Route
	for i, line := range lines {
		if m := pyDecoratorRE.FindStringSubmatch(line); m != nil {
			routes = append(routes, Route{
				Method:    strings.ToUpper(m[2]),
				Path:      m[3],
				Handler:   nextPythonDef(lines, i+1),
				File:      relPath,
				Line:      i + 1,
				Framework: "fastapi",
			})
			continue
		}
		if m := pyFlaskRouteRE.FindStringSubmatch(line); m != nil {
			methods := []string{"GET"}
			if m[3] != "" {
				methods = splitQuotedList(m[3])
			}
			handler := nextPythonDef(lines, i+1)
			for _, method := range methods {
				routes = append(routes, Route{
					Method:    strings.ToUpper(method),
					Path:      m[2],
					Handler:   handler,
					File:      relPath,
					Line:      i + 1,
					Framework: "flask",
				})
			}
		}
	}
	return routes
}

func nextPythonDef(lines []string, from int) string {
	for i := from; i < len(lines) && i < from+5; i++ {
		if m := pyDefRE.FindStringSubmatch(lines[i]); m != nil {
			return m[1]
		}
	}
	return ""
}

func splitQuotedList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func extractJSRoutes(relPath string, lines []string) []Route {
	var routes []Route
	for i, line := range lines {
		m := jsRouteRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		routes = append(routes, Route{
			Method:    strings.ToUpper(m[2]),
			Path:      m[3],
			Handler:   m[4],
			File:      relPath,
			Line:      i + 1,
			Framework: "express",
		})
	}
	return routes
}

func extractGoRoutes(relPath string, lines []string) []Route {
	var routes []Route
	for i, line := range lines {
		if m := goGorillaRouteRE.FindStringSubmatch(line); m != nil {
			routes = append(routes, Route{
				Method:    m[3],
				Path:      m[1],
				Handler:   m[2],
				File:      relPath,
				Line:      i + 1,
				Framework: "gorilla",
			})
			continue
		}
		if m := goStdlibRouteRE.FindStringSubmatch(line); m != nil {
			routes = append(routes, Route{
				Method:    "GET",
				Path:      m[1],
				Handler:   m[2],
				File:      relPath,
				Line:      i + 1,
				Framework: "net/http",
			})
		}
	}
	return routes
}
