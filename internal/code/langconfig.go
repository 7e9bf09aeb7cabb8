// Package code implements beadloom's multi-language code analyzer
// (component D): tree-sitter symbol and import extraction driven by a
// pluggable per-language configuration table, grounded on the original
// implementation's LangConfig design rather than the teacher's
// one-file-per-language parser structs.
package code

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"beadloom/internal/store"
)

// LangConfig names the concrete syntax-tree node types a language's
// symbols, wrapper nodes, comments, and imports take, per spec §4.D's
// "pluggable per-language configuration".
type LangConfig struct {
	Name       string
	Extensions []string

	// loadLanguage is lazy; grammar handles are cached per process and
	// immutable once loaded (spec §5 "Shared resources").
	loadLanguage func() *sitter.Language

	// SymbolNodeTypes maps a tree-sitter node type to the canonical
	// symbol kind it represents.
	SymbolNodeTypes map[string]store.SymbolKind

	// WrapperNodeTypes wrap a definition (decorators, export statements);
	// the analyzer walks one level in to find the underlying symbol.
	WrapperNodeTypes map[string]bool

	// CommentNodeTypes identifies comment nodes, scanned for annotation
	// markers.
	CommentNodeTypes map[string]bool

	// ImportNodeTypes identifies root-level import constructs.
	ImportNodeTypes map[string]bool

	// NameField is the field name holding a symbol's identifier; empty
	// means use NameFallback.
	NameField string

	// NameFallback extracts a name when NameField is absent or empty,
	// e.g. Go's type declarations nest their name under the first
	// type_spec child.
	NameFallback func(node *sitter.Node, src []byte) string

	// IsStdlibImport filters out standard-library/built-in import paths
	// per spec §4.D's per-language prefix rules.
	IsStdlibImport func(path string) bool

	// ImportPath extracts the raw import path string from an import node;
	// returns ("", false) to skip (e.g. relative imports).
	ImportPath func(node *sitter.Node, src []byte) (string, bool)
}

var (
	registryOnce sync.Once
	registry     map[string]*LangConfig // extension -> config
	languages    map[string]*LangConfig // name -> config

	grammarCacheMu sync.Mutex
	grammarCache   = map[string]*sitter.Language{}
)

// Registry returns the extension-to-LangConfig map, built once.
func Registry() map[string]*LangConfig {
	registryOnce.Do(initRegistry)
	return registry
}

// Languages returns the name-to-LangConfig map, built once.
func Languages() map[string]*LangConfig {
	registryOnce.Do(initRegistry)
	return languages
}

// ForExtension returns the LangConfig registered for a file extension
// (normalized to lowercase with a leading dot), or nil.
func ForExtension(ext string) *LangConfig {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Registry()[ext]
}

// ForPath is a convenience wrapper around ForExtension for a file path.
func ForPath(path string) *LangConfig {
	return ForExtension(filepath.Ext(path))
}

// Language lazily loads and caches lc's tree-sitter grammar. Missing
// grammars (Swift, Objective-C, Objective-C++ have no smacker binding in
// this ecosystem) return nil without raising, per spec §4.D.
func (lc *LangConfig) Language() *sitter.Language {
	if lc.loadLanguage == nil {
		return nil
	}

	grammarCacheMu.Lock()
	defer grammarCacheMu.Unlock()
	if lang, ok := grammarCache[lc.Name]; ok {
		return lang
	}
	lang := lc.loadLanguage()
	grammarCache[lc.Name] = lang
	return lang
}

func initRegistry() {
	registry = map[string]*LangConfig{}
	languages = map[string]*LangConfig{}

	for _, lc := range builtinConfigs() {
		languages[lc.Name] = lc
		for _, ext := range lc.Extensions {
			registry[ext] = lc
		}
	}

	// Swift, Objective-C, and Objective-C++ have no tree-sitter grammar
	// binding available via smacker/go-tree-sitter; they are registered
	// with a nil loadLanguage so ForExtension resolves a LangConfig but
	// Language() returns nil, matching spec §4.D's "missing grammars
	// downgrade to 'no parser available' without raising".
	for _, degraded := range degradedConfigs() {
		languages[degraded.Name] = degraded
		for _, ext := range degraded.Extensions {
			registry[ext] = degraded
		}
	}
}

func builtinConfigs() []*LangConfig {
	return []*LangConfig{
		goConfig(),
		pythonConfig(),
		javascriptConfig(),
		typescriptConfig(),
		rustConfig(),
		javaConfig(),
		kotlinConfig(),
		cConfig(),
		cppConfig(),
	}
}

func degradedConfigs() []*LangConfig {
	return []*LangConfig{
		{Name: "swift", Extensions: []string{".swift"}},
		{Name: "objc", Extensions: []string{".m"}},
		{Name: "objcpp", Extensions: []string{".mm"}},
	}
}

func goConfig() *LangConfig {
	return &LangConfig{
		Name:       "go",
		Extensions: []string{".go"},
		loadLanguage: func() *sitter.Language { return golang.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"function_declaration": store.SymbolFunction,
			"method_declaration":   store.SymbolFunction,
			"type_declaration":     store.SymbolType,
		},
		WrapperNodeTypes: map[string]bool{},
		CommentNodeTypes: map[string]bool{"comment": true},
		ImportNodeTypes:  map[string]bool{"import_declaration": true},
		NameField:        "name",
		NameFallback:     goNameFallback,
		IsStdlibImport: func(path string) bool {
			return !strings.Contains(path, "/")
		},
		ImportPath: quotedImportPath,
	}
}

func pythonConfig() *LangConfig {
	stdlib := map[string]bool{
		"os": true, "sys": true, "re": true, "json": true, "typing": true, "collections": true,
		"itertools": true, "functools": true, "pathlib": true, "datetime": true, "math": true,
		"logging": true, "unittest": true, "abc": true, "enum": true, "dataclasses": true,
	}
	return &LangConfig{
		Name:       "python",
		Extensions: []string{".py"},
		loadLanguage: func() *sitter.Language { return python.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"function_definition": store.SymbolFunction,
			"class_definition":    store.SymbolClass,
		},
		WrapperNodeTypes: map[string]bool{"decorated_definition": true},
		CommentNodeTypes: map[string]bool{"comment": true},
		ImportNodeTypes:  map[string]bool{"import_statement": true, "import_from_statement": true},
		NameField:        "name",
		IsStdlibImport: func(path string) bool {
			root := strings.SplitN(path, ".", 2)[0]
			return stdlib[root]
		},
		ImportPath: pythonImportPath,
	}
}

func javascriptConfig() *LangConfig {
	return &LangConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		loadLanguage: func() *sitter.Language { return javascript.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"function_declaration": store.SymbolFunction,
			"class_declaration":    store.SymbolClass,
			"lexical_declaration":  store.SymbolComponent,
		},
		WrapperNodeTypes: map[string]bool{"export_statement": true},
		CommentNodeTypes: map[string]bool{"comment": true},
		ImportNodeTypes:  map[string]bool{"import_statement": true},
		NameField:        "name",
		IsStdlibImport:   func(path string) bool { return false },
		ImportPath:       quotedImportPath,
	}
}

func typescriptConfig() *LangConfig {
	js := javascriptConfig()
	return &LangConfig{
		Name:             "typescript",
		Extensions:       []string{".ts", ".tsx"},
		loadLanguage:     func() *sitter.Language { return typescript.GetLanguage() },
		SymbolNodeTypes:  js.SymbolNodeTypes,
		WrapperNodeTypes: js.WrapperNodeTypes,
		CommentNodeTypes: js.CommentNodeTypes,
		ImportNodeTypes:  js.ImportNodeTypes,
		NameField:        "name",
		IsStdlibImport:   func(path string) bool { return false },
		ImportPath:       quotedImportPath,
	}
}

func rustConfig() *LangConfig {
	builtinCrates := map[string]bool{"std": true, "core": true, "alloc": true}
	return &LangConfig{
		Name:       "rust",
		Extensions: []string{".rs"},
		loadLanguage: func() *sitter.Language { return rust.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"function_item": store.SymbolFunction,
			"struct_item":   store.SymbolType,
			"enum_item":     store.SymbolType,
			"trait_item":    store.SymbolClass,
			"impl_item":     store.SymbolClass,
		},
		WrapperNodeTypes: map[string]bool{"attribute_item": true},
		CommentNodeTypes: map[string]bool{"line_comment": true, "block_comment": true},
		ImportNodeTypes:  map[string]bool{"use_declaration": true},
		NameField:        "name",
		IsStdlibImport: func(path string) bool {
			root := strings.SplitN(path, "::", 2)[0]
			return builtinCrates[root]
		},
		ImportPath: rustImportPath,
	}
}

func javaConfig() *LangConfig {
	return &LangConfig{
		Name:       "java",
		Extensions: []string{".java"},
		loadLanguage: func() *sitter.Language { return java.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"class_declaration":     store.SymbolClass,
			"interface_declaration": store.SymbolClass,
			"method_declaration":    store.SymbolFunction,
			"enum_declaration":      store.SymbolType,
		},
		WrapperNodeTypes: map[string]bool{},
		CommentNodeTypes: map[string]bool{"line_comment": true, "block_comment": true},
		ImportNodeTypes:  map[string]bool{"import_declaration": true},
		NameField:        "name",
		IsStdlibImport: func(path string) bool {
			return strings.HasPrefix(path, "java.") || strings.HasPrefix(path, "javax.")
		},
		ImportPath: javaImportPath,
	}
}

func kotlinConfig() *LangConfig {
	return &LangConfig{
		Name:       "kotlin",
		Extensions: []string{".kt", ".kts"},
		loadLanguage: func() *sitter.Language { return kotlin.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"class_declaration":    store.SymbolClass,
			"function_declaration": store.SymbolFunction,
			"object_declaration":   store.SymbolClass,
		},
		WrapperNodeTypes: map[string]bool{},
		CommentNodeTypes: map[string]bool{"line_comment": true, "multiline_comment": true},
		ImportNodeTypes:  map[string]bool{"import": true},
		NameField:        "name",
		IsStdlibImport: func(path string) bool {
			return strings.HasPrefix(path, "kotlin.") || strings.HasPrefix(path, "java.")
		},
		ImportPath: javaImportPath,
	}
}

func cConfig() *LangConfig {
	return &LangConfig{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		loadLanguage: func() *sitter.Language { return c.GetLanguage() },
		SymbolNodeTypes: map[string]store.SymbolKind{
			"function_definition": store.SymbolFunction,
			"struct_specifier":    store.SymbolType,
			"enum_specifier":      store.SymbolType,
		},
		WrapperNodeTypes: map[string]bool{},
		CommentNodeTypes: map[string]bool{"comment": true},
		ImportNodeTypes:  map[string]bool{"preproc_include": true},
		NameField:        "declarator",
		IsStdlibImport: func(path string) bool {
			return !strings.Contains(path, "/")
		},
		ImportPath: cIncludePath,
	}
}

func cppConfig() *LangConfig {
	base := cConfig()
	return &LangConfig{
		Name:             "cpp",
		Extensions:       []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		loadLanguage:     func() *sitter.Language { return cpp.GetLanguage() },
		SymbolNodeTypes:  mergeSymbolKinds(base.SymbolNodeTypes, map[string]store.SymbolKind{"class_specifier": store.SymbolClass}),
		WrapperNodeTypes: base.WrapperNodeTypes,
		CommentNodeTypes: base.CommentNodeTypes,
		ImportNodeTypes:  base.ImportNodeTypes,
		NameField:        base.NameField,
		IsStdlibImport:   base.IsStdlibImport,
		ImportPath:       base.ImportPath,
	}
}

func mergeSymbolKinds(a, b map[string]store.SymbolKind) map[string]store.SymbolKind {
	out := map[string]store.SymbolKind{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
