package code

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"beadloom/internal/store"
)

// ExtractedSymbol is a symbol found in a source file, paired with the
// annotations (if any) the comment-marker scan attached to it.
type ExtractedSymbol struct {
	SymbolName  string
	Kind        store.SymbolKind
	LineStart   int
	LineEnd     int
	Annotations map[string]string
}

// ExtractedImport is a raw import statement found in a source file,
// unresolved.
type ExtractedImport struct {
	LineNumber int
	ImportPath string
}

// ExtractSymbols walks a source file's top-level syntax tree children,
// classifying each as a comment, a wrapper, a recognized symbol, or other.
// It mirrors the original indexer's single-pass state machine: a
// beadloom: annotation comment sets a pending annotation consumed by the
// very next symbol; every annotation seen before the first symbol is also
// merged into the file's module-level annotation, which every later symbol
// in the file falls back to. Unsupported extensions or empty content yield
// an empty, non-error result.
func ExtractSymbols(path string, content []byte) ([]ExtractedSymbol, error) {
	lc := ForPath(path)
	if lc == nil {
		return nil, nil
	}
	lang := lc.Language()
	if lang == nil {
		return nil, nil
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, nil
	}

	tree, err := parse(lang, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()

	var symbols []ExtractedSymbol
	pending := map[string]string{}
	module := map[string]string{}
	foundFirst := false

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)

		if lc.CommentNodeTypes[child.Type()] {
			if ann, ok := parseAnnotationComment(child.Content(content)); ok {
				pending = ann
				if !foundFirst {
					module = mergeAnnotations(module, ann)
				}
			}
			continue
		}

		actual := child
		if lc.WrapperNodeTypes[child.Type()] {
			unwrapped := unwrapSymbol(child, lc)
			if unwrapped == nil {
				pending = map[string]string{}
				continue
			}
			actual = unwrapped
		} else if _, ok := lc.SymbolNodeTypes[child.Type()]; !ok {
			pending = map[string]string{}
			continue
		}

		kind, ok := lc.SymbolNodeTypes[actual.Type()]
		if !ok {
			pending = map[string]string{}
			continue
		}

		name := symbolName(actual, lc, content)
		if name == "" {
			pending = map[string]string{}
			continue
		}

		foundFirst = true
		symbols = append(symbols, ExtractedSymbol{
			SymbolName:  name,
			Kind:        kind,
			LineStart:   int(child.StartPoint().Row) + 1,
			LineEnd:     int(child.EndPoint().Row) + 1,
			Annotations: mergeAnnotations(module, pending),
		})
		pending = map[string]string{}
	}

	return symbols, nil
}

// LeadingDocComment returns the text of the comment block immediately
// preceding the file's first recognized top-level symbol (a package/module
// doc comment), with comment markers stripped, or "" if the file has no
// such comment. A beadloom: annotation comment does not count — those are
// pending-annotation markers (see ExtractSymbols), not documentation.
func LeadingDocComment(path string, content []byte) (string, error) {
	lc := ForPath(path)
	if lc == nil {
		return "", nil
	}
	lang := lc.Language()
	if lang == nil {
		return "", nil
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return "", nil
	}

	tree, err := parse(lang, content)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()

	var pending []string
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)

		if lc.CommentNodeTypes[child.Type()] {
			text := child.Content(content)
			if _, ok := parseAnnotationComment(text); ok {
				pending = nil
				continue
			}
			pending = append(pending, stripCommentMarkers(text))
			continue
		}

		actual := child
		if lc.WrapperNodeTypes[child.Type()] {
			if unwrapped := unwrapSymbol(child, lc); unwrapped != nil {
				actual = unwrapped
			}
		}
		if _, ok := lc.SymbolNodeTypes[actual.Type()]; ok {
			if symbolName(actual, lc, content) != "" {
				return strings.TrimSpace(strings.Join(pending, "\n")), nil
			}
		}
		pending = nil
	}

	return "", nil
}

// ExtractImports walks a source file's top-level children collecting
// import/use/include constructs, filtering out the language's standard
// library per LangConfig.IsStdlibImport.
func ExtractImports(path string, content []byte) ([]ExtractedImport, error) {
	lc := ForPath(path)
	if lc == nil || lc.ImportPath == nil {
		return nil, nil
	}
	lang := lc.Language()
	if lang == nil {
		return nil, nil
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, nil
	}

	tree, err := parse(lang, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()

	var out []ExtractedImport
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if !lc.ImportNodeTypes[child.Type()] {
			continue
		}
		collectImportsFrom(child, lc, content, child.StartPoint().Row, &out)
	}
	return out, nil
}

// collectImportsFrom handles both a single import node and Go-style
// grouped import declarations ("import (\n ... \n)"), whose individual
// paths sit in nested import_spec_list/import_spec children rather than
// directly on the declaration node.
func collectImportsFrom(node *sitter.Node, lc *LangConfig, content []byte, declLine uint32, out *[]ExtractedImport) {
	handledChild := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec_list":
			collectImportsFrom(child, lc, content, declLine, out)
			handledChild = true
		case "import_spec":
			collectImportsFrom(child, lc, content, child.StartPoint().Row, out)
			handledChild = true
		}
	}
	if handledChild {
		return
	}

	path, ok := lc.ImportPath(node, content)
	if !ok || path == "" {
		return
	}
	if strings.HasPrefix(path, ".") {
		return
	}
	if lc.IsStdlibImport != nil && lc.IsStdlibImport(path) {
		return
	}

	line := declLine
	if node.Type() == "import_spec" {
		line = node.StartPoint().Row
	}
	*out = append(*out, ExtractedImport{LineNumber: int(line) + 1, ImportPath: path})
}

func parse(lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return parser.ParseCtx(context.Background(), nil, content)
}

// unwrapSymbol finds the first child of a wrapper node (decorator, export
// statement) whose type is a recognized symbol type.
func unwrapSymbol(node *sitter.Node, lc *LangConfig) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if _, ok := lc.SymbolNodeTypes[child.Type()]; ok {
			return child
		}
	}
	return nil
}

// symbolName extracts a symbol's identifier via its "name" field, falling
// back to LangConfig.NameFallback for languages whose name is nested
// (Go's type_declaration).
func symbolName(node *sitter.Node, lc *LangConfig, content []byte) string {
	if lc.NameField != "" {
		if nameNode := node.ChildByFieldName(lc.NameField); nameNode != nil {
			return nameNode.Content(content)
		}
	}
	if lc.NameFallback != nil {
		return lc.NameFallback(node, content)
	}
	return ""
}
