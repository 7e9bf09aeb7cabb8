package code

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// quotedImportPath extracts a path from the first string-literal child
// found anywhere under node, stripping surrounding quotes. It covers
// Go's import_spec, JS/TS's import_statement source clause, and similar
// shapes.
func quotedImportPath(node *sitter.Node, src []byte) (string, bool) {
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != "" || n == nil {
			return
		}
		if n.Type() == "interpreted_string_literal" || n.Type() == "string" || n.Type() == "string_fragment" {
			text := strings.Trim(n.Content(src), `"'`)
			if text != "" {
				found = text
				return
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return found, found != ""
}

// pythonImportPath reconstructs a dotted module path from an
// import_statement / import_from_statement node, ignoring relative-import
// dots (handled separately as "not resolvable via prefix rules").
func pythonImportPath(node *sitter.Node, src []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name", "relative_import":
			text := child.Content(src)
			if text == "" {
				continue
			}
			return text, true
		case "aliased_import":
			name := child.ChildByFieldName("name")
			if name != nil {
				return name.Content(src), true
			}
		}
	}
	return "", false
}

// rustImportPath reconstructs a "::"-joined path from a use_declaration,
// stopping at the first "{" group (glob/group imports resolve by crate
// root prefix alone).
func rustImportPath(node *sitter.Node, src []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" || child.Type() == "scoped_use_list" || child.Type() == "use_wildcard" {
			text := child.Content(src)
			if idx := strings.Index(text, "::{"); idx != -1 {
				text = text[:idx]
			}
			if text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// javaImportPath extracts the dotted package path from a Java or Kotlin
// import declaration, trimming a trailing ".*" wildcard.
func javaImportPath(node *sitter.Node, src []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			text := strings.TrimSuffix(child.Content(src), ".*")
			if text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// cIncludePath extracts the header path from a preproc_include node,
// stripping the surrounding "<>" or quotes.
func cIncludePath(node *sitter.Node, src []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string_literal":
			return strings.Trim(child.Content(src), `"`), true
		case "system_lib_string":
			return strings.Trim(child.Content(src), "<>"), true
		}
	}
	return "", false
}

// goNameFallback handles Go's type_declaration, whose identifier sits one
// level down inside a type_spec child rather than on a "name" field.
func goNameFallback(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_spec" {
			if name := child.ChildByFieldName("name"); name != nil {
				return name.Content(src)
			}
		}
	}
	return ""
}
