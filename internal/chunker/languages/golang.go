// Package languages registers tree-sitter grammars with the chunker.
package languages

import (
	"brdagent/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(method_declaration name: (field_identifier) @name) @chunk
			(type_declaration (type_spec name: (type_identifier) @name)) @chunk
		`,
		CommentPrefixes: []string{"//"},
		Extensions:      []string{"go"},
	})
}

// RegisterAll wires every supported language into the registry.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
}
