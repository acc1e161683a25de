package parser

import sitter "github.com/smacker/go-tree-sitter"

var ecmaDeclKinds = map[string]string{
	"function_declaration":           KindFunction,
	"generator_function_declaration": KindFunction,
	"function_signature":             KindFunction,
	"class_declaration":              KindClass,
	"abstract_class_declaration":     KindClass,
	"interface_declaration":          KindInterface,
	"type_alias_declaration":         KindType,
	"enum_declaration":               KindEnum,
	"internal_module":                KindNamespace,
	"module":                         KindNamespace,
}

// ecmaExports handles TypeScript, TSX and JavaScript export statements.
func ecmaExports(root *sitter.Node, source []byte) []Declaration {
	var decls []Declaration
	namedChildren(root, func(stmt *sitter.Node) {
		if stmt.Type() != "export_statement" {
			return
		}
		if decl := stmt.ChildByFieldName("declaration"); decl != nil {
			decls = append(decls, ecmaDeclaration(decl, source)...)
			return
		}
		// export default class Foo {} may surface as a named expression.
		if v := stmt.ChildByFieldName("value"); v != nil {
			if name := v.ChildByFieldName("name"); name != nil {
				kind := KindFunction
				if v.Type() == "class" {
					kind = KindClass
				}
				decls = append(decls, Declaration{Name: name.Content(source), Kind: kind, Line: line(v)})
			}
			return
		}
		namedChildren(stmt, func(c *sitter.Node) {
			if c.Type() != "export_clause" {
				return
			}
			namedChildren(c, func(spec *sitter.Node) {
				if spec.Type() != "export_specifier" {
					return
				}
				name := spec.ChildByFieldName("alias")
				if name == nil {
					name = spec.ChildByFieldName("name")
				}
				if name != nil {
					decls = append(decls, Declaration{Name: name.Content(source), Kind: KindVariable, Line: line(spec)})
				}
			})
		})
	})
	return decls
}

func ecmaDeclaration(decl *sitter.Node, source []byte) []Declaration {
	if kind, ok := ecmaDeclKinds[decl.Type()]; ok {
		name := decl.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return []Declaration{{Name: name.Content(source), Kind: kind, Line: line(decl)}}
	}

	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		kind := KindVariable
		if decl.ChildCount() > 0 && decl.Child(0).Type() == "const" {
			kind = KindConst
		}
		var out []Declaration
		namedChildren(decl, func(d *sitter.Node) {
			if d.Type() != "variable_declarator" {
				return
			}
			name := d.ChildByFieldName("name")
			if name == nil || name.Type() != "identifier" {
				return
			}
			k := kind
			if v := d.ChildByFieldName("value"); v != nil && (v.Type() == "arrow_function" || v.Type() == "function_expression" || v.Type() == "function") {
				k = KindFunction
			}
			out = append(out, Declaration{Name: name.Content(source), Kind: k, Line: line(d)})
		})
		return out
	case "ambient_declaration":
		var out []Declaration
		namedChildren(decl, func(c *sitter.Node) {
			out = append(out, ecmaDeclaration(c, source)...)
		})
		return out
	}
	return nil
}
