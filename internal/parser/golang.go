package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

func exported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// goExports handles exported Go functions, methods, types, consts and vars.
func goExports(root *sitter.Node, source []byte) []Declaration {
	var decls []Declaration
	add := func(name, kind string, n *sitter.Node) {
		if exported(name) {
			decls = append(decls, Declaration{Name: name, Kind: kind, Line: line(n)})
		}
	}

	namedChildren(root, func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				add(name.Content(source), KindFunction, n)
			}
		case "method_declaration":
			name := n.ChildByFieldName("name")
			if name == nil {
				return
			}
			recv := receiverType(n.ChildByFieldName("receiver"), source)
			if recv != "" && !exported(recv) {
				return
			}
			full := name.Content(source)
			if recv != "" {
				full = recv + "." + full
			}
			if exported(name.Content(source)) {
				decls = append(decls, Declaration{Name: full, Kind: KindMethod, Line: line(n)})
			}
		case "type_declaration":
			namedChildren(n, func(spec *sitter.Node) {
				if name := spec.ChildByFieldName("name"); name != nil {
					kind := KindType
					if t := spec.ChildByFieldName("type"); t != nil && t.Type() == "interface_type" {
						kind = KindInterface
					}
					add(name.Content(source), kind, spec)
				}
			})
		case "const_declaration", "var_declaration":
			kind := KindConst
			if n.Type() == "var_declaration" {
				kind = KindVariable
			}
			forEachSpec(n, func(spec *sitter.Node) {
				// Names are the identifiers ahead of the type or "=".
				for i := 0; i < int(spec.ChildCount()); i++ {
					c := spec.Child(i)
					if c.Type() == "identifier" {
						add(c.Content(source), kind, spec)
						continue
					}
					if c.Type() != "," {
						break
					}
				}
			})
		}
	})
	return decls
}

// forEachSpec visits const_spec/var_spec nodes, including grouped ones.
func forEachSpec(n *sitter.Node, fn func(*sitter.Node)) {
	namedChildren(n, func(c *sitter.Node) {
		switch c.Type() {
		case "const_spec", "var_spec":
			fn(c)
		case "var_spec_list":
			forEachSpec(c, fn)
		}
	})
}

// receiverType returns the bare receiver type name of a method ("*Order[T]" -> "Order").
func receiverType(params *sitter.Node, source []byte) string {
	if params == nil {
		return ""
	}
	var recv string
	namedChildren(params, func(p *sitter.Node) {
		if recv != "" || p.Type() != "parameter_declaration" {
			return
		}
		if t := p.ChildByFieldName("type"); t != nil {
			recv = t.Content(source)
		}
	})
	recv = strings.TrimLeft(recv, "*")
	if i := strings.IndexByte(recv, '['); i >= 0 {
		recv = recv[:i]
	}
	return strings.TrimSpace(recv)
}
