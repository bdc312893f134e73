package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// directivesSDL declares the field directives understood by LoadSDL.
const directivesSDL = `
directive @link(from: String, by: String = "id") on FIELD_DEFINITION
directive @proxy(from: String!) on FIELD_DEFINITION
`

// LoadSDLFile reads an SDL document from disk and loads it.
func LoadSDLFile(path string, resolvers map[string]ResolveFunc) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return LoadSDL(path, string(data), resolvers)
}

// LoadSDL builds a registry from GraphQL SDL. Object and interface types
// become registry types. Fields carrying @link resolve references to nodes,
// fields carrying @proxy read another stored field. resolvers, keyed by
// "Type.field", attach custom resolvers and take precedence over directives.
func LoadSDL(name, sdl string, resolvers map[string]ResolveFunc) (*Registry, error) {
	doc, err := gqlparser.LoadSchema(
		&ast.Source{Name: "directives.graphql", Input: directivesSDL, BuiltIn: true},
		&ast.Source{Name: name, Input: sdl},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}

	registry := NewRegistry()
	for typeName, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(typeName, "__") {
			continue
		}
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			continue
		}
		t := NewType(typeName)
		for _, fieldDef := range def.Fields {
			if strings.HasPrefix(fieldDef.Name, "__") {
				continue
			}
			t.AddField(fieldFromDefinition(fieldDef))
		}
		registry.types[typeName] = t
	}

	for key, fn := range resolvers {
		typeName, fieldName, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("resolver key %q must be Type.field", key)
		}
		if err := registry.SetResolver(typeName, fieldName, fn); err != nil {
			return nil, fmt.Errorf("resolver %s: %w", key, err)
		}
	}
	return registry, nil
}

func fieldFromDefinition(def *ast.FieldDefinition) *Field {
	field := &Field{
		Name: def.Name,
		Type: TypeRef{Name: def.Type.Name(), List: def.Type.Elem != nil},
	}
	if link := def.Directives.ForName("link"); link != nil {
		field.Resolve = LinkResolver(directiveArg(link, "from"), directiveArg(link, "by"))
	} else if proxy := def.Directives.ForName("proxy"); proxy != nil {
		field.Resolve = ProxyResolver(directiveArg(proxy, "from"))
	}
	return field
}

func directiveArg(d *ast.Directive, name string) string {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}
