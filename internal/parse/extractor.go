package parse

import (
	"strings"

	"github.com/breeze4/indiseek/pkg/models"
)

// SymbolExtractor walks a parsed Tree and produces models.Symbol rows for
// one file. Nesting (ParentSymbolID) is left unset — the relational store
// derives it from range containment at insert time.
type SymbolExtractor struct {
	registry *LanguageRegistry
}

// NewSymbolExtractor creates a SymbolExtractor using the default registry.
func NewSymbolExtractor() *SymbolExtractor {
	return &SymbolExtractor{registry: DefaultRegistry()}
}

// Extract returns every symbol-defining node in tree as a models.Symbol,
// with RepoID and FilePath filled in by the caller.
func (e *SymbolExtractor) Extract(tree *Tree, repoID int64, filePath string) []*models.Symbol {
	if tree == nil || tree.Root == nil {
		return nil
	}
	cfg, ok := e.registry.GetByName(tree.Language)
	if !ok {
		return nil
	}

	symbolTypes := buildSymbolTypeIndex(cfg)

	var symbols []*models.Symbol
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if sym := e.extractJSFunctionVariable(n, tree.Source, repoID, filePath); sym != nil {
				symbols = append(symbols, sym)
				return true
			}
		}
		kind, isSymbol := symbolTypes[n.Type]
		if !isSymbol {
			return true
		}
		if sym := e.extractSymbol(n, tree, cfg, kind, repoID, filePath); sym != nil {
			symbols = append(symbols, sym)
		}
		return true
	})
	return symbols
}

func buildSymbolTypeIndex(cfg *LanguageConfig) map[string]models.SymbolKind {
	idx := make(map[string]models.SymbolKind)
	add := func(types []string, kind models.SymbolKind) {
		for _, t := range types {
			idx[t] = kind
		}
	}
	add(cfg.FunctionTypes, models.SymbolFunction)
	add(cfg.MethodTypes, models.SymbolMethod)
	add(cfg.ClassTypes, models.SymbolClass)
	add(cfg.InterfaceTypes, models.SymbolInterface)
	add(cfg.TypeDefTypes, models.SymbolType)
	add(cfg.EnumTypes, models.SymbolEnum)
	add(cfg.ConstantTypes, models.SymbolVariable)
	add(cfg.VariableTypes, models.SymbolVariable)
	return idx
}

func (e *SymbolExtractor) extractSymbol(n *Node, tree *Tree, cfg *LanguageConfig, kind models.SymbolKind, repoID int64, filePath string) *models.Symbol {
	name := extractName(n, tree.Source, tree.Language)
	if name == "" {
		return nil
	}
	return &models.Symbol{
		RepoID:   repoID,
		FilePath: filePath,
		Name:     name,
		Kind:     kind,
		Range: models.Range{
			StartLine: int(n.StartPoint.Row) + 1,
			StartCol:  int(n.StartPoint.Column),
			EndLine:   int(n.EndPoint.Row) + 1,
			EndCol:    int(n.EndPoint.Column),
		},
		Signature: extractSignature(n, tree.Source, kind, tree.Language),
	}
}

// extractJSFunctionVariable handles `const name = () => {}` and
// `const name = function() {}`, which tree-sitter types as a plain
// lexical/variable declaration rather than a function node.
func (e *SymbolExtractor) extractJSFunctionVariable(n *Node, source []byte, repoID int64, filePath string) *models.Symbol {
	for _, child := range n.Children {
		if child.Type != "variable_declarator" {
			continue
		}
		var name string
		var hasFunction bool
		for _, grandchild := range child.Children {
			if grandchild.Type == "identifier" {
				name = grandchild.GetContent(source)
			}
			if grandchild.Type == "arrow_function" || grandchild.Type == "function" || grandchild.Type == "function_expression" {
				hasFunction = true
			}
		}
		if name != "" && hasFunction {
			return &models.Symbol{
				RepoID:   repoID,
				FilePath: filePath,
				Name:     name,
				Kind:     models.SymbolFunction,
				Range: models.Range{
					StartLine: int(n.StartPoint.Row) + 1,
					StartCol:  int(n.StartPoint.Column),
					EndLine:   int(n.EndPoint.Row) + 1,
					EndCol:    int(n.EndPoint.Column),
				},
				Signature: extractFunctionSignature(n.GetContent(source)),
			}
		}
	}
	return nil
}

func extractName(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		return extractGoName(n, source)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSName(n, source)
	case "python":
		return extractPythonName(n, source)
	}
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	case "method_declaration":
		for _, child := range n.Children {
			if child.Type == "field_identifier" {
				return child.GetContent(source)
			}
		}
	case "type_declaration":
		for _, child := range n.Children {
			if child.Type == "type_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "type_identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	case "const_declaration":
		for _, child := range n.Children {
			if child.Type == "const_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	case "var_declaration":
		for _, child := range n.Children {
			if child.Type == "var_spec" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

func extractJSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, grandchild := range child.Children {
					if grandchild.Type == "identifier" {
						return grandchild.GetContent(source)
					}
				}
			}
		}
	}
	for _, child := range n.Children {
		if child.Type == "identifier" || child.Type == "type_identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractPythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractSignature(n *Node, source []byte, kind models.SymbolKind, language string) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}
	switch kind {
	case models.SymbolFunction, models.SymbolMethod:
		return extractFunctionSignature(content)
	case models.SymbolClass, models.SymbolInterface, models.SymbolType:
		return extractTypeSignature(content, language)
	}
	return ""
}

func extractFunctionSignature(content string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}

func extractTypeSignature(content, language string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if language == "python" {
		return firstLine
	}
	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}
