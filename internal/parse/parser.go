package parse

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// Parser wraps a tree-sitter parser bound to the default language registry.
type Parser struct {
	ts       *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a Parser using the package-default language registry.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: DefaultRegistry()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

// Parse parses source as the named language and returns its AST.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, ierrors.New(ierrors.ParseErr, "unsupported language: "+language)
	}
	p.ts.SetLanguage(tsLang)

	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ParseErr, "parse source", err)
	}
	if tsTree == nil {
		return nil, ierrors.New(ierrors.ParseErr, "parse source: nil tree")
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: language,
	}, nil
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}
	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}
	return node
}
