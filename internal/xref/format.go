// Package xref loads the external cross-reference index file: a
// length-delimited stream of protocol-buffer-encoded Document messages,
// the same wire shape used by scip-typescript and its siblings (spec
// out-of-scope: "the language server cross-reference generator" —
// indiseek only consumes its output). Decoding is done field-by-field
// with google.golang.org/protobuf/encoding/protowire rather than
// generated code, since no .proto schema ships with the tool that
// produces this file; the field layout below is this package's contract
// for it.
package xref

// Document is one file's worth of cross-reference data. The loader
// treats each document independently.
type Document struct {
	RelativePath string
	Symbols      []SymbolInfo
	Occurrences  []Occurrence
}

// SymbolInfo is metadata about one cross-reference symbol: its opaque,
// fully-qualified identifier, optional documentation, and its edges to
// other symbols.
type SymbolInfo struct {
	Symbol        string
	Documentation []string
	Relationships []Relationship
}

// Relationship is a directed edge from a SymbolInfo to another symbol.
type Relationship struct {
	Symbol           string
	IsImplementation bool
	IsReference      bool
	IsTypeDefinition bool
}

// Occurrence is one use (definition or reference) of a symbol at a
// location. Range is packed as 3 ints (same-line: [startLine, startCol,
// endCol]) or 4 ints (cross-line: [startLine, startCol, endLine, endCol]).
type Occurrence struct {
	Symbol      string
	Range       []int32
	SymbolRoles int32
}

// SymbolRoleDefinition is the bit in Occurrence.SymbolRoles marking a
// defining occurrence, matching the scip convention of bit 0x1.
const SymbolRoleDefinition int32 = 0x1

// IsDefinition reports whether o is a definition occurrence rather than
// a reference.
func (o Occurrence) IsDefinition() bool {
	return o.SymbolRoles&SymbolRoleDefinition != 0
}

// Wire field numbers for Document.
const (
	fieldDocRelativePath = 1
	fieldDocSymbols      = 2
	fieldDocOccurrences  = 3
)

// Wire field numbers for SymbolInfo.
const (
	fieldSymSymbol        = 1
	fieldSymDocumentation = 2
	fieldSymRelationships = 3
)

// Wire field numbers for Relationship.
const (
	fieldRelSymbol           = 1
	fieldRelIsImplementation = 2
	fieldRelIsReference      = 3
	fieldRelIsTypeDefinition = 4
)

// Wire field numbers for Occurrence.
const (
	fieldOccSymbol      = 1
	fieldOccRange       = 2
	fieldOccSymbolRoles = 3
)

// localSymbolPrefix marks a symbol as file-scoped (a local variable or
// similar) rather than cross-file — these are skipped by the loader
// since they are never useful outside the file that defines them.
const localSymbolPrefix = "local "

// IsLocal reports whether a symbol_string identifies a file-scoped symbol.
func IsLocal(symbol string) bool {
	return len(symbol) >= len(localSymbolPrefix) && symbol[:len(localSymbolPrefix)] == localSymbolPrefix
}
