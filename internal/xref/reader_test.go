package xref

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// encodeDocument builds the wire bytes for one Document by hand, mirroring
// what an external cross-reference generator would emit.
func encodeDocument(t *testing.T, relPath string, symbols []SymbolInfo, occs []Occurrence) []byte {
	t.Helper()
	var b []byte
	b = protowire.AppendTag(b, fieldDocRelativePath, protowire.BytesType)
	b = protowire.AppendString(b, relPath)

	for _, sym := range symbols {
		var sb []byte
		sb = protowire.AppendTag(sb, fieldSymSymbol, protowire.BytesType)
		sb = protowire.AppendString(sb, sym.Symbol)
		for _, doc := range sym.Documentation {
			sb = protowire.AppendTag(sb, fieldSymDocumentation, protowire.BytesType)
			sb = protowire.AppendString(sb, doc)
		}
		for _, rel := range sym.Relationships {
			var rb []byte
			rb = protowire.AppendTag(rb, fieldRelSymbol, protowire.BytesType)
			rb = protowire.AppendString(rb, rel.Symbol)
			if rel.IsImplementation {
				rb = protowire.AppendTag(rb, fieldRelIsImplementation, protowire.VarintType)
				rb = protowire.AppendVarint(rb, 1)
			}
			if rel.IsReference {
				rb = protowire.AppendTag(rb, fieldRelIsReference, protowire.VarintType)
				rb = protowire.AppendVarint(rb, 1)
			}
			if rel.IsTypeDefinition {
				rb = protowire.AppendTag(rb, fieldRelIsTypeDefinition, protowire.VarintType)
				rb = protowire.AppendVarint(rb, 1)
			}
			sb = protowire.AppendTag(sb, fieldSymRelationships, protowire.BytesType)
			sb = protowire.AppendBytes(sb, rb)
		}
		b = protowire.AppendTag(b, fieldDocSymbols, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}

	for _, occ := range occs {
		var ob []byte
		ob = protowire.AppendTag(ob, fieldOccSymbol, protowire.BytesType)
		ob = protowire.AppendString(ob, occ.Symbol)

		var packed []byte
		for _, v := range occ.Range {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		ob = protowire.AppendTag(ob, fieldOccRange, protowire.BytesType)
		ob = protowire.AppendBytes(ob, packed)

		ob = protowire.AppendTag(ob, fieldOccSymbolRoles, protowire.VarintType)
		ob = protowire.AppendVarint(ob, uint64(occ.SymbolRoles))

		b = protowire.AppendTag(b, fieldDocOccurrences, protowire.BytesType)
		b = protowire.AppendBytes(b, ob)
	}

	return b
}

func encodeStream(t *testing.T, docs ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	for _, d := range docs {
		n := binary.PutUvarint(lenBuf[:], uint64(len(d)))
		buf.Write(lenBuf[:n])
		buf.Write(d)
	}
	return buf.Bytes()
}

func TestDecode_SingleDocument(t *testing.T) {
	doc := encodeDocument(t, "src/foo.go",
		[]SymbolInfo{{Symbol: "pkg/foo.Bar().", Documentation: []string{"Bar does a thing."}}},
		[]Occurrence{
			{Symbol: "pkg/foo.Bar().", Range: []int32{10, 5, 8}, SymbolRoles: SymbolRoleDefinition},
			{Symbol: "pkg/foo.Bar().", Range: []int32{20, 1, 20, 9}, SymbolRoles: 0},
		},
	)
	stream := encodeStream(t, doc)

	docs, err := ReadAll(bytes.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got := docs[0]
	assert.Equal(t, "src/foo.go", got.RelativePath)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "pkg/foo.Bar().", got.Symbols[0].Symbol)
	assert.Equal(t, []string{"Bar does a thing."}, got.Symbols[0].Documentation)

	require.Len(t, got.Occurrences, 2)
	assert.True(t, got.Occurrences[0].IsDefinition())
	assert.Equal(t, []int32{10, 5, 8}, got.Occurrences[0].Range)
	assert.False(t, got.Occurrences[1].IsDefinition())
	assert.Equal(t, []int32{20, 1, 20, 9}, got.Occurrences[1].Range)
}

func TestDecode_MultipleDocumentsIndependent(t *testing.T) {
	docA := encodeDocument(t, "a.go", []SymbolInfo{{Symbol: "sym.A"}}, nil)
	docB := encodeDocument(t, "b.go", []SymbolInfo{{Symbol: "sym.B"}}, nil)
	stream := encodeStream(t, docA, docB)

	var seen []string
	err := Decode(bytes.NewReader(stream), func(d Document) error {
		seen = append(seen, d.RelativePath)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, seen)
}

func TestDecode_EmptyStream(t *testing.T) {
	docs, err := ReadAll(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("local 5"))
	assert.False(t, IsLocal("pkg/foo.Bar()."))
}
