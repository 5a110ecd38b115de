package xref

import (
	"bufio"
	"encoding/binary"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// maxDocumentBytes bounds a single Document's encoded size, guarding
// against a corrupt length prefix driving an unbounded allocation.
const maxDocumentBytes = 64 << 20

// Decode reads a length-delimited Document stream from r, calling fn for
// each document in order. Decoding stops and returns fn's error if it
// returns one. A clean io.EOF between documents ends decoding normally.
func Decode(r io.Reader, fn func(Document) error) error {
	br := bufio.NewReader(r)
	for {
		length, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ierrors.Wrap(ierrors.ParseErr, "xref: read document length", err)
		}
		if length > maxDocumentBytes {
			return ierrors.New(ierrors.ParseErr, "xref: document exceeds size limit")
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(br, buf); err != nil {
			return ierrors.Wrap(ierrors.ParseErr, "xref: read document body", err)
		}

		doc, err := parseDocument(buf)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// ReadAll decodes every document in the stream into a slice.
func ReadAll(r io.Reader) ([]Document, error) {
	var docs []Document
	err := Decode(r, func(d Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

func parseDocument(data []byte) (Document, error) {
	var doc Document
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return doc, ierrors.New(ierrors.ParseErr, "xref: malformed document tag")
		}
		data = data[n:]

		switch num {
		case fieldDocRelativePath:
			v, n, err := consumeString(data, typ)
			if err != nil {
				return doc, err
			}
			doc.RelativePath = v
			data = data[n:]
		case fieldDocSymbols:
			msg, n, err := consumeMessage(data, typ)
			if err != nil {
				return doc, err
			}
			sym, err := parseSymbolInfo(msg)
			if err != nil {
				return doc, err
			}
			doc.Symbols = append(doc.Symbols, sym)
			data = data[n:]
		case fieldDocOccurrences:
			msg, n, err := consumeMessage(data, typ)
			if err != nil {
				return doc, err
			}
			occ, err := parseOccurrence(msg)
			if err != nil {
				return doc, err
			}
			doc.Occurrences = append(doc.Occurrences, occ)
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return doc, err
			}
			data = data[n:]
		}
	}
	return doc, nil
}

func parseSymbolInfo(data []byte) (SymbolInfo, error) {
	var sym SymbolInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return sym, ierrors.New(ierrors.ParseErr, "xref: malformed symbol tag")
		}
		data = data[n:]

		switch num {
		case fieldSymSymbol:
			v, n, err := consumeString(data, typ)
			if err != nil {
				return sym, err
			}
			sym.Symbol = v
			data = data[n:]
		case fieldSymDocumentation:
			v, n, err := consumeString(data, typ)
			if err != nil {
				return sym, err
			}
			sym.Documentation = append(sym.Documentation, v)
			data = data[n:]
		case fieldSymRelationships:
			msg, n, err := consumeMessage(data, typ)
			if err != nil {
				return sym, err
			}
			rel, err := parseRelationship(msg)
			if err != nil {
				return sym, err
			}
			sym.Relationships = append(sym.Relationships, rel)
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return sym, err
			}
			data = data[n:]
		}
	}
	return sym, nil
}

func parseRelationship(data []byte) (Relationship, error) {
	var rel Relationship
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return rel, ierrors.New(ierrors.ParseErr, "xref: malformed relationship tag")
		}
		data = data[n:]

		switch num {
		case fieldRelSymbol:
			v, n, err := consumeString(data, typ)
			if err != nil {
				return rel, err
			}
			rel.Symbol = v
			data = data[n:]
		case fieldRelIsImplementation:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return rel, err
			}
			rel.IsImplementation = v != 0
			data = data[n:]
		case fieldRelIsReference:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return rel, err
			}
			rel.IsReference = v != 0
			data = data[n:]
		case fieldRelIsTypeDefinition:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return rel, err
			}
			rel.IsTypeDefinition = v != 0
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return rel, err
			}
			data = data[n:]
		}
	}
	return rel, nil
}

func parseOccurrence(data []byte) (Occurrence, error) {
	var occ Occurrence
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return occ, ierrors.New(ierrors.ParseErr, "xref: malformed occurrence tag")
		}
		data = data[n:]

		switch num {
		case fieldOccSymbol:
			v, n, err := consumeString(data, typ)
			if err != nil {
				return occ, err
			}
			occ.Symbol = v
			data = data[n:]
		case fieldOccRange:
			vals, n, err := consumePackedVarints(data, typ)
			if err != nil {
				return occ, err
			}
			occ.Range = vals
			data = data[n:]
		case fieldOccSymbolRoles:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return occ, err
			}
			occ.SymbolRoles = int32(v)
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return occ, err
			}
			data = data[n:]
		}
	}
	return occ, nil
}

func consumeString(data []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, ierrors.New(ierrors.ParseErr, "xref: expected length-delimited field")
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return "", 0, ierrors.New(ierrors.ParseErr, "xref: malformed string field")
	}
	return string(v), n, nil
}

func consumeMessage(data []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, ierrors.New(ierrors.ParseErr, "xref: expected length-delimited message")
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, ierrors.New(ierrors.ParseErr, "xref: malformed message field")
	}
	return v, n, nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, ierrors.New(ierrors.ParseErr, "xref: expected varint field")
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, ierrors.New(ierrors.ParseErr, "xref: malformed varint field")
	}
	return v, n, nil
}

// consumePackedVarints reads a packed-repeated int32 field (the range
// tuple), accepting either the packed (length-delimited) or unpacked
// (plain varint) wire encoding a producer might use.
func consumePackedVarints(data []byte, typ protowire.Type) ([]int32, int, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, 0, ierrors.New(ierrors.ParseErr, "xref: malformed range value")
		}
		return []int32{int32(v)}, n, nil
	}
	if typ != protowire.BytesType {
		return nil, 0, ierrors.New(ierrors.ParseErr, "xref: expected packed range field")
	}
	packed, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, ierrors.New(ierrors.ParseErr, "xref: malformed packed range")
	}
	var vals []int32
	for len(packed) > 0 {
		v, vn := protowire.ConsumeVarint(packed)
		if vn < 0 {
			return nil, 0, ierrors.New(ierrors.ParseErr, "xref: malformed packed range value")
		}
		vals = append(vals, int32(v))
		packed = packed[vn:]
	}
	return vals, n, nil
}

func skipField(data []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return 0, ierrors.New(ierrors.ParseErr, "xref: malformed field")
	}
	return n, nil
}
