package xref

import (
	"io"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/pkg/models"
)

// Stats counts what one Load call did, for the pipeline stage's progress
// callback and logging.
type Stats struct {
	Documents   int
	Symbols     int
	Occurrences int
	Skipped     int // local (file-scoped) symbols skipped
}

// Load decodes the cross-reference stream from r and replaces repoID's
// entire cross-reference data set: ClearRepoXrefs first, since cross-
// references are not incrementally updatable (spec.md §4.5) — every
// load-xrefs run is a full reload.
func Load(r io.Reader, repoID int64, db *store.DB, progress func(current, total int, subject string)) (Stats, error) {
	var stats Stats

	if err := db.ClearRepoXrefs(repoID); err != nil {
		return stats, err
	}

	err := Decode(r, func(doc Document) error {
		if err := loadDocument(db, repoID, doc, &stats); err != nil {
			return err
		}
		stats.Documents++
		if progress != nil {
			progress(stats.Documents, 0, doc.RelativePath)
		}
		return nil
	})
	return stats, err
}

func loadDocument(db *store.DB, repoID int64, doc Document, stats *Stats) error {
	idBySymbol := make(map[string]int64, len(doc.Symbols))

	for _, sym := range doc.Symbols {
		if IsLocal(sym.Symbol) {
			stats.Skipped++
			continue
		}
		row, err := db.UpsertXrefSymbol(repoID, sym.Symbol, strings.Join(sym.Documentation, "\n"))
		if err != nil {
			return err
		}
		idBySymbol[sym.Symbol] = row.ID
		stats.Symbols++
	}

	for _, sym := range doc.Symbols {
		fromID, ok := idBySymbol[sym.Symbol]
		if !ok {
			continue
		}
		for _, rel := range sym.Relationships {
			if IsLocal(rel.Symbol) {
				continue
			}
			toID, err := resolveRelated(db, repoID, rel.Symbol, idBySymbol)
			if err != nil {
				return err
			}
			kind, ok := relationshipKind(rel)
			if !ok {
				continue
			}
			if err := db.InsertXrefRelationship(&models.XrefRelationship{
				XrefSymbolID:        fromID,
				RelatedXrefSymbolID: toID,
				Kind:                kind,
				RepoID:              repoID,
			}); err != nil {
				return err
			}
		}
	}

	for _, occ := range doc.Occurrences {
		if IsLocal(occ.Symbol) {
			continue
		}
		xrefID, ok := idBySymbol[occ.Symbol]
		if !ok {
			// Referenced symbol wasn't declared in this document — it
			// belongs to another file already loaded (or yet to load);
			// resolve or mint a placeholder row so the occurrence has
			// somewhere to point.
			row, err := db.UpsertXrefSymbol(repoID, occ.Symbol, "")
			if err != nil {
				return err
			}
			xrefID = row.ID
			idBySymbol[occ.Symbol] = xrefID
		}

		rng, err := occurrenceRange(occ.Range)
		if err != nil {
			return err
		}

		role := models.RoleReference
		if occ.IsDefinition() {
			role = models.RoleDefinition
		}

		if err := db.InsertOccurrence(&models.Occurrence{
			XrefSymbolID: xrefID,
			RepoID:       repoID,
			FilePath:     doc.RelativePath,
			Range:        rng,
			Role:         role,
		}); err != nil {
			return err
		}
		stats.Occurrences++
	}

	return nil
}

func resolveRelated(db *store.DB, repoID int64, symbol string, idBySymbol map[string]int64) (int64, error) {
	if id, ok := idBySymbol[symbol]; ok {
		return id, nil
	}
	row, err := db.UpsertXrefSymbol(repoID, symbol, "")
	if err != nil {
		return 0, err
	}
	idBySymbol[symbol] = row.ID
	return row.ID, nil
}

func relationshipKind(rel Relationship) (models.RelationshipKind, bool) {
	switch {
	case rel.IsImplementation:
		return models.RelImplementation, true
	case rel.IsTypeDefinition:
		return models.RelTypeDefinition, true
	case rel.IsReference:
		return models.RelReference, true
	default:
		return "", false
	}
}

// occurrenceRange expands a 3-tuple (same-line: [line, colStart, colEnd])
// or 4-tuple (cross-line: [startLine, startCol, endLine, endCol]) range
// into a models.Range.
func occurrenceRange(r []int32) (models.Range, error) {
	switch len(r) {
	case 3:
		return models.Range{
			StartLine: int(r[0]) + 1,
			StartCol:  int(r[1]),
			EndLine:   int(r[0]) + 1,
			EndCol:    int(r[2]),
		}, nil
	case 4:
		return models.Range{
			StartLine: int(r[0]) + 1,
			StartCol:  int(r[1]),
			EndLine:   int(r[2]) + 1,
			EndCol:    int(r[3]),
		}, nil
	default:
		return models.Range{}, ierrors.New(ierrors.ParseErr, "xref: range must have 3 or 4 elements")
	}
}
