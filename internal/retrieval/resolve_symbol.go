package retrieval

import (
	"fmt"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// ResolveAction selects which relationship resolve_symbol reports.
type ResolveAction string

const (
	ActionDefinition ResolveAction = "definition"
	ActionReferences ResolveAction = "references"
	ActionCallers    ResolveAction = "callers"
	ActionCallees    ResolveAction = "callees"
)

// ResolveHit is one file:line result from resolve_symbol.
type ResolveHit struct {
	Name     string
	FilePath string
	Line     int
}

// ResolveSymbol looks up name by the requested action. Ambiguity (more
// than one structural symbol sharing the name) is disclosed in the
// returned text rather than silently resolved to the first match.
func (t *Tools) ResolveSymbol(repoID int64, name string, action ResolveAction) (string, error) {
	switch action {
	case ActionDefinition:
		return t.resolveDefinition(repoID, name)
	case ActionReferences:
		return t.resolveReferences(repoID, name)
	case ActionCallers:
		return t.resolveCallers(repoID, name)
	case ActionCallees:
		return t.resolveCallees(repoID, name)
	default:
		return "", ierrors.BadRequestf("resolve_symbol: unknown action %q", action)
	}
}

func (t *Tools) resolveDefinition(repoID int64, name string) (string, error) {
	syms, err := t.DB.SymbolsByName(repoID, name)
	if err != nil {
		return "", err
	}
	if len(syms) > 0 {
		return formatHits(symbolsToHits(syms), name, "definition"), nil
	}

	xsym, err := t.DB.XrefSymbolByString(repoID, name)
	if err != nil {
		if ierrors.OfKind(err, ierrors.NotFound) {
			return fmt.Sprintf("no definition found for %q", name), nil
		}
		return "", err
	}
	defs, err := t.DB.OccurrencesForSymbol(xsym.ID, models.RoleDefinition)
	if err != nil {
		return "", err
	}
	return formatOccurrences(defs, name, "definition"), nil
}

func (t *Tools) resolveReferences(repoID int64, name string) (string, error) {
	xsym, err := t.DB.XrefSymbolByString(repoID, name)
	if err != nil {
		if ierrors.OfKind(err, ierrors.NotFound) {
			return fmt.Sprintf("no cross-reference entry for %q", name), nil
		}
		return "", err
	}
	refs, err := t.DB.OccurrencesForSymbol(xsym.ID, models.RoleReference)
	if err != nil {
		return "", err
	}
	return formatOccurrences(refs, name, "reference"), nil
}

func (t *Tools) resolveCallers(repoID int64, name string) (string, error) {
	xsym, err := t.DB.XrefSymbolByString(repoID, name)
	if err != nil {
		if ierrors.OfKind(err, ierrors.NotFound) {
			return fmt.Sprintf("no cross-reference entry for %q", name), nil
		}
		return "", err
	}
	refs, err := t.DB.OccurrencesForSymbol(xsym.ID, models.RoleReference)
	if err != nil {
		return "", err
	}

	seen := map[string]bool{}
	var callers []ResolveHit
	for _, occ := range refs {
		enclosing, err := t.DB.SymbolEnclosing(repoID, occ.FilePath, occ.Range.StartLine)
		if err != nil {
			return "", err
		}
		if enclosing == nil {
			continue
		}
		key := fmt.Sprintf("%s:%s:%d", enclosing.FilePath, enclosing.Name, enclosing.Range.StartLine)
		if seen[key] {
			continue
		}
		seen[key] = true
		callers = append(callers, ResolveHit{Name: enclosing.Name, FilePath: enclosing.FilePath, Line: enclosing.Range.StartLine})
	}
	return formatHits(callers, name, "caller"), nil
}

func (t *Tools) resolveCallees(repoID int64, name string) (string, error) {
	syms, err := t.DB.SymbolsByName(repoID, name)
	if err != nil {
		return "", err
	}
	if len(syms) == 0 {
		return fmt.Sprintf("no definition found for %q", name), nil
	}
	if len(syms) > 1 {
		return formatAmbiguous(syms, name) +
			"\ncallees requires an unambiguous definition; resolve the definition first", nil
	}

	def := syms[0]
	occs, err := t.DB.OccurrencesInRange(repoID, def.FilePath, def.Range.StartLine, def.Range.EndLine)
	if err != nil {
		return "", err
	}

	var callees []ResolveHit
	for _, occ := range occs {
		xsym, err := t.DB.XrefSymbolByID(occ.XrefSymbolID)
		if err != nil {
			continue
		}
		callees = append(callees, ResolveHit{Name: xsym.SymbolString, FilePath: occ.FilePath, Line: occ.Range.StartLine})
	}
	return formatHits(callees, name, "callee"), nil
}

func symbolsToHits(syms []*models.Symbol) []ResolveHit {
	hits := make([]ResolveHit, len(syms))
	for i, s := range syms {
		hits[i] = ResolveHit{Name: s.Name, FilePath: s.FilePath, Line: s.Range.StartLine}
	}
	return hits
}

func formatHits(hits []ResolveHit, name, kind string) string {
	if len(hits) == 0 {
		return fmt.Sprintf("no %s found for %q", kind, name)
	}
	var b strings.Builder
	if len(hits) > 1 {
		fmt.Fprintf(&b, "%d %s matches for %q (ambiguous):\n", len(hits), kind, name)
	}
	for _, h := range hits {
		fmt.Fprintf(&b, "%s:%d  %s\n", h.FilePath, h.Line, h.Name)
	}
	return b.String()
}

func formatOccurrences(occs []*models.Occurrence, name, kind string) string {
	if len(occs) == 0 {
		return fmt.Sprintf("no %s found for %q", kind, name)
	}
	var b strings.Builder
	for _, o := range occs {
		fmt.Fprintf(&b, "%s:%d  %s\n", o.FilePath, o.Range.StartLine, name)
	}
	return b.String()
}

func formatAmbiguous(syms []*models.Symbol, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d definitions match %q (ambiguous):\n", len(syms), name)
	for _, s := range syms {
		fmt.Fprintf(&b, "%s:%d  %s\n", s.FilePath, s.Range.StartLine, s.Name)
	}
	return b.String()
}
