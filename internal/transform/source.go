package transform

import (
	"fmt"
	"strings"

	"ktdde/internal/domain"
)

// FieldRef names one SAP field, e.g. EKKO.INCO1.
type FieldRef struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

func (r FieldRef) String() string { return r.Table + "." + r.Field }

// ParseSource splits a mapping source expression such as
// "EKKO.INCO1 + INCO2" into field references. A bare field inherits the
// table of the reference before it.
func ParseSource(expr string) ([]FieldRef, error) {
	var refs []FieldRef
	table := ""
	for _, part := range strings.Split(expr, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("source %q: empty term", expr)
		}
		if t, f, ok := strings.Cut(part, "."); ok {
			if t == "" || f == "" {
				return nil, fmt.Errorf("source %q: malformed term %q", expr, part)
			}
			table = t
			refs = append(refs, FieldRef{Table: t, Field: f})
			continue
		}
		if table == "" {
			return nil, fmt.Errorf("source %q: field %q has no table", expr, part)
		}
		refs = append(refs, FieldRef{Table: table, Field: part})
	}
	return refs, nil
}

// TargetField returns the top-level document field a mapping target
// writes, e.g. "goodsItems[].quantity" writes goodsItems.
func TargetField(target string) string {
	if i := strings.IndexAny(target, ".[]{}"); i >= 0 {
		return target[:i]
	}
	return target
}

// SourceValue is a referenced SAP field with its value in every record of
// its table.
type SourceValue struct {
	FieldRef
	Values []string `json:"values"`
}

func resolve(src *domain.SAPSource, refs []FieldRef) ([]SourceValue, error) {
	out := make([]SourceValue, 0, len(refs))
	for _, ref := range refs {
		t, ok := src.Table(ref.Table)
		if !ok {
			return nil, fmt.Errorf("unknown SAP table %s", ref.Table)
		}
		sv := SourceValue{FieldRef: ref}
		for _, rec := range t.Records {
			if v, ok := rec.Get(ref.Field); ok {
				sv.Values = append(sv.Values, v)
			}
		}
		if len(sv.Values) == 0 {
			return nil, fmt.Errorf("SAP field %s has no value", ref)
		}
		out = append(out, sv)
	}
	return out, nil
}
