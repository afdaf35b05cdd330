package transform

import (
	"encoding/json"

	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
)

// Export is a Reveal with every frame serialized in authored key order.
type Export struct {
	Doc        string            `json:"doc"`
	Tables     []domain.SAPTable `json:"tables"`
	Steps      []ExportStep      `json:"steps"`
	Credential json.RawMessage   `json:"credential"`
}

type ExportStep struct {
	Index   int                 `json:"index"`
	Total   int                 `json:"total"`
	Mapping domain.FieldMapping `json:"mapping"`
	Field   string              `json:"field"`
	Sources []SourceValue       `json:"sources"`
	Status  string              `json:"status"`
	Frame   json.RawMessage     `json:"frame"`
}

func (r Reveal) Export() (Export, error) {
	out := Export{Doc: r.Doc.Key, Tables: r.Tables, Steps: make([]ExportStep, 0, len(r.Steps))}
	for _, s := range r.Steps {
		frame, err := jsonview.Compact(s.Frame)
		if err != nil {
			return out, err
		}
		out.Steps = append(out.Steps, ExportStep{
			Index:   s.Index,
			Total:   s.Total,
			Mapping: s.Mapping,
			Field:   s.Field,
			Sources: s.Sources,
			Status:  s.Status,
			Frame:   frame,
		})
	}
	cred, err := jsonview.Compact(r.Credential)
	if err != nil {
		return out, err
	}
	out.Credential = cred
	return out, nil
}
