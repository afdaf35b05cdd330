package server

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"ktdde/internal/catalog"
	"ktdde/internal/domain"
	"ktdde/internal/jsonview"
	"ktdde/internal/transform"
	"ktdde/internal/view"
)

// OrderedJSON is document content serialized in authored key order.
type OrderedJSON json.RawMessage

func (o OrderedJSON) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("null"), nil
	}
	return o, nil
}

func (o *OrderedJSON) UnmarshalJSON(b []byte) error {
	*o = append((*o)[:0], b...)
	return nil
}

// Schema describes OrderedJSON as a free-form object rather than bytes.
func (OrderedJSON) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{Type: huma.TypeObject, AdditionalProperties: true}
}

// Responses

type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Scenario  string `json:"scenario" example:"FINLAND_TO_JAPAN_GLUELAM_TIMBER"`
	Source    string `json:"source" example:"embedded"`
	Documents int    `json:"documents" example:"15"`
}

type ActorResponse struct {
	Key         string `json:"key" example:"bank"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Documents   int    `json:"documents"`
}

type ActorListResponse struct {
	Items []ActorResponse `json:"items"`
}

type ActorDocumentsResponse struct {
	Actor string      `json:"actor"`
	Items []view.Card `json:"items"`
	// Empty carries the placeholder text when the actor sees nothing.
	Empty string `json:"empty,omitempty"`
}

type DocumentSummary struct {
	Key         string         `json:"key" example:"bill_of_lading"`
	Type        string         `json:"type" example:"BillOfLading"`
	Title       string         `json:"title"`
	Icon        string         `json:"icon"`
	Description string         `json:"description"`
	BusinessID  string         `json:"business_id,omitempty"`
	HasMapping  bool           `json:"has_mapping"`
	Views       map[string]int `json:"views"`
}

type DocumentListResponse struct {
	Items []DocumentSummary `json:"items"`
}

type DocumentResponse struct {
	DocumentSummary
	Content OrderedJSON `json:"content"`
}

type TimelineResponse struct {
	Actor string     `json:"actor"`
	Items []view.Row `json:"items"`
}

type MappingResponse struct {
	Doc      string                `json:"doc"`
	Type     string                `json:"type"`
	Tables   []domain.SAPTable     `json:"tables"`
	Mappings []domain.FieldMapping `json:"mappings"`
}

type StepResponse struct {
	Index   int                     `json:"index"`
	Total   int                     `json:"total"`
	Mapping domain.FieldMapping     `json:"mapping"`
	Field   string                  `json:"field"`
	Sources []transform.SourceValue `json:"sources"`
	Status  string                  `json:"status" example:"Transforming... (1/8 fields)"`
	Frame   OrderedJSON             `json:"frame"`
}

type StepsResponse struct {
	Doc        string            `json:"doc"`
	Tables     []domain.SAPTable `json:"tables"`
	Steps      []StepResponse    `json:"steps"`
	Credential OrderedJSON       `json:"credential"`
}

type IntegrityResponse struct {
	OK      bool            `json:"ok"`
	Checked int             `json:"checked"`
	Issues  []catalog.Issue `json:"issues"`
}

// RawResponse carries a pre-rendered body.
type RawResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func actorResponse(a domain.Actor, docs int) ActorResponse {
	return ActorResponse{
		Key:         a.Key,
		Name:        a.Name,
		Icon:        a.Icon,
		Description: a.Description,
		Documents:   docs,
	}
}

func documentSummary(d domain.Document) DocumentSummary {
	views := make(map[string]int, len(d.Views))
	for k, v := range d.Views {
		views[k] = v
	}
	return DocumentSummary{
		Key:         d.Key,
		Type:        d.Type,
		Title:       d.Title,
		Icon:        d.Icon,
		Description: d.Description,
		BusinessID:  d.BusinessID,
		HasMapping:  d.Source != nil && len(d.Source.Mappings) > 0,
		Views:       views,
	}
}

func documentResponse(d domain.Document) (DocumentResponse, error) {
	content, err := jsonview.Compact(d.Content)
	if err != nil {
		return DocumentResponse{}, err
	}
	return DocumentResponse{DocumentSummary: documentSummary(d), Content: OrderedJSON(content)}, nil
}

func stepsResponse(r transform.Reveal) (StepsResponse, error) {
	exp, err := r.Export()
	if err != nil {
		return StepsResponse{}, err
	}
	resp := StepsResponse{Doc: exp.Doc, Tables: exp.Tables, Steps: make([]StepResponse, 0, len(exp.Steps))}
	for _, s := range exp.Steps {
		resp.Steps = append(resp.Steps, StepResponse{
			Index:   s.Index,
			Total:   s.Total,
			Mapping: s.Mapping,
			Field:   s.Field,
			Sources: s.Sources,
			Status:  s.Status,
			Frame:   OrderedJSON(s.Frame),
		})
	}
	resp.Credential = OrderedJSON(exp.Credential)
	return resp, nil
}
