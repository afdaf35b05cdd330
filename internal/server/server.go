package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ktdde/internal/catalog"
	"ktdde/internal/jsonview"
	"ktdde/internal/metrics"
	"ktdde/internal/transform"
	"ktdde/internal/view"
)

// Config for the HTTP API handler.
type Config struct {
	Catalog  *catalog.Live
	BasePath string
	Issuer   transform.Issuer
	Contexts []string
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Now stamps credentials that do not ask for a fixed issuance time.
	Now func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"document bill_of_ladin not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"key\":\"bill_of_ladin\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the read-only trade document API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Catalog == nil || cfg.Catalog.Load() == nil {
		return nil, errors.New("server: catalog is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger, cfg.Metrics))
	hcfg := huma.DefaultConfig("KTDDE Trade Documents API", "0.1.0")
	hcfg.OpenAPIPath = "" // served under the base path below
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := &handlers{cfg: cfg}
	registerDocs(router, basePath)
	router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	registerHealth(group, h)
	registerActors(group, h)
	registerDocuments(group, h)
	registerTimeline(group, h)
	registerMappings(group, h)
	registerIntegrity(group, h)
	if err := registerOpenAPI(router, api, basePath); err != nil {
		return nil, err
	}
	return router, nil
}

type handlers struct {
	cfg Config
}

func (h *handlers) catalog() *catalog.Catalog { return h.cfg.Catalog.Load() }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func notFound(kind, key string) huma.StatusError {
	return newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("%s %s not found", kind, key), map[string]any{"key": key})
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, transform.ErrNoMapping):
		return newAPIError(http.StatusNotFound, "no_mapping", err.Error(), nil)
	case errors.Is(err, catalog.ErrInvalidScenario):
		return newAPIError(http.StatusInternalServerError, "invalid_scenario", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestLogger logs one line per request and records its duration under
// the matched route pattern.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, fmt.Sprint(status), start)
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

// registerOpenAPI serializes the document once; every operation must be
// registered before it is called.
func registerOpenAPI(r chi.Router, api huma.API, basePath string) error {
	oas := api.OpenAPI()
	ensureDefaultErrorResponses(oas)
	spec, err := json.Marshal(oas)
	if err != nil {
		return fmt.Errorf("server: openapi: %w", err)
	}
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
	return nil
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	ref := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: ref},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>KTDDE Trade Documents API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		c := h.catalog()
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{
			Status:    "ok",
			Scenario:  c.Info.ID,
			Source:    c.Source(),
			Documents: len(c.Documents()),
		}}, nil
	})
}

func registerActors(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ActorListResponse `json:"body"`
	}, error) {
		c := h.catalog()
		resp := ActorListResponse{Items: []ActorResponse{}}
		for _, a := range c.Actors() {
			resp.Items = append(resp.Items, actorResponse(a, len(c.DocumentsFor(a.Key))))
		}
		return &struct {
			Body ActorListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actor-documents",
		Method:      http.MethodGet,
		Path:        "/actors/{actor}/documents",
		Summary:     "Documents visible to an actor, in view order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Actor string `path:"actor" example:"bank"`
	}) (*struct {
		Body ActorDocumentsResponse `json:"body"`
	}, error) {
		c := h.catalog()
		if _, ok := c.Actor(input.Actor); !ok {
			return nil, notFound("actor", input.Actor)
		}
		m := view.New(c)
		m.SelectActor(input.Actor)
		cards := m.Cards()
		h.cfg.Metrics.IncrementActorView(input.Actor)
		resp := ActorDocumentsResponse{Actor: input.Actor, Items: cards}
		if len(cards) == 0 {
			resp.Empty = view.NoDocuments
		}
		return &struct {
			Body ActorDocumentsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

type documentPath struct {
	Key string `path:"key" example:"bill_of_lading"`
}

func registerDocuments(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents in authored order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DocumentListResponse `json:"body"`
	}, error) {
		resp := DocumentListResponse{Items: []DocumentSummary{}}
		for _, d := range h.catalog().Documents() {
			resp.Items = append(resp.Items, documentSummary(d))
		}
		return &struct {
			Body DocumentListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{key}",
		Summary:     "Get a document with its content",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		d, ok := h.catalog().Get(input.Key)
		if !ok {
			return nil, notFound("document", input.Key)
		}
		resp, err := documentResponse(d)
		if err != nil {
			return nil, handleError(err)
		}
		h.cfg.Metrics.IncrementDocumentView(d.Key)
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-document",
		Method:      http.MethodGet,
		Path:        "/documents/{key}/render",
		Summary:     "Render document content as highlighted JSON",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key    string `path:"key" example:"bill_of_lading"`
		Format string `query:"format" enum:"text,html,ansi" default:"text"`
	}) (*RawResponse, error) {
		d, ok := h.catalog().Get(input.Key)
		if !ok {
			return nil, notFound("document", input.Key)
		}
		format, ok := jsonview.ParseFormat(input.Format)
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid format", map[string]any{"format": input.Format})
		}
		out, err := jsonview.Render(d.Content, format, nil)
		if err != nil {
			return nil, handleError(err)
		}
		contentType := "text/plain; charset=utf-8"
		if format == jsonview.FormatHTML {
			contentType = "text/html; charset=utf-8"
		}
		h.cfg.Metrics.IncrementDocumentView(d.Key)
		return &RawResponse{ContentType: contentType, Body: []byte(out)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-credential",
		Method:      http.MethodGet,
		Path:        "/documents/{key}/credential",
		Summary:     "Wrap a document in a Verifiable Credential envelope",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key      string `path:"key" example:"commercial_invoice"`
		Format   string `query:"format" enum:"json,cbor" default:"json"`
		IssuedAt string `query:"issued_at" doc:"RFC3339 issuance time; defaults to now"`
	}) (*RawResponse, error) {
		d, ok := h.catalog().Get(input.Key)
		if !ok {
			return nil, notFound("document", input.Key)
		}
		opts, err := h.credentialOptions(input.IssuedAt)
		if err != nil {
			return nil, err
		}
		cred := transform.Credential(d, opts)
		h.cfg.Metrics.IncrementCredential()
		if input.Format == "cbor" {
			data, err := transform.EncodeCBOR(cred)
			if err != nil {
				return nil, handleError(err)
			}
			return &RawResponse{ContentType: "application/cbor", Body: data}, nil
		}
		out, err := jsonview.Render(cred, jsonview.FormatText, nil)
		if err != nil {
			return nil, handleError(err)
		}
		return &RawResponse{ContentType: "application/json", Body: []byte(out)}, nil
	})
}

func (h *handlers) credentialOptions(issuedAt string) (transform.Options, error) {
	opts := transform.Options{
		Issuer:   h.cfg.Issuer,
		Contexts: h.cfg.Contexts,
		IssuedAt: h.cfg.Now(),
	}
	if issuedAt != "" {
		t, err := time.Parse(time.RFC3339, issuedAt)
		if err != nil {
			return opts, newAPIError(http.StatusBadRequest, "bad_request", "invalid issued_at", map[string]any{"issued_at": issuedAt})
		}
		opts.IssuedAt = t
	}
	return opts, nil
}

func registerTimeline(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "timeline",
		Method:      http.MethodGet,
		Path:        "/timeline",
		Summary:     "Dated events in authored order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Actor string `query:"actor" doc:"Mark entries whose document this actor sees"`
	}) (*struct {
		Body TimelineResponse `json:"body"`
	}, error) {
		m := view.New(h.catalog())
		if input.Actor != "" && !m.SelectActor(input.Actor) {
			return nil, notFound("actor", input.Actor)
		}
		return &struct {
			Body TimelineResponse `json:"body"`
		}{Body: TimelineResponse{Actor: m.Actor, Items: m.Timeline()}}, nil
	})
}

func registerMappings(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-mapping",
		Method:      http.MethodGet,
		Path:        "/mappings/{key}",
		Summary:     "SAP source tables and field mappings of a document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body MappingResponse `json:"body"`
	}, error) {
		d, ok := h.catalog().Get(input.Key)
		if !ok {
			return nil, notFound("document", input.Key)
		}
		if d.Source == nil || len(d.Source.Mappings) == 0 {
			return nil, handleError(fmt.Errorf("%s: %w", d.Key, transform.ErrNoMapping))
		}
		return &struct {
			Body MappingResponse `json:"body"`
		}{Body: MappingResponse{Doc: d.Key, Type: d.Type, Tables: d.Source.Tables, Mappings: d.Source.Mappings}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mapping-steps",
		Method:      http.MethodGet,
		Path:        "/mappings/{key}/steps",
		Summary:     "Every frame of the scripted transformation, ending with the credential",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key      string `path:"key" example:"purchase_order"`
		IssuedAt string `query:"issued_at" doc:"RFC3339 issuance time; defaults to now"`
	}) (*struct {
		Body StepsResponse `json:"body"`
	}, error) {
		d, ok := h.catalog().Get(input.Key)
		if !ok {
			return nil, notFound("document", input.Key)
		}
		opts, err := h.credentialOptions(input.IssuedAt)
		if err != nil {
			return nil, err
		}
		reveal, err := transform.Plan(d, opts)
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := stepsResponse(reveal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerIntegrity(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "integrity",
		Method:      http.MethodGet,
		Path:        "/integrity",
		Summary:     "Check authored invariants of the scenario",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body IntegrityResponse `json:"body"`
	}, error) {
		rep := catalog.Check(h.catalog())
		return &struct {
			Body IntegrityResponse `json:"body"`
		}{Body: IntegrityResponse{OK: rep.OK(), Checked: rep.Checked, Issues: rep.Issues}}, nil
	})
}
