package handler

import (
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 64 << 10

// routes mirrors the API Gateway resources; chi uses the same {param} syntax.
var routes = []struct {
	method  string
	pattern string
}{
	{http.MethodGet, "/healthz"},
	{http.MethodPost, "/chat"},
	{http.MethodGet, "/chat/{conversationId}"},
	{http.MethodGet, "/catalog/projects"},
	{http.MethodGet, "/catalog/tech"},
	{http.MethodGet, "/catalog/tech/overviews"},
	{http.MethodGet, "/catalog/innovations"},
	{http.MethodPost, "/catalog/projects/{id}/dossier"},
	{http.MethodPost, "/catalog/tech/{id}/overview"},
}

// Router serves the Lambda routes over plain HTTP for local runs.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	for _, rt := range routes {
		r.Method(rt.method, rt.pattern, http.HandlerFunc(h.serveHTTP))
	}
	r.NotFound(h.serveHTTP)
	r.MethodNotAllowed(h.serveHTTP)
	return r
}

func (h *Handler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp, err := h.Handle(r.Context(), toEvent(r, string(body)))
	if err != nil {
		h.logger.Error("handler: lambda handler returned error", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

func toEvent(r *http.Request, body string) events.APIGatewayProxyRequest {
	event := events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               make(map[string]string, len(r.Header)),
		QueryStringParameters: make(map[string]string),
		PathParameters:        make(map[string]string),
		Body:                  body,
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			event.Headers[k] = v[0]
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			event.QueryStringParameters[k] = v[0]
		}
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		event.Resource = rctx.RoutePattern()
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) {
				event.PathParameters[key] = rctx.URLParams.Values[i]
			}
		}
	}
	return event
}
