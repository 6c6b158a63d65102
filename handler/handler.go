package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mimic-assistant/internal/domain"
	"mimic-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Conversation(ctx context.Context, id string) (usecase.ChatOutput, error)
}

type CatalogUseCase interface {
	Projects(category string) ([]domain.Project, error)
	Tech() []domain.TechItem
	Innovations() []domain.Innovation
	Dossier(ctx context.Context, projectID string) (string, error)
	Overview(ctx context.Context, techID string) (string, error)
	Overviews(ctx context.Context) map[string]string
}

type Handler struct {
	chat    ChatUseCase
	catalog CatalogUseCase
	logger  *slog.Logger
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Reply          string           `json:"reply,omitempty"`
	ConversationID string           `json:"conversationId"`
	Privileged     bool             `json:"privileged"`
	Pending        bool             `json:"pending"`
	Log            []domain.Message `json:"log"`
}

type textResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(chat ChatUseCase, catalog CatalogUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("handler: catalog use case must not be nil")
	}
	return &Handler{chat: chat, catalog: catalog, logger: slog.Default()}, nil
}

// Handle routes an API Gateway proxy event. Routes are matched on the
// resource pattern (e.g. /chat/{conversationId}); events without one fall
// back to the raw path, which covers the static routes.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	route := req.Resource
	if route == "" {
		route = req.Path
	}

	switch req.HTTPMethod + " " + route {
	case "GET /healthz":
		return jsonResponse(http.StatusOK, corrID, map[string]string{"status": "ok"}), nil
	case "POST /chat":
		return h.postChat(ctx, req, corrID), nil
	case "GET /chat/{conversationId}":
		return h.getConversation(ctx, req.PathParameters["conversationId"], corrID), nil
	case "GET /catalog/projects":
		projects, err := h.catalog.Projects(req.QueryStringParameters["category"])
		if err != nil {
			return h.errorFromUseCase(err, corrID), nil
		}
		return jsonResponse(http.StatusOK, corrID, projects), nil
	case "GET /catalog/tech":
		return jsonResponse(http.StatusOK, corrID, h.catalog.Tech()), nil
	case "GET /catalog/tech/overviews":
		return jsonResponse(http.StatusOK, corrID, h.catalog.Overviews(ctx)), nil
	case "GET /catalog/innovations":
		return jsonResponse(http.StatusOK, corrID, h.catalog.Innovations()), nil
	case "POST /catalog/projects/{id}/dossier":
		text, err := h.catalog.Dossier(ctx, req.PathParameters["id"])
		if err != nil {
			return h.errorFromUseCase(err, corrID), nil
		}
		return jsonResponse(http.StatusOK, corrID, textResponse{Text: text}), nil
	case "POST /catalog/tech/{id}/overview":
		text, err := h.catalog.Overview(ctx, req.PathParameters["id"])
		if err != nil {
			return h.errorFromUseCase(err, corrID), nil
		}
		return jsonResponse(http.StatusOK, corrID, textResponse{Text: text}), nil
	}
	return errorJSON(http.StatusNotFound, corrID, usecase.ErrorNotFound, "route_not_found"), nil
}

func (h *Handler) postChat(ctx context.Context, req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return errorJSON(http.StatusBadRequest, corrID, usecase.ErrorInvalidInput, "invalid_body")
	}
	var in chatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, corrID, usecase.ErrorInvalidInput, "invalid_json")
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{Message: in.Message, ConversationID: in.ConversationID})
	if err != nil {
		return h.errorFromUseCase(err, corrID)
	}
	return jsonResponse(http.StatusOK, corrID, toChatResponse(out))
}

func (h *Handler) getConversation(ctx context.Context, id, corrID string) events.APIGatewayProxyResponse {
	out, err := h.chat.Conversation(ctx, id)
	if err != nil {
		return h.errorFromUseCase(err, corrID)
	}
	return jsonResponse(http.StatusOK, corrID, toChatResponse(out))
}

func (h *Handler) errorFromUseCase(err error, corrID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.logger.Error("handler: unexpected error", "correlationId", corrID, "err", err)
		return errorJSON(http.StatusInternalServerError, corrID, usecase.ErrorInternal, "unexpected")
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorBusy:
		status = http.StatusConflict
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("handler: request failed", "correlationId", corrID, "reason", ucErr.Reason, "err", err)
	}
	return errorJSON(status, corrID, ucErr.Code, ucErr.Reason)
}

func toChatResponse(out usecase.ChatOutput) chatResponse {
	log := out.Log
	if log == nil {
		log = []domain.Message{}
	}
	return chatResponse{
		Reply:          out.Reply,
		ConversationID: out.ConversationID,
		Privileged:     out.Privileged,
		Pending:        out.Pending,
		Log:            log,
	}
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return newUUID()
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return errorJSON(http.StatusInternalServerError, corrID, usecase.ErrorInternal, "encode_error")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

func errorJSON(status int, corrID string, code usecase.ErrorCode, reason string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: string(code), Message: reason})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
