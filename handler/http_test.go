package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mimic-assistant/internal/usecase"
)

func TestRouter_ChatRoundTrip(t *testing.T) {
	chat := &stubChat{out: usecase.ChatOutput{Reply: "hello", ConversationID: "conv-1"}}
	srv := httptest.NewServer(newTestHandler(t, chat, &stubCatalog{}).Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"hi","conversationId":"conv-1"}`))
	require.NoError(t, err)
	req.Header.Set("X-Correlation-Id", "corr-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-1", resp.Header.Get("X-Correlation-Id"))
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Equal(t, "hi", chat.in.Message)
}

func TestRouter_PathAndQueryParameters(t *testing.T) {
	chat := &stubChat{out: usecase.ChatOutput{ConversationID: "abc"}}
	catalog := &stubCatalog{text: "generated"}
	h := newTestHandler(t, chat, catalog).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc", chat.lookup)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/catalog/tech/esp32/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "esp32", catalog.id)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/projects?category=software", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "software", catalog.category)
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubCatalog{}).Router()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodDelete, "/chat"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), string(usecase.ErrorNotFound))
		require.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
	}
}

func TestRouter_BodyTooLarge(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubCatalog{}).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(strings.Repeat("x", maxBodyBytes+1))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
