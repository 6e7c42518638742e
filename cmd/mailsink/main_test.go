package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(rejectRate float64, capacity int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandler(NewSink(rejectRate, capacity)))
}

func post(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mail/send", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendMail_AcceptedAndStored(t *testing.T) {
	r := newTestRouter(0, 10)

	w := post(t, r, SendMailRequest{MessageID: "m-1", To: "ada@example.com", Subject: "code", HTML: "<b>123456</b>"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SendMailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusAccepted, resp.Status)
	assert.Equal(t, "m-1", resp.MessageID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mail/inbox?to=ADA@example.com", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var inbox struct {
		Items []StoredMail `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, "<b>123456</b>", inbox.Items[0].HTML)
}

func TestSendMail_Rejected(t *testing.T) {
	r := newTestRouter(1, 10)

	w := post(t, r, SendMailRequest{MessageID: "m-2", To: "ada@example.com", Subject: "code"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SendMailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusRejected, resp.Status)
	assert.NotEmpty(t, resp.ErrorMsg)
}

func TestSendMail_InvalidBody(t *testing.T) {
	r := newTestRouter(0, 10)

	w := post(t, r, map[string]string{"to": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSink_Capacity(t *testing.T) {
	s := NewSink(0, 2)
	for _, id := range []string{"a", "b", "c"} {
		s.accept(SendMailRequest{MessageID: id, To: "x@example.com", Subject: "s"})
	}

	got := s.messages("")
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].MessageID)
	assert.Equal(t, "b", got[1].MessageID)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(0, 10)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
