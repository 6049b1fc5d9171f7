package subscription

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/pkg/response"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newTestService(t)
	router := gin.New()

	authMW := func(c *gin.Context) {
		if c.GetHeader("Authorization") != "secret" {
			response.Unauthorized(c)
		}
	}
	NewHandler(svc, zap.NewNop()).RegisterRoutes(router.Group(""), authMW)
	return router, svc
}

func do(router *gin.Engine, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := do(router, http.MethodGet, "/subscribe?email="+url.QueryEscape("Ola@Example.org"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	job, err := svc.DequeueEmail(t.Context())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, []string{"ola@example.org"}, job.Addresses)
}

func TestSubscribeEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/subscribe", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(router, http.MethodGet, "/subscribe?email=not-an-email", "", nil).Code)
}

func TestVerifyAndUnsubscribeEndpoints(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := t.Context()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	token := tokenFromJob(t, dequeueOne(t, svc))

	assert.Equal(t, http.StatusOK,
		do(router, http.MethodGet, "/verify?token="+token, "", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		do(router, http.MethodGet, "/verify?token="+token, "", nil).Code, "token is single use")

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	assert.Equal(t, http.StatusOK,
		do(router, http.MethodGet, "/unsubscribe?token="+subs[0].UnsubscribeToken, "", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		do(router, http.MethodGet, "/unsubscribe?token="+subs[0].UnsubscribeToken, "", nil).Code)
}

func TestNewPostEndpointRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"title":"Ny post","url":"https://blog.example.org/p/1","summary":"Samandrag"}`
	rec := do(router, http.MethodPost, "/new-post", body, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewPostEndpointQueuesBroadcast(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := t.Context()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	_, err := svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)
	dequeueOne(t, svc) // welcome

	headers := map[string]string{"Content-Type": "application/json", "Authorization": "secret"}
	body := `{"title":"Ny post","url":"https://blog.example.org/p/1","summary":"Samandrag"}`
	rec := do(router, http.MethodPost, "/new-post", body, headers)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	job, err := svc.DequeueEmail(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, []string{"ola@example.org"}, job.Addresses)
	assert.True(t, job.NeedsUnsubscribeLink)

	rec = do(router, http.MethodPost, "/new-post", `{"title":"x"}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing fields are rejected")

	rec = do(router, http.MethodPost, "/new-post",
		`{"title":"x","url":"javascript:alert(1)","summary":"y"}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribersEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := t.Context()

	require.NoError(t, svc.Subscribe(ctx, "ola@example.org"))
	_, err := svc.Verify(ctx, tokenFromJob(t, dequeueOne(t, svc)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized,
		do(router, http.MethodGet, "/subscribers", "", nil).Code)

	rec := do(router, http.MethodGet, "/subscribers", "", map[string]string{"Authorization": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data  []string `json:"data"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Count)
	assert.Equal(t, []string{"ola@example.org"}, payload.Data)
}
