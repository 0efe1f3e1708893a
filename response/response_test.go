package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", nil)
	c.Request = req.WithContext(contextx.WithRequestID(req.Context(), "req-9"))
	fn(c)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorXerrors(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) {
		Error(c, xerrors.ErrRateLimited)
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 429101, body.Code)
	assert.Equal(t, "too many requests", body.Msg)
	assert.Equal(t, "req-9", body.RequestID)
}

func TestErrorInternalHidesCause(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) {
		Error(c, errors.New("index out of range [3]"))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body.Msg)
	assert.NotContains(t, rec.Body.String(), "index out of range")
}

func TestErrorGRPCStatus(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) {
		Error(c, status.Error(codes.Unavailable, "backend down"))
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "backend down", body.Msg)
}

func TestErrorWithStatus(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) {
		ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "request body too large", "limit 1024 bytes")
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "limit 1024 bytes", body.Detail)
}

func TestGRPCCodeToHTTP(t *testing.T) {
	assert.Equal(t, 499, grpcCodeToHTTP(codes.Canceled))
	assert.Equal(t, http.StatusBadRequest, grpcCodeToHTTP(codes.InvalidArgument))
	assert.Equal(t, http.StatusInternalServerError, grpcCodeToHTTP(codes.DataLoss))
}
