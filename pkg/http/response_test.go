package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Source string `param:"source" validate:"required"`
	Limit  int    `query:"limit" default:"10" validate:"gte=1,lte=100"`
	Sort   string `query:"sort" default:"weight" validate:"oneof=weight source"`
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, target string, h echo.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	e.GET("/items/:source", h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func listHandler(c echo.Context) error {
	q := &listQuery{}
	if err := ReadAndValidateRequest(c, q); err != nil {
		return ErrorResponse(c, err)
	}
	return ListResponse(c, []string{q.Source, q.Sort}, int64(q.Limit))
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	rec, env := serve(t, "/items/a", listHandler)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Rows  []string `json:"rows"`
		Total int64    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"a", "weight"}, list.Rows)
	assert.Equal(t, int64(10), list.Total)
}

func TestReadAndValidateRequestReportsWireNames(t *testing.T) {
	rec, env := serve(t, "/items/a?limit=500&sort=newest", listHandler)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs []FieldError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 2)
	assert.Equal(t, "limit", errs[0].Field)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
	assert.Equal(t, "limit must be at most 100", errs[0].Message)
	assert.Equal(t, "sort", errs[1].Field)
	assert.Equal(t, "sort must be one of: weight, source", errs[1].Message)
}

func TestErrorResponseStatuses(t *testing.T) {
	rec, env := serve(t, "/items/x", func(c echo.Context) error {
		return ErrorResponse(c, NotFoundErrorf("item %q", c.Param("source")).WithParam("id", "x"))
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var errs []AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotFound, errs[0].Code)
	assert.Equal(t, `item "x"`, errs[0].Message)

	cause := errors.New("dial tcp: refused")
	rec, _ = serve(t, "/items/x", func(c echo.Context) error {
		return ErrorResponse(c, InternalError("archive unavailable").WithError(cause))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")

	rec, _ = serve(t, "/items/x", func(c echo.Context) error { return ErrorResponse(c, cause) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.ErrorIs(t, InternalError("x").WithError(cause), cause)
}

func TestHandlersRegistersAll(t *testing.T) {
	e := echo.New()
	Handlers{routeFunc("/a"), nil, routeFunc("/b")}.RegisterRoutes(e)
	assert.Len(t, e.Routes(), 2)
}

type routeFunc string

func (p routeFunc) RegisterRoutes(e *echo.Echo) {
	e.GET(string(p), func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}
