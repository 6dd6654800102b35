package teams

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(repo *fakeRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewService(NewApp(repo)).RegisterRoutes(mux)
	return mux
}

func TestServiceCreateAndGet(t *testing.T) {
	repo := newFakeRepo()
	mux := newTestMux(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/teams", strings.NewReader(`{"name":"Falcons"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Team
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Falcons", created.Name)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/teams/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	mux := newTestMux(newFakeRepo())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "missing name", method: http.MethodPost, path: "/api/teams", body: `{"name":""}`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/api/teams", body: `{"nome":"x"}`, want: http.StatusBadRequest},
		{name: "bad id", method: http.MethodGet, path: "/api/teams/not-a-uuid", want: http.StatusBadRequest},
		{name: "not found", method: http.MethodGet, path: "/api/teams/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "delete not found", method: http.MethodDelete, path: "/api/teams/" + uuid.NewString(), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestServiceListEmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(newFakeRepo()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/teams", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
