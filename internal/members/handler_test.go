package members

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

type tokenTable map[string]string

func (t tokenTable) Verify(_ context.Context, token string) (rbac.Identity, error) {
	username, ok := t[token]
	if !ok {
		return rbac.Identity{}, rbac.ErrUnauthenticated
	}
	return rbac.Identity{Username: username}, nil
}

type grants map[string][]rbac.Permission

func (g grants) LoadPermissions(_ context.Context, username string) (rbac.Set, error) {
	perms, ok := g[username]
	if !ok {
		return rbac.Set{}, rbac.ErrIdentityNotFound
	}
	return rbac.NewSet(perms...), nil
}

func TestMemberRoutes(t *testing.T) {
	mw := rbac.Middleware{
		Tokens: tokenTable{"clerk": "cara", "auditor": "abe"},
		Store: grants{
			"cara": {rbac.CreateMembers, rbac.DeleteMembers},
			"abe":  {rbac.ViewMembers},
		},
	}
	r := chi.NewRouter()
	r.Route("/members", NewHandler(nil, NewService(newMemoryRepository(), nil), mw).MountRoutes)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res
	}

	res := do(http.MethodPost, "/members/", "clerk", `{"name":"Clementine","email":"nathan@yesenia.net","city":"McKenziehaven"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = do(http.MethodPost, "/members/", "clerk", `{"name":"Clementine","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"Email":"email"`)

	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/members/", "auditor", `{"name":"X","email":"x@example.com"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPut, "/members/1", "clerk", `{"name":"X","email":"x@example.com"}`).Code)

	res = do(http.MethodGet, "/members/", "auditor", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"nathan@yesenia.net"`)

	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/members/1", "clerk", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/members/1", "clerk", "").Code)
}
