package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefork/recipebox/pkg/recipebox"
	repomemory "github.com/platefork/recipebox/pkg/recipebox/repo/memory"
	storagememory "github.com/platefork/recipebox/pkg/recipebox/storage/memory"
)

type testServer struct {
	server    *httptest.Server
	tokenAuth *jwtauth.JWTAuth
	owner     *recipebox.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repomemory.New()
	store := storagememory.New()
	svc, err := recipebox.New(
		recipebox.WithRepository(repo),
		recipebox.WithBlobStore(store),
	)
	require.NoError(t, err)

	owner := &recipebox.User{
		ID:        uuid.New(),
		Email:     "cook@example.com",
		UserName:  "cook",
		Role:      recipebox.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), owner))

	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)
	handler := NewHandler(svc, tokenAuth, nil)

	router := chi.NewRouter()
	router.Mount("/api", handler.Routes())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{server: server, tokenAuth: tokenAuth, owner: owner}
}

func (ts *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	_, tokenString, err := ts.tokenAuth.Encode(map[string]interface{}{"sub": userID.String()})
	require.NoError(t, err)
	return tokenString
}

func (ts *testServer) do(t *testing.T, method, path, token string, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func multipartBody(t *testing.T, payload interface{}, files map[string][]byte) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("payload", string(raw)))

	for key, data := range files {
		part, err := writer.CreateFormFile(key, key+".jpg")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return writer.FormDataContentType(), &buf
}

func createRecipe(t *testing.T, ts *testServer) recipebox.Recipe {
	t.Helper()
	contentType, body := multipartBody(t,
		map[string]interface{}{
			"title":       "onion soup",
			"category":    "soup",
			"ingredients": []string{"onion", "stock"},
			"title_image": recipebox.UploadAsset("title"),
			"stages": []recipebox.StagePatch{
				{StageNumber: 1, Description: "chop", Image: recipebox.UploadAsset("stage-1")},
				{StageNumber: 2, Description: "simmer"},
			},
		},
		map[string][]byte{
			"title":   []byte("title bytes"),
			"stage-1": []byte("stage bytes"),
		})

	resp := ts.do(t, http.MethodPost, "/api/recipes", ts.token(t, ts.owner.ID), contentType, body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var recipe recipebox.Recipe
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recipe))
	return recipe
}

func TestCreateRecipeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	recipe := createRecipe(t, ts)

	assert.Equal(t, "onion soup", recipe.Title)
	assert.Equal(t, ts.owner.ID, recipe.OwnerID)
	require.NotNil(t, recipe.TitleAssetRef)
	require.Len(t, recipe.Stages, 2)
	assert.NotNil(t, recipe.Stages[0].AssetRef)
	assert.Nil(t, recipe.Stages[1].AssetRef)
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/recipes", "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetRecipeScopedToOwner(t *testing.T) {
	ts := newTestServer(t)
	recipe := createRecipe(t, ts)
	path := fmt.Sprintf("/api/recipes/%s", recipe.ID)

	resp := ts.do(t, http.MethodGet, path, ts.token(t, ts.owner.ID), "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A valid token for a different user sees nothing.
	resp = ts.do(t, http.MethodGet, path, ts.token(t, uuid.New()), "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRecipesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	createRecipe(t, ts)

	resp := ts.do(t, http.MethodGet, "/api/recipes?skip=0&limit=10", ts.token(t, ts.owner.ID), "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page recipebox.RecipePage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Results, 1)
}

func TestUpdateRecipeWithJSONBody(t *testing.T) {
	ts := newTestServer(t)
	recipe := createRecipe(t, ts)

	body := bytes.NewBufferString(`{"title":"french onion soup","title_image":{"op":"clear"}}`)
	resp := ts.do(t, http.MethodPut, "/api/recipes/"+recipe.ID.String(),
		ts.token(t, ts.owner.ID), "application/json", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated recipebox.Recipe
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "french onion soup", updated.Title)
	assert.Nil(t, updated.TitleAssetRef)
	assert.Equal(t, 2, updated.Version)
}

func TestCreateRecipeUploadMismatch(t *testing.T) {
	ts := newTestServer(t)

	contentType, body := multipartBody(t,
		map[string]interface{}{"title": "soup", "category": "soup"},
		map[string][]byte{"stray": []byte("x")})

	resp := ts.do(t, http.MethodPost, "/api/recipes", ts.token(t, ts.owner.ID), contentType, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRecipeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	recipe := createRecipe(t, ts)
	path := "/api/recipes/" + recipe.ID.String()
	token := ts.token(t, ts.owner.ID)

	resp := ts.do(t, http.MethodDelete, path, token, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, path, token, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfileEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.owner.ID)

	resp := ts.do(t, http.MethodGet, "/api/profile", token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user recipebox.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	resp.Body.Close()
	assert.Equal(t, ts.owner.Email, user.Email)

	contentType, body := multipartBody(t,
		map[string]interface{}{
			"user_name": "chef",
			"avatar":    recipebox.UploadAsset("avatar"),
		},
		map[string][]byte{"avatar": []byte("avatar bytes")})
	resp = ts.do(t, http.MethodPut, "/api/profile", token, contentType, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	resp.Body.Close()
	assert.Equal(t, "chef", user.UserName)
	assert.NotNil(t, user.AvatarRef)

	resp = ts.do(t, http.MethodDelete, "/api/profile", token, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/profile", token, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
