// Package api exposes the recipebox service over HTTP. Mutations that carry
// binary assets use multipart/form-data: a "payload" part holds the JSON
// body and every other part is an upload file whose form field name is the
// upload key its asset patches reference.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/platefork/recipebox/pkg/recipebox"
)

const maxUploadBytes = 32 << 20

// Handler handles HTTP requests for recipes and profiles
type Handler struct {
	service   recipebox.Service
	tokenAuth *jwtauth.JWTAuth
	logger    *slog.Logger
}

// NewHandler creates a new handler. tokenAuth verifies bearer tokens; the
// token's "sub" claim is the acting user id.
func NewHandler(service recipebox.Service, tokenAuth *jwtauth.JWTAuth, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, tokenAuth: tokenAuth, logger: logger}
}

// Routes returns the authenticated API routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(jwtauth.Verifier(h.tokenAuth))
	r.Use(jwtauth.Authenticator)
	r.Use(PrincipalCtx)

	r.Route("/recipes", func(r chi.Router) {
		r.Post("/", h.CreateRecipe)
		r.Get("/", h.ListRecipes)
		r.Get("/{recipeID}", h.GetRecipe)
		r.Put("/{recipeID}", h.UpdateRecipe)
		r.Delete("/{recipeID}", h.DeleteRecipe)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Delete("/", h.DeleteProfile)
	})

	return r
}

// Payloads

type createRecipePayload struct {
	Title       string                   `json:"title"`
	Category    recipebox.RecipeCategory `json:"category"`
	Description string                   `json:"description"`
	IsVegan     bool                     `json:"is_vegan"`
	Ingredients []string                 `json:"ingredients"`
	TitleImage  recipebox.AssetPatch     `json:"title_image"`
	Stages      []recipebox.StagePatch   `json:"stages"`
}

type updateRecipePayload struct {
	Title       *string                   `json:"title"`
	Category    *recipebox.RecipeCategory `json:"category"`
	Description *string                   `json:"description"`
	IsVegan     *bool                     `json:"is_vegan"`
	Ingredients []string                  `json:"ingredients"`
	TitleImage  recipebox.AssetPatch      `json:"title_image"`
	Stages      []recipebox.StagePatch    `json:"stages"`
}

type updateUserPayload struct {
	Email    *string              `json:"email"`
	UserName *string              `json:"user_name"`
	Avatar   recipebox.AssetPatch `json:"avatar"`
}

// Recipe handlers

func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload createRecipePayload
	files, err := h.parseMultipart(r, &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	recipe, err := h.service.CreateRecipe(r.Context(), recipebox.CreateRecipeRequest{
		OwnerID:     ownerID,
		Title:       payload.Title,
		Category:    payload.Category,
		Description: payload.Description,
		IsVegan:     payload.IsVegan,
		Ingredients: payload.Ingredients,
		TitleImage:  payload.TitleImage,
		Stages:      payload.Stages,
		Files:       files,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, recipe)
}

func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recipeID, err := uuid.Parse(chi.URLParam(r, "recipeID"))
	if err != nil {
		http.Error(w, "invalid recipe ID", http.StatusBadRequest)
		return
	}

	recipe, err := h.service.GetRecipe(r.Context(), ownerID, recipeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, recipe)
}

func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.service.ListRecipes(r.Context(), ownerID, skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, page)
}

func (h *Handler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recipeID, err := uuid.Parse(chi.URLParam(r, "recipeID"))
	if err != nil {
		http.Error(w, "invalid recipe ID", http.StatusBadRequest)
		return
	}

	var payload updateRecipePayload
	files, err := h.parseMultipart(r, &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	recipe, err := h.service.UpdateRecipe(r.Context(), recipebox.UpdateRecipeRequest{
		OwnerID:     ownerID,
		RecipeID:    recipeID,
		Title:       payload.Title,
		Category:    payload.Category,
		Description: payload.Description,
		IsVegan:     payload.IsVegan,
		Ingredients: payload.Ingredients,
		TitleImage:  payload.TitleImage,
		Stages:      payload.Stages,
		Files:       files,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, recipe)
}

func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recipeID, err := uuid.Parse(chi.URLParam(r, "recipeID"))
	if err != nil {
		http.Error(w, "invalid recipe ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteRecipe(r.Context(), ownerID, recipeID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Profile handlers

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload updateUserPayload
	files, err := h.parseMultipart(r, &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), recipebox.UpdateUserRequest{
		UserID:   userID,
		Email:    payload.Email,
		UserName: payload.UserName,
		Avatar:   payload.Avatar,
		Files:    files,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, user)
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := PrincipalID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helpers

// parseMultipart decodes the "payload" part into payload and collects every
// file part into an upload batch keyed by form field name. A plain JSON body
// is accepted for mutations without files.
func (h *Handler) parseMultipart(r *http.Request, payload interface{}) (recipebox.UploadBatch, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !isMultipart(contentType) {
		if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	raw := r.FormValue("payload")
	if raw == "" {
		return nil, errors.New("missing payload part")
	}
	if err := json.Unmarshal([]byte(raw), payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}

	var batch recipebox.UploadBatch
	for key, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open upload %q: %w", key, err)
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read upload %q: %w", key, err)
			}
			batch = append(batch, recipebox.UploadFile{
				Key:      key,
				FileName: header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}

	return batch, nil
}

func isMultipart(contentType string) bool {
	return len(contentType) >= 19 && contentType[:19] == "multipart/form-data"
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, recipebox.ErrUserNotFound),
		errors.Is(err, recipebox.ErrRecipeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, recipebox.ErrAssetCountMismatch),
		errors.Is(err, recipebox.ErrDuplicateStageNumber):
		status = http.StatusBadRequest
	case errors.Is(err, recipebox.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, recipebox.ErrUploadFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
