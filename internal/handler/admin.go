package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/pavelanni/tutorportal/internal/model"
)

type userRequest struct {
	Username    string         `json:"username" validate:"required,max=64"`
	DisplayName string         `json:"display_name" validate:"max=128"`
	Password    string         `json:"password" validate:"required,min=6"`
	Role        model.UserRole `json:"role" validate:"required,oneof=student teacher admin"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(model.UserRole(r.URL.Query().Get("role")))
	if err != nil {
		writeStoreError(w, "users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		writeStoreError(w, "user", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
	}
	id, err := h.store.CreateUser(u)
	if err != nil {
		writeStoreError(w, "user", err)
		return
	}
	created, err := h.store.GetUserByID(id)
	if err == nil && created == nil {
		err = sql.ErrNoRows
	}
	if err != nil {
		writeStoreError(w, "user", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if me := model.UserFromContext(r.Context()); me != nil && me.ID == id {
		writeError(w, http.StatusBadRequest, "cannot deactivate yourself")
		return
	}
	if err := h.store.ToggleUserActive(id); err != nil {
		writeStoreError(w, "user", err)
		return
	}
	u, err := h.store.GetUserByID(id)
	if err == nil && u == nil {
		err = sql.ErrNoRows
	}
	if err != nil {
		writeStoreError(w, "user", err)
		return
	}
	slog.Info("toggled user active", "id", id, "active", u.Active)
	writeJSON(w, http.StatusOK, u)
}
