package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/htverse/apiserver/internal/services"
)

// AdminHandler serves the administration endpoints.
type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// AdminRouter registers admin routes. Every route requires authentication;
// the admin role is enforced by the service.
func AdminRouter(r chi.Router, adminService *services.AdminService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(adminService)

	r.Use(authMiddleware)
	r.Get("/dashboard", handler.Dashboard)
	r.Get("/users", handler.ListUsers)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Dashboard(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Dashboard fetched successfully", stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.adminService.ListUsers(r.Context(), actorFromContext(r.Context()), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	users := make([]ProfileResponse, 0, len(res.Items))
	for _, u := range res.Items {
		users = append(users, ProfileResponse{
			AuthUser:   newAuthUser(u),
			IsVerified: u.IsVerified,
			CreatedAt:  u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, UserListResponse{
		Success: true,
		Message: "Users fetched successfully",
		Count:   len(users),
		Total:   res.Total,
		Page:    res.Page,
		Pages:   res.Pages,
		Data:    users,
	})
}

type UserListResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Count   int               `json:"count"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Pages   int               `json:"pages"`
	Data    []ProfileResponse `json:"data"`
}
