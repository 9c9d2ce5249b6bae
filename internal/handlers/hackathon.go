package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/services"
	"github.com/htverse/apiserver/types"
)

const bannerField = "banner"

// HackathonHandler serves the hackathon endpoints.
type HackathonHandler struct {
	hackathonService *services.HackathonService
}

func NewHackathonHandler(hackathonService *services.HackathonService) *HackathonHandler {
	return &HackathonHandler{hackathonService: hackathonService}
}

// HackathonRouter registers hackathon routes. Banner routes exist only when
// banner storage is configured.
func HackathonRouter(r chi.Router, hackathonService *services.HackathonService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewHackathonHandler(hackathonService)

	r.Get("/", handler.ListHackathons)
	r.Get("/{hackathonID}", handler.GetHackathon)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.CreateHackathon)
		r.Put("/{hackathonID}", handler.UpdateHackathon)
		r.Delete("/{hackathonID}", handler.DeleteHackathon)
		r.Post("/{hackathonID}/register", handler.Register)
		r.Delete("/{hackathonID}/register", handler.Unregister)
		if hackathonService.BannersEnabled() {
			r.Put("/{hackathonID}/banner", handler.UploadBanner)
		}
	})
	if hackathonService.BannersEnabled() {
		r.Get("/{hackathonID}/banner", handler.GetBanner)
	}
}

func (h *HackathonHandler) ListHackathons(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	res, err := h.hackathonService.List(r.Context(), services.ListParams{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HackathonListResponse{
		Success: true,
		Message: "Hackathons fetched successfully",
		Count:   len(res.Items),
		Total:   res.Total,
		Page:    res.Page,
		Pages:   res.Pages,
		Data:    res.Items,
	})
}

func (h *HackathonHandler) GetHackathon(w http.ResponseWriter, r *http.Request) {
	hackathon, err := h.hackathonService.Get(r.Context(), chi.URLParam(r, "hackathonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Hackathon fetched successfully", hackathon)
}

func (h *HackathonHandler) CreateHackathon(w http.ResponseWriter, r *http.Request) {
	var req HackathonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.hackathonService.Create(r.Context(), actorFromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Hackathon created successfully", created)
}

func (h *HackathonHandler) UpdateHackathon(w http.ResponseWriter, r *http.Request) {
	var req HackathonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.hackathonService.Update(r.Context(), actorFromContext(r.Context()),
		chi.URLParam(r, "hackathonID"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Hackathon updated successfully", updated)
}

func (h *HackathonHandler) DeleteHackathon(w http.ResponseWriter, r *http.Request) {
	err := h.hackathonService.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "hackathonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Hackathon deleted successfully", nil)
}

func (h *HackathonHandler) Register(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.hackathonService.Register(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "hackathonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Successfully registered for hackathon", receipt)
}

func (h *HackathonHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.hackathonService.Unregister(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "hackathonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Successfully unregistered from hackathon", receipt)
}

func (h *HackathonHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxBannerBytes+(1<<20))
	if err := r.ParseMultipartForm(services.MaxBannerBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.Validationf("Banner image cannot exceed %d MB", services.MaxBannerBytes>>20))
			return
		}
		writeError(w, r, apperrors.Validation("Invalid multipart form"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, _, err := r.FormFile(bannerField)
	if err != nil {
		writeError(w, r, apperrors.Validation("Banner image is required").WithMetadata("field", bannerField))
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, services.MaxBannerBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.hackathonService.UploadBanner(r.Context(), actorFromContext(r.Context()),
		chi.URLParam(r, "hackathonID"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Banner uploaded successfully", updated)
}

func (h *HackathonHandler) GetBanner(w http.ResponseWriter, r *http.Request) {
	obj, err := h.hackathonService.OpenBanner(r.Context(), chi.URLParam(r, "hackathonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(obj.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		slog.Warn("stream banner", "path", r.URL.Path, "error", err)
	}
}

// HackathonRequest is the body of create and update requests. Absent fields
// are left unchanged on update.
type HackathonRequest struct {
	Title                *string                   `json:"title"`
	Description          *string                   `json:"description"`
	StartDate            *flexTime                 `json:"startDate"`
	EndDate              *flexTime                 `json:"endDate"`
	RegistrationDeadline *flexTime                 `json:"registrationDeadline"`
	MaxTeamSize          *int                      `json:"maxTeamSize"`
	PrizePool            *float64                  `json:"prizePool"`
	Categories           *stringList               `json:"categories"`
	MaxParticipants      *int                      `json:"maxParticipants"`
	IsActive             *bool                     `json:"isActive"`
	Rules                *stringList               `json:"rules"`
	JudgesCriteria       *[]types.JudgingCriterion `json:"judgesCriteria"`
	Status               *string                   `json:"status"`
}

func (req HackathonRequest) input() services.HackathonInput {
	in := services.HackathonInput{
		Title:                deref(req.Title),
		Description:          deref(req.Description),
		StartDate:            derefTime(req.StartDate),
		EndDate:              derefTime(req.EndDate),
		RegistrationDeadline: derefTime(req.RegistrationDeadline),
		MaxTeamSize:          deref(req.MaxTeamSize),
		PrizePool:            deref(req.PrizePool),
		MaxParticipants:      deref(req.MaxParticipants),
		IsActive:             req.IsActive,
	}
	if req.Categories != nil {
		in.Categories = toCategories(*req.Categories)
	}
	if req.Rules != nil {
		in.Rules = *req.Rules
	}
	if req.JudgesCriteria != nil {
		in.JudgesCriteria = *req.JudgesCriteria
	}
	return in
}

func (req HackathonRequest) patch() services.HackathonPatch {
	p := services.HackathonPatch{
		Title:           req.Title,
		Description:     req.Description,
		MaxTeamSize:     req.MaxTeamSize,
		PrizePool:       req.PrizePool,
		MaxParticipants: req.MaxParticipants,
		IsActive:        req.IsActive,
		JudgesCriteria:  req.JudgesCriteria,
	}
	if req.StartDate != nil {
		p.StartDate = &req.StartDate.Time
	}
	if req.EndDate != nil {
		p.EndDate = &req.EndDate.Time
	}
	if req.RegistrationDeadline != nil {
		p.RegistrationDeadline = &req.RegistrationDeadline.Time
	}
	if req.Categories != nil {
		categories := toCategories(*req.Categories)
		p.Categories = &categories
	}
	if req.Rules != nil {
		rules := []string(*req.Rules)
		p.Rules = &rules
	}
	if req.Status != nil {
		status := types.Status(strings.ToLower(strings.TrimSpace(*req.Status)))
		p.Status = &status
	}
	return p
}

func toCategories(raw []string) []types.Category {
	out := make([]types.Category, 0, len(raw))
	for _, c := range raw {
		out = append(out, types.Category(strings.TrimSpace(c)))
	}
	return out
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func derefTime(t *flexTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

type HackathonListResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Count   int                     `json:"count"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	Pages   int                     `json:"pages"`
	Data    []types.HackathonDetail `json:"data"`
}
