package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/service"
)

func (r registerRequest) registration() service.Registration {
	return service.Registration{
		Login:       r.Login,
		Password:    r.Password,
		DisplayName: r.DisplayName,
		Role:        r.Role,
		CityID:      r.CityID,
		BarID:       r.BarID,
	}
}

// Register обрабатывает самостоятельную регистрацию бармена и выдаёт токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.registration())
	if err != nil {
		h.fail(w, r, "register user", err)
		return
	}

	h.respondWithToken(w, r, user, http.StatusOK)
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.fail(w, r, "login user", err)
		return
	}

	h.respondWithToken(w, r, user, http.StatusOK)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	p := model.Principal{UserID: user.ID, Role: user.Role}
	token, err := h.authMiddleware.SetAuthCookie(w, p)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.Int64("userID", user.ID))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, "get profile", err)
		return
	}

	writeJSON(w, status, tokenResponse{Token: token, User: profile})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListBars возвращает справочник баров для формы регистрации.
func (h *Handler) ListBars(w http.ResponseWriter, r *http.Request) {
	bars, err := h.service.ListBars(r.Context())
	if err != nil {
		h.fail(w, r, "list bars", err)
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

// CreateUser создаёт пользователя с любой ролью. Доступно администратору.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.registration())
	if err != nil {
		h.fail(w, r, "create user", err)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// CreateCity добавляет город в справочник.
func (h *Handler) CreateCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateCity(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "create city", err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// CreateBar добавляет бар в справочник.
func (h *Handler) CreateBar(w http.ResponseWriter, r *http.Request) {
	var req barRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.CreateBar(r.Context(), req.Name, req.CityID)
	if err != nil {
		h.fail(w, r, "create bar", err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}
