package handlers

import (
	"net/http"
	"strings"

	"github.com/Veraticus/tgpulse/internal/api/middleware"
)

// PhoneHeader identifies the pending login of the password step when the
// body carries no phone.
const PhoneHeader = "X-Phone-Number"

type sendCodeRequest struct {
	Phone string `json:"phone"`
}

type sendCodeResponse struct {
	PhoneCodeHash string `json:"phoneCodeHash"`
	Success       bool   `json:"success"`
}

type signInRequest struct {
	Phone         string `json:"phone"`
	Code          string `json:"code"`
	PhoneCodeHash string `json:"phoneCodeHash"`
}

type passwordRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type signInResponse struct {
	SessionToken string `json:"sessionToken,omitempty"`
	NeedPassword bool   `json:"needPassword,omitempty"`
	Success      bool   `json:"success"`
}

// SendCode handles POST /api/send-code.
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		h.Error(w, http.StatusBadRequest, "phone is required")
		return
	}

	hash, err := h.auth.SendCode(r.Context(), req.Phone)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, sendCodeResponse{PhoneCodeHash: hash, Success: true})
}

// SignIn handles POST /api/sign-in.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Code) == "" {
		h.Error(w, http.StatusBadRequest, "phone and code are required")
		return
	}

	res, err := h.auth.SignIn(r.Context(), req.Phone, strings.TrimSpace(req.Code), req.PhoneCodeHash)
	if err != nil {
		h.Fail(w, err)
		return
	}

	if res.NeedsPassword {
		h.JSON(w, http.StatusOK, signInResponse{NeedPassword: true, Success: false})
		return
	}
	h.JSON(w, http.StatusOK, signInResponse{SessionToken: res.Token, Success: true})
}

// SignInPassword handles POST /api/sign-in-password.
func (h *Handler) SignInPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		phone = strings.TrimSpace(r.Header.Get(PhoneHeader))
	}
	if phone == "" {
		h.Error(w, http.StatusBadRequest, "phone is required")
		return
	}
	if req.Password == "" {
		h.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	res, err := h.auth.SignInWithPassword(r.Context(), phone, req.Password)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, signInResponse{SessionToken: res.Token, Success: true})
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), middleware.TokenFromContext(r.Context()))
	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
