package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/service"
	"github.com/a112660307-droid/reward-card/internal/comm"
)

type Handler struct {
	tokenAuth       *jwtauth.JWTAuth
	identityService *service.IdentityService
}

func NewHandler(identityService *service.IdentityService) *Handler {
	return &Handler{identityService: identityService}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

// MintIdentityHandler issues a fresh anonymous identity plus its session
// token. Clients poll this at startup until the service is ready.
func (h *Handler) MintIdentityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := h.identityService.Mint(ctx)
	if err != nil {
		log.Errorf("Error [IdentityService.Mint] %s", err)
		h.CreateResponse(w, Response{
			Message: "could not mint identity",
			Code:    http.StatusInternalServerError,
			Error:   "identity unavailable",
		})
		return
	}

	exp := time.Now().Add(7 * 24 * time.Hour).Unix()
	_, token, err := h.tokenAuth.Encode(map[string]interface{}{
		"uid": sess.Uid,
		"exp": exp,
	})
	if err != nil {
		log.Errorf("Error encoding session token: %s", err)
		h.CreateResponse(w, Response{
			Message: "could not mint identity",
			Code:    http.StatusInternalServerError,
			Error:   "token encoding failed",
		})
		return
	}

	h.CreateResponse(w, Response{
		Message: "identity minted",
		Code:    http.StatusOK,
		Data:    comm.IdentityData{Uid: sess.Uid, Token: token},
	})
}

// SessionHandler echoes the session behind a verified token, letting a
// returning client confirm its identity still exists.
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid session", Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	uid, _ := claims["uid"].(string)
	sess, err := h.identityService.Lookup(r.Context(), uid)
	if err != nil {
		log.Errorf("Error [IdentityService.Lookup] %s", err)
		h.CreateResponse(w, Response{Message: "lookup failed", Code: http.StatusInternalServerError, Error: "session lookup failed"})
		return
	}
	if sess == nil {
		h.CreateResponse(w, Response{Message: "unknown session", Code: http.StatusNotFound, Error: "session not found"})
		return
	}

	h.CreateResponse(w, Response{Message: "session", Code: http.StatusOK, Data: sess})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "card service is running at port " + os.Getenv("CARD_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
