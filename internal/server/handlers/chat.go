package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	apierrors "github.com/maruel/xbase/internal/errors"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/utils"
)

// ChatHistoryCookie is the cookie holding the latest chat history.
const ChatHistoryCookie = "chat_history"

// SaveChatHistory serves POST /api/chat-history: the posted history is kept
// in an httpOnly cookie.
func SaveChatHistory(w http.ResponseWriter, r *http.Request) {
	var req models.ChatHistoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		slog.InfoContext(r.Context(), "chat", "msg", "invalid history", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to save history", string(apierrors.ErrInternal))
		return
	}
	if req.History == nil {
		req.History = []string{}
	}
	b, _ := json.Marshal(req.History)
	http.SetCookie(w, &http.Cookie{
		Name:     ChatHistoryCookie,
		Value:    url.QueryEscape(string(b)),
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	utils.RespondJSON(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

// chatHistory decodes the history stored by SaveChatHistory.
func chatHistory(r *http.Request) []string {
	c, err := r.Cookie(ChatHistoryCookie)
	if err != nil {
		return nil
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	var h []string
	if json.Unmarshal([]byte(v), &h) != nil {
		return nil
	}
	return h
}
