// Package webhook exposes the chat-transport surface: the endpoint that
// turns inbound Telegram updates into mining commands, plus health and
// read-only status routes.
package webhook

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/kubotlabs/minebot/internal/mining"
)

// update is the subset of a Telegram update the bot cares about.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From *struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Server routes inbound chat updates to the mining service.
type Server struct {
	svc      *mining.Service
	notifier mining.Notifier
}

// NewServer builds the webhook server. The notifier carries replies for
// commands that the service itself does not answer (stop, balance,
// echo).
func NewServer(svc *mining.Service, notifier mining.Notifier) *Server {
	return &Server{svc: svc, notifier: notifier}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/telegram/webhook", s.handleUpdate)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/status/{userID}", s.handleStatus)
	r.Get("/api/metrics", s.handleMetrics)
	return r
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.Error().Err(err).Msg("Malformed webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if upd.Message == nil || upd.Message.From == nil || upd.Message.Chat == nil {
		// Edited messages, channel posts and the like are not commands
		log.Debug().Int64("update", upd.UpdateID).Msg("Update without a usable message, ignoring")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	userID := strconv.FormatInt(upd.Message.From.ID, 10)
	channelID := strconv.FormatInt(upd.Message.Chat.ID, 10)
	text := strings.TrimSpace(upd.Message.Text)

	s.dispatch(r, userID, channelID, text)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch maps a message to a command. Command failures are logged,
// never surfaced to the transport: the webhook always acknowledges so
// the chat platform does not redeliver the update.
func (s *Server) dispatch(r *http.Request, userID, channelID, text string) {
	ctx := r.Context()

	switch command(text) {
	case "/start":
		s.reply(r, channelID, welcomeMessage())

	case "/mine":
		if _, err := s.svc.StartSession(ctx, userID, channelID); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("Start command failed")
		}

	case "/stop":
		if err := s.svc.StopSession(ctx, userID); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("Stop command failed")
		}
		s.reply(r, channelID, goodbyeMessage())

	case "/balance":
		balance, err := s.svc.Balance(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user", userID).Msg("Balance command failed")
			return
		}
		s.reply(r, channelID, balanceMessage(balance))

	default:
		if text != "" {
			// Echo plain text back, like the original bot
			s.reply(r, channelID, text)
		}
	}
}

// command extracts the leading bot command, dropping an @botname
// suffix.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

func (s *Server) reply(r *http.Request, channelID, text string) {
	if err := s.notifier.Send(r.Context(), channelID, text); err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("Reply delivery failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	UserID  string        `json:"user_id"`
	Status  mining.Status `json:"status"`
	Balance int64         `json:"balance"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	status, err := s.svc.GetStatus(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status lookup failed"})
		return
	}
	balance, err := s.svc.Balance(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "balance lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{UserID: userID, Status: status, Balance: balance})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Metrics())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
