package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/service"
	ws "github.com/stemsi/examvault/internal/websocket"
)

const (
	tickInterval = time.Second
	// resyncEvery is how many ticks pass between re-reads of the session,
	// which is how a submit on another connection is noticed.
	resyncEvery = 15
	pongWait    = 60 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// CountdownHandler streams the server-authoritative remaining time of an
// exam session.
type CountdownHandler struct {
	sessions ExamSessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewCountdownHandler creates a new CountdownHandler.
func NewCountdownHandler(sessions ExamSessionService, log zerolog.Logger, allowedOrigins []string) *CountdownHandler {
	return &CountdownHandler{
		sessions: sessions,
		log:      log.With().Str("component", "countdown_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/student/sessions/:id/countdown
// Sends a tick every second until the session completes or times out.
func (h *CountdownHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	// Resolve before upgrading so ownership failures get a normal HTTP error.
	cd, err := h.sessions.Remaining(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", sessionID.String()).
		Str("student_id", claims.UserID.String()).
		Logger()
	wsLog.Debug().Msg("Countdown connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readUntilClosed(conn, cancel)

	h.run(ctx, conn, wsLog, cd, claims.UserID)
}

// readUntilClosed drains client frames so control messages are processed,
// cancelling when the peer goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *CountdownHandler) run(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, cd *service.Countdown, studentID uuid.UUID) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(cd.Remaining)
	for n := 0; ; n++ {
		if cd.Status != model.SessionStatusInProgress || cd.Remaining <= 0 {
			h.finish(conn, log, cd)
			return
		}

		if err := ws.WriteTyped(conn, ws.TickResponse{
			Event:            ws.EventTick,
			SessionID:        cd.SessionID.String(),
			RemainingSeconds: int64(cd.Remaining.Round(time.Second) / time.Second),
			Deadline:         cd.Deadline.UTC().Format(time.RFC3339),
		}); err != nil {
			log.Debug().Err(err).Msg("Countdown write failed")
			return
		}

		select {
		case <-ctx.Done():
			log.Debug().Msg("Countdown disconnected")
			return
		case <-ticker.C:
		}

		cd.Remaining = time.Until(deadline)
		if n%resyncEvery == resyncEvery-1 || cd.Remaining <= 0 {
			fresh, err := h.sessions.Remaining(ctx, cd.SessionID, studentID)
			if err != nil {
				log.Warn().Err(err).Msg("Countdown resync failed")
				ws.WriteError(conn, "countdown unavailable")
				return
			}
			cd = fresh
			deadline = time.Now().Add(cd.Remaining)
		}
	}
}

func (h *CountdownHandler) finish(conn *websocket.Conn, log zerolog.Logger, cd *service.Countdown) {
	event := ws.EventTimedOut
	if cd.Status == model.SessionStatusCompleted {
		event = ws.EventCompleted
	}
	if err := ws.WriteTyped(conn, ws.ClosingResponse{Event: event, SessionID: cd.SessionID.String()}); err != nil {
		log.Debug().Err(err).Msg("Countdown final write failed")
		return
	}
	ws.CloseNormal(conn, string(event))
}
