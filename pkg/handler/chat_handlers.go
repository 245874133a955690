package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/models"
	"github.com/aurachat/aurachat/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const readLimit = 64 * 1024

// ChatHandler upgrades HTTP requests to the chat websocket and runs the
// per-connection event loop.
type ChatHandler struct {
	upgrader     websocket.Upgrader
	sessions     *service.SessionService
	chat         *service.ChatService
	instructions *service.InstructionService
	logger       *slog.Logger
}

func NewChatHandler(sessions *service.SessionService, chat *service.ChatService,
	instructions *service.InstructionService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions:     sessions,
		chat:         chat,
		instructions: instructions,
		logger:       logger,
	}
}

// Handle is the Gin handler for GET /api/chat/ws.
// The optional credential arrives via ?token= or an Authorization bearer
// header; its absence or invalidity downgrades to guest, never rejects the
// upgrade.
func (h *ChatHandler) Handle(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := event.NewConn(ws)
	defer conn.Close()

	sess := h.sessions.NewSession()
	defer h.sessions.Disconnect(sess)

	h.sessions.Connect(sess, handshakeCredential(c), conn)

	// Keepalive pings; the pong handler below extends the read deadline.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.dispatch(c, sess, raw, conn)
	}
}

// dispatch routes one inbound message. send-prompt runs in its own
// goroutine so a slow upstream call never blocks the read loop (and so the
// overlapping-prompt guard is actually reachable); everything else is quick
// and runs inline.
func (h *ChatHandler) dispatch(c *gin.Context, sess *models.SessionState, raw []byte, conn *event.Conn) {
	var msg event.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("malformed inbound message", "session", sess.ID, "error", err)
		return
	}

	switch msg.Event {
	case event.InboundSendPrompt:
		var p event.PromptPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			h.logger.Warn("malformed prompt payload", "session", sess.ID, "error", err)
			return
		}
		go h.chat.HandlePrompt(c.Request.Context(), sess, p.Text, p.Mode, conn)

	case event.InboundAuthenticate:
		var p event.AuthenticatePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		h.sessions.Authenticate(sess, p.Credential, conn)

	case event.InboundAddInstruction:
		var p event.AddInstructionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		h.instructions.Add(sess, p.Text, conn)

	case event.InboundEditInstruction:
		var p event.EditInstructionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		h.instructions.Edit(sess, p.ID, p.Text, conn)

	case event.InboundDeleteInstruction:
		var p event.DeleteInstructionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		h.instructions.Delete(sess, p.ID, conn)

	default:
		h.logger.Debug("ignoring unknown inbound event", "event", msg.Event, "session", sess.ID)
	}
}

// handshakeCredential pulls the optional credential from the query string
// or the Authorization header.
func handshakeCredential(c *gin.Context) string {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok
	}
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}
