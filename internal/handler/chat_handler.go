package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"wattson/internal/service"
	"wattson/pkg/log"
	"wattson/pkg/token"
)

// cooldownNotice is sent instead of an answer when the athlete asks again
// too quickly.
const cooldownNotice = "⏳ Doucement ! Réessaie dans quelques secondes."

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler manages the WebSocket advice sessions.
type ChatHandler struct {
	adviceService   service.AdviceService
	userService     service.UserService
	jwtManager      *token.JWTManager
	redisClient     *redis.Client
	cooldownSeconds int
	stopToken       string
	stopTokenLock   sync.Mutex
	// per-connection stop flags
	stopFlags sync.Map // key: session pointer string, value: bool
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(adviceService service.AdviceService, userService service.UserService, jwtManager *token.JWTManager, redisClient *redis.Client, cooldownSeconds int) *ChatHandler {
	return &ChatHandler{
		adviceService:   adviceService,
		userService:     userService,
		jwtManager:      jwtManager,
		redisClient:     redisClient,
		cooldownSeconds: cooldownSeconds,
	}
}

// GetWebsocketStopToken returns a token the client can send to interrupt a
// streaming answer. A single rotating token is enough for one server; a
// multi-server setup would keep it in Redis.
func (h *ChatHandler) GetWebsocketStopToken(c *gin.Context) {
	h.stopTokenLock.Lock()
	defer h.stopTokenLock.Unlock()
	h.stopToken = "WSS_STOP_CMD_" + token.GenerateRandomString(16)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"cmdToken": h.stopToken}, "message": "success"})
}

// Handle authenticates and serves one WebSocket advice connection. Each text
// frame is a question; stop commands interrupt the answer in flight.
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.userService.GetByUsername(claims.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket session opened for user %s", claims.Username)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("reading WebSocket message failed: %v", err)
			break
		}

		// JSON stop command: {"type":"stop","_internal_cmd_token":"..."}
		if len(message) > 0 && message[0] == '{' {
			var ctrl map[string]interface{}
			if err := json.Unmarshal(message, &ctrl); err == nil {
				if t, ok := ctrl["type"].(string); ok && t == "stop" {
					if tok, ok := ctrl["_internal_cmd_token"].(string); ok && h.isStopToken(tok) {
						h.stopFlags.Store(sessionKey(conn), true)
						_ = conn.WriteJSON(gin.H{"type": "stop", "message": "réponse interrompue"})
						continue
					}
				}
			}
		}
		// Legacy form: the whole frame is the stop token.
		if h.isStopToken(string(message)) {
			h.stopFlags.Store(sessionKey(conn), true)
			continue
		}

		if h.inCooldown(c, user.ID) {
			_ = conn.WriteJSON(gin.H{"chunk": cooldownNotice})
			_ = conn.WriteJSON(gin.H{"done": true, "sources": []string{}})
			continue
		}

		shouldStop := func() bool {
			v, ok := h.stopFlags.Load(sessionKey(conn))
			return ok && v.(bool)
		}
		h.stopFlags.Delete(sessionKey(conn))

		if err := h.adviceService.StreamAdvice(c.Request.Context(), string(message), user, conn, shouldStop); err != nil {
			log.Errorf("streaming advice failed: %v", err)
			_ = conn.WriteJSON(gin.H{"error": "Wattson est momentanément indisponible, réessaie dans un instant."})
			_ = conn.WriteJSON(gin.H{"done": true, "sources": []string{}})
			break
		}
	}
	h.stopFlags.Delete(sessionKey(conn))
}

// inCooldown checks and arms the per-user question cooldown. Shares the
// key space with the HTTP cooldown middleware; Redis errors fail open.
func (h *ChatHandler) inCooldown(c *gin.Context, userID uint) bool {
	if h.cooldownSeconds <= 0 || h.redisClient == nil {
		return false
	}
	key := fmt.Sprintf("cooldown:%d", userID)
	window := time.Duration(h.cooldownSeconds) * time.Second
	ok, err := h.redisClient.SetNX(c.Request.Context(), key, 1, window).Result()
	if err != nil {
		log.Warnf("cooldown check failed, letting question through: %v", err)
		return false
	}
	return !ok
}

func (h *ChatHandler) isStopToken(candidate string) bool {
	h.stopTokenLock.Lock()
	defer h.stopTokenLock.Unlock()
	return h.stopToken != "" && candidate == h.stopToken
}

func sessionKey(conn *websocket.Conn) string {
	return fmt.Sprintf("%p", conn)
}
