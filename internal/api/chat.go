package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/allthriveai/allthriveai-sub012/internal/service"
	"github.com/allthriveai/allthriveai-sub012/pkg/auth"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type chatRoutes struct {
	onboarding service.OnboardingServiceI
	users      service.UserServiceI
	usersRepo  service.UserRepository
	starter    service.AvatarSessionStarter
	cfg        service.ChatConfig
	a          *auth.Auth
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// chatSession ties one websocket connection to one orchestrator.
type chatSession struct {
	orch *service.ChatOrchestrator
	conn *websocket.Conn

	// writeMu serializes pushes; orchestrator callbacks arrive from
	// the avatar session's read loop as well as this handler.
	writeMu sync.Mutex
}

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

var (
	activeChats = make(map[string]*chatSession)
	chatsMutex  sync.RWMutex
)

func NewChatRoutes(
	handler *gin.RouterGroup,
	onboarding service.OnboardingServiceI,
	users service.UserServiceI,
	usersRepo service.UserRepository,
	starter service.AvatarSessionStarter,
	cfg service.ChatConfig,
	a *auth.Auth,
) {
	r := &chatRoutes{
		onboarding: onboarding,
		users:      users,
		usersRepo:  usersRepo,
		starter:    starter,
		cfg:        cfg,
		a:          a,
	}

	h := handler.Group("/onboarding/chat")
	h.Use(a.Middleware())

	h.GET("/ws", r.handleWebSocket)
}

func (cr *chatRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	userData, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	displayName := userData.DisplayName
	if user, err := cr.users.GetUserByID(c.Request.Context(), userData.ID); err == nil {
		displayName = user.DisplayName
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	orch := service.NewChatOrchestrator(
		userData.ID,
		displayName,
		cr.onboarding,
		cr.usersRepo,
		cr.starter,
		cr.cfg,
	)

	session := &chatSession{
		orch: orch,
		conn: conn,
	}

	orch.OnChange(func() {
		session.pushState(context.Background())
	})
	orch.OnNavigate(func(path string) {
		session.push(wsMessage{
			Type: "navigate",
			Payload: map[string]any{
				"path": path,
			},
		})
	})

	chatsMutex.Lock()
	if prev, exists := activeChats[userData.ID]; exists {
		prev.orch.Close()
		_ = prev.conn.Close()
	}
	activeChats[userData.ID] = session
	chatsMutex.Unlock()

	go cr.handleChatLoop(session, userData.ID)
}

func (cr *chatRoutes) handleChatLoop(session *chatSession, userID string) {
	log := logger.Logger()

	defer func() {
		session.orch.Close()
		_ = session.conn.Close()
		chatsMutex.Lock()
		if activeChats[userID] == session {
			delete(activeChats, userID)
		}
		chatsMutex.Unlock()
	}()

	// Initial state so the client can render before the first event.
	session.pushState(context.Background())

	for {
		_, msg, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("chat websocket unexpected close", zap.Error(err))
			}
			break
		}

		var message wsMessage
		if err := json.Unmarshal(msg, &message); err != nil {
			log.Error("failed to unmarshal chat message", zap.Error(err))
			continue
		}

		cr.dispatch(session, message)
	}
}

func (cr *chatRoutes) dispatch(session *chatSession, message wsMessage) {
	ctx := context.Background()
	orch := session.orch

	var err error
	switch message.Type {
	case "state":
		session.pushState(ctx)

	case "intro_complete":
		err = orch.HandleIntroComplete(ctx)

	case "intro_skip":
		err = orch.HandleIntroSkip(ctx)

	case "submit_prompt":
		prompt, _ := message.Payload["prompt"].(string)
		templateID, _ := message.Payload["template_id"].(string)
		refImageURL, _ := message.Payload["reference_image_url"].(string)
		err = orch.HandleSubmitPrompt(ctx, prompt, templateID, refImageURL)

	case "skip_avatar":
		err = orch.HandleSkipAvatar(ctx)

	case "accept_avatar":
		err = orch.HandleAcceptAvatar(ctx)

	case "refine_avatar":
		err = orch.HandleRefineAvatar(ctx)

	case "skip_preview":
		err = orch.HandleSkipPreview(ctx)

	case "choose_path":
		pathID, _ := message.Payload["path"].(string)
		err = orch.HandleChoosePath(ctx, pathID)

	case "dismiss":
		err = orch.HandleDismiss(ctx)

	default:
		session.push(wsMessage{
			Type: "error",
			Payload: map[string]any{
				"message": "unknown event type",
			},
		})
		return
	}

	if err != nil {
		session.push(wsMessage{
			Type: "error",
			Payload: map[string]any{
				"message": err.Error(),
			},
		})
	}
}

func (s *chatSession) pushState(ctx context.Context) {
	snapshot := s.orch.Snapshot()

	payload := map[string]any{
		"step":     snapshot.Step,
		"active":   s.orch.Active(ctx),
		"messages": service.ProjectMessages(snapshot),
	}
	if snapshot.Err != nil {
		payload["error"] = snapshot.Err.Error()
	}

	s.push(wsMessage{
		Type:    "chat_state",
		Payload: payload,
	})
}

func (s *chatSession) push(m wsMessage) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Logger().Error("failed to marshal chat state", zap.Error(err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Logger().Error("failed to send chat state", zap.Error(err))
	}
}
