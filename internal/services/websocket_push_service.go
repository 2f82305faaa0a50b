package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"bridge-backend/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware
		return true
	},
}

// Connection is one user WebSocket session
type Connection struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage is the envelope for every pushed update
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	UserID    string      `json:"user_id"`
	Data      interface{} `json:"data"`
}

// DepositUpdateData carries a deposit lifecycle change
type DepositUpdateData struct {
	Action      string         `json:"action"` // 'detected' | 'confirmed' | 'settled' | 'failed'
	Deposit     models.Deposit `json:"deposit"`
	UserMessage string         `json:"user_message,omitempty"`
}

// WithdrawalUpdateData carries a withdrawal lifecycle change
type WithdrawalUpdateData struct {
	Action      string            `json:"action"` // 'created' | 'processing' | 'completed' | 'failed' | 'cancelled'
	Withdrawal  models.Withdrawal `json:"withdrawal"`
	UserMessage string            `json:"user_message,omitempty"`
}

var depositMessages = map[string]string{
	"detected":  "💰 Deposit detected, waiting for confirmations...",
	"confirmed": "✅ Deposit confirmed on chain",
	"settled":   "🎉 Funds credited to your trading balance",
	"failed":    "❌ Deposit transaction failed on chain",
}

var withdrawalMessages = map[string]string{
	"created":    "📤 Withdrawal request accepted",
	"processing": "⚙️ Processing your withdrawal...",
	"completed":  "🎊 Withdrawal sent, funds are on the way",
	"failed":     "⚠️ Withdrawal failed, our team has been notified",
	"cancelled":  "🚫 Withdrawal cancelled",
}

// WebSocketPushService fans deposit and withdrawal updates out to the
// owning user's open connections.
type WebSocketPushService struct {
	connections map[string]*Connection
	userConns   map[string][]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	mutex       sync.RWMutex
}

// NewWebSocketPushService creates and starts the push service
func NewWebSocketPushService() *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		userConns:   make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.handleBroadcast(message)
		}
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.userConns[conn.UserID] = append(s.userConns[conn.UserID], conn)

	log.Printf("📱 WebSocket connected: user=%s, connID=%s", conn.UserID, conn.ID)

	if conn.Send != nil {
		s.sendToConnection(conn, PushMessage{
			Type:      "connection_established",
			Timestamp: time.Now().Format(time.RFC3339),
			MessageID: generateMessageID(),
			UserID:    conn.UserID,
			Data: map[string]interface{}{
				"connection_id": conn.ID,
				"message":       "Real-time status connection established",
			},
		})
	}
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.connections, conn.ID)

	if userConns, exists := s.userConns[conn.UserID]; exists {
		for i, c := range userConns {
			if c.ID == conn.ID {
				s.userConns[conn.UserID] = append(userConns[:i], userConns[i+1:]...)
				break
			}
		}
		if len(s.userConns[conn.UserID]) == 0 {
			delete(s.userConns, conn.UserID)
		}
	}

	if conn.Send != nil {
		close(conn.Send)
	}
	if conn.Conn != nil {
		conn.Conn.Close()
	}

	log.Printf("📱 WebSocket disconnected: user=%s, connID=%s", conn.UserID, conn.ID)
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	userConns, exists := s.userConns[message.UserID]
	if !exists {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal push message: %v", err)
		return
	}

	sent := 0
	for _, conn := range userConns {
		select {
		case conn.Send <- data:
			sent++
		default:
			log.Printf("⚠️ Push channel full or closed: %s", conn.ID)
		}
	}
	log.Printf("📤 Pushed %s to %d/%d connections of user %s", message.Type, sent, len(userConns), message.UserID)
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal push message: %v", err)
		return
	}

	select {
	case conn.Send <- data:
	default:
		log.Printf("⚠️ Failed to send to connection: %s", conn.ID)
	}
}

// BroadcastDepositUpdate pushes a deposit lifecycle change to its owner
func (s *WebSocketPushService) BroadcastDepositUpdate(deposit *models.Deposit, action string) {
	s.hub <- PushMessage{
		Type:      "deposit_update",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		UserID:    deposit.UserID,
		Data: DepositUpdateData{
			Action:      action,
			Deposit:     *deposit,
			UserMessage: depositMessages[action],
		},
	}
}

// BroadcastWithdrawalUpdate pushes a withdrawal lifecycle change to its owner
func (s *WebSocketPushService) BroadcastWithdrawalUpdate(withdrawal *models.Withdrawal, action string) {
	s.hub <- PushMessage{
		Type:      "withdrawal_update",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		UserID:    withdrawal.UserID,
		Data: WithdrawalUpdateData{
			Action:      action,
			Withdrawal:  *withdrawal,
			UserMessage: withdrawalMessages[action],
		},
	}
}

// HandleWebSocket upgrades the request and runs the session pumps
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	connection := &Connection{
		ID:       generateConnectionID(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}

	s.register <- connection

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket write failed: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		s.unregister <- conn
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		_, _, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			break
		}
	}
}

// GetActiveConnections returns the number of open sessions
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

// GetUserConnections returns the number of open sessions for one user
func (s *WebSocketPushService) GetUserConnections(userID string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.userConns[userID])
}

func generateConnectionID() string {
	return fmt.Sprintf("conn_%d", time.Now().UnixNano())
}

func generateMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}
