package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"notevault-server/internal/domain"
)

// Manager tracks live connections per user and fans committed note
// changes out to them. Delivery is best-effort: a slow client's buffer
// filling up drops the message, never the mutation.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		log.Printf("max connections reached for user %s", client.UserID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	log.Printf("client registered: %s (user: %s)", client.ID, client.UserID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		log.Printf("client unregistered: %s", client.ID)
	}
}

func (m *Manager) broadcastToUser(userID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("failed to marshal websocket message: %v", err)
		return
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for clientID := range m.userIndex[userID] {
		client, ok := m.clients[clientID]
		if !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("send buffer full, dropping message for client %s", clientID)
		}
	}
}

// NoteUpdated implements the engine's notifier contract for create,
// update and revert.
func (m *Manager) NoteUpdated(userID string, note *domain.NoteResponse) {
	payload := &NoteUpdatePayload{
		NoteID:    note.ID,
		Title:     note.Title,
		Content:   note.Content,
		Version:   note.Version,
		UpdatedAt: note.UpdatedAt,
	}

	msg, err := NewMessage(TypeNoteUpdate, payload)
	if err != nil {
		log.Printf("failed to build note_update message: %v", err)
		return
	}
	m.broadcastToUser(userID, msg)
}

func (m *Manager) NoteDeleted(userID, noteID string) {
	msg, err := NewMessage(TypeNoteDelete, &NoteDeletePayload{NoteID: noteID})
	if err != nil {
		log.Printf("failed to build note_delete message: %v", err)
		return
	}
	m.broadcastToUser(userID, msg)
}
