package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"govorilka/internal/content"
	"govorilka/internal/history"
	"govorilka/internal/models"
	"govorilka/internal/notify"
	"govorilka/internal/presence"
	"govorilka/internal/transcript"
	"govorilka/internal/transport"
)

// Membership is the local join state for the active room. The backend
// sends no join acknowledgment, so JoinRequested is promoted to Joined
// by the first inbound event for the room, or by a grace timeout.
type Membership int

const (
	NotJoined Membership = iota
	JoinRequested
	Joined
)

func (m Membership) String() string {
	switch m {
	case JoinRequested:
		return "join_requested"
	case Joined:
		return "joined"
	default:
		return "not_joined"
	}
}

type connection interface {
	Connect(ctx context.Context)
	Disconnect()
	Emit(event models.EventName, payload any)
	On(event models.EventName, h transport.Handler)
	Off(event models.EventName)
	State() transport.State
}

type historyFetcher interface {
	FetchRoom(ctx context.Context, title string) (history.Room, error)
}

type Config struct {
	UserName  string
	JoinGrace time.Duration
}

const DefaultJoinGrace = 3 * time.Second

// Session binds a transport to one (user, room) pair at a time. It
// owns the transcript and presence map for the active room and tears
// both down on every room switch.
type Session struct {
	config  Config
	conn    connection
	history historyFetcher
	notify  notify.Notifier
	log     *slog.Logger

	mu         sync.Mutex
	activeRoom string
	roomID     string
	membership Membership
	// epoch guards everything that can resolve after a room switch:
	// history fetches, grace timers and in-flight event handlers.
	epoch     int
	messages  *transcript.Transcript
	users     *presence.Tracker
	joinTimer *time.Timer

	onTranscript func([]models.Message)
	onPresence   func(map[string]models.Status)
	onState      func(string)
}

func New(config Config, conn connection, fetcher historyFetcher, notifier notify.Notifier, log *slog.Logger) (*Session, error) {
	if err := content.ValidateUsername(config.UserName); err != nil {
		return nil, err
	}
	if config.JoinGrace == 0 {
		config.JoinGrace = DefaultJoinGrace
	}
	if notifier == nil {
		notifier = notify.NewLog(log)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		config:   config,
		conn:     conn,
		history:  fetcher,
		notify:   notifier,
		log:      log,
		messages: transcript.New(),
		users:    presence.New(),
	}, nil
}

// OnTranscript registers the observer called with a transcript
// snapshot after every accepted message.
func (s *Session) OnTranscript(fn func([]models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscript = fn
}

// OnPresence registers the observer called with a presence snapshot
// after every applied status change.
func (s *Session) OnPresence(fn func(map[string]models.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPresence = fn
}

// OnState registers the observer called on connection state changes.
func (s *Session) OnState(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Enter makes room the active room. Any previously joined room is left
// first: leave is emitted and the old transcript, presence map and
// subscriptions are gone before the new join begins. History is then
// fetched, the transcript seeded from it, handlers subscribed and the
// join control message emitted. A history failure degrades to an empty
// transcript; the join still proceeds.
func (s *Session) Enter(ctx context.Context, room string) error {
	if err := content.ValidateRoomName(room); err != nil {
		return err
	}

	s.mu.Lock()
	s.leaveLocked()
	s.activeRoom = room
	s.roomID = ""
	s.epoch++
	epoch := s.epoch
	s.messages = transcript.New()
	s.users = presence.New()
	s.mu.Unlock()

	loaded, err := s.history.FetchRoom(ctx, room)
	if err != nil {
		s.log.Warn("failed to load room history", "room", room, "error", err)
		loaded = history.Room{}
	}

	s.mu.Lock()
	if s.epoch != epoch || s.activeRoom != room {
		// A later Enter or Leave superseded this one while history
		// was in flight. Its result must not touch the new room.
		s.mu.Unlock()
		s.log.Info("discarding stale history fetch", "room", room)
		return nil
	}

	s.roomID = loaded.ID
	s.messages.ApplyHistory(loaded.Messages)
	s.subscribeLocked(epoch)

	s.conn.Connect(ctx)
	if s.conn.State() == transport.StateConnected {
		s.joinLocked()
	}
	snapshot := s.messages.Messages()
	observer := s.onTranscript
	s.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
	return nil
}

// Leave leaves the active room: emits the leave control message, clears
// the transcript and presence map and unsubscribes all handlers.
// Idempotent if no room is active.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked()
}

// Send submits a chat message to the active room. Blank input and
// input while the transport is not connected are dropped; the
// transcript is only updated by the server's receive_message echo.
func (s *Session) Send(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	room := s.activeRoom
	membership := s.membership
	s.mu.Unlock()

	if room == "" || membership == NotJoined {
		s.log.Debug("dropping message, no active room")
		return
	}
	if s.conn.State() != transport.StateConnected {
		s.log.Debug("dropping message while not connected", "room", room)
		return
	}

	s.conn.Emit(models.EventSendMessage, models.SendPayload{
		UserName: s.config.UserName,
		Message:  text,
		Room:     room,
	})
}

// Close leaves the active room and disconnects the transport.
func (s *Session) Close() {
	s.Leave()
	s.conn.Disconnect()
}

// ActiveRoom returns the title of the active room, or "".
func (s *Session) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// RoomID returns the backend identifier of the active room, if the
// history fetch supplied one.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Membership returns the local join state for the active room.
func (s *Session) Membership() Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membership
}

// Transcript returns a snapshot of the active room's transcript.
func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.Messages()
}

// Presence returns a snapshot of the active room's presence map.
func (s *Session) Presence() map[string]models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Snapshot()
}

// Online returns the sorted names of users currently online in the
// active room.
func (s *Session) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Online()
}

// leaveLocked records the local intent to leave before anything else
// happens: membership is cleared and handlers removed even though
// delivery of the leave message to the backend is asynchronous.
func (s *Session) leaveLocked() {
	if s.activeRoom == "" {
		return
	}

	if s.membership != NotJoined {
		s.conn.Emit(models.EventLeave, models.LeavePayload{
			UserName: s.config.UserName,
			Room:     s.activeRoom,
		})
	}

	s.conn.Off(models.EventReceiveMessage)
	s.conn.Off(models.EventUserStatus)
	s.conn.Off(models.EventConnect)
	s.conn.Off(models.EventDisconnect)
	s.conn.Off(models.EventReconnect)
	s.conn.Off(models.EventReconnectFailed)

	if s.joinTimer != nil {
		s.joinTimer.Stop()
		s.joinTimer = nil
	}

	s.activeRoom = ""
	s.roomID = ""
	s.membership = NotJoined
	s.epoch++
	s.messages.Reset()
	s.users.Reset()
}

func (s *Session) subscribeLocked(epoch int) {
	s.conn.On(models.EventReceiveMessage, func(data json.RawMessage) {
		s.handleReceiveMessage(epoch, data)
	})
	s.conn.On(models.EventUserStatus, func(data json.RawMessage) {
		s.handleUserStatus(epoch, data)
	})
	s.conn.On(models.EventConnect, func(json.RawMessage) {
		s.handleConnected(epoch, "connected", false)
	})
	s.conn.On(models.EventReconnect, func(json.RawMessage) {
		s.handleConnected(epoch, "reconnected", true)
	})
	s.conn.On(models.EventDisconnect, func(json.RawMessage) {
		s.emitState("disconnected")
	})
	s.conn.On(models.EventReconnectFailed, func(json.RawMessage) {
		s.log.Error("reconnection failed, session requires re-entry")
		s.emitState("reconnect_failed")
	})
}

// joinLocked emits the join control message and arms the grace timer
// that stands in for the missing join acknowledgment.
func (s *Session) joinLocked() {
	s.conn.Emit(models.EventJoin, models.JoinPayload{
		UserName: s.config.UserName,
		Room:     s.activeRoom,
	})
	s.conn.Emit(models.EventUserConnected, models.ConnectedPayload{
		UserName: s.config.UserName,
	})
	s.membership = JoinRequested

	epoch := s.epoch
	if s.joinTimer != nil {
		s.joinTimer.Stop()
	}
	s.joinTimer = time.AfterFunc(s.config.JoinGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch == epoch && s.membership == JoinRequested {
			s.membership = Joined
		}
	})
}

// handleConnected runs on the first connect and on every successful
// reconnect: the transport triggers the rejoin, the session supplies
// the room and user identifiers for it. A reconnect always rejoins; a
// plain connect joins only if Enter did not already do so while the
// transport was connecting.
func (s *Session) handleConnected(epoch int, state string, rejoin bool) {
	s.mu.Lock()
	if s.epoch != epoch || s.activeRoom == "" || (!rejoin && s.membership != NotJoined) {
		s.mu.Unlock()
		return
	}
	s.joinLocked()
	s.mu.Unlock()

	s.emitState(state)
}

func (s *Session) handleReceiveMessage(epoch int, data json.RawMessage) {
	var payload models.ReceivePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.log.Warn("dropping malformed receive_message payload", "error", err)
		return
	}
	if payload.UserName == "" {
		s.log.Warn("dropping receive_message without author")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}

	msg := models.Message{
		ID:        payload.ID,
		Text:      content.Sanitize(payload.Text),
		UserName:  payload.UserName,
		Room:      s.activeRoom,
		Timestamp: time.Now().Unix(),
	}

	accepted := s.messages.ApplyIncoming(msg)
	if s.membership == JoinRequested {
		s.membership = Joined
	}

	var snapshot []models.Message
	observer := s.onTranscript
	if accepted && observer != nil {
		snapshot = s.messages.Messages()
	}
	s.mu.Unlock()

	if !accepted {
		return
	}
	if observer != nil {
		observer(snapshot)
	}
	if payload.UserName != s.config.UserName {
		body := msg.Text
		if rendered, err := content.RenderMarkdown(msg.Text); err == nil {
			body = strings.TrimSpace(rendered)
		}
		s.notify.Notify("New Message", fmt.Sprintf("%s: %s", msg.UserName, body))
	}
}

func (s *Session) handleUserStatus(epoch int, data json.RawMessage) {
	var payload models.StatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.log.Warn("dropping malformed user_status payload", "error", err)
		return
	}
	if payload.UserName == "" ||
		(payload.Status != models.StatusOnline && payload.Status != models.StatusOffline) {
		s.log.Warn("dropping unexpected user_status payload", "user", payload.UserName, "status", payload.Status)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}

	s.users.Apply(payload.UserName, payload.Status)
	if s.membership == JoinRequested {
		s.membership = Joined
	}

	observer := s.onPresence
	var snapshot map[string]models.Status
	if observer != nil {
		snapshot = s.users.Snapshot()
	}
	s.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

func (s *Session) emitState(state string) {
	s.mu.Lock()
	observer := s.onState
	s.mu.Unlock()

	if observer != nil {
		observer(state)
	}
}
