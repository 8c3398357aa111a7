package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roomhub/domain"
	"roomhub/mocks"
	"roomhub/observability"
	"roomhub/protocol"
)

type routerFixture struct {
	router   *EventRouter
	registry *RoomRegistry
	emitter  *mocks.MockEmitter
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	registry := NewRoomRegistry(slog.Default(), time.Now, NewCodeGenerator())
	monitor := observability.NewMonitor(slog.Default())
	return routerFixture{
		router:   NewEventRouter(slog.Default(), registry, emitter, monitor),
		registry: registry,
		emitter:  emitter,
	}
}

func rawPayload(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// seedRoom creates a room directly through the registry so tests exercise
// exactly one router path at a time.
func (f routerFixture) seedRoom(t *testing.T, name string, public bool) string {
	t.Helper()
	info, err := f.registry.CreateRoom(name, public)
	require.NoError(t, err)
	return info.Code
}

func (f routerFixture) seedMember(t *testing.T, code, connectionID, displayName string) string {
	t.Helper()
	userID := uuid.NewString()
	_, err := f.registry.Join(code, domain.Member{
		ConnectionID: connectionID,
		UserID:       userID,
		DisplayName:  displayName,
	})
	require.NoError(t, err)
	return userID
}

func TestEventRouter_CreateRoom_PublicAnnouncesDirectoryEntry(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	conn := uuid.NewString()

	var created protocol.RoomCreated
	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtRoomCreated, gomock.Any()).
		Do(func(_, _ string, payload any) {
			created = payload.(protocol.RoomCreated)
		})
	var announced protocol.PublicRoomSummary
	f.emitter.EXPECT().
		ToAll(protocol.EvtNewPublicRoom, gomock.Any()).
		Do(func(_ string, payload any) {
			announced = payload.(protocol.PublicRoomSummary)
		})

	// When a public room is created without an identity
	f.router.Handle(conn, protocol.EvtCreateRoom, rawPayload(t, map[string]any{
		"name":     "Trivia",
		"isPublic": true,
	}))

	// Then the creator gets the room and everyone gets a directory entry
	req.Len(created.Code, 6)
	req.Equal("Trivia", created.Name)
	req.True(created.IsPublic)
	req.False(created.AutoJoined)
	req.Equal(created.Code, announced.Code)
	req.Equal(0, announced.UserCount)

	// And the directory lists exactly that room
	summaries := f.registry.ListPublicRooms()
	req.Len(summaries, 1)
	req.Equal(created.Code, summaries[0].Code)
	req.Equal(0, summaries[0].UserCount)
}

func TestEventRouter_CreateRoom_PrivateStaysOffDirectory(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	conn := uuid.NewString()

	f.emitter.EXPECT().ToConnection(conn, protocol.EvtRoomCreated, gomock.Any())
	// No ToAll expectation: a private room must not be announced.

	f.router.Handle(conn, protocol.EvtCreateRoom, rawPayload(t, map[string]any{
		"name":     "Secret",
		"isPublic": false,
	}))

	req.Empty(f.registry.ListPublicRooms())
}

func TestEventRouter_CreateRoom_AutoJoinsCreator(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	conn := uuid.NewString()
	userID := uuid.NewString()

	var created protocol.RoomCreated
	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtRoomCreated, gomock.Any()).
		Do(func(_, _ string, payload any) {
			created = payload.(protocol.RoomCreated)
		})
	f.emitter.EXPECT().ToAll(protocol.EvtNewPublicRoom, gomock.Any())
	f.emitter.EXPECT().JoinGroup(conn, gomock.Any())
	f.emitter.EXPECT().ToConnection(conn, protocol.EvtJoinedRoom, gomock.Any())
	f.emitter.EXPECT().ToRoom(gomock.Any(), protocol.EvtUserJoined, gomock.Any())
	f.emitter.EXPECT().ToAll(protocol.EvtPublicRoomUpdated, gomock.Any())

	// When the creator supplies an identity
	f.router.Handle(conn, protocol.EvtCreateRoom, rawPayload(t, map[string]any{
		"name":     "Trivia",
		"userId":   userID,
		"userName": "Alice",
	}))

	// Then the creator is a member of the new room
	req.True(created.AutoJoined)
	req.Equal(1, f.registry.Stats().TotalUsers)
}

func TestEventRouter_CreateRoom_RejectsBlankName(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	conn := uuid.NewString()

	f.emitter.EXPECT().ToConnection(conn, protocol.EvtRoomCreationFailed, gomock.Any())

	f.router.Handle(conn, protocol.EvtCreateRoom, rawPayload(t, map[string]any{
		"name": "   ",
	}))

	req.Equal(0, f.registry.RoomCount())
}

func TestEventRouter_JoinRoom_EmitsSnapshotAndBroadcasts(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", true)
	conn := uuid.NewString()

	f.emitter.EXPECT().JoinGroup(conn, code)
	var joined protocol.JoinedRoom
	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtJoinedRoom, gomock.Any()).
		Do(func(_, _ string, payload any) {
			joined = payload.(protocol.JoinedRoom)
		})
	var userJoined protocol.UserJoined
	f.emitter.EXPECT().
		ToRoom(code, protocol.EvtUserJoined, gomock.Any()).
		Do(func(_, _ string, payload any) {
			userJoined = payload.(protocol.UserJoined)
		})
	f.emitter.EXPECT().ToAll(protocol.EvtPublicRoomUpdated, gomock.Any())

	f.router.Handle(conn, protocol.EvtJoinRoom, rawPayload(t, map[string]any{
		"roomCode": code,
		"userId":   uuid.NewString(),
		"name":     "Alice",
	}))

	// Then the joiner gets an empty history and the room sees count 1
	req.Equal(code, joined.RoomCode)
	req.Empty(joined.Messages)
	req.Equal(1, userJoined.UserCount)
	req.Equal("Alice", userJoined.UserName)
}

func TestEventRouter_JoinRoom_UnknownCodeFails(t *testing.T) {
	f := newRouterFixture(t)
	conn := uuid.NewString()

	f.emitter.EXPECT().ToConnection(conn, protocol.EvtJoinFailed, gomock.Any())

	f.router.Handle(conn, protocol.EvtJoinRoom, rawPayload(t, map[string]any{
		"roomCode": "FFFFFF",
		"userId":   uuid.NewString(),
		"name":     "Alice",
	}))
}

func TestEventRouter_JoinRoom_DuplicateIsInformational(t *testing.T) {
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", false)
	conn := uuid.NewString()
	userID := f.seedMember(t, code, conn, "Alice")

	// When the same connection joins the same room again
	f.emitter.EXPECT().ToConnection(conn, protocol.EvtAlreadyInRoom, gomock.Any())

	f.router.Handle(conn, protocol.EvtJoinRoom, rawPayload(t, map[string]any{
		"roomCode": code,
		"userId":   userID,
		"name":     "Alice",
	}))
}

func TestEventRouter_SendMessage_BroadcastsToRoom(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", false)
	conn := uuid.NewString()
	userID := f.seedMember(t, code, conn, "Alice")

	var message protocol.MessagePayload
	f.emitter.EXPECT().
		ToRoom(code, protocol.EvtNewMessage, gomock.Any()).
		Do(func(_, _ string, payload any) {
			message = payload.(protocol.MessagePayload)
		})

	f.router.Handle(conn, protocol.EvtSendMessage, rawPayload(t, map[string]any{
		"roomCode": code,
		"userId":   userID,
		"name":     "Alice",
		"message":  "hello",
	}))

	// Then every member of the room receives the posted line
	req.Equal("hello", message.Content)
	req.Equal(userID, message.SenderID)
	req.Equal("Alice", message.Sender)
	req.NotEmpty(message.ID)
}

func TestEventRouter_SendMessage_NonMemberRejected(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", true)
	insider := uuid.NewString()
	f.seedMember(t, code, insider, "Alice")

	// When a connection that never joined posts to the room
	outsider := uuid.NewString()
	f.emitter.EXPECT().ToConnection(outsider, protocol.EvtMessageFailed, gomock.Any())

	f.router.Handle(outsider, protocol.EvtSendMessage, rawPayload(t, map[string]any{
		"roomCode": code,
		"userId":   uuid.NewString(),
		"name":     "Mallory",
		"message":  "intruding",
	}))

	// Then no new-message was emitted and the history is unchanged
	result, err := f.registry.Join(code, domain.Member{ConnectionID: uuid.NewString(), UserID: uuid.NewString(), DisplayName: "Bob"})
	req.NoError(err)
	req.Empty(result.History)
}

func TestEventRouter_SendMessage_RejectsOversizedContent(t *testing.T) {
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", false)
	conn := uuid.NewString()
	userID := f.seedMember(t, code, conn, "Alice")

	f.emitter.EXPECT().ToConnection(conn, protocol.EvtMessageFailed, gomock.Any())

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	f.router.Handle(conn, protocol.EvtSendMessage, rawPayload(t, map[string]any{
		"roomCode": code,
		"userId":   userID,
		"name":     "Alice",
		"message":  string(long),
	}))
}

func TestEventRouter_LeaveRoom_AnnouncesDeparture(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", true)
	alice := uuid.NewString()
	bob := uuid.NewString()
	f.seedMember(t, code, alice, "Alice")
	f.seedMember(t, code, bob, "Bob")

	f.emitter.EXPECT().LeaveGroup(bob, code)
	var left protocol.UserLeft
	f.emitter.EXPECT().
		ToRoom(code, protocol.EvtUserLeft, gomock.Any()).
		Do(func(_, _ string, payload any) {
			left = payload.(protocol.UserLeft)
		})
	f.emitter.EXPECT().ToAll(protocol.EvtPublicRoomUpdated, gomock.Any())

	f.router.Handle(bob, protocol.EvtLeaveRoom, rawPayload(t, map[string]any{
		"roomCode": code,
	}))

	// Then the announcement uses the server-side membership record, not a
	// client-supplied name
	req.Equal("Bob", left.UserName)
	req.Equal(1, left.UserCount)
}

func TestEventRouter_Disconnect_SoleMemberDeletesPublicRoom(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", true)
	conn := uuid.NewString()
	f.seedMember(t, code, conn, "Alice")

	f.emitter.EXPECT().LeaveGroup(conn, code)
	f.emitter.EXPECT().ToAll(protocol.EvtPublicRoomDeleted, code)

	// When the sole member's transport drops
	f.router.Disconnect(conn)

	// Then the room is gone and a second disconnect is silent
	req.False(f.registry.RoomExists(code))
	f.router.Disconnect(conn)
}

// recordingEmitter keeps the broadcast contents in arrival order. The gomock
// emitter verifies call shapes; this one verifies ordering under concurrency.
type recordingEmitter struct {
	mu       sync.Mutex
	contents []string
}

func (e *recordingEmitter) ToRoom(_, event string, payload any) {
	if event != protocol.EvtNewMessage {
		return
	}
	message := payload.(protocol.MessagePayload)
	e.mu.Lock()
	e.contents = append(e.contents, message.Content)
	e.mu.Unlock()
}

func (e *recordingEmitter) ToConnection(_, _ string, _ any)    {}
func (e *recordingEmitter) ToRoomExcept(_, _, _ string, _ any) {}
func (e *recordingEmitter) ToAll(_ string, _ any)              {}
func (e *recordingEmitter) JoinGroup(_, _ string)              {}
func (e *recordingEmitter) LeaveGroup(_, _ string)             {}

func TestEventRouter_SendMessage_BroadcastOrderMatchesHistory(t *testing.T) {
	req := require.New(t)
	recorder := &recordingEmitter{}
	registry := NewRoomRegistry(slog.Default(), time.Now, NewCodeGenerator())
	router := NewEventRouter(slog.Default(), registry, recorder, observability.NewMonitor(slog.Default()))

	info, err := registry.CreateRoom("Trivia", false)
	req.NoError(err)

	const perSender = 200
	payloadsFor := func(connectionID, name string) [][]byte {
		userID := uuid.NewString()
		_, err := registry.Join(info.Code, domain.Member{
			ConnectionID: connectionID,
			UserID:       userID,
			DisplayName:  name,
		})
		req.NoError(err)

		payloads := make([][]byte, perSender)
		for i := range payloads {
			payloads[i] = rawPayload(t, map[string]any{
				"roomCode": info.Code,
				"userId":   userID,
				"name":     name,
				"message":  fmt.Sprintf("%s-%d", name, i),
			})
		}
		return payloads
	}
	aliceConn, bobConn := uuid.NewString(), uuid.NewString()
	alicePayloads := payloadsFor(aliceConn, "Alice")
	bobPayloads := payloadsFor(bobConn, "Bob")

	// When two connections race their sends through the router
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, payload := range alicePayloads {
			router.Handle(aliceConn, protocol.EvtSendMessage, payload)
		}
	}()
	go func() {
		defer wg.Done()
		for _, payload := range bobPayloads {
			router.Handle(bobConn, protocol.EvtSendMessage, payload)
		}
	}()
	wg.Wait()

	// Then the broadcast order equals history append order, message for
	// message
	result, err := registry.Join(info.Code, domain.Member{
		ConnectionID: uuid.NewString(),
		UserID:       uuid.NewString(),
		DisplayName:  "Reader",
	})
	req.NoError(err)

	history := make([]string, len(result.History))
	for i, message := range result.History {
		history[i] = message.Content
	}
	req.Len(recorder.contents, 2*perSender)
	req.Equal(history, recorder.contents)
}

func TestEventRouter_Typing_RequiresMembership(t *testing.T) {
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", false)
	f.seedMember(t, code, uuid.NewString(), "Alice")

	// No ToRoomExcept expectation: an indicator from a connection outside
	// the room is dropped
	f.router.Handle(uuid.NewString(), protocol.EvtTypingStart, rawPayload(t, map[string]any{
		"roomCode": code,
		"userName": "Mallory",
		"userId":   uuid.NewString(),
	}))
}

func TestEventRouter_Typing_ForwardedToOthersOnly(t *testing.T) {
	f := newRouterFixture(t)
	code := f.seedRoom(t, "Trivia", false)
	conn := uuid.NewString()
	userID := f.seedMember(t, code, conn, "Alice")

	// Then the indicator goes to every other member, never the sender
	f.emitter.EXPECT().
		ToRoomExcept(code, conn, protocol.EvtUserTypingStart, gomock.Any()).
		Do(func(_, _, _ string, payload any) {
			typing := payload.(protocol.TypingPayload)
			require.Equal(t, "Alice", typing.UserName)
		})

	f.router.Handle(conn, protocol.EvtTypingStart, rawPayload(t, map[string]any{
		"roomCode": code,
		"userName": "Alice",
		"userId":   userID,
	}))

	// And a malformed typing payload is dropped silently
	f.router.Handle(conn, protocol.EvtTypingStart, []byte(`{"bogus":`))
}

func TestEventRouter_ListPublicRooms_RespondsToRequesterOnly(t *testing.T) {
	f := newRouterFixture(t)
	f.seedRoom(t, "Trivia", true)
	conn := uuid.NewString()

	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtPublicRoomsList, gomock.Any()).
		Do(func(_, _ string, payload any) {
			summaries := payload.([]protocol.PublicRoomSummary)
			require.Len(t, summaries, 1)
			require.Equal(t, "Trivia", summaries[0].Name)
		})

	f.router.Handle(conn, protocol.EvtListPublicRooms, nil)
}

func TestEventRouter_RoomStats_RespondsToRequesterOnly(t *testing.T) {
	f := newRouterFixture(t)
	f.seedRoom(t, "Trivia", true)
	f.seedRoom(t, "Secret", false)
	conn := uuid.NewString()

	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtRoomStats, gomock.Any()).
		Do(func(_, _ string, payload any) {
			stats := payload.(protocol.RoomStatsPayload)
			require.Equal(t, 2, stats.TotalRooms)
			require.Equal(t, 1, stats.PublicRooms)
			require.Equal(t, 1, stats.PrivateRooms)
		})

	f.router.Handle(conn, protocol.EvtGetRoomStats, nil)
}

func TestEventRouter_UnknownEvent(t *testing.T) {
	f := newRouterFixture(t)
	conn := uuid.NewString()

	f.emitter.EXPECT().
		ToConnection(conn, protocol.EvtError, gomock.Any()).
		Do(func(_, _ string, payload any) {
			require.Equal(t, "unknown event", payload.(protocol.ErrorPayload).Message)
		})

	f.router.Handle(conn, "set-user-id", []byte(fmt.Sprintf("%q", uuid.NewString())))
}
