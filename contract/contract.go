//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

// EventSink is one deliverable channel for outbound events, typically a live
// websocket connection. Consume must not block; a full or closed sink
// returns an error and the transport drops the connection.
type EventSink interface {
	Consume(event string, payload any) error
}

// Emitter delivers one logical event to a scope: a single connection, a
// room's members, or every connected client. The registry and router only
// name scopes; resolving a connection ID to a deliverable channel is the
// emitter's concern.
type Emitter interface {
	ToConnection(connectionID, event string, payload any)
	ToRoom(roomCode, event string, payload any)
	ToRoomExcept(roomCode, exceptConnectionID, event string, payload any)
	ToAll(event string, payload any)

	JoinGroup(connectionID, roomCode string)
	LeaveGroup(connectionID, roomCode string)
}

// EventHandler receives inbound events tagged with the connection they came
// from. Disconnect is idempotent: the transport may observe a session close
// more than once.
type EventHandler interface {
	Handle(connectionID, event string, payload []byte)
	Disconnect(connectionID string)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerName string

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
