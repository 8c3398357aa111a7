// roomctl is a small operator tool: it connects to a running room server,
// prints the public-room directory and the aggregate stats, and can keep
// watching directory changes as they are broadcast.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"roomhub/protocol"
)

type Config struct {
	ServerURL string        `envconfig:"ROOMHUB_URL" default:"ws://localhost:4000/ws"`
	Timeout   time.Duration `envconfig:"ROOMHUB_TIMEOUT" default:"5s"`
	// ROOMHUB_WATCH keeps the connection open and prints directory patch
	// events as they arrive.
	Watch bool `envconfig:"ROOMHUB_WATCH" default:"false"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.ServerURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.ServerURL, err)
	}
	defer conn.Close()

	if err := request(conn, protocol.EvtListPublicRooms); err != nil {
		log.Fatalf("Failed to request room list: %v", err)
	}
	if err := request(conn, protocol.EvtGetRoomStats); err != nil {
		log.Fatalf("Failed to request stats: %v", err)
	}

	var gotRooms, gotStats bool
	_ = conn.SetReadDeadline(time.Now().Add(cfg.Timeout))
	for !gotRooms || !gotStats {
		envelope, err := read(conn)
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
		switch envelope.Event {
		case protocol.EvtPublicRoomsList:
			var rooms []protocol.PublicRoomSummary
			if err := json.Unmarshal(envelope.Payload, &rooms); err != nil {
				log.Fatalf("Malformed room list: %v", err)
			}
			renderRooms(rooms)
			gotRooms = true
		case protocol.EvtRoomStats:
			var stats protocol.RoomStatsPayload
			if err := json.Unmarshal(envelope.Payload, &stats); err != nil {
				log.Fatalf("Malformed stats: %v", err)
			}
			renderStats(stats)
			gotStats = true
		}
	}

	if cfg.Watch {
		watch(conn)
	}
}

func request(conn *websocket.Conn, event string) error {
	return conn.WriteJSON(protocol.OutboundEnvelope{Event: event, Payload: struct{}{}})
}

func read(conn *websocket.Conn) (protocol.Envelope, error) {
	var envelope protocol.Envelope
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return envelope, err
	}
	err = json.Unmarshal(raw, &envelope)
	return envelope, err
}

func renderRooms(rooms []protocol.PublicRoomSummary) {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" Public rooms "))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Name", "Users", "Last active", "Created"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, room := range rooms {
		table.Append([]string{
			room.Code,
			room.Name,
			fmt.Sprintf("%d", room.UserCount),
			room.LastActive.Local().Format("15:04:05"),
			room.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
}

func renderStats(stats protocol.RoomStatsPayload) {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" Server stats "))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Total rooms", "Public", "Private", "Users"})
	table.Append([]string{
		fmt.Sprintf("%d", stats.TotalRooms),
		fmt.Sprintf("%d", stats.PublicRooms),
		fmt.Sprintf("%d", stats.PrivateRooms),
		fmt.Sprintf("%d", stats.TotalUsers),
	})
	table.Render()
}

// watch tails directory patch broadcasts until the connection drops.
func watch(conn *websocket.Conn) {
	fmt.Println(color.New(color.FgYellow).Render("Watching directory events (Ctrl+C to stop)..."))
	_ = conn.SetReadDeadline(time.Time{})

	for {
		envelope, err := read(conn)
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		switch envelope.Event {
		case protocol.EvtNewPublicRoom, protocol.EvtPublicRoomUpdated, protocol.EvtPublicRoomDeleted:
			fmt.Printf("%s %s %s\n",
				time.Now().Format("15:04:05"),
				color.New(color.FgCyan).Render(envelope.Event),
				string(envelope.Payload))
		}
	}
}
