package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, db *DB) *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	// Read-only live counts: rooms, clients, per-rank queue depth
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.Status())
	})

	// Room listing for lobby browsers
	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.rooms.ListRooms())
	})

	// Recent completed matches from the analytics store
	mux.HandleFunc("/matches", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, []MatchRecord{})
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		matches, err := db.RecentMatches(limit)
		if err != nil {
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		if matches == nil {
			matches = []MatchRecord{}
		}
		writeJSON(w, matches)
	})

	// Join-link QR code for a room
	mux.HandleFunc("/qr", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" || hub.rooms.GetRoom(roomID) == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		joinURL := "https://" + r.Host + "/?room=" + url.QueryEscape(roomID)
		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "qr encode error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	return mux
}
