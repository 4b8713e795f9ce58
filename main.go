package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "blockstorm.db", "Path to SQLite database (empty to disable)")
	flag.Parse()

	var db *DB
	if *dbPath != "" {
		var err error
		db, err = OpenDB(*dbPath)
		if err != nil {
			log.Printf("database unavailable, analytics disabled: %v", err)
			db = nil
		}
	}

	analytics := NewAnalytics(db)
	rooms := NewRoomManager(analytics)
	matchmaker := NewMatchmaker(rooms, analytics)

	hub := NewHub(rooms, matchmaker, analytics)
	go hub.Run()

	mux := SetupRoutes(hub, db)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
	analytics.Stop()
	if db != nil {
		db.Close()
	}
}
