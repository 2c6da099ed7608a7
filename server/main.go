package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"focusrelay/logger"
	"focusrelay/server/bridge"
	"focusrelay/server/handler"
	"focusrelay/server/hub"
)

func main() {
	port := flag.Int("port", 8080, "Listen port")
	natsURL := flag.String("nats", "", "NATS URL for cross-node fan-out (empty disables the bridge)")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	log := logger.New(*debug)
	defer log.Sync()

	h := hub.New(log)

	var br *bridge.Nats
	if *natsURL != "" {
		var err error
		br, err = bridge.New(*natsURL, h, log)
		if err != nil {
			log.Fatal("bridge init failed", zap.Error(err))
		}
		if err := br.Start(); err != nil {
			log.Fatal("bridge start failed", zap.Error(err))
		}
		h.SetPeer(br)
	}

	hd := handler.New(h, log, *port)

	r := mux.NewRouter()
	r.HandleFunc("/status", hd.HandleStatus).Methods("GET")
	r.HandleFunc("/broadcast/message", hd.HandleBroadcastMessage).Methods("POST")
	r.HandleFunc("/broadcast/task-update", hd.HandleBroadcastTask).Methods("POST")
	r.HandleFunc("/broadcast/friend-notification", hd.HandleBroadcastFriend).Methods("POST")
	r.HandleFunc("/broadcast/video-call-notification", hd.HandleBroadcastVideoCall).Methods("POST")
	r.HandleFunc("/ws", hd.HandleWebSocket)

	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", *port),
		WriteTimeout: 15 * time.Second,
	}

	log.Info("relay starting", zap.Int("port", *port), zap.Bool("bridge", br != nil))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	h.Close()
	if br != nil {
		br.Close()
	}

	log.Info("relay exiting")
}
