package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"focusrelay/client/model"
	"focusrelay/loadtest/generator"
	"focusrelay/loadtest/metrics"
	"focusrelay/loadtest/pool"
)

func main() {
	host := flag.String("host", "localhost:8080", "Relay host:port")
	workers := flag.Int("workers", 32, "Number of worker threads")
	totalBroadcasts := flag.Int("broadcasts", 100000, "Total number of broadcasts to send")
	chart := flag.String("chart", "", "Write an HTML throughput chart to this path")
	flag.Parse()

	fmt.Printf("Starting relay load client with host=%s, workers=%d, broadcasts=%d\n",
		*host, *workers, *totalBroadcasts)

	// Warmup Phase
	fmt.Println("\n--- Starting Warmup Phase ---")
	runWarmup(*host, 32, 500)
	fmt.Println("--- Warmup Complete ---")

	// Main Phase
	fmt.Println("\n--- Starting Main Phase ---")

	collector, err := metrics.NewCollector("results.csv")
	if err != nil {
		log.Fatalf("Failed to create collector: %v", err)
	}
	collector.Start()

	// Buffer size 10000 to avoid blocking the generator
	gen := generator.New(*totalBroadcasts, 10000)
	go gen.Run()

	p := pool.NewPool(*workers, gen.Output, collector, *host)

	start := time.Now()
	p.Run()
	duration := time.Since(start)

	collector.Close()
	<-collector.Done

	fmt.Println("--- Main Phase Complete ---")
	collector.PrintSummary()
	fmt.Printf("Wall Time: %.2f seconds\n", duration.Seconds())

	if *chart != "" {
		if err := collector.GenerateChart(*chart); err != nil {
			log.Printf("Failed to write chart: %v", err)
		}
	}
}

func runWarmup(host string, numWorkers int, broadcastsPerWorker int) {
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
			conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
			if err != nil {
				log.Printf("Warmup worker %d failed to connect: %v", id, err)
				return
			}
			defer conn.Close()

			sub := model.Frame{Type: model.FrameSubscribe, Channel: model.ChannelTasks}
			if err := conn.WriteJSON(sub); err != nil {
				log.Printf("Warmup worker %d failed to subscribe: %v", id, err)
				return
			}

			for j := 0; j < broadcastsPerWorker; j++ {
				frame := model.Frame{
					Type:    model.FrameBroadcast,
					Channel: model.ChannelTasks,
					Data:    map[string]any{"id": j, "status": "warmup"},
				}

				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(frame); err != nil {
					log.Printf("Warmup worker %d failed write: %v", id, err)
					return
				}

				conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				_, _, err := conn.ReadMessage()
				if err != nil {
					log.Printf("Warmup worker %d failed read: %v", id, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	duration := time.Since(start)
	fmt.Printf("Warmup finished in %.2f seconds\n", duration.Seconds())
}
