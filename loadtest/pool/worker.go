package pool

import (
	"encoding/json"
	"log"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"focusrelay/client/model"
	"focusrelay/loadtest/generator"
	"focusrelay/loadtest/metrics"
)

type Worker struct {
	ID        int
	Input     <-chan generator.Job
	Collector *metrics.Collector
	Host      string
	Conns     map[string]*websocket.Conn
}

func NewWorker(id int, input <-chan generator.Job, collector *metrics.Collector, host string) *Worker {
	return &Worker{
		ID:        id,
		Input:     input,
		Collector: collector,
		Host:      host,
		Conns:     make(map[string]*websocket.Conn),
	}
}

func (w *Worker) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range w.Input {
		w.processJobWithRetry(job)
	}
	// Cleanup connections
	for _, conn := range w.Conns {
		conn.Close()
	}
}

// getConnection returns this worker's connection for a channel, dialing and
// subscribing it on first use so the broadcast fans back to us.
func (w *Worker) getConnection(channel string) (*websocket.Conn, error) {
	if conn, ok := w.Conns[channel]; ok {
		return conn, nil
	}

	u := url.URL{Scheme: "ws", Host: w.Host, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	sub := model.Frame{Type: model.FrameSubscribe, Channel: channel}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}

	w.Collector.RecordConnection()
	w.Conns[channel] = conn
	return conn, nil
}

func (w *Worker) processJobWithRetry(job generator.Job) {
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for i := 0; i <= maxRetries; i++ {
		start := time.Now()
		err := w.sendBroadcast(job)
		if err == nil {
			latency := time.Since(start).Milliseconds()
			w.Collector.Record(metrics.Record{
				Timestamp:  start,
				Channel:    job.Channel,
				Latency:    latency,
				StatusCode: "OK",
			})
			return
		}

		log.Printf("Worker %d: broadcast failed (attempt %d/%d): %v", w.ID, i+1, maxRetries+1, err)
		w.Collector.RecordRetry()

		// If the connection failed, drop it so we redial next time
		if conn, ok := w.Conns[job.Channel]; ok {
			conn.Close()
			delete(w.Conns, job.Channel)
		}

		if i == maxRetries {
			w.Collector.Record(metrics.Record{
				Timestamp:  start,
				Channel:    job.Channel,
				Latency:    0,
				StatusCode: "ERROR",
			})
		} else {
			// Exponential backoff
			delay := baseDelay * time.Duration(math.Pow(2, float64(i)))
			time.Sleep(delay)
		}
	}
}

// sendBroadcast pushes the frame through the relay and waits for the
// fanned-out envelope to come back on the subscribed connection.
func (w *Worker) sendBroadcast(job generator.Job) error {
	conn, err := w.getConnection(job.Channel)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(job.Frame); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Successfully reading an envelope back is proof of the round trip;
	// under concurrent load it may be another worker's broadcast, which is
	// just as good a fan-out sample.
	_, p, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var env model.Envelope
	return json.Unmarshal(p, &env)
}

type Pool struct {
	NumWorkers int
	Input      <-chan generator.Job
	Collector  *metrics.Collector
	Host       string
}

func NewPool(numWorkers int, input <-chan generator.Job, collector *metrics.Collector, host string) *Pool {
	return &Pool{
		NumWorkers: numWorkers,
		Input:      input,
		Collector:  collector,
		Host:       host,
	}
}

func (p *Pool) Run() {
	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		worker := NewWorker(i, p.Input, p.Collector, p.Host)
		go worker.Run(&wg)
	}
	wg.Wait()
}
