// Package web exposes the trade journal to reporting consumers over
// HTTP: a minimal index page and an SSE event stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/forkguard/dexsim/internal/domain"
)

const streamPollInterval = 2 * time.Second

type tradeReader interface {
	EventsAfter(index uint64) ([]domain.EventRecord, error)
}

// Server exposes HTTP endpoints serving a status page and an SSE stream
// of journaled exchange events.
type Server struct {
	Addr    string
	Journal tradeReader
}

// NewServer creates a new web server instance.
func NewServer(addr string, journal tradeReader) *Server {
	return &Server{Addr: addr, Journal: journal}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/trades/stream", s.handleTradeStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "dexsim trade stream: GET /trades/stream (SSE)")
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trade journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastIndex uint64
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		records, err := s.Journal.EventsAfter(lastIndex)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
			flusher.Flush()
			return
		}
		for _, record := range records {
			var payload any
			switch record.Kind {
			case domain.EventKindSwap:
				payload = record.Swap
			case domain.EventKindLiquidity:
				payload = record.Liquidity
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", record.Kind, data)
			lastIndex = record.Index
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
