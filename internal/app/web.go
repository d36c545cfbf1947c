package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/clock"
	"github.com/relabs-tech/accurate_clock/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // served on the local network only
	},
}

// clockReader is what the web and display front ends read from.
type clockReader interface {
	Snapshot() (clock.Snapshot, bool)
	Read(now time.Time) (clock.Reading, bool)
}

// RunWeb serves the latest clock snapshot from TOPIC_CLOCK over HTTP and
// a WebSocket push channel.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, "web")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	store := newSnapshotStore()
	if err := store.subscribe(client, cfg.TopicClock, "web"); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           newWebHandler(store, cfg.WebStaticDir, config.Millis(cfg.WebPushIntervalMs)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("web: listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func newWebHandler(src clockReader, staticDir string, pushInterval time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/api/clock", func(w http.ResponseWriter, _ *http.Request) {
		reading, ok := src.Read(time.Now())
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, reading)
	})

	r.Get("/api/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := src.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	})

	r.Get("/ws/clock", func(w http.ResponseWriter, r *http.Request) {
		serveClockWS(w, r, src, pushInterval)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("web: json encode error")
	}
}

// serveClockWS pushes a rendered reading every interval until the client
// goes away. Readings are only sent once a snapshot has arrived.
func serveClockWS(w http.ResponseWriter, r *http.Request, src clockReader, interval time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("web: websocket upgrade error")
		return
	}
	defer conn.Close()

	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	// The read loop only notices the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			reading, ok := src.Read(time.Now())
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(interval * 10))
			if err := conn.WriteJSON(reading); err != nil {
				log.Debug().Err(err).Msg("web: websocket write error")
				return
			}
		}
	}
}
