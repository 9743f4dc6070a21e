package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/cloudplay/go-watchparty/internal/config"
	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/media"
	"github.com/cloudplay/go-watchparty/internal/server"
	"github.com/cloudplay/go-watchparty/internal/stats"
)

type WatchPartyApp struct {
	log            *log.Logger
	db             database.WatchPartyRepository
	mux            *http.Server
	ss             *server.SyncServer
	uploader       media.Uploader
	stats          stats.StatsProvider
	allowedOrigins []string
}

func NewWatchPartyApp(mux *http.ServeMux, logger *log.Logger, ss *server.SyncServer, db database.WatchPartyRepository, uploader media.Uploader, su stats.StatsProvider, cfg *config.Config) *WatchPartyApp {
	s := &WatchPartyApp{
		log:            logger,
		db:             db,
		ss:             ss,
		uploader:       uploader,
		stats:          su,
		allowedOrigins: cfg.AllowedOrigins,
	}

	su.RegisterMetric("NumVideoUploads")

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/rooms", s.listRooms)
	mux.HandleFunc("GET /api/rooms/{id}", s.getRoom)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("POST /api/rooms/{roomId}/join", s.joinRoom)
	mux.HandleFunc("POST /api/rooms/{roomId}/leave", s.leaveRoom)
	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("GET /api/users/{id}", s.getUser)
	mux.HandleFunc("POST /api/videos/upload", s.uploadVideo)
	mux.HandleFunc("GET /api/videos", s.listVideos)
	mux.HandleFunc("GET /api/videos/{id}", s.getVideo)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *WatchPartyApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *WatchPartyApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
