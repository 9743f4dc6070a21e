package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/cloudplay/go-watchparty/internal/api"
	"github.com/cloudplay/go-watchparty/internal/config"
	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/media"
	"github.com/cloudplay/go-watchparty/internal/server"
	"github.com/cloudplay/go-watchparty/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	cloudinaryURL  string
	scanInterval   time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&cloudinaryURL, "cloudinary-url", os.Getenv("CLOUDINARY_URL"), "cloudinary API URL")
	flag.DurationVar(&scanInterval, "scan-interval", config.DefaultScanInterval, "period of the scheduled-start scan")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[cloudplay] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, cloudinaryURL, allowedOrigins, scanInterval)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewDatabaseConnection(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	uploader, err := media.NewCloudinaryUploader(cfg.CloudinaryURL)
	if err != nil {
		logger.Fatal("cloudinary:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	syncServer, err := server.NewSyncServer(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new sync server:", err)
	}

	scheduler := server.NewScheduler(logger, dbConn, syncServer, statsUpdater, cfg.ScanInterval)

	srv := api.NewWatchPartyApp(mux, logger, syncServer, dbConn, uploader, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go syncServer.Run()
	scheduler.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("stopping scheduler...")
	scheduler.Stop()

	logger.Println("shutting down sync server...")
	if err := syncServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("sync server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
