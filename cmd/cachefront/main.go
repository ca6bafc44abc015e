package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	cachefront "github.com/cachefront/cachefront"
	"github.com/cachefront/cachefront/cache"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	hostFlag           string
	appFlag            string
	appVersionFlag     int
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin (overrides config)")
	flag.StringVar(&appFlag, "app", "", "Application id used in store names (overrides config)")
	flag.IntVar(&appVersionFlag, "app-version", 0, "Deployment version (overrides config)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (default 8080)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name, use 'memory' for in-memory db (default cache.db)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	config, err := getConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read config")
	}
	applyFlagOverrides(&config)

	// set up log output to stdout
	// also output to a rotating logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.LogFilename != "" {
		logOutputs = append(logOutputs, &lumberjack.Logger{
			Filename:   config.LogFilename,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	if config.App == "" {
		log.Fatal().Msg("Please specify app id")
	}
	if config.Version <= 0 {
		log.Fatal().Msg("Please specify a positive deployment version")
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	// set up sqlite memory provider
	dbFilename := config.DBFilename
	if dbFilename == "memory" {
		dbFilename = "file::memory:?cache=shared"
	}
	provider := cache.NewSQLiteProvider(dbFilename)

	front := cachefront.New(cachefront.Config{
		Cache:         provider,
		AppID:         config.App,
		Version:       config.Version,
		OriginURL:     *originURL,
		OriginHost:    config.Host,
		Precache:      config.Precache,
		EntryDocument: config.EntryDocument,
		Logger:        &log.Logger,
	})

	ctx := context.Background()
	if err := front.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not install")
	}
	if err := front.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not activate")
	}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(accessLog)
	router.Get("/-/cachefront/status", statusHandler(front, provider, config))
	router.Handle("/*", front)

	log.Info().Msgf("Proxying port %v to %s (with store '%s')", config.Port, originURL.String(), front.StoreName())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), router); err != nil {
		panic(err)
	}
}

func applyFlagOverrides(config *Config) {
	if originFlag != "" {
		config.Origin = originFlag
	}
	if hostFlag != "" {
		config.Host = hostFlag
	}
	if appFlag != "" {
		config.App = appFlag
	}
	if appVersionFlag > 0 {
		config.Version = appVersionFlag
	}
	if portFlag > 0 {
		config.Port = portFlag
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if dbFilenameFlag != "" {
		config.DBFilename = dbFilenameFlag
	}
	if config.DBFilename == "" {
		config.DBFilename = "cache.db"
	}
	if logFilenameFlag != "" {
		config.LogFilename = logFilenameFlag
	}
}

// requestID tags every request and its response with a correlation id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		logger := log.With().Str("requestId", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// statusWriter remembers the status code written downstream.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// statusHandler reports the store currently serving requests.
func statusHandler(front *cachefront.CacheFront, provider cache.Provider, config Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := provider.Names()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"store":    front.StoreName(),
			"stores":   names,
			"version":  config.Version,
			"origin":   config.Origin,
			"precache": len(config.Precache),
		})
	}
}
