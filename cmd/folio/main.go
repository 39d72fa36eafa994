// Package main is the entry point for the folio server.
//
// folio serves an architecture studio's portfolio: public pages, an admin
// area to author projects and their virtual tours, and a JSON API. Projects
// live in <data-dir>/projects.json or PostgreSQL. Configuration is read from
// CLI flags, a .env file, and server_config.json (JWT secret, quotas, rate
// limits).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/kennan/folio/internal/authoring"
	"github.com/kennan/folio/internal/server"
	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/server/pages"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/storage"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/git"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/pgstore"
	"github.com/kennan/folio/internal/storage/uploads"
)

const projectsFile = "projects.json"

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "folio: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080). Use 0.0.0.0:port to listen on all interfaces.")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	baseURL := flag.String("base-url", "http://localhost", "Public base URL (e.g., https://example.com); https enables secure cookies")
	studio := flag.String("studio", "Studio", "Studio name shown on every page")
	databaseURL := flag.String("database-url", "", "PostgreSQL URL; projects are stored in <data-dir>/projects.json when empty")
	history := flag.Bool("history", false, "Commit every change of projects.json to a git repository in the data directory")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	logger := newLogger(ll)
	slog.SetDefault(logger)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	// Load server_config.json for the JWT secret, quotas and rate limits
	// (creates it with defaults if missing).
	serverCfg, err := storage.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load server_config.json: %w", err)
	}

	// Run onboarding if no .env file exists and stdin is a TTY
	envPath := filepath.Join(*dataDir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			if err := runOnboarding(*dataDir, envPath, serverCfg); err != nil {
				return fmt.Errorf("onboarding failed: %w", err)
			}
		}
	}

	env, err := loadDotEnv(envPath)
	if err != nil {
		return err
	}

	// Override with .env file values if not explicitly set via flags
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	for name, key := range map[string]string{
		"http":         "HTTP",
		"log-level":    "LOG_LEVEL",
		"base-url":     "BASE_URL",
		"studio":       "STUDIO",
		"database-url": "DATABASE_URL",
	} {
		if v := env[key]; !set[name] && v != "" {
			if err := flag.Set(name, v); err != nil {
				return fmt.Errorf("invalid %s in .env: %w", key, err)
			}
		}
	}
	if v := env["HISTORY"]; !set["history"] && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HISTORY in .env: %w", err)
		}
		*history = b
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	// Append port to base URL if localhost and no port specified
	if u, err := url.Parse(*baseURL); err == nil && u.Port() == "" && u.Hostname() == "localhost" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			u.Host = net.JoinHostPort(u.Hostname(), p)
			*baseURL = u.String()
		}
	}

	if err := ll.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("unknown log level %q: %w", *logLevel, err)
	}

	passwordHash, err := adminPasswordHash(env, serverCfg)
	if err != nil {
		return err
	}
	if passwordHash == "" {
		slog.WarnContext(ctx, "No admin password configured; the admin area is disabled")
	}

	// Create db directory for the session table
	dbDir := filepath.Join(*dataDir, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create db directory: %w", err)
	}
	sessionService, err := identity.NewSessionService(filepath.Join(dbDir, "sessions.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to initialize session service: %w", err)
	}
	gate, err := identity.NewGate(serverCfg.JWTSecret, passwordHash, sessionService, serverCfg.Quotas.SessionTTL())
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	if err := gate.CleanupExpired(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to cleanup expired sessions", "err", err)
	}

	var projectStore content.Storage
	var historyRec *content.GitHistory
	if *databaseURL != "" {
		pg, err := pgstore.Open(ctx, *databaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer pg.Close()
		projectStore = pg
		if *history {
			slog.WarnContext(ctx, "History is only recorded for the file storage; ignoring -history")
		}
		slog.InfoContext(ctx, "Projects stored in PostgreSQL")
	} else {
		fs, err := content.NewFileStorage(filepath.Join(*dataDir, projectsFile))
		if err != nil {
			return fmt.Errorf("failed to initialize project storage: %w", err)
		}
		defer func() { _ = fs.Close() }()
		projectStore = fs
		if *history {
			repo, err := git.Open(ctx, *dataDir, "", "")
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			historyRec = &content.GitHistory{
				Repo:   repo,
				Author: git.Author{Name: "admin", Email: "admin@localhost"},
				Files:  []string{projectsFile},
			}
			slog.InfoContext(ctx, "History enabled", "dir", repo.Dir())
		}
	}
	var projectHistory content.History
	if historyRec != nil {
		projectHistory = historyRec
	}
	projects := content.NewProjectService(projectStore, projectHistory)

	uploadStore, err := uploads.New(filepath.Join(*dataDir, "public", "uploads"), serverCfg.Quotas.MaxUploadFileBytes)
	if err != nil {
		return fmt.Errorf("failed to initialize uploads: %w", err)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	limiters := ratelimit.New(serverCfg.RateLimits)
	go limiters.Run(ctx, time.Minute)
	drafts := authoring.NewDrafts(0)
	go drafts.Run(ctx, 10*time.Minute)

	secureCookie := !strings.HasPrefix(*baseURL, "http://")
	site, err := pages.New(pages.Options{
		Studio:         *studio,
		Projects:       projects,
		Gate:           gate,
		Drafts:         drafts,
		Uploads:        uploadStore,
		Limiters:       limiters,
		SecureCookie:   secureCookie,
		MaxUploadBatch: serverCfg.Quotas.MaxUploadBatchBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	svc := &handlers.Services{
		Projects: projects,
		Gate:     gate,
		Uploads:  uploadStore,
		History:  historyRec,
	}
	buildVersion := readBuildInfo().version
	cfg := &handlers.Config{
		BaseURL:      *baseURL,
		Version:      buildVersion,
		Quotas:       serverCfg.Quotas,
		SecureCookie: secureCookie,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, cfg, limiters, site),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "baseURL", *baseURL, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// adminPasswordHash picks, in order, ADMIN_PASSWORD_HASH, a hash of
// ADMIN_PASSWORD, then the hash stored in server_config.json. Both variables
// are read from the process environment first, then from .env.
func adminPasswordHash(env map[string]string, cfg *storage.ServerConfig) (string, error) {
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	}
	if h := lookup("ADMIN_PASSWORD_HASH"); h != "" {
		return h, nil
	}
	if p := lookup("ADMIN_PASSWORD"); p != "" {
		h, err := identity.HashPassword(p)
		if err != nil {
			return "", fmt.Errorf("failed to hash ADMIN_PASSWORD: %w", err)
		}
		return h, nil
	}
	return cfg.AdminPasswordHash, nil
}

func printVersion() {
	info := readBuildInfo()
	fmt.Printf("folio %s\n", info.version)
	fmt.Printf("  Go version: %s\n", info.goVersion)
	fmt.Printf("  Revision:   %s\n", info.revision)
	if info.dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

type buildInfo struct {
	version   string
	goVersion string
	revision  string
	dirty     bool
}

func readBuildInfo() buildInfo {
	out := buildInfo{version: "unknown", goVersion: "unknown", revision: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.version = info.Main.Version
	if out.version == "" || out.version == "(devel)" {
		out.version = "dev"
	}
	out.goVersion = info.GoVersion
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			out.revision = kv.Value
		case "vcs.modified":
			out.dirty = kv.Value == "true"
		}
	}
	return out
}

// newLogger logs to stderr at level, in color on a terminal. Empty attributes
// and loopback client addresses are dropped, and so are timestamps under
// systemd, which adds its own.
func newLogger(level slog.Leveler) *slog.Logger {
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case underSystemd && a.Key == slog.TimeKey && len(groups) == 0:
				return slog.Attr{}
			case a.Key == "ip" && (a.Value.String() == "127.0.0.1" || a.Value.String() == "::1"):
				return slog.Attr{}
			case isEmpty(a.Value):
				return slog.Attr{}
			}
			return a
		},
	}))
}

func isEmpty(v slog.Value) bool {
	switch v.Kind() {
	case slog.KindString:
		return v.String() == ""
	case slog.KindBool:
		return !v.Bool()
	case slog.KindInt64:
		return v.Int64() == 0
	case slog.KindUint64:
		return v.Uint64() == 0
	case slog.KindFloat64:
		return v.Float64() == 0
	case slog.KindDuration:
		return v.Duration() == 0
	case slog.KindTime:
		return v.Time().IsZero()
	case slog.KindAny:
		return v.Any() == nil
	}
	return false
}

// loadDotEnv reads the .env file at path. A missing file is an empty map.
func loadDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

// runOnboarding asks for the base URL, saved to .env, and the admin
// password, whose hash is saved to server_config.json.
func runOnboarding(dataDir, envPath string, cfg *storage.ServerConfig) error {
	fmt.Println("Welcome to folio! Let's set up the admin area.")
	fmt.Println("")

	reader := bufio.NewReader(os.Stdin)
	env := make(map[string]string)

	fmt.Println("--- Base URL ---")
	fmt.Println("Use an https:// URL in production; session cookies are then marked secure.")
	fmt.Print("Base URL (default: http://localhost): ")
	val, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read base URL: %w", err)
	}
	baseURL := strings.TrimSpace(val)
	if baseURL == "" {
		baseURL = "http://localhost"
	}
	env["BASE_URL"] = baseURL

	if cfg.AdminPasswordHash == "" {
		fmt.Println("\n--- Admin password ---")
		fmt.Println("Only its bcrypt hash is stored. Leave empty to disable the admin area.")
		fmt.Print("Admin password: ")
		val, err = reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read admin password: %w", err)
		}
		if p := strings.TrimSpace(val); p != "" {
			h, err := identity.HashPassword(p)
			if err != nil {
				return err
			}
			cfg.AdminPasswordHash = h
			if err := cfg.Save(dataDir); err != nil {
				return err
			}
		}
	}

	fmt.Println("")
	if err := godotenv.Write(env, envPath); err != nil {
		return fmt.Errorf("failed to save .env file: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", envPath)
	fmt.Println("You can edit this file later to change your settings.")
	fmt.Println("")
	return nil
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
