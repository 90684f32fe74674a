package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/pantry-tracker/internal/lineitems"
	"github.com/zombor/pantry-tracker/internal/pantry"
	"github.com/zombor/pantry-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply
	_ = godotenv.Load()

	fs := ff.NewFlagSet("pantry-tracker")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "pantry-tracker.db", "Database file path")
		storageBackend = fs.StringLong("storage-backend", "local", "Receipt image storage: 'local' or 's3'")
		storagePath    = fs.StringLong("storage", "./receipts", "Storage directory path for local storage")
		s3Bucket       = fs.StringLong("s3-bucket", "", "S3 bucket for receipt images")
		s3Region       = fs.StringLong("s3-region", "", "S3 region (defaults to the AWS config)")
		s3Endpoint     = fs.StringLong("s3-endpoint", "", "Custom S3 endpoint for MinIO, R2 and other compatible stores")
		s3Prefix       = fs.StringLong("s3-prefix", "receipts", "Key prefix for receipt images")
		scannerType    = fs.StringLong("scanner", "vision", "Scanner type: 'vision', 'gemini' or 'ollama'")
		visionKey      = fs.StringLong("vision-key", "", "Google Cloud Vision API key (or set GOOGLE_VISION_API_KEY env var)")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		rulesPath      = fs.StringLong("rules", "", "YAML file with receipt parsing rules (optional)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		expiryInterval = fs.DurationLong("expiry-interval", time.Hour, "How often to log expiring items (0 disables)")
		expiryWindow   = fs.DurationLong("expiry-window", 72*time.Hour, "How far ahead to look for expiring items")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PANTRY_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize parser
	var parser *lineitems.Parser
	if *rulesPath != "" {
		rules, err := lineitems.LoadRules(*rulesPath)
		if err != nil {
			slog.Error("Failed to load parsing rules", "path", *rulesPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded parsing rules", "path", *rulesPath)
		parser = lineitems.NewParser(rules)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := pantry.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "vision":
		apiKey := firstNonEmpty(*visionKey, os.Getenv("GOOGLE_VISION_API_KEY"))
		if apiKey == "" {
			slog.Error("Vision API key is required. Set --vision-key flag or GOOGLE_VISION_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Cloud Vision scanner...")
		scanner, err = scanning.NewVision(apiKey)
		if err != nil {
			slog.Error("Failed to initialize Cloud Vision", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "vision, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "backend", *storageBackend)
	var store pantry.Storage
	switch *storageBackend {
	case "local":
		store, err = pantry.NewLocalStorage(*storagePath)
	case "s3":
		store, err = pantry.NewS3Storage(ctx, pantry.S3Config{
			Bucket:   *s3Bucket,
			Region:   *s3Region,
			Endpoint: *s3Endpoint,
			Prefix:   *s3Prefix,
		})
	default:
		err = fmt.Errorf("unknown storage backend %q", *storageBackend)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := pantry.NewService(db, scanner, store, parser)

	if *expiryInterval > 0 {
		go service.WatchExpiry(ctx, *expiryInterval, *expiryWindow)
	}

	basicAuth := pantry.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := pantry.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
