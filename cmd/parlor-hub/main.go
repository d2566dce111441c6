// ABOUTME: Entry point for the parlor chat hub server
// ABOUTME: Hosts the broadcast channel, private channels, and the agent participant

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/socksthoughtshop/parlor/internal/auth"
	"github.com/socksthoughtshop/parlor/internal/bot"
	"github.com/socksthoughtshop/parlor/internal/cache"
	"github.com/socksthoughtshop/parlor/internal/config"
	"github.com/socksthoughtshop/parlor/internal/generate"
	"github.com/socksthoughtshop/parlor/internal/hub"
	"github.com/socksthoughtshop/parlor/internal/privacy"
	"github.com/socksthoughtshop/parlor/internal/retrieval"
	"github.com/socksthoughtshop/parlor/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _
 _ __   __ _ _ __ ___ | | ___  _ __
| '_ \ / _' | '__/ _ \| |/ _ \| '__|
| |_) | (_| | | | (_) | | (_) | |
| .__/ \__,_|_|  \___/|_|\___/|_|
|_|
`

// getConfigPath returns the path to the hub config file.
// Priority: PARLOR_CONFIG env var > XDG_CONFIG_HOME/parlor/hub.yaml > ~/.config/parlor/hub.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLOR_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hub.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parlor", "hub.yaml")
}

// getDataPath returns the path to the parlor data directory.
// Priority: XDG_DATA_HOME/parlor > ~/.local/share/parlor
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "parlor")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parlor-hub <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the hub server")
		fmt.Println("  init    Create a config file with defaults")
		fmt.Println("  health  Check hub health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting parlor-hub",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer sqlStore.Close()

	respCache := buildCache(cfg, logger)
	defer saveCache(respCache, cfg.Cache.Path, logger)

	index, err := retrieval.NewIndex(corpusSources(cfg), logger)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	generator := generate.NewOllamaClient(cfg.Generator.BaseURL, cfg.Generator.Model, cfg.Generator.Timeout, logger)

	codec, err := privacy.NewCodec()
	if err != nil {
		return fmt.Errorf("generating agent keypair: %w", err)
	}

	h := hub.New(sqlStore)
	agent := bot.New(h, codec, respCache, index, generator, botOptions(cfg, sqlStore)...)
	h.AttachAgent(agent)

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("configuring token verifier: %w", err)
	}

	tokenTTL := cfg.Auth.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	authSvc := auth.NewService(hub.NewUserDirectory(sqlStore), verifier, tokenTTL, logger)

	ws := hub.NewWSHandler(h, verifier, cfg.Server.HeartbeatInterval, cfg.Server.HeartbeatTimeout)

	var adminAPI *hub.AdminAPI
	if cfg.Auth.AdminUser != "" && cfg.Auth.AdminPassword != "" {
		adminAPI = hub.NewAdminAPI(respCache, agent, cfg.Auth.AdminUser, cfg.Auth.AdminPassword, cfg.Cache.Path)
	} else {
		logger.Warn("admin credentials not configured, cache admin API disabled")
	}

	srv := hub.NewServer(cfg.Server.HTTPAddr, ws, authSvc, adminAPI)
	return srv.Run(ctx)
}

func buildCache(cfg *config.Config, logger *slog.Logger) *cache.Cache {
	var opts []cache.Option
	if cfg.Cache.Threshold > 0 {
		opts = append(opts, cache.WithThreshold(cfg.Cache.Threshold))
	}
	if len(cfg.Cache.BypassKeywords) > 0 {
		opts = append(opts, cache.WithBypassKeywords(cfg.Cache.BypassKeywords))
	}

	c := cache.New(opts...)
	if cfg.Cache.Path != "" {
		if err := c.Load(cfg.Cache.Path); err != nil {
			logger.Warn("loading cache snapshot", "path", cfg.Cache.Path, "error", err)
		}
	}
	return c
}

func saveCache(c *cache.Cache, path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := c.Save(path); err != nil {
		logger.Warn("saving cache snapshot", "path", path, "error", err)
	}
}

func corpusSources(cfg *config.Config) []retrieval.Source {
	sources := make([]retrieval.Source, 0, len(cfg.Corpus))
	for _, s := range cfg.Corpus {
		sources = append(sources, retrieval.Source{Path: s.Path, DefaultType: s.DefaultType})
	}
	return sources
}

func botOptions(cfg *config.Config, sqlStore *store.SQLiteStore) []bot.Option {
	opts := []bot.Option{bot.WithRecorder(sqlStore)}
	if cfg.Bot.Name != "" {
		opts = append(opts, bot.WithName(cfg.Bot.Name))
	}
	if cfg.Bot.TypingDelayMax > 0 {
		opts = append(opts, bot.WithTypingDelay(cfg.Bot.TypingDelayMin, cfg.Bot.TypingDelayMax))
	}
	if len(cfg.Bot.TopicKeywords) > 0 {
		opts = append(opts, bot.WithTopicKeywords(cfg.Bot.TopicKeywords))
	}
	return opts
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runInit writes a starter config with a random JWT secret. Existing config
// files are left alone.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	content := fmt.Sprintf(`server:
  http_addr: ":8080"
  heartbeat_interval: 30s
  heartbeat_timeout: 10s

auth:
  jwt_secret: %q
  token_ttl: 24h
  # Set both to enable the cache admin API:
  # admin_user: admin
  # admin_password: ${PARLOR_ADMIN_PASSWORD}

database:
  path: %q

cache:
  path: %q
  threshold: 0.8

bot:
  name: ChatBot
  typing_delay_min: 1s
  typing_delay_max: 3s

generator:
  base_url: "http://localhost:11434"
  model: mistral
  timeout: 30s

corpus:
  - path: %q
    default_type: software
  - path: %q
    default_type: electrical

logging:
  level: info
  format: text
`,
		jwtSecret,
		filepath.Join(dataPath, "hub.db"),
		filepath.Join(dataPath, "cache.json"),
		filepath.Join(dataPath, "projects.json"),
		filepath.Join(dataPath, "electrical.json"),
	)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ✓ ")
	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit the corpus paths, then run: parlor-hub serve")
	return nil
}
