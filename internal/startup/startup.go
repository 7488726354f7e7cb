package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"stream-relay/internal/encoder"
	"stream-relay/internal/logging"
	"stream-relay/internal/transcoder"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	PublicDir       string
	DatabaseDir     string
	LogStaticFiles  bool
	LogHealthChecks bool

	// Encoder
	FFmpegPath    string
	ProfilePath   string
	Profile       encoder.Profile
	Destination   encoder.Destination
	WriteTimeout  time.Duration
	ShutdownMode  transcoder.ShutdownMode
	ShutdownGrace time.Duration

	// Ingest
	MaxChunkBytes   int64
	IdleTimeout     time.Duration
	IngestTokenHash string
	AllowedOrigins  []string

	// Derived paths
	DatabasePath string
}

const (
	defaultStreamURL     = "rtmp://a.rtmp.youtube.com/live2"
	defaultMaxChunkBytes = 8 << 20
	minIdleTimeout       = time.Second
)

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	port := getEnv("PORT", "3000")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	publicDir := getEnv("PUBLIC_DIR", "./public")
	databaseDir := getEnv("DATABASE_DIR", "./data")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	profilePath := getEnv("ENCODER_PROFILE", "")
	streamURL := getEnv("STREAM_URL", defaultStreamURL)
	maxChunkBytes := getEnvInt64("MAX_CHUNK_BYTES", defaultMaxChunkBytes)
	writeTimeout := getEnvDuration("WRITE_TIMEOUT", 10*time.Second)
	idleTimeout := getEnvDuration("INGEST_IDLE_TIMEOUT", 60*time.Second)
	shutdownModeStr := getEnv("SHUTDOWN_MODE", string(transcoder.ShutdownDrain))
	shutdownGrace := getEnvDuration("SHUTDOWN_GRACE", 5*time.Second)
	tokenHash := getEnv("INGEST_TOKEN_HASH", "")
	allowedOrigins := splitList(getEnv("ALLOWED_ORIGINS", ""))
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)

	streamKey, keySource, err := loadStreamKey()
	if err != nil {
		return nil, err
	}

	shutdownMode, err := transcoder.ParseShutdownMode(shutdownModeStr)
	if err != nil {
		return nil, err
	}

	dest := encoder.Destination{BaseURL: streamURL, Key: streamKey}

	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  PUBLIC_DIR:          %s", publicDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  FFMPEG_PATH:         %s", ffmpegPath)
	logging.Info("  ENCODER_PROFILE:     %s", valueOrNone(profilePath))
	logging.Info("  STREAM_URL:          %s", dest.Redacted())
	logging.Info("  STREAM_KEY:          %s", keySource)
	logging.Info("  MAX_CHUNK_BYTES:     %d", maxChunkBytes)
	logging.Info("  WRITE_TIMEOUT:       %v", writeTimeout)
	logging.Info("  INGEST_IDLE_TIMEOUT: %v", idleTimeout)
	logging.Info("  SHUTDOWN_MODE:       %s", shutdownMode)
	logging.Info("  SHUTDOWN_GRACE:      %v", shutdownGrace)
	logging.Info("  INGEST_TOKEN_HASH:   %s", redactedOrNone(tokenHash))
	logging.Info("  ALLOWED_ORIGINS:     %s", valueOrNone(strings.Join(allowedOrigins, ",")))
	logging.Info("  LOG_STATIC_FILES:    %v", logStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream destination: %w", err)
	}

	if maxChunkBytes <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_BYTES must be positive, got %d", maxChunkBytes)
	}

	if idleTimeout < minIdleTimeout {
		return nil, fmt.Errorf("INGEST_IDLE_TIMEOUT must be at least %v, got %v", minIdleTimeout, idleTimeout)
	}

	profile, err := encoder.LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	publicDir, err = filepath.Abs(publicDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public directory path: %w", err)
	}
	logging.Info("  Public directory (absolute): %s", publicDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	// Static files are optional
	if err := checkDirectory(publicDir, "public"); err != nil {
		logging.Warn("  Public directory issue: %v", err)
		logging.Warn("  Static files will return 404")
	}

	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for session journal): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		PublicDir:       publicDir,
		DatabaseDir:     databaseDir,
		LogStaticFiles:  logStaticFiles,
		LogHealthChecks: logHealthChecks,
		FFmpegPath:      ffmpegPath,
		ProfilePath:     profilePath,
		Profile:         profile,
		Destination:     dest,
		WriteTimeout:    writeTimeout,
		ShutdownMode:    shutdownMode,
		ShutdownGrace:   shutdownGrace,
		MaxChunkBytes:   maxChunkBytes,
		IdleTimeout:     idleTimeout,
		IngestTokenHash: tokenHash,
		AllowedOrigins:  allowedOrigins,
		DatabasePath:    filepath.Join(databaseDir, "relay.db"),
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Session journal: ENABLED (required)")
	logging.Info("    Ingest token:    %s", enabledString(tokenHash != ""))
	logging.Info("    Metrics:         %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// EncoderArgs returns the full encoder argument vector and a copy with the
// stream key masked for logs.
func (c *Config) EncoderArgs() (args, logArgs []string) {
	args = c.Profile.Args(c.Destination.URL())
	return args, encoder.RedactedArgs(args, c.Destination)
}

// loadStreamKey reads STREAM_KEY_FILE, falling back to STREAM_KEY. It
// returns a description of where the key came from for the banner.
func loadStreamKey() (key, source string, err error) {
	envKey := strings.TrimSpace(os.Getenv("STREAM_KEY"))
	keyFile := os.Getenv("STREAM_KEY_FILE")

	if keyFile == "" {
		if envKey == "" {
			return "", "(not set)", nil
		}
		return envKey, "(set, from environment)", nil
	}

	if envKey != "" {
		logging.Warn("  Both STREAM_KEY and STREAM_KEY_FILE are set, using STREAM_KEY_FILE")
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return "", "", fmt.Errorf("failed to read STREAM_KEY_FILE: %w", err)
	}
	key = strings.TrimSpace(string(data))
	if key == "" {
		return "", "", fmt.Errorf("STREAM_KEY_FILE %s is empty", keyFile)
	}
	return key, fmt.Sprintf("(set, from %s)", keyFile), nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func redactedOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return "(set)"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, recoveredSessions, recoveredRuns int64) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
	if recoveredSessions > 0 || recoveredRuns > 0 {
		logging.Warn("  Closed %d sessions and %d encoder runs left open by a previous run", recoveredSessions, recoveredRuns)
	}
}

// LogEncoderInit logs encoder setup and checks the FFmpeg binary
func LogEncoderInit(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err := checkFFmpeg(config.FFmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  The encoder will likely fail to start")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}

	p := config.Profile
	logging.Info("  Video:       %s preset=%s tune=%s %dfps gop=%d crf=%d %s",
		p.VideoCodec, p.Preset, p.Tune, p.FrameRate, p.GOPSize, p.CRF, p.PixelFormat)
	logging.Info("  Audio:       %s %s %dHz", p.AudioCodec, p.AudioBitrate, p.AudioSampleRate)
	logging.Info("  Output:      %s -> %s", p.Format, config.Destination.Redacted())
}

// LogEncoderStarted logs the result of the initial encoder start
func LogEncoderStarted(pid int, err error) {
	if err != nil {
		logging.Error("  [FAILED] Encoder did not start: %v", err)
		logging.Error("  Ingest connections will be refused until the encoder is restarted")
		return
	}
	logging.Info("  [OK] Encoder running (pid %d)", pid)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	logging.Info("    Ingest:        ws://0.0.0.0:%s/socket", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   _____ _                              ____       __
  / ___// /_________  ____ _____ ___   / __ \___  / /___ ___  __
  \__ \/ __/ ___/ _ \/ __ '/ __ '__ \ / /_/ / _ \/ / __ '/ / / /
 ___/ / /_/ /  /  __/ /_/ / / / / / // _, _/  __/ / /_/ / /_/ /
/____/\__/_/   \___/\__,_/_/ /_/ /_//_/ |_|\___/_/\__,_/\__, /
                                                       /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	return nil
}

// checkDirectory verifies that path exists and is a directory without
// creating it.
func checkDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkFFmpeg(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found: %w", binary, err)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
