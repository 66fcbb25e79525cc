package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Feed controls the simulated market data engine.
type Feed struct {
	// Symbols are the instruments served on startup. Each gets its own
	// order book and tick cycle.
	Symbols []string
	// TickInterval is the simulate-then-broadcast period per instrument.
	TickInterval time.Duration
	// HeartbeatInterval is the liveness ping period for all connections.
	HeartbeatInterval time.Duration
	// DefaultDepth is the level count used when a subscribe request omits it.
	DefaultDepth int
	// FallbackMid seeds activity pricing when a book side is empty.
	FallbackMid float64
	// Seed fixes the activity RNG for reproducible runs. 0 means derive
	// from the current time.
	Seed int64
}

type Server struct {
	Addr string
}

type Config struct {
	Feed     Feed
	Server   Server
	LogLevel string
	LogFile  string
}

func Default() Config {
	return Config{
		Feed: Feed{
			Symbols:           []string{"BTCUSD", "ETHUSD", "ADAUSD"},
			TickInterval:      300 * time.Millisecond,
			HeartbeatInterval: 30 * time.Second,
			DefaultDepth:      20,
			FallbackMid:       100.0,
			Seed:              0,
		},
		Server: Server{
			Addr: ":8080",
		},
		LogLevel: "info",
		LogFile:  "",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("FEED_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	if symbols := os.Getenv("FEED_SYMBOLS"); symbols != "" {
		var parsed []string
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				parsed = append(parsed, s)
			}
		}
		if len(parsed) > 0 {
			cfg.Feed.Symbols = parsed
		}
	}

	if tick := os.Getenv("FEED_TICK_MS"); tick != "" {
		if ms, err := strconv.Atoi(tick); err == nil && ms > 0 {
			cfg.Feed.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if hb := os.Getenv("FEED_HEARTBEAT_MS"); hb != "" {
		if ms, err := strconv.Atoi(hb); err == nil && ms > 0 {
			cfg.Feed.HeartbeatInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if depth := os.Getenv("FEED_DEFAULT_DEPTH"); depth != "" {
		if d, err := strconv.Atoi(depth); err == nil && d > 0 {
			cfg.Feed.DefaultDepth = d
		}
	}

	if mid := os.Getenv("FEED_FALLBACK_MID"); mid != "" {
		if f, err := strconv.ParseFloat(mid, 64); err == nil && f > 0 {
			cfg.Feed.FallbackMid = f
		}
	}

	if seed := os.Getenv("FEED_RNG_SEED"); seed != "" {
		if n, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Feed.Seed = n
		}
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg
}
