package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/sim"
)

type Run struct {
	// Ticks is how long the run lasts.
	Ticks int64
	// ArchivePath persists trade history; empty disables the archive.
	ArchivePath string
	// APIAddr serves the dashboard; empty disables it.
	APIAddr string
	LogPath string
	// TickIntervalMS paces the run for live dashboard viewing;
	// zero runs flat out.
	TickIntervalMS int64
	// Debug enables per-trade settlement logging.
	Debug bool
}

type Config struct {
	Sim sim.Config
	Run Run
}

func Default() Config {
	return Config{
		Sim: sim.DefaultConfig(),
		Run: Run{
			Ticks:       1000,
			ArchivePath: "data/archive",
			APIAddr:     ":8080",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	loadInt64(&cfg.Sim.Seed, "SIM_SEED")
	loadInt(&cfg.Sim.Randomizers, "SIM_RANDOMIZERS")
	loadInt(&cfg.Sim.Arbitrageurs, "SIM_ARBITRAGEURS")
	loadInt(&cfg.Sim.MarketMakers, "SIM_MARKET_MAKERS")
	loadInt(&cfg.Sim.Bankers, "SIM_BANKERS")
	loadDecimal(&cfg.Sim.InitialValue, "SIM_INITIAL_VALUE")
	loadDecimal(&cfg.Sim.UtilisationRatio, "SIM_UTILISATION_RATIO")
	loadDecimal(&cfg.Sim.TransferFeeRate, "SIM_TRANSFER_FEE_RATE")
	loadBool(&cfg.Sim.ContinuousMatching, "SIM_CONTINUOUS_MATCHING")
	loadInt64(&cfg.Sim.FeePeriod, "SIM_FEE_PERIOD")
	loadInt64(&cfg.Sim.RollingWindow, "SIM_ROLLING_WINDOW")
	loadBool(&cfg.Sim.VolumeWeighted, "SIM_VOLUME_WEIGHTED")

	if digits := os.Getenv("SIM_PRECISION_DIGITS"); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil && n >= 0 {
			cfg.Sim.Precision = fixed.Precision{Digits: int32(n)}
		}
	}

	loadInt64(&cfg.Run.Ticks, "RUN_TICKS")
	if v, ok := os.LookupEnv("RUN_ARCHIVE_PATH"); ok {
		cfg.Run.ArchivePath = v
	}
	if v, ok := os.LookupEnv("RUN_API_ADDR"); ok {
		cfg.Run.APIAddr = v
	}
	if v := os.Getenv("RUN_LOG_PATH"); v != "" {
		cfg.Run.LogPath = v
	}
	loadInt64(&cfg.Run.TickIntervalMS, "RUN_TICK_INTERVAL_MS")
	loadBool(&cfg.Run.Debug, "RUN_DEBUG")

	return cfg
}

func loadInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func loadInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func loadBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func loadDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}
