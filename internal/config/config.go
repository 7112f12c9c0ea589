package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Weights holds the grade component weights. They must sum to 1.0; the
// aggregator rejects any set that does not.
type Weights struct {
	Visible       float64
	Hidden        float64
	Quality       float64
	Participation float64
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Visible + w.Hidden + w.Quality + w.Participation
}

// PenaltyPolicy configures similarity tiering and the plagiarism penalty curve.
// The curve is policy, not a constant: penalty scales linearly from zero at
// FlagThreshold to MaxPenalty at full similarity.
type PenaltyPolicy struct {
	WarnThreshold float64
	FlagThreshold float64
	MaxPenalty    float64
}

// LetterCutoff maps a minimum final score to a letter grade.
type LetterCutoff struct {
	Min    float64
	Letter string
}

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	SemesterSalt    string
	Weights         Weights
	Penalty         PenaltyPolicy
	LetterCutoffs   []LetterCutoff
	IngestTimeout   time.Duration
	BatchWorkers    int
	SummaryCacheTTL time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grading API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("weights.visible", 0.40)
	v.SetDefault("weights.hidden", 0.30)
	v.SetDefault("weights.quality", 0.20)
	v.SetDefault("weights.participation", 0.10)
	v.SetDefault("penalty.warn_threshold", 0.40)
	v.SetDefault("penalty.flag_threshold", 0.50)
	v.SetDefault("penalty.max", 0.50)
	v.SetDefault("letter.cutoffs", "0.90=A+,0.85=A,0.80=A-,0.75=B+,0.70=B,0.65=B-,0.60=C+,0.55=C,0.50=C-,0.45=D+,0.40=D,0=F")
	v.SetDefault("ingest.timeout", "30s")
	v.SetDefault("batch.workers", 8)
	v.SetDefault("summary.cache_ttl", "5m")

	ingestTimeout, err := time.ParseDuration(v.GetString("ingest.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ingest timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("summary.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cutoffs, err := ParseLetterCutoffs(v.GetString("letter.cutoffs"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:      v.GetString("app.name"),
		AppEnv:       v.GetString("app.env"),
		AppPort:      v.GetString("app.port"),
		DatabaseURL:  v.GetString("database.url"),
		RedisURL:     v.GetString("redis.url"),
		NATSURL:      v.GetString("nats.url"),
		JWTSecret:    v.GetString("jwt.secret"),
		SemesterSalt: v.GetString("semester.salt"),
		Weights: Weights{
			Visible:       v.GetFloat64("weights.visible"),
			Hidden:        v.GetFloat64("weights.hidden"),
			Quality:       v.GetFloat64("weights.quality"),
			Participation: v.GetFloat64("weights.participation"),
		},
		Penalty: PenaltyPolicy{
			WarnThreshold: v.GetFloat64("penalty.warn_threshold"),
			FlagThreshold: v.GetFloat64("penalty.flag_threshold"),
			MaxPenalty:    v.GetFloat64("penalty.max"),
		},
		LetterCutoffs:   cutoffs,
		IngestTimeout:   ingestTimeout,
		BatchWorkers:    v.GetInt("batch.workers"),
		SummaryCacheTTL: cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SemesterSalt == "" {
		return Config{}, fmt.Errorf("semester salt must be provided")
	}

	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 8
	}

	return cfg, nil
}

// ParseLetterCutoffs parses a "min=letter" comma list into a descending cutoff
// table.
func ParseLetterCutoffs(raw string) ([]LetterCutoff, error) {
	entries := strings.Split(raw, ",")
	cutoffs := make([]LetterCutoff, 0, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid letter cutoff entry %q", entry)
		}

		min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid letter cutoff entry %q: %w", entry, err)
		}

		cutoffs = append(cutoffs, LetterCutoff{Min: min, Letter: strings.TrimSpace(parts[1])})
	}

	if len(cutoffs) == 0 {
		return nil, fmt.Errorf("letter cutoff table must not be empty")
	}

	sort.Slice(cutoffs, func(i, j int) bool { return cutoffs[i].Min > cutoffs[j].Min })
	return cutoffs, nil
}
