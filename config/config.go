package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de la plataforma.
type Config struct {
	Ledger      LedgerConfig      `yaml:"ledger"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	EightBox    []PrizeConfig     `yaml:"eight_box"`
	Crafting    CraftingConfig    `yaml:"crafting"`
	Oracle      OracleConfig      `yaml:"oracle"`
	Entropy     EntropyConfig     `yaml:"entropy"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Notify      NotifyConfig      `yaml:"notify"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// LedgerConfig define cuentas, tokens y fees de la plataforma.
type LedgerConfig struct {
	Admin          string `yaml:"admin"`
	Treasury       string `yaml:"treasury"`
	Escrow         string `yaml:"escrow"`
	ReferralVault  string `yaml:"referral_vault"`
	BetToken       string `yaml:"bet_token"`
	RewardToken    string `yaml:"reward_token"`
	ArenaSymbol    string `yaml:"arena_symbol"`
	PlatformFeeBps int64  `yaml:"platform_fee_bps"` // sobre el pool perdedor
	ReferralFeeBps int64  `yaml:"referral_fee_bps"` // sobre cada apuesta referida
}

// WindowConfig es la tabla de tiers de una ventana con ranking.
type WindowConfig struct {
	Boundaries       []int   `yaml:"boundaries"` // rango inclusivo del último puesto de cada tier
	Rewards          []int64 `yaml:"rewards"`
	BonusBundle      int     `yaml:"bonus_bundle"`
	ClaimPeriodHours int     `yaml:"claim_period_hours"`
}

// LeaderboardConfig sobreescribe las tablas por defecto. Una ventana ausente
// conserva la tabla por defecto.
type LeaderboardConfig struct {
	Hour     *WindowConfig `yaml:"hour"`
	Day      *WindowConfig `yaml:"day"`
	Week     *WindowConfig `yaml:"week"`
	PageSize int           `yaml:"page_size"`
}

// PrizeConfig es un premio de la caja de ocho horas.
type PrizeConfig struct {
	MinStake int64 `yaml:"min_stake"`
	Reward   int64 `yaml:"reward"`
	Bundle   int   `yaml:"bundle"`
}

// BundleConfig describe un bundle comprable.
type BundleConfig struct {
	Name        string   `yaml:"name"`
	URI         string   `yaml:"uri"`
	Cost        int64    `yaml:"cost"`
	RewardCount int      `yaml:"reward_count"`
	Rates       []uint32 `yaml:"rates"` // 9 umbrales acumulados sobre 10000
}

// CraftingConfig controla la economía de fragmentos.
type CraftingConfig struct {
	Bundles []BundleConfig `yaml:"bundles"`
	NftCost int64          `yaml:"nft_cost"`
	NftURI  string         `yaml:"nft_uri"`
	BurnBps int64          `yaml:"burn_bps"`
}

// OracleConfig elige la fuente de precios.
type OracleConfig struct {
	Provider      string            `yaml:"provider"` // fixed | walk | pyth
	BaseURL       string            `yaml:"base_url"`
	Feeds         map[string]string `yaml:"feeds"`  // símbolo -> feed id de Pyth
	Prices        map[string]string `yaml:"prices"` // precios iniciales para fixed y walk
	WalkStep      string            `yaml:"walk_step"`
	MaxAgeSeconds int               `yaml:"max_age_seconds"`
}

// EntropyConfig elige la fuente de aleatoriedad de los bundles.
type EntropyConfig struct {
	Source string   `yaml:"source"` // crypto | pricefeed
	Feeds  []string `yaml:"feeds"`
}

// SchedulerConfig controla el loop de cierre de ventanas.
type SchedulerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	LockWaitSeconds int `yaml:"lock_wait_seconds"`
}

// NotifyConfig controla los avisos fuera de la consola.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	MaxRetries     int    `yaml:"max_retries"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML y aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate revisa fees, proveedores y tablas de la economía.
func (c *Config) Validate() error {
	if err := c.GlobalConfig().Validate(); err != nil {
		return err
	}
	switch c.Oracle.Provider {
	case "fixed", "walk":
	case "pyth":
		if _, ok := c.Oracle.Feeds[c.Ledger.ArenaSymbol]; !ok {
			return fmt.Errorf("oracle: no pyth feed for %s: %w", c.Ledger.ArenaSymbol, domain.ErrConfigMismatch)
		}
	default:
		return fmt.Errorf("oracle: unknown provider %q: %w", c.Oracle.Provider, domain.ErrInvalidParameter)
	}
	switch c.Entropy.Source {
	case "crypto":
	case "pricefeed":
		if len(c.Entropy.Feeds) == 0 {
			return fmt.Errorf("entropy: pricefeed needs feeds: %w", domain.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("entropy: unknown source %q: %w", c.Entropy.Source, domain.ErrInvalidParameter)
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return fmt.Errorf("notify: telegram needs both token and chat id: %w", domain.ErrInvalidParameter)
	}
	_, err := c.Economy()
	return err
}

// GlobalConfig arma la configuración on-ledger.
func (c *Config) GlobalConfig() domain.GlobalConfig {
	l := c.Ledger
	return domain.GlobalConfig{
		Admin:          l.Admin,
		Treasury:       l.Treasury,
		Escrow:         l.Escrow,
		ReferralVault:  l.ReferralVault,
		BetToken:       l.BetToken,
		RewardToken:    l.RewardToken,
		ArenaSymbol:    l.ArenaSymbol,
		EntropyFeeds:   c.Entropy.Feeds,
		PlatformFeeBps: l.PlatformFeeBps,
		ReferralFeeBps: l.ReferralFeeBps,
	}
}

// Economy parte de domain.DefaultEconomy y aplica las secciones presentes.
func (c *Config) Economy() (domain.Economy, error) {
	e := domain.DefaultEconomy()

	for kind, w := range map[domain.WindowKind]*WindowConfig{
		domain.WindowHour: c.Leaderboard.Hour,
		domain.WindowDay:  c.Leaderboard.Day,
		domain.WindowWeek: c.Leaderboard.Week,
	} {
		if w == nil {
			continue
		}
		if len(w.Boundaries) != len(w.Rewards) {
			return domain.Economy{}, fmt.Errorf("leaderboard %s: %d boundaries for %d rewards: %w",
				kind, len(w.Boundaries), len(w.Rewards), domain.ErrConfigMismatch)
		}
		t := e.Tiers[kind]
		t.Boundaries = w.Boundaries
		t.Rewards = w.Rewards
		t.BonusBundle = w.BonusBundle
		if w.ClaimPeriodHours > 0 {
			t.ClaimPeriod = time.Duration(w.ClaimPeriodHours) * time.Hour
		}
		e.Tiers[kind] = t
	}

	if len(c.EightBox) > 0 {
		e.EightBoxPrizes = make([]domain.Prize, len(c.EightBox))
		for i, p := range c.EightBox {
			e.EightBoxPrizes[i] = domain.Prize{MinStake: p.MinStake, Reward: p.Reward, BundleID: p.Bundle}
		}
	}

	if len(c.Crafting.Bundles) > 0 {
		e.Bundles = make([]domain.BundleSpec, len(c.Crafting.Bundles))
		for i, b := range c.Crafting.Bundles {
			if len(b.Rates) != domain.FragmentKinds {
				return domain.Economy{}, fmt.Errorf("crafting bundle %d: %d rates: %w", i, len(b.Rates), domain.ErrConfigMismatch)
			}
			spec := domain.BundleSpec{Name: b.Name, URI: b.URI, Cost: b.Cost, RewardCount: b.RewardCount}
			copy(spec.Rates[:], b.Rates)
			e.Bundles[i] = spec
		}
	}
	if c.Crafting.NftCost > 0 {
		e.NftCost = c.Crafting.NftCost
	}
	if c.Crafting.NftURI != "" {
		e.NftURI = c.Crafting.NftURI
	}
	if c.Crafting.BurnBps > 0 {
		e.BurnBps = c.Crafting.BurnBps
	}

	if err := e.Validate(); err != nil {
		return domain.Economy{}, err
	}
	return e, nil
}

// SchedulerInterval devuelve el intervalo del scheduler como time.Duration.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// LockWait es el máximo que una operación espera por sus locks.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Scheduler.LockWaitSeconds) * time.Second
}

// OracleMaxAge es la antigüedad máxima aceptada de un precio.
func (c *Config) OracleMaxAge() time.Duration {
	return time.Duration(c.Oracle.MaxAgeSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ARENA_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ARENA_ADMIN"); v != "" {
		cfg.Ledger.Admin = v
	}
	if v := os.Getenv("PYTH_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	l := &cfg.Ledger
	if l.Admin == "" {
		l.Admin = "admin"
	}
	if l.Treasury == "" {
		l.Treasury = "treasury"
	}
	if l.Escrow == "" {
		l.Escrow = "escrow"
	}
	if l.ReferralVault == "" {
		l.ReferralVault = "referral-vault"
	}
	if l.BetToken == "" {
		l.BetToken = "USDC"
	}
	if l.RewardToken == "" {
		l.RewardToken = "FEEL"
	}
	if l.ArenaSymbol == "" {
		l.ArenaSymbol = "BTC"
	}
	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "fixed"
	}
	if cfg.Oracle.WalkStep == "" {
		cfg.Oracle.WalkStep = "0.5"
	}
	if cfg.Entropy.Source == "" {
		cfg.Entropy.Source = "crypto"
	}
	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	if cfg.Scheduler.LockWaitSeconds <= 0 {
		cfg.Scheduler.LockWaitSeconds = 30
	}
	if cfg.Notify.MaxRetries <= 0 {
		cfg.Notify.MaxRetries = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "arena.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
