package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath   string
	EnvFile      string
	Timeout      string
	WalletDBPath string
	Debug        bool
}

// QuerySettings holds the engine query IDs behind each analytics command.
type QuerySettings struct {
	TotalVolumeID   int
	LatestVolumesID int
	BalancesID      int
	PnLID           int
}

type Settings struct {
	TelegramToken  string
	DuneAPIKey     string
	Timeout        time.Duration
	WalletDBPath   string
	WalletLockPath string
	Debug          bool
	Queries        QuerySettings
}

type fileConfig struct {
	Debug    *bool  `yaml:"debug"`
	Timeout  string `yaml:"timeout"`
	Telegram struct {
		Token    string `yaml:"token"`
		TokenEnv string `yaml:"token_env"`
	} `yaml:"telegram"`
	Dune struct {
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		Queries   struct {
			TotalVolume   *int `yaml:"total_volume"`
			LatestVolumes *int `yaml:"latest_volumes"`
			Balances      *int `yaml:"balances"`
			PnL           *int `yaml:"pnl"`
		} `yaml:"queries"`
	} `yaml:"dune"`
	Wallet struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"wallet"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	walletPath, lockPath, err := defaultWalletPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Timeout:        30 * time.Second,
		WalletDBPath:   walletPath,
		WalletLockPath: lockPath,
		Queries: QuerySettings{
			TotalVolumeID:   3777885,
			LatestVolumesID: 3777907,
			BalancesID:      3808006,
			PnLID:           3808127,
		},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "bark", "config.yaml"), nil
}

func defaultWalletPaths() (string, string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "bark")
	return filepath.Join(dir, "wallets.db"), filepath.Join(dir, "wallets.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Debug != nil {
		settings.Debug = *cfg.Debug
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Telegram.Token != "" {
		settings.TelegramToken = cfg.Telegram.Token
	}
	if cfg.Telegram.TokenEnv != "" {
		settings.TelegramToken = os.Getenv(cfg.Telegram.TokenEnv)
	}
	if cfg.Dune.APIKey != "" {
		settings.DuneAPIKey = cfg.Dune.APIKey
	}
	if cfg.Dune.APIKeyEnv != "" {
		settings.DuneAPIKey = os.Getenv(cfg.Dune.APIKeyEnv)
	}
	if cfg.Dune.Queries.TotalVolume != nil {
		settings.Queries.TotalVolumeID = *cfg.Dune.Queries.TotalVolume
	}
	if cfg.Dune.Queries.LatestVolumes != nil {
		settings.Queries.LatestVolumesID = *cfg.Dune.Queries.LatestVolumes
	}
	if cfg.Dune.Queries.Balances != nil {
		settings.Queries.BalancesID = *cfg.Dune.Queries.Balances
	}
	if cfg.Dune.Queries.PnL != nil {
		settings.Queries.PnLID = *cfg.Dune.Queries.PnL
	}
	if cfg.Wallet.Path != "" {
		settings.WalletDBPath = cfg.Wallet.Path
	}
	if cfg.Wallet.LockPath != "" {
		settings.WalletLockPath = cfg.Wallet.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("TG_TOKEN"); v != "" {
		settings.TelegramToken = v
	}
	if v := os.Getenv("DUNE_API_KEY"); v != "" {
		settings.DuneAPIKey = v
	}
	if v := os.Getenv("BARK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("BARK_WALLET_DB"); v != "" {
		settings.WalletDBPath = v
	}
	if v := os.Getenv("BARK_WALLET_LOCK"); v != "" {
		settings.WalletLockPath = v
	}
	if v := os.Getenv("BARK_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Debug = b
		}
	}
	if v := os.Getenv("BARK_QUERY_TOTAL_VOLUME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Queries.TotalVolumeID = n
		}
	}
	if v := os.Getenv("BARK_QUERY_LATEST_VOLUMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Queries.LatestVolumesID = n
		}
	}
	if v := os.Getenv("BARK_QUERY_BALANCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Queries.BalancesID = n
		}
	}
	if v := os.Getenv("BARK_QUERY_PNL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Queries.PnLID = n
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.WalletDBPath != "" {
		settings.WalletDBPath = flags.WalletDBPath
		settings.WalletLockPath = flags.WalletDBPath + ".lock"
	}
	if flags.Debug {
		settings.Debug = true
	}
	return nil
}
