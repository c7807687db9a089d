package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Claim    ClaimConfig
	Redis    RedisConfig
	Notifier NotifierConfig
}

type ServerConfig struct {
	Addr string
}

type DBConfig struct {
	Path string
}

type ClaimConfig struct {
	MaxActiveJobs int
	MaxDistanceKm float64
	// AtomicAccept mirrors whether the store's atomic accept primitive has
	// been rolled out. Off, the coordinator runs on the fallback path.
	AtomicAccept bool
}

type RedisConfig struct {
	// Addr empty disables the asynq notifier; claims then skip notification.
	Addr     string
	Password string
	DB       int
}

type NotifierConfig struct {
	// RunWorker starts the in-process delivery worker alongside the server.
	RunWorker bool
}

// Load reads marketplace.yaml (optional) and MARKETPLACE_* env vars.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("db.path", "marketplace.db")
	v.SetDefault("claim.max_active_jobs", 5)
	v.SetDefault("claim.max_distance_km", 50.0)
	v.SetDefault("claim.atomic_accept", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("notifier.run_worker", false)

	v.SetConfigName("marketplace")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return Config{
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		DB: DBConfig{
			Path: v.GetString("db.path"),
		},
		Claim: ClaimConfig{
			MaxActiveJobs: v.GetInt("claim.max_active_jobs"),
			MaxDistanceKm: v.GetFloat64("claim.max_distance_km"),
			AtomicAccept:  v.GetBool("claim.atomic_accept"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Notifier: NotifierConfig{
			RunWorker: v.GetBool("notifier.run_worker"),
		},
	}, nil
}
