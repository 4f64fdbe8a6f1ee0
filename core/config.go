package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	CheckInConfig struct {
		LocalURL         string
		ProdURL          string
		MobileURL        string
		RotationInterval time.Duration
		FadeDuration     time.Duration
		EncodeTimeout    time.Duration
		IdleTimeout      time.Duration
		DownloadDir      string
	}

	PaginationConfig struct {
		DefaultPageSize int
		MaxPageSize     int
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		RollbarToken string
		WorkDir      string

		Server     ServerConfig
		Database   DatabaseConfig
		CheckIn    CheckInConfig
		Pagination PaginationConfig
	}
)

// Address returns the "host:port" of the database server.
func (dc DatabaseConfig) Address() string {
	if dc.Port == "" {
		return dc.Host
	}
	return dc.Host + ":" + dc.Port
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "ClubHub")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "clubhub")
	v.SetDefault("database.user", "clubhub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("checkin.localURL", "http://localhost:3000/check-in?code=%s")
	v.SetDefault("checkin.prodURL", "https://clubs.example.edu/check-in?code=%s")
	v.SetDefault("checkin.mobileURL", "clubhub://check-in?code=%s")
	v.SetDefault("checkin.rotationInterval", 15*time.Second)
	v.SetDefault("checkin.fadeDuration", 300*time.Millisecond)
	v.SetDefault("checkin.encodeTimeout", 10*time.Second)
	v.SetDefault("checkin.idleTimeout", 30*time.Minute)
	v.SetDefault("checkin.downloadDir", "downloads")

	v.SetDefault("pagination.defaultPageSize", 10)
	v.SetDefault("pagination.maxPageSize", 100)
}

// NewConfig loads the app configuration.
// Values come from defaults, overridden by `config/.env.<env>` (if it exists) and then by the environment.
// Environment variables are prefixed by the env name, eg. DEV_DATABASE_HOST, PROD_CHECKIN_PRODURL.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("debug", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		CheckIn: CheckInConfig{
			LocalURL:         v.GetString("checkin.localURL"),
			ProdURL:          v.GetString("checkin.prodURL"),
			MobileURL:        v.GetString("checkin.mobileURL"),
			RotationInterval: v.GetDuration("checkin.rotationInterval"),
			FadeDuration:     v.GetDuration("checkin.fadeDuration"),
			EncodeTimeout:    v.GetDuration("checkin.encodeTimeout"),
			IdleTimeout:      v.GetDuration("checkin.idleTimeout"),
			DownloadDir:      v.GetString("checkin.downloadDir"),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: v.GetInt("pagination.defaultPageSize"),
			MaxPageSize:     v.GetInt("pagination.maxPageSize"),
		},
	}
}
