package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage engines
const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

type Config struct {
	Env              string
	AppName          string
	Build            string
	Debug            bool
	TestMode         bool
	WorkDir          string
	SecretKey        string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	SendgridApiKey   string
	RollbarToken     string

	Server struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	Realtime struct {
		Enabled        bool
		AllowedOrigins []string
		RedisAddr      string
		RedisChannel   string
		SendBuffer     int
	}

	Auth struct {
		OTPTTL        time.Duration
		ResetTokenTTL time.Duration
		PurgeSchedule string
	}
}

func (c *Config) IsMemoryStore() bool { return c.Database.Engine == EngineMemory }

// DatabaseAddress returns the database host:port.
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// NewConfig reads the configuration from the environment (optionally loaded from `config/.env.<env>`).
// ENV selects the environment: DEV (local; default), TEST, QA or PROD. It is also the env vars prefix.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", EngineMemory)
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

	conf := &Config{
		Env:             env,
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         wd,
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
	}

	conf.Server.Host, _ = os.Hostname()
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugAddress = v.GetString("server.debugAddress")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Realtime.Enabled = v.GetBool("realtime.enabled")
	conf.Realtime.AllowedOrigins = v.GetStringSlice("realtime.allowedOrigins")
	conf.Realtime.RedisAddr = v.GetString("realtime.redisAddr")
	conf.Realtime.RedisChannel = v.GetString("realtime.redisChannel")
	conf.Realtime.SendBuffer = v.GetInt("realtime.sendBuffer")

	conf.Auth.OTPTTL = v.GetDuration("auth.otpTTL")
	conf.Auth.ResetTokenTTL = v.GetDuration("auth.resetTokenTTL")
	conf.Auth.PurgeSchedule = v.GetString("auth.purgeSchedule")

	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Fitprize")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3x9-fit)prize$+41=qa&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("database.engine", EnginePostgres)
	v.SetDefault("database.user", "fitprize")
	v.SetDefault("database.password", "fitprize")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "fitprize")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.allowedOrigins", []string{"*"})
	v.SetDefault("realtime.redisAddr", "")
	v.SetDefault("realtime.redisChannel", "fitprize:events")
	v.SetDefault("realtime.sendBuffer", 256)

	v.SetDefault("auth.otpTTL", 10*time.Minute)
	v.SetDefault("auth.resetTokenTTL", 30*time.Minute)
	v.SetDefault("auth.purgeSchedule", "@every 5m")
}
