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

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	GradingConfig struct {
		TargetCGPA        float64
		FutureCredits     int
		GraduationCredits int
	}

	DraftsConfig struct {
		Dir      string
		InMemory bool
		Debounce time.Duration
		SavedTTL time.Duration
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		WorkDir         string
		FrontendBaseURL string
		Storage         string // postgres | memory
		SendgridApiKey  string
		RollbarToken    string
		AdvisorEmail    string
		fromEmail       string

		Database DatabaseConfig
		Server   ServerConfig
		Grading  GradingConfig
		Drafts   DraftsConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.fromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig loads the configuration of the current ENV from config/.env.<env> (if any)
// and from environment variables prefixed with the env name, e.g. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Alama")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("storage", "postgres")
	v.SetDefault("defaultFromEmail", "Alama <noreply@localhost>")
	v.SetDefault("advisorEmail", "advisor@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "alama")
	v.SetDefault("database.user", "alama")
	v.SetDefault("database.password", "alama")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("grading.targetCGPA", 3.0)
	v.SetDefault("grading.futureCredits", 18)
	v.SetDefault("grading.graduationCredits", 120)

	v.SetDefault("drafts.dir", filepath.Join(os.TempDir(), "alama-drafts"))
	v.SetDefault("drafts.inMemory", false)
	v.SetDefault("drafts.debounce", 500*time.Millisecond)
	v.SetDefault("drafts.savedTTL", 2*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("storage", "memory")
		v.SetDefault("drafts.inMemory", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         workDir,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		Storage:         v.GetString("storage"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		AdvisorEmail:    v.GetString("advisorEmail"),
		fromEmail:       v.GetString("defaultFromEmail"),
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Grading: GradingConfig{
			TargetCGPA:        v.GetFloat64("grading.targetCGPA"),
			FutureCredits:     v.GetInt("grading.futureCredits"),
			GraduationCredits: v.GetInt("grading.graduationCredits"),
		},
		Drafts: DraftsConfig{
			Dir:      v.GetString("drafts.dir"),
			InMemory: v.GetBool("drafts.inMemory"),
			Debounce: v.GetDuration("drafts.debounce"),
			SavedTTL: v.GetDuration("drafts.savedTTL"),
		},
	}
}
