package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

// Conf holds the app-wide configuration. It is loaded once at import time
// from defaults, an optional `config/.env.<env>` file and ENV-prefixed
// environment variables.
var Conf *Config

type Config struct {
	Env       string
	Debug     bool
	TestMode  bool
	AppName   string
	SecretKey string
	Build     string
	WorkDir   string

	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	SendgridApiKey   string
	RollbarToken     string

	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Host string
		Port string

		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// Provisioning settings for auto-generated accounts.
	Provision struct {
		TeacherEmailDomain     string
		AdminEmailDomain       string
		DefaultTeacherPassword string
	}
}

func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) DatabaseAddress() string {
	return c.Database.Host + ":" + c.Database.Port
}

// Validate ensures settings that have no sane defaults are provided.
// Only enforced outside DEV|TEST modes.
func (c *Config) Validate() error {
	if c.Debug || c.TestMode {
		return nil
	}
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.Database.Password, "databasePassword"),
		vala.StringNotEmpty(c.SendgridApiKey, "sendgridApiKey"),
		vala.StringNotEmpty(c.RollbarToken, "rollbarToken"),
	).Check()
}

func init() {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Maoni")
	v.SetDefault("secretKey", "w&yestp2(h!x)#*c2(#yg4h^$cegm2emy-=distek+57=dz&u")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "maoni")
	v.SetDefault("databaseUser", "maoni")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("teacherEmailDomain", "faculty.maoni.app")
	v.SetDefault("adminEmailDomain", "maoni.app")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "QA", "PROD":
		v.SetDefault("debug", false)
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Env:       env,
		Debug:     v.GetBool("debug"),
		TestMode:  v.GetBool("testMode"),
		AppName:   v.GetString("appName"),
		SecretKey: v.GetString("secretKey"),
		Build:     v.GetString("build"),
		WorkDir:   wd,

		FrontendBaseURL: v.GetString("frontendBaseURL"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
	Conf.DefaultFromEmail = mail.Address{Name: Conf.AppName, Address: v.GetString("defaultFromEmail")}
	Conf.Server.Host = v.GetString("serverHost")
	Conf.Server.Port = v.GetString("serverPort")
	Conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	Conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")
	Conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	Conf.Database.Engine = v.GetString("databaseEngine")
	Conf.Database.Name = v.GetString("databaseName")
	Conf.Database.User = v.GetString("databaseUser")
	Conf.Database.Password = v.GetString("databasePassword")
	Conf.Database.AdminUser = v.GetString("databaseAdminUser")
	Conf.Database.AdminPassword = v.GetString("databaseAdminPassword")
	Conf.Database.Host = v.GetString("databaseHost")
	Conf.Database.Port = v.GetString("databasePort")
	Conf.Database.DisableTLS = v.GetBool("databaseDisableTLS")
	Conf.Provision.TeacherEmailDomain = v.GetString("teacherEmailDomain")
	Conf.Provision.AdminEmailDomain = v.GetString("adminEmailDomain")
	Conf.Provision.DefaultTeacherPassword = v.GetString("defaultTeacherPassword")
}

// Getwd tries to find the project root.
// go-test changes the working directory to the test package being run during tests,
// so walk up until the directory containing go.mod is found.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			// deployed binary; config lives next to the executable
			return wd
		}
		currDir = newDir
	}
}
