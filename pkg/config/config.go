package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	GitHub     GitHubConfig
	Enrichment EnrichmentConfig
	LogLevel   string
}

type ServerConfig struct {
	Port         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	DataFolder string
	Filename   string
}

// Path returns the full path of the database file.
func (c DatabaseConfig) Path() string {
	return filepath.Join(c.DataFolder, c.Filename)
}

type GitHubConfig struct {
	Token  string
	APIURL string
}

type EnrichmentConfig struct {
	WorkerEnabled bool
	PollInterval  time.Duration
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("read_timeout", 15)
	v.SetDefault("write_timeout", 15)
	v.SetDefault("opendev_data_folder", "./data")
	v.SetDefault("opendev_db_filename", "odd.db")
	v.SetDefault("github_token", "")
	v.SetDefault("github_api_url", "https://api.github.com/")
	v.SetDefault("enrichment_worker_enabled", true)
	v.SetDefault("enrichment_poll_seconds", 10)
	v.SetDefault("log_level", "info")

	pollSeconds := v.GetInt("enrichment_poll_seconds")
	if pollSeconds <= 0 {
		pollSeconds = 10
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port:         v.GetString("port"),
			Mode:         v.GetString("gin_mode"),
			ReadTimeout:  v.GetInt("read_timeout"),
			WriteTimeout: v.GetInt("write_timeout"),
		},
		Database: DatabaseConfig{
			DataFolder: v.GetString("opendev_data_folder"),
			Filename:   v.GetString("opendev_db_filename"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github_token"),
			APIURL: v.GetString("github_api_url"),
		},
		Enrichment: EnrichmentConfig{
			WorkerEnabled: v.GetBool("enrichment_worker_enabled"),
			PollInterval:  time.Duration(pollSeconds) * time.Second,
		},
		LogLevel: v.GetString("log_level"),
	}

	return nil
}
