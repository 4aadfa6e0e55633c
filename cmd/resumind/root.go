package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/telemetry"
)

const app = "resumind"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "resumind scores résumés against a job description",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}
)

// Execute runs the root command. Commands stop when ctx is canceled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is resumind.yaml in the current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "debug logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json log output")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// initConfig reads the optional config file. A missing default file is fine;
// an explicit --config that cannot be read is not.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig starts from the environment and lets the config file and flags
// override it.
func loadConfig() config.Config {
	cfg := config.Load()
	return overlay(cfg, viper.GetViper())
}

func overlay(cfg config.Config, v *viper.Viper) config.Config {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("env", &cfg.Env)
	str("port", &cfg.Port)
	str("object-store", &cfg.ObjectStoreType)
	str("local-store-dir", &cfg.LocalStoreDir)
	str("s3-bucket", &cfg.S3Bucket)
	str("aws-region", &cfg.AWSRegion)
	str("kv-store", &cfg.KVStoreType)
	str("redis-addr", &cfg.RedisAddr)
	str("database-url", &cfg.DatabaseURL)
	str("sqlite-path", &cfg.SQLitePath)
	str("scorer", &cfg.ScorerProvider)
	str("model", &cfg.LLMModel)
	str("openai-api-key", &cfg.OpenAIAPIKey)
	str("gemini-api-key", &cfg.GeminiAPIKey)
	str("log-level", &cfg.LogLevel)
	if v.IsSet("preview-dpi") {
		cfg.PreviewDPI = v.GetFloat64("preview-dpi")
	}

	if v.GetBool("debug") {
		cfg.LogLevel = "debug"
	}
	cfg.LogFormat = "console"
	if v.GetBool("json") {
		cfg.LogFormat = "json"
	}
	return cfg
}

func configureLogging(cfg config.Config) {
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)
}
