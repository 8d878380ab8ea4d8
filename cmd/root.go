package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatlog/internal/config"
	"chatlog/internal/pkg/logger"
)

var (
	cfgFile string
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatlog",
	Short: "Chatlog - chatbot conversation logging service",
	Long: `Chatlog stores conversations between users and an NLU chatbot.
It serves the chat app's conversation API, forwards user messages to the
NLU webhook and groups legacy turn records into chat sessions.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("store", "mongo", "store backend (mongo/bolt/memory)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("store.type", rootCmd.PersistentFlags().Lookup("store"))
}

func initConfig() {
	// .env 中的变量不覆盖已存在的环境变量
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", envFile, err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.chatlog")
	}

	// 环境变量设置
	viper.SetEnvPrefix("CHATLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvAliases()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().
		Str("config_file", viper.ConfigFileUsed()).
		Str("store", cfg.Store.Type).
		Msg("configuration loaded")
}

// bindEnvAliases 兼容聊天应用原有的环境变量名
func bindEnvAliases() {
	_ = viper.BindEnv("mongo.uri", "CHATLOG_MONGO_URI", "MONGO_URI")
	_ = viper.BindEnv("nlu.base_url", "CHATLOG_NLU_BASE_URL", "RASA_API_URL")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Store
	viper.SetDefault("store.type", "mongo")
	viper.SetDefault("store.bolt_path", "./data/chatlog.db")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "rasa_db")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis，addr 为空时不启用缓存
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "5m")

	// NLU
	viper.SetDefault("nlu.base_url", "http://localhost:5005")
	viper.SetDefault("nlu.timeout", "10s")
	viper.SetDefault("nlu.fallback_message", "Sorry, I'm having trouble understanding right now. Please try again later.")
	viper.SetDefault("nlu.assistant.id", "rasa-assistant")
	viper.SetDefault("nlu.assistant.name", "Assistant")
	viper.SetDefault("nlu.assistant.version", "1.0")

	// Session
	viper.SetDefault("session.gap", "30m")
	viper.SetDefault("session.timezone", "Local")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
