// Copyright 2025 The ner-model Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nutsam/ner-model/lib/modelregistry"
)

// Version is set by the build via ldflags.
var Version = "dev"

var (
	cfgFile   string
	modelsDir string
)

// defaultModels is the built-in archive registry. A "models" map in the
// config file or environment overrides it entirely.
var defaultModels = map[string]string{
	"bert_tiny":              "https://drive.google.com/uc?id=1O-nQrlKSRtLmWR3U_yJ4azaoiPXPAy1_",
	"bert_base":              "https://drive.google.com/uc?id=1N-VZGjBKKC2tLlLE5TOJzp_hsE0i9bka",
	"albert_base":            "https://drive.google.com/uc?id=1XobDKSWBNRcUuOR0G7cFyvmUVBVVszMK",
	"finetune_pink_onenote5": "https://drive.google.com/uc?id=15Kp-ENg5Hb1T7UpMVDCNojAyLPbAMWhk",
	"BIO_finetune_pink_msra": "https://drive.google.com/uc?id=15inE6qk2F08mMv_7vHoOG8Zrp0y8cEFy",
	"eng_ontonotes":          "https://drive.google.com/uc?id=1793ARrQQT1RHvdx1bNDmPz2NdCnkoiMI",
	"eng_ontonotes_large":    "https://drive.google.com/uc?id=1QDsUD8xEYIeDNDzOImn6AOxOzM2WlC1v",
	"eng_upos":               "https://drive.google.com/uc?id=1ciXHDd1g1nZWBhD6fy6-JUwFVEdJyhjD",
	"eng_vblagoje_pos":       "https://drive.google.com/uc?id=1Uu5H4Avle0NVM5cuX9tCiE7KXg3ttkMb",
}

var rootCmd = &cobra.Command{
	Use:          "ner-model",
	Short:        "Bilingual named-entity extraction over token-classification models",
	Long:         `Extract named entities from Chinese, English and mixed texts using local ONNX token-classification checkpoints.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.ner-model/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models-dir", "", "model cache directory (default ~/.ner-model/models)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	mustBindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.ner-model")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("NER_MODEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// newLogger builds a zap logger at the configured level.
func newLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

// newRegistry builds the model registry from config.
func newRegistry(showProgress bool, logger *zap.Logger) (*modelregistry.Registry, error) {
	models := defaultModels
	if configured := viper.GetStringMapString("models"); len(configured) > 0 {
		models = configured
	}
	return modelregistry.New(modelregistry.Config{
		Root:         viper.GetString("models_dir"),
		Models:       models,
		ShowProgress: showProgress,
		Logger:       logger,
	})
}
