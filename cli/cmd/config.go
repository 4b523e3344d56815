package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the CLI configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// defaultConfig mirrors the viper keys the root command reads
type defaultConfig struct {
	Store struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
		S3   struct {
			Endpoint  string `yaml:"endpoint"`
			Region    string `yaml:"region"`
			Bucket    string `yaml:"bucket"`
			KeyPrefix string `yaml:"key_prefix"`
			UseSSL    bool   `yaml:"use_ssl"`
		} `yaml:"s3"`
	} `yaml:"store"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".keyslot.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	var cfg defaultConfig
	cfg.Store.Type = "filesystem"
	cfg.Store.Path = ".keyslot"
	cfg.Store.S3.Region = "us-east-1"
	cfg.Store.S3.KeyPrefix = "keyslot/"
	cfg.Store.S3.UseSSL = true

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}
