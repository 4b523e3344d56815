package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"southwinds.dev/keyslot/persist"
)

var (
	cfgFile string
	store   persist.Store
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keyslot",
	Short: "Inspect and manage persisted key records",
	Long: `An inspection tool for key record stores used by the keyslot table.
Records can live on the local filesystem or in an S3-compatible object store
and may be sealed at rest with a passphrase. The tool never prints key
material; use export to move a record out under a fresh passphrase.`,
	PersistentPreRunE: initializeStore,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.keyslot.yaml)")
	rootCmd.PersistentFlags().StringP("store-path", "p", "", "path to the filesystem store")
	rootCmd.PersistentFlags().String("store-type", "", "storage backend type (filesystem, s3)")
	rootCmd.PersistentFlags().String("passphrase", "", "store sealing passphrase (or use KEYSLOT_PASSPHRASE env var)")

	bindFlagOrPanic("store.path", "store-path")
	bindFlagOrPanic("store.type", "store-type")
	bindFlagOrPanic("store.passphrase", "passphrase")

	// S3 flags (for direct CLI usage)
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint URL")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "Use SSL for S3 connections")

	bindFlagOrPanic("store.s3.endpoint", "s3-endpoint")
	bindFlagOrPanic("store.s3.region", "s3-region")
	bindFlagOrPanic("store.s3.bucket", "s3-bucket")
	bindFlagOrPanic("store.s3.key_prefix", "s3-prefix")
	bindFlagOrPanic("store.s3.access_key_id", "s3-access-key")
	bindFlagOrPanic("store.s3.secret_access_key", "s3-secret-key")
	bindFlagOrPanic("store.s3.use_ssl", "s3-use-ssl")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")

		viper.SetConfigType("yaml")
		viper.SetConfigName(".keyslot")
	}

	viper.SetEnvPrefix("KEYSLOT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// No config file is fine; defaults and env vars apply
	}
}

func setDefaults() {
	viper.SetDefault("store.path", ".keyslot")
	viper.SetDefault("store.type", "filesystem")

	viper.SetDefault("store.s3.region", "us-east-1")
	viper.SetDefault("store.s3.key_prefix", "keyslot/")
	viper.SetDefault("store.s3.use_ssl", true)
}

func initializeStore(cmd *cobra.Command, args []string) error {
	// Commands that do not touch the store
	switch cmd.Name() {
	case "help", "completion", "__complete", "config", "init":
		return nil
	}

	passphrase := viper.GetString("store.passphrase")
	if passphrase == "" {
		passphrase = os.Getenv("KEYSLOT_PASSPHRASE")
	}

	config, err := storeConfig(passphrase)
	if err != nil {
		return err
	}

	store, err = persist.NewStore(config)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	return nil
}

// storeConfig assembles a persist.StoreConfig from viper settings
func storeConfig(passphrase string) (persist.StoreConfig, error) {
	storeType := persist.StoreType(viper.GetString("store.type"))

	switch storeType {
	case persist.StoreTypeFileSystem:
		return persist.StoreConfig{
			Type: persist.StoreTypeFileSystem,
			Config: map[string]interface{}{
				"base_path":  viper.GetString("store.path"),
				"passphrase": passphrase,
			},
		}, nil

	case persist.StoreTypeS3:
		return persist.StoreConfig{
			Type: persist.StoreTypeS3,
			Config: map[string]interface{}{
				"endpoint":          viper.GetString("store.s3.endpoint"),
				"region":            viper.GetString("store.s3.region"),
				"bucket":            viper.GetString("store.s3.bucket"),
				"key_prefix":        viper.GetString("store.s3.key_prefix"),
				"access_key_id":     viper.GetString("store.s3.access_key_id"),
				"secret_access_key": viper.GetString("store.s3.secret_access_key"),
				"use_ssl":           viper.GetBool("store.s3.use_ssl"),
				"passphrase":        passphrase,
			},
		}, nil

	default:
		return persist.StoreConfig{}, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
