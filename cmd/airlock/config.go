package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/airlock/internal/logging"
)

// legacyEnv maps config keys to the environment variables older deployments
// still set.
var legacyEnv = map[string]string{
	"debug":            "BIDI_DEBUG",
	"no-refresh":       "BIDI_NO_REFRESH",
	"clipboard-format": "BIDI_CLIPBOARD_FORMAT",
	"remove-on-exit":   "BIDI_CLIPBOARD_DEBUG",
}

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and AIRLOCK_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("airlock")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/airlock/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "airlock"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("AIRLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := bindLegacyEnv(cmd, v); err != nil {
		return err
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// bindLegacyEnv honours the BIDI_* variables. Boolean ones are switches:
// set to anything, even empty, they turn the option on, unless the flag or
// the AIRLOCK_* variable says otherwise.
func bindLegacyEnv(cmd *cobra.Command, v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		fl := cmd.Flags().Lookup(key)
		if fl == nil {
			continue
		}
		env := "AIRLOCK_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))

		if fl.Value.Type() != "bool" {
			if err := v.BindEnv(key, env, legacy); err != nil {
				return fmt.Errorf("binding env %s: %w", legacy, err)
			}
			continue
		}
		if _, set := os.LookupEnv(legacy); !set || fl.Changed {
			continue
		}
		if _, set := os.LookupEnv(env); set {
			continue
		}
		v.Set(key, true)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
	cmd.Flags().Bool("debug", false, "log every transfer at debug level")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	resolveLogging(logging.Options{
		Format:      v.GetString("log-format"),
		Level:       v.GetString("log-level"),
		Debug:       v.GetBool("debug"),
		Interactive: v.GetBool("no-background"),
	})
}
