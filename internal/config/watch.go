package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads the configuration whenever the config file in use is written
// and hands the result to onChange. Only settings that are safe to change on
// a running process (the log level) should be applied by the callback.
// It returns false when no config file is in use.
func Watch(onChange func(*Config, error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !shouldReload(e) {
			return
		}
		onChange(Load())
	})
	viper.WatchConfig()

	return true
}

func shouldReload(e fsnotify.Event) bool {
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create)
}
