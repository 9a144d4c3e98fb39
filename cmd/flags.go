package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
)

// AddFlagValidation makes the named flag reject values that fail validator at
// parse time, before any command runs.
func AddFlagValidation(flags *pflag.FlagSet, name string, validator func(string) error) {
	flag := flags.Lookup(name)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (pick a free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

func ValidateDriver(driver string) error {
	switch driver {
	case config.DriverSQLite, config.DriverPostgres:
		return nil
	default:
		return fmt.Errorf("unsupported driver %q (supported: %s, %s)", driver, config.DriverSQLite, config.DriverPostgres)
	}
}

func ValidateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}
