// Package config holds the session configuration: prompt, protected
// command names, and the knobs for expansion and indentation.
package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Charles-JpEG/pysh/core/session"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const ConfigurationName = "config.yaml"

type Configuration struct {
	// Prompt is a template with \u \h \w and \$ escapes.
	Prompt string `json:"prompt" validate:"required"`

	// ProtectedCommands always dispatch to the shell at top level,
	// even when a script binding shadows the name.
	ProtectedCommands []string `json:"protected_commands" validate:"unique"`

	// UndefinedVariables picks what $name does for unknown names.
	UndefinedVariables string `json:"undefined_variables" validate:"oneof=empty error"`

	TabWidth int `json:"tab_width" validate:"gte=1,lte=16"`

	// HistoryFile is where the line editor persists input history.
	// Empty disables persistence.
	HistoryFile string `json:"history_file"`

	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// UndefinedPolicy maps the textual setting onto the session policy.
func (c *Configuration) UndefinedPolicy() session.UndefinedVarPolicy {
	if c.UndefinedVariables == "error" {
		return session.UndefinedError
	}
	return session.UndefinedEmpty
}
