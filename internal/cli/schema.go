// Package cli provides shared CLI utilities for ragcore and ragcored.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cloo-solutions/ragcore/internal/config"
)

const (
	// envAnnotation records the environment variable a flag overrides.
	envAnnotation = "ragcore_env"
	// configAnnotation marks a command tree that reads RAG_* settings.
	configAnnotation = "ragcore_config"
)

// FlagSchema describes one flag in --help-json output.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Env         string `json:"env,omitempty"`
	Required    bool   `json:"required"`
	Persistent  bool   `json:"persistent,omitempty"`
}

// CommandSchema describes a command and its subcommands. Environment is only
// set on the command the schema was requested for.
type CommandSchema struct {
	Name        string            `json:"name"`
	Use         string            `json:"use,omitempty"`
	Aliases     []string          `json:"aliases,omitempty"`
	Description string            `json:"description,omitempty"`
	Long        string            `json:"long,omitempty"`
	Flags       []FlagSchema      `json:"flags,omitempty"`
	Environment []config.Variable `json:"environment,omitempty"`
	Subcommands []CommandSchema   `json:"subcommands,omitempty"`
}

// BindEnv records that flag name on cmd overrides the environment variable
// env. The binding shows up in --help-json and in the flag's usage line.
func BindEnv(cmd *cobra.Command, name, env string) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(name)
	}
	if f == nil {
		panic(fmt.Sprintf("cli: BindEnv: no flag %q on %s", name, cmd.Name()))
	}
	if f.Annotations == nil {
		f.Annotations = map[string][]string{}
	}
	f.Annotations[envAnnotation] = []string{env}
	f.Usage = fmt.Sprintf("%s [$%s]", f.Usage, env)
}

// UsesConfig marks cmd and its subcommands as reading RAG_* settings, so
// their schema lists every variable with its default.
func UsesConfig(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[configAnnotation] = "true"
}

// GenerateSchema builds the schema of cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := commandSchema(cmd)
	if usesConfig(cmd) {
		schema.Environment = config.Variables()
	}
	return schema
}

func commandSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Long:        cmd.Long,
		Flags:       extractFlags(cmd),
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Name() == "completion" || sub.Hidden {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, commandSchema(sub))
	}
	return schema
}

func usesConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[configAnnotation] == "true" {
			return true
		}
	}
	return false
}

func extractFlags(cmd *cobra.Command) []FlagSchema {
	var flags []FlagSchema
	persistent := cmd.PersistentFlags()

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help-json" || f.Name == "help" {
			return
		}
		flags = append(flags, flagToSchema(f, persistent.Lookup(f.Name) != nil))
	})
	return flags
}

func flagToSchema(f *pflag.Flag, persistent bool) FlagSchema {
	schema := FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Persistent:  persistent,
	}
	if env := f.Annotations[envAnnotation]; len(env) > 0 {
		schema.Env = env[0]
	}
	if req := f.Annotations[cobra.BashCompOneRequiredFlag]; len(req) > 0 && req[0] == "true" {
		schema.Required = true
	}
	return schema
}

// WriteSchema writes the indented schema of cmd to w.
func WriteSchema(w io.Writer, cmd *cobra.Command) error {
	output, err := json.MarshalIndent(GenerateSchema(cmd), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

// AddHelpJSONFlag adds the --help-json flag to a command.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("help-json", false, "Output command schema as JSON")
}

// CheckHelpJSON prints the schema and exits when os.Args contains
// --help-json. Call it before Execute so argument validation does not run.
func CheckHelpJSON(rootCmd *cobra.Command) {
	target, ok := helpJSONTarget(rootCmd, os.Args[1:])
	if !ok {
		return
	}
	if err := WriteSchema(os.Stdout, target); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// helpJSONTarget resolves the command named by the arguments before
// --help-json.
func helpJSONTarget(root *cobra.Command, args []string) (*cobra.Command, bool) {
	for i, arg := range args {
		if arg == "--help-json" {
			return findTargetCommand(root, args[:i]), true
		}
	}
	return nil, false
}

func findTargetCommand(cmd *cobra.Command, args []string) *cobra.Command {
	if len(args) == 0 {
		return cmd
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == args[0] || sub.HasAlias(args[0]) {
			return findTargetCommand(sub, args[1:])
		}
	}
	// Skip flags and positional values until a subcommand name matches.
	return findTargetCommand(cmd, args[1:])
}
