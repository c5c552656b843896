// Command regowalk is a one-shot CLI over the regowalk engine: load
// modules and documents, evaluate a single query (or list rules, or
// re-format a module), print the results, and exit. It is deliberately not
// a REPL or server.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ashgrove/regowalk"
	"github.com/ashgrove/regowalk/internal/diag"
	"github.com/ashgrove/regowalk/internal/surface"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "regowalk:", err)
		os.Exit(1)
	}
}

type options struct {
	modules   []string
	dataFiles []string
	inputFile string
	debugDir  string
	debug     bool
	wfChecks  bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()

	root := &cobra.Command{
		Use:           "regowalk",
		Short:         "Evaluate Rego policy queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&opts.modules, "module", "m", nil, "policy module file (repeatable)")
	pf.StringArrayVarP(&opts.dataFiles, "data", "d", nil, "base data JSON file (repeatable)")
	pf.StringVarP(&opts.inputFile, "input", "i", "", "input JSON file")
	pf.StringVar(&opts.debugDir, "debug-path", "regowalk_dumps", "directory for per-pass tree dumps")
	pf.BoolVar(&opts.debug, "debug", false, "write per-pass tree dumps")
	pf.BoolVar(&opts.wfChecks, "wf-checks", true, "run well-formedness checks between passes")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline and evaluation diagnostics")

	v.SetEnvPrefix("REGOWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigName(".regowalk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	cobra.OnInitialize(func() {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				fmt.Fprintln(os.Stderr, "regowalk: config:", err)
			}
		}
		_ = v.BindPFlags(pf)
		for _, key := range []string{"debug", "debug-path", "wf-checks", "verbose"} {
			if v.IsSet(key) && !pf.Changed(key) {
				_ = pf.Set(key, v.GetString(key))
			}
		}
	})

	root.AddCommand(newEvalCmd(opts))
	root.AddCommand(newRulesCmd(opts))
	root.AddCommand(newFmtCmd())
	return root
}

func (o *options) logger() (*zap.Logger, error) {
	if !o.verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func (o *options) engine() (*regowalk.Engine, error) {
	log, err := o.logger()
	if err != nil {
		return nil, err
	}
	eng := regowalk.New().
		Executable("regowalk").
		DebugPath(o.debugDir).
		DebugEnabled(o.debug).
		WellFormedChecksEnabled(o.wfChecks).
		Logger(log)
	for _, path := range o.modules {
		if err := eng.AddModuleFile(path); err != nil {
			return nil, err
		}
	}
	for _, path := range o.dataFiles {
		if err := eng.AddDataJSONFile(path); err != nil {
			return nil, err
		}
	}
	if o.inputFile != "" {
		if err := eng.AddInputJSONFile(o.inputFile); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func newEvalCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <query>",
		Short: "Evaluate one query expression and print each result as a JSON line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine()
			if err != nil {
				return err
			}
			out, err := eng.Query(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newRulesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List every package-qualified rule path without evaluating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := opts.engine()
			if err != nil {
				return err
			}
			rules, err := eng.ListRules()
			if err != nil {
				return err
			}
			for _, r := range rules {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <module.rego>",
		Short: "Re-emit a module in canonical surface syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mod, err := surface.ParseModule(&diag.Source{Name: args[0], Text: string(text)})
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), surface.Print(mod))
			return nil
		},
	}
}
