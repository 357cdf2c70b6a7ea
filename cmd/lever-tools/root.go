package main

import (
	"errors"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/lever-ats-client/pkg/config"
	"github.com/Sternrassler/lever-ats-client/pkg/logging"
)

const appName = "lever-tools"

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

type app struct {
	cfgFile string
	debug   bool
	jsonLog bool

	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	// confirm asks the operator before a destructive call.
	confirm func(label string) (bool, error)
}

func newApp() *app {
	return &app{
		out:     os.Stdout,
		errOut:  os.Stderr,
		confirm: promptConfirm,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "lever-tools exposes the Lever ATS API as named tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				logging.Setup(a.loggingConfig(nil))
				return nil
			}
			return a.loadConfig()
		},
	}

	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is config.yaml in the current directory or ~/.lever-tools)")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVarP(&a.jsonLog, "json", "j", false, "json format for logging")

	root.AddCommand(
		newServeCmd(a),
		newCallCmd(a),
		newListCmd(a),
	)

	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Setup(a.loggingConfig(cfg))
	return nil
}

func (a *app) loggingConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Output = a.errOut
	if cfg != nil {
		lc.Level = logging.LogLevel(cfg.Logging.Level)
		lc.Format = logging.Format(cfg.Logging.Format)
	}
	if a.debug {
		lc.Level = logging.LevelDebug
	}
	if a.jsonLog {
		lc.Format = logging.FormatJSON
	}
	return lc
}

func promptConfirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
