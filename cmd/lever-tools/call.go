package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/lever-ats-client/pkg/tools"
)

// errDeclined is returned when the operator refuses a destructive call.
var errDeclined = errors.New("call declined")

func newCallCmd(a *app) *cobra.Command {
	var (
		pairs    []string
		argsJSON string
		yes      bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a single tool and print its envelope",
		Example: `  lever-tools call lever_search_candidates --arg query=jane@example.com
  lever-tools call lever_get_candidate --args-json '{"opportunity_id":"abc"}' -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if output != "json" && output != "yaml" {
				return fmt.Errorf("invalid --output %q: want json or yaml", output)
			}

			toolArgs, err := parseCallArgs(argsJSON, pairs)
			if err != nil {
				return err
			}

			reg, cleanup, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if tool, ok := reg.Lookup(name); ok && tool.Destructive && !yes {
				ok, err := a.confirm(fmt.Sprintf("Run %s with %v", name, toolArgs))
				if err != nil {
					return err
				}
				if !ok {
					return errDeclined
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if a.cfg.Server.RequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.Server.RequestTimeout)
				defer cancel()
			}

			return a.printEnvelope(reg.Call(ctx, name, toolArgs), output)
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "arg", nil, "tool argument as key=value (repeatable)")
	cmd.Flags().StringVar(&argsJSON, "args-json", "", "tool arguments as a JSON object")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation for destructive tools")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	return cmd
}

// parseCallArgs merges --args-json with --arg pairs. Pairs win on conflict.
func parseCallArgs(argsJSON string, pairs []string) (map[string]any, error) {
	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid --args-json: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", p)
		}
		args[strings.TrimSpace(k)] = v
	}
	return args, nil
}

func (a *app) printEnvelope(env tools.Envelope, output string) error {
	if err := encodeEnvelope(a.out, env, output); err != nil {
		return err
	}
	if env.Error != nil {
		return fmt.Errorf("%s failed: %s", env.Tool, env.Error.Kind)
	}
	return nil
}

func encodeEnvelope(w io.Writer, env tools.Envelope, output string) error {
	if output != "yaml" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	// Round-trip through JSON so the YAML keys follow the JSON tags.
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
