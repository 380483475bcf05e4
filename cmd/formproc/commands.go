package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	forms "github.com/stufflebeam/orbeon-forms"
	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
	"github.com/stufflebeam/orbeon-forms/pkg/config"
	"github.com/stufflebeam/orbeon-forms/pkg/event"
	"github.com/stufflebeam/orbeon-forms/pkg/render"
)

type globals struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "formproc",
		Short:         "Render XForms documents to HTML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides the config file)")

	root.AddCommand(newRenderCmd(g), newResourceCmd(g), newEventsCmd())
	return root
}

// engine loads the configuration, applies flag overrides and builds the
// engine. Logs go to the command's error stream.
func (g *globals) engine(cmd *cobra.Command) (*forms.Engine, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	xlog.Configure(logCfg)

	return forms.New(cfg, forms.WithLogger(xlog.WithComponent("formproc")))
}

func newRenderCmd(g *globals) *cobra.Command {
	var dataPath, output string
	cmd := &cobra.Command{
		Use:     "render <form>",
		Short:   "Render a form document resolved through the resource manager",
		Example: "  formproc render forms/order.xhtml --data order.yaml --output order.html",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			data, err := readInstance(dataPath)
			if err != nil {
				return err
			}
			if output == "" {
				return engine.Render(cmd.Context(), args[0], data, cmd.OutOrStdout())
			}
			return writeAtomic(output, func(w io.Writer) error {
				return engine.Render(cmd.Context(), args[0], data, w)
			})
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "instance data file (.json or .yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	return cmd
}

func newResourceCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Inspect resources seen by the configured manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("resource requires a subcommand: cat")
		},
	}
	cat := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print the content of a logical resource path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			data, err := engine.Resources().Content(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.AddCommand(cat)
	return cmd
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the registered event kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTARGET\tBUBBLES\tCANCELABLE\tINTERNAL")
			for _, kind := range event.Registered() {
				info, _ := event.Lookup(kind)
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\n", info.Kind, info.Role, info.Bubbles, info.Cancelable, info.Internal)
			}
			return tw.Flush()
		},
	}
}

func readInstance(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()
	return render.DecodeInstance(f, render.FormatOf(path))
}

func writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending output file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if err := write(pending); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
