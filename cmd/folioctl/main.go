// Package main is folioctl, the command line client of a folio server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kennan/folio/internal/apiclient"
)

// options are the persistent flags shared by every command.
type options struct {
	server  string
	token   string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "folioctl",
		Short: "Manage a folio portfolio server",
		Long: `folioctl talks to a folio server over its JSON API.

Reads are public. Commands that change projects need a session: run
"folioctl login" and export the printed token as FOLIO_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
				Level:      level,
				TimeFormat: "15:04:05.000",
				NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
			})))
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	server := os.Getenv("FOLIO_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", server, "Base URL of the folio server (env FOLIO_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FOLIO_TOKEN"), "Session token (env FOLIO_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newHashPasswordCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newOpenCmd(opts),
		newSchemaCmd(opts),
		newValidateCmd(),
		newImportCmd(opts),
		newExportCmd(opts),
		newTourCmd(opts),
	)
	return rootCmd
}

func (o *options) client() (*apiclient.Client, error) {
	return apiclient.New(o.server, o.token)
}

// authedClient is client for commands that need a session.
func (o *options) authedClient() (*apiclient.Client, error) {
	if o.token == "" {
		return nil, errors.New("not logged in: run \"folioctl login\" and set FOLIO_TOKEN")
	}
	return o.client()
}

// readPassword reads one line from the command input, prompting when it is
// a terminal.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
