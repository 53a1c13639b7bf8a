package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/deepscan-ls/internal/adapter/deepscan"
	"github.com/Strob0t/deepscan-ls/internal/config"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

const tokenUsage = `usage: deepscan-ls token check [-config file] [-server url]

Checks a DeepScan access token against the server. The token is taken from
the configuration (DEEPSCAN_ACCESS_TOKEN or deepscan.access_token); when it
is not set it is read from the terminal without echo, or from the first line
of standard input.`

// runToken implements the "token" subcommand and returns the exit code.
func runToken(args []string) int {
	if len(args) == 0 || args[0] != "check" {
		fmt.Fprintln(os.Stderr, tokenUsage)
		return 2
	}

	fs := flag.NewFlagSet("token check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, tokenUsage) }
	configPath := fs.String("config", config.DefaultConfigFile, "path to YAML config")
	server := fs.String("server", "", "DeepScan server URL")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepscan-ls: %v\n", err)
		return 1
	}
	if *server != "" {
		cfg.DeepScan.Server = *server
	}

	settings := service.SettingsFromConfig(cfg.DeepScan)
	if !settings.HasToken() {
		token, err := readToken(os.Stdin, os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "deepscan-ls: read token: %v\n", err)
			return 1
		}
		settings = settings.WithToken(token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Inspection.Timeout)
	defer cancel()

	tokens := service.NewTokenService(deepscan.NewClient(cfg.Inspection.Timeout), nil, 0)
	text, ok, err := checkToken(ctx, tokens, settings, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepscan-ls: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stdout, text)
	if !ok {
		return 1
	}
	return 0
}

// checkToken describes the token of settings and reports whether it is
// usable right now.
func checkToken(ctx context.Context, tokens *service.TokenService, settings inspection.Settings, now time.Time) (string, bool, error) {
	info, err := tokens.Info(ctx, analysis.EndpointOf(settings))
	if errors.Is(err, service.ErrNoToken) {
		return service.TokenMessage(inspection.KindEmptyToken, settings.ServerURL), false, nil
	}
	if err != nil {
		return "", false, err
	}
	if info.Error != "" {
		if kind := service.ClassifyMessage(info.Error); kind.IsToken() {
			return service.TokenMessage(kind, settings.ServerURL), false, nil
		}
		return service.Describe(info, now), false, nil
	}
	usable := info.ExpiresAt.IsZero() || info.ExpiresAt.After(now)
	return service.Describe(info, now), usable, nil
}

// readToken prompts on a terminal and reads without echo; otherwise it
// reads the first line of in.
func readToken(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "DeepScan access token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
