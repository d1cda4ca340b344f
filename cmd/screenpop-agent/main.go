// ABOUTME: Entry point for the standalone screenpop workstation agent
// ABOUTME: Keeps the push channel open and logs the calls it would pop

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/calldesk/screenpop/internal/client"
)

var version = "dev"

// getSettingsPath returns the path to the agent settings file.
// Priority: SCREENPOP_SETTINGS env var > XDG_CONFIG_HOME/screenpop/agent.toml > ~/.config/screenpop/agent.toml
func getSettingsPath() string {
	if envPath := os.Getenv("SCREENPOP_SETTINGS"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "agent.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "screenpop", "agent.toml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: screenpop-agent <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run      Connect to the gateway and stay registered")
		fmt.Println("  init     Create the settings file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runAgent(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAgent(ctx context.Context) error {
	settingsPath := getSettingsPath()

	settings, err := client.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings from %s (run `screenpop-agent init`?): %w", settingsPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("starting screenpop-agent",
		"version", version,
		"settings", settingsPath,
		"extension", settings.ExtensionNumber,
		"server", settings.ServerAddress,
	)

	streamer := client.NewStreamer(*settings, &client.LogHost{Logger: logger}, logger)
	streamer.OnStatus(func(status client.Status, reason string) {
		if reason != "" {
			logger.Info("status changed", "status", status, "reason", reason)
			return
		}
		logger.Info("status changed", "status", status)
	})

	err = streamer.Run(ctx)
	if errors.Is(err, client.ErrMisconfigured) {
		logger.Error("giving up: settings rejected by the server", "error", err)
	}
	return err
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("screenpop-agent settings setup")
	fmt.Println("==============================")
	fmt.Println()

	settingsPath := prompt(reader, "Settings file path", getSettingsPath())

	if _, err := os.Stat(settingsPath); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	settings := &client.Settings{
		ExtensionNumber: prompt(reader, "Extension number", ""),
		ServerAddress:   prompt(reader, "Gateway address (e.g. https://pop.example.com:8443)", ""),
		SharedSecret:    prompt(reader, "Shared secret", ""),
	}

	if err := client.SaveSettings(settingsPath, settings); err != nil {
		return err
	}

	fmt.Printf("\nSettings written to %s\n", settingsPath)
	fmt.Println("\nTo connect:")
	fmt.Println("  screenpop-agent run")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
