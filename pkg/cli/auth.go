package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"
)

const (
	keyFileName    = "api_key"
	keyFileMode    = 0600
	keyringService = "reco"
	keyringUser    = "api_key"
)

var (
	apiKeyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "API key the local server will require as a bearer token",
	}

	clearKeyFlag = &cli.BoolFlag{
		Name:  "clear",
		Usage: "Remove the stored API key (server becomes open again)",
	}

	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Manage the API key used by the local server",
		Action:          cmdAuth,
		Flags: []cli.Flag{
			apiKeyFlag,
			clearKeyFlag,
		},
	}
)

func cmdAuth(c *cli.Context) error {
	if c.Bool(clearKeyFlag.Name) {
		clearAPIKey()
		fmt.Println("API key removed")
		return nil
	}

	key := strings.TrimSpace(c.String(apiKeyFlag.Name))
	if key == "" {
		return cli.ShowSubcommandHelp(c)
	}

	if err := saveAPIKey(key); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	fmt.Println("API key saved")
	return nil
}

func saveAPIKey(key string) error {
	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveAPIKeyFile(key)
	}

	// Clean up file fallback if it exists
	os.Remove(path.Join(getHomeDir(), keyFileName))

	return nil
}

func getAPIKey() string {
	// Try keychain first
	key, err := keyring.Get(keyringService, keyringUser)
	if err == nil && key != "" {
		return key
	}

	// Fall back to file
	b, err := os.ReadFile(path.Join(getHomeDir(), keyFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func clearAPIKey() {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		slog.Debug("no key in keychain", "error", err)
	}
	if err := os.Remove(path.Join(getHomeDir(), keyFileName)); err != nil && !os.IsNotExist(err) {
		slog.Debug("no key file", "error", err)
	}
}

func saveAPIKeyFile(key string) error {
	p := path.Join(getHomeDir(), keyFileName)
	if err := os.WriteFile(p, []byte(key), keyFileMode); err != nil {
		return fmt.Errorf("writing key file %s: %w", p, err)
	}
	return nil
}
