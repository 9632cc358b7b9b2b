package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/recolab/reco/pkg/data"
)

const (
	queryResultLimitDefault = 500
)

var (
	queryLimitFlag = &cli.IntFlag{
		Name:     "limit",
		Usage:    "Limits number of result returned",
		Value:    queryResultLimitDefault,
		Required: false,
	}

	itemLikeQueryFlag = &cli.StringFlag{
		Name:     "like",
		Usage:    "Fuzzy search items by id, title, or category",
		Required: true,
	}

	queryUserFlag = &cli.StringFlag{
		Name:     "user",
		Usage:    "User ID",
		Required: true,
	}

	queryCmd = &cli.Command{
		Name:            "query",
		Aliases:         []string{"q"},
		HideHelpCommand: true,
		Usage:           "List or search the imported data and saved runs",
		Subcommands: []*cli.Command{
			{
				Name:    "items",
				Aliases: []string{"i"},
				Usage:   "Search items",
				Action:  cmdQueryItems,
				Flags: []cli.Flag{
					itemLikeQueryFlag,
					queryLimitFlag,
				},
			},
			{
				Name:    "interactions",
				Aliases: []string{"n"},
				Usage:   "List a user's most recent interactions",
				Action:  cmdQueryInteractions,
				Flags: []cli.Flag{
					queryUserFlag,
					queryLimitFlag,
				},
			},
			{
				Name:    "recommendations",
				Aliases: []string{"r"},
				Usage:   "List a user's most recently saved recommendations",
				Action:  cmdQueryRecommendations,
				Flags: []cli.Flag{
					queryUserFlag,
					queryLimitFlag,
				},
			},
		},
	}
)

func cmdQueryItems(c *cli.Context) error {
	val := c.String(itemLikeQueryFlag.Name)
	if val == "" {
		return cli.ShowSubcommandHelp(c)
	}

	cfg := getConfig(c)

	list, err := data.SearchItems(cfg.DB, val, c.Int(queryLimitFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to search items: %w", err)
	}

	if err := getEncoder().Encode(list); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return nil
}

func cmdQueryInteractions(c *cli.Context) error {
	user := c.String(queryUserFlag.Name)
	if user == "" {
		return cli.ShowSubcommandHelp(c)
	}

	cfg := getConfig(c)

	list, err := data.GetUserInteractions(cfg.DB, user, c.Int(queryLimitFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to get interactions for %s: %w", user, err)
	}

	if err := getEncoder().Encode(list); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return nil
}

func cmdQueryRecommendations(c *cli.Context) error {
	user := c.String(queryUserFlag.Name)
	if user == "" {
		return cli.ShowSubcommandHelp(c)
	}

	cfg := getConfig(c)

	list, err := data.GetRecommendations(cfg.DB, user, c.Int(queryLimitFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to get recommendations for %s: %w", user, err)
	}

	if err := getEncoder().Encode(list); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return nil
}
