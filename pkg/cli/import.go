package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/recolab/reco/pkg/data"
	"github.com/recolab/reco/pkg/net"
)

var (
	itemsFlag = &cli.StringSliceFlag{
		Name:  "items",
		Usage: "Path or URL to an NDJSON file with items (can be specified multiple times)",
	}

	interactionsFlag = &cli.StringSliceFlag{
		Name:  "interactions",
		Usage: "Path or URL to an NDJSON file with interactions (can be specified multiple times)",
	}

	manifestFlag = &cli.StringFlag{
		Name:  "manifest",
		Usage: "URL to a JSON manifest listing item and interaction sources",
	}

	importCmd = &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import items and user interactions",
		UsageText: `reco import --items catalog.ndjson --interactions events.ndjson
   reco import --interactions https://example.com/events.ndjson
   reco import --items a.ndjson --items b.ndjson
   reco import --manifest https://example.com/dataset.json`,
		Action: cmdImport,
		Flags: []cli.Flag{
			itemsFlag,
			interactionsFlag,
			manifestFlag,
		},
	}
)

// importManifest is a remote dataset descriptor: lists of NDJSON sources.
type importManifest struct {
	Items        []string `json:"items"`
	Interactions []string `json:"interactions"`
}

func fetchManifest(url string) (*importManifest, error) {
	var m importManifest
	if err := net.GetJSON(url, &m); err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %s: %w", url, err)
	}
	return &m, nil
}

type ImportResult struct {
	Items        int            `json:"items" yaml:"items"`
	Interactions int            `json:"interactions" yaml:"interactions"`
	Kinds        map[string]int `json:"kinds,omitempty" yaml:"kinds,omitempty"`
	Duration     string         `json:"duration" yaml:"duration"`
}

func cmdImport(c *cli.Context) error {
	start := time.Now()
	itemSrcs := c.StringSlice(itemsFlag.Name)
	intSrcs := c.StringSlice(interactionsFlag.Name)

	if u := c.String(manifestFlag.Name); u != "" {
		m, err := fetchManifest(u)
		if err != nil {
			return err
		}
		slog.Info("manifest fetched", "items", len(m.Items), "interactions", len(m.Interactions))
		itemSrcs = append(itemSrcs, m.Items...)
		intSrcs = append(intSrcs, m.Interactions...)
	}

	if len(itemSrcs) == 0 && len(intSrcs) == 0 {
		return cli.ShowSubcommandHelp(c)
	}

	cfg := getConfig(c)

	var (
		mu    sync.Mutex
		items []*data.Item
		ints  []*data.Interaction
	)

	// fetch and parse in parallel, save below in one pass
	var g errgroup.Group
	for _, src := range itemSrcs {
		g.Go(func() error {
			slog.Info("loading items", "source", src)
			list, err := loadItems(src)
			if err != nil {
				return fmt.Errorf("failed to load items from %s: %w", src, err)
			}
			mu.Lock()
			items = append(items, list...)
			mu.Unlock()
			return nil
		})
	}
	for _, src := range intSrcs {
		g.Go(func() error {
			slog.Info("loading interactions", "source", src)
			list, err := loadInteractions(src)
			if err != nil {
				return fmt.Errorf("failed to load interactions from %s: %w", src, err)
			}
			mu.Lock()
			ints = append(ints, list...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := data.SaveItems(cfg.DB, items); err != nil {
		return fmt.Errorf("failed to save items: %w", err)
	}

	if err := data.SaveInteractions(cfg.DB, ints); err != nil {
		return fmt.Errorf("failed to save interactions: %w", err)
	}

	res := &ImportResult{
		Items:        len(items),
		Interactions: len(ints),
		Kinds:        make(map[string]int),
		Duration:     time.Since(start).String(),
	}
	for _, n := range ints {
		res.Kinds[n.Kind]++
	}

	slog.Info("import done", "items", res.Items, "interactions", res.Interactions)

	if err := getEncoder().Encode(res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return nil
}

func loadItems(src string) ([]*data.Item, error) {
	path, cleanup, err := localPath(src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	list := make([]*data.Item, 0)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		b := strings.TrimSpace(scanner.Text())
		if b == "" {
			continue
		}
		it := &data.Item{}
		if err := json.Unmarshal([]byte(b), it); err != nil {
			return nil, fmt.Errorf("invalid item on line %d: %w", line, err)
		}
		if it.ID == "" {
			return nil, fmt.Errorf("item on line %d has no id", line)
		}
		list = append(list, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	return list, nil
}

func loadInteractions(src string) ([]*data.Interaction, error) {
	path, cleanup, err := localPath(src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	list := make([]*data.Interaction, 0)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		b := strings.TrimSpace(scanner.Text())
		if b == "" {
			continue
		}
		n := &data.Interaction{}
		if err := json.Unmarshal([]byte(b), n); err != nil {
			return nil, fmt.Errorf("invalid interaction on line %d: %w", line, err)
		}
		if n.User == "" || n.Item == "" {
			return nil, fmt.Errorf("interaction on line %d missing user or item", line)
		}
		if n.Kind == "" {
			n.Kind = data.InteractionView
		}
		if !data.Contains(data.InteractionKinds, n.Kind) {
			slog.Warn("skipping interaction with unknown kind", "line", line, "kind", n.Kind)
			continue
		}
		list = append(list, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	return list, nil
}

// localPath resolves a source to a readable local file, downloading it
// first when the source is a URL. The caller runs cleanup when done.
func localPath(src string) (string, func(), error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "reco-import-*.ndjson")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp.Close()

	if err := net.Download(src, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to download %s: %w", src, err)
	}

	name := tmp.Name()
	return name, func() { os.Remove(filepath.Clean(name)) }, nil
}
