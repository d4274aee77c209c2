package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/halvect/remod/pkg/config"
	"github.com/halvect/remod/pkg/pak"
	"github.com/halvect/remod/pkg/resolve"
	"github.com/halvect/remod/pkg/resource"
	"github.com/halvect/remod/pkg/resource/format"
	"github.com/halvect/remod/pkg/schema"
	"github.com/halvect/remod/pkg/version"
	"github.com/halvect/remod/pkg/workspace"
)

// session bundles everything a command needs after setup.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	ws     *workspace.Workspace
	index  *resolve.Index
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(lvl).With().Timestamp().Logger()

	var archives []*pak.Archive
	var paths []string
	for _, p := range cfg.Game.Archives {
		a, err := pak.Open(p)
		if err != nil {
			logger.Warn().Err(err).Str("archive", p).Msg("archive not mounted")
			continue
		}
		archives = append(archives, a)
		paths = append(paths, a.Paths()...)
	}

	gameVersion := "unknown"
	if cfg.Game.Executable != "" {
		gameVersion, err = version.Hash(cfg.Game.Executable, cfg.Game.Archives)
		if err != nil {
			logger.Warn().Err(err).Msg("game version hash unavailable")
			gameVersion = "unknown"
		}
	}

	merged, err := schema.NewMerger(newCatalogProvider(cfg.Game.Root), logger).Load(cfg.Definitions)
	if err != nil {
		return nil, err
	}

	codecs := resource.NewRegistry()
	codecs.Register("json", format.NewDocumentCodec(logger))

	ws, err := workspace.New(workspace.Options{
		GameRoot:    cfg.Game.Root,
		Archives:    archives,
		Schema:      merged,
		Codecs:      codecs,
		BundlesDir:  cfg.BundlesDir,
		GameVersion: gameVersion,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		ws:     ws,
		index:  resolve.NewIndex(paths),
	}, nil
}

// catalogProvider backs the schema merger with an optional class catalog
// dumped from the game (catalog.json under the game root). Without one,
// every class name is accepted and no enums are known.
type catalogProvider struct {
	classes map[string]*schema.ClassDesc
	enums   map[string]bool
}

func newCatalogProvider(gameRoot string) *catalogProvider {
	p := &catalogProvider{}

	data, err := os.ReadFile(filepath.Join(gameRoot, "catalog.json"))
	if err != nil {
		return p
	}
	var catalog struct {
		Classes map[string]map[string]string `json:"classes"`
		Enums   []string                     `json:"enums"`
	}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return p
	}

	p.classes = make(map[string]*schema.ClassDesc, len(catalog.Classes))
	for name, fields := range catalog.Classes {
		p.classes[name] = &schema.ClassDesc{Name: name, Fields: fields}
	}
	p.enums = make(map[string]bool, len(catalog.Enums))
	for _, e := range catalog.Enums {
		p.enums[e] = true
	}
	return p
}

func (p *catalogProvider) GetClass(name string) *schema.ClassDesc {
	if p.classes == nil {
		return &schema.ClassDesc{Name: name}
	}
	return p.classes[name]
}

func (p *catalogProvider) HasEnum(name string) bool {
	if p.enums == nil {
		return false
	}
	return p.enums[name]
}
