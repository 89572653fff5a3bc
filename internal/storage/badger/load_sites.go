package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// SiteDefinitionFile is the TOML shape of a site definition dropped into
// the definitions directory. Threshold fields are pointers so absent keys
// fall back to the global defaults.
type SiteDefinitionFile struct {
	URL      string `toml:"url"`
	Name     string `toml:"name"`
	Schedule string `toml:"schedule"`
	Active   *bool  `toml:"active"`
	MaxDepth int    `toml:"max_depth"`
	Priority int    `toml:"priority"`

	SimilarityThreshold     *float64 `toml:"similarity_threshold"`
	StructuralThreshold     *float64 `toml:"structural_threshold"`
	CriticalChangeThreshold *float64 `toml:"critical_change_threshold"`

	KeepScans int      `toml:"keep_scans"`
	Context   []string `toml:"context"`
}

// ToSite converts the file into a site model. New sites get a generated
// ID; loading an existing URL keeps its ID so history is preserved.
func (f *SiteDefinitionFile) ToSite() (*models.Site, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if f.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if f.Schedule == "" {
		return nil, fmt.Errorf("schedule is required")
	}
	if _, err := common.ParseSchedule(f.Schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", f.Schedule, err)
	}

	active := true
	if f.Active != nil {
		active = *f.Active
	}

	return &models.Site{
		ID:                      common.NewSiteID(),
		URL:                     f.URL,
		Name:                    f.Name,
		Schedule:                f.Schedule,
		Active:                  active,
		MaxDepth:                f.MaxDepth,
		Priority:                f.Priority,
		SimilarityThreshold:     f.SimilarityThreshold,
		StructuralThreshold:     f.StructuralThreshold,
		CriticalChangeThreshold: f.CriticalChangeThreshold,
		KeepScans:               f.KeepScans,
		Context:                 f.Context,
	}, nil
}

// LoadSiteDefinitionsFromFiles loads site definitions from TOML files in
// the given directory. Files that fail to parse or validate are skipped
// with a warning; a missing directory is not an error.
func LoadSiteDefinitionsFromFiles(ctx context.Context, siteStorage interfaces.SiteStorage, definitionsDir string, logger arbor.ILogger) error {
	if _, err := os.Stat(definitionsDir); os.IsNotExist(err) {
		logger.Debug().Str("dir", definitionsDir).Msg("Site definitions directory does not exist, skipping")
		return nil
	}

	logger.Info().Str("dir", definitionsDir).Msg("Loading site definitions from files")

	entries, err := os.ReadDir(definitionsDir)
	if err != nil {
		return fmt.Errorf("failed to read site definitions directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		filePath := filepath.Join(definitionsDir, entry.Name())
		tomlBytes, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read site definition file")
			continue
		}

		var siteFile SiteDefinitionFile
		if err := toml.Unmarshal(tomlBytes, &siteFile); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse site definition TOML")
			continue
		}

		site, err := siteFile.ToSite()
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Invalid site definition")
			continue
		}

		// Re-loading a known URL updates it in place, keeping the site ID
		// so snapshots and alerts stay attached.
		existing, err := siteStorage.GetSiteByURL(ctx, site.URL)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to check for existing site")
			continue
		}
		if existing != nil {
			site.ID = existing.ID
			site.CreatedAt = existing.CreatedAt
		}

		if err := siteStorage.SaveSite(ctx, site); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Str("url", site.URL).Msg("Failed to save site definition")
			continue
		}

		logger.Info().
			Str("file", entry.Name()).
			Str("site_id", site.ID).
			Str("url", site.URL).
			Str("schedule", site.Schedule).
			Msg("Site definition loaded from file")
		loadedCount++
	}

	if loadedCount > 0 {
		logger.Info().Int("count", loadedCount).Msg("Site definitions loaded from files")
	} else {
		logger.Debug().Msg("No site definitions loaded from files")
	}
	return nil
}
