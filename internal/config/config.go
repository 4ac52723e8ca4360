package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "TASKLENS"
	defaultDataDir     = "data"
	defaultCacheFile   = "pages.csv"
	defaultLogLevel    = "info"
	defaultServeAddr   = "127.0.0.1:8765"
	defaultAPIBaseURL  = "https://api.notion.com"
	defaultBodyLines   = 3
	defaultFetchLimit  = 0
	defaultIndexDBFile = "tasklens.db"
)

// PropertyNames maps the logical task attributes onto the column names of the
// remote database. Users who renamed columns override these via config.
type PropertyNames struct {
	NID        string
	Status     string
	Started    string
	Completed  string
	Due        string
	Priority   string
	FilesMedia string
	ParentItem string
	SubItem    string
	Tags       string
	ParentTags string
}

// ReportOptions control what the composed report includes.
type ReportOptions struct {
	IncludeBodyContent   bool
	IncludeAttachments   bool
	IncludeUncategorized bool
	BodyContentMaxLines  int
	FilterTags           []string
	Author               string
}

// AppConfig captures runtime configuration for all tasklens commands.
type AppConfig struct {
	APIToken        string
	DatabaseID      string
	APIBaseURL      string
	DataDir         string
	CachePath       string
	JSONMirrorPath  string
	AttachmentDir   string
	AnalysisDir     string
	ReportsDir      string
	IndexDBPath     string
	FetchLimit      int
	FreshnessWindow time.Duration
	Properties      PropertyNames
	Report          ReportOptions
	ServeAddress    string
	LogLevel        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("api.base_url", defaultAPIBaseURL)
	configViper.SetDefault("data.dir", defaultDataDir)
	configViper.SetDefault("data.cache_file", defaultCacheFile)
	configViper.SetDefault("data.index_db_file", defaultIndexDBFile)
	configViper.SetDefault("sync.fetch_limit", defaultFetchLimit)
	configViper.SetDefault("sync.freshness_window", time.Duration(0))
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("serve.address", defaultServeAddr)

	configViper.SetDefault("property.nid", "NID")
	configViper.SetDefault("property.status", "Status")
	configViper.SetDefault("property.started", "Started")
	configViper.SetDefault("property.completed", "Completed")
	configViper.SetDefault("property.due", "Due")
	configViper.SetDefault("property.priority", "Priority")
	configViper.SetDefault("property.files_media", "Files & media")
	configViper.SetDefault("property.parent_item", "Parent item")
	configViper.SetDefault("property.sub_item", "Sub-item")
	configViper.SetDefault("property.tags", "Tags")
	configViper.SetDefault("property.parent_tags", "Parent Tags")

	configViper.SetDefault("report.include_body_content", false)
	configViper.SetDefault("report.include_attachments", false)
	configViper.SetDefault("report.include_uncategorized", false)
	configViper.SetDefault("report.body_content_max_lines", defaultBodyLines)
	configViper.SetDefault("report.filter_tags", []string{})
	configViper.SetDefault("report.author", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	dataDir := configViper.GetString("data.dir")
	cacheFile := configViper.GetString("data.cache_file")
	jsonMirror := strings.TrimSuffix(cacheFile, filepath.Ext(cacheFile)) + ".json"

	cfg := AppConfig{
		APIToken:        configViper.GetString("api.token"),
		DatabaseID:      configViper.GetString("api.database_id"),
		APIBaseURL:      strings.TrimRight(configViper.GetString("api.base_url"), "/"),
		DataDir:         dataDir,
		CachePath:       filepath.Join(dataDir, cacheFile),
		JSONMirrorPath:  filepath.Join(dataDir, jsonMirror),
		AttachmentDir:   filepath.Join(dataDir, "attachments"),
		AnalysisDir:     filepath.Join(dataDir, "analysis"),
		ReportsDir:      filepath.Join(dataDir, "reports"),
		IndexDBPath:     filepath.Join(dataDir, configViper.GetString("data.index_db_file")),
		FetchLimit:      configViper.GetInt("sync.fetch_limit"),
		FreshnessWindow: configViper.GetDuration("sync.freshness_window"),
		Properties: PropertyNames{
			NID:        configViper.GetString("property.nid"),
			Status:     configViper.GetString("property.status"),
			Started:    configViper.GetString("property.started"),
			Completed:  configViper.GetString("property.completed"),
			Due:        configViper.GetString("property.due"),
			Priority:   configViper.GetString("property.priority"),
			FilesMedia: configViper.GetString("property.files_media"),
			ParentItem: configViper.GetString("property.parent_item"),
			SubItem:    configViper.GetString("property.sub_item"),
			Tags:       configViper.GetString("property.tags"),
			ParentTags: configViper.GetString("property.parent_tags"),
		},
		Report: ReportOptions{
			IncludeBodyContent:   configViper.GetBool("report.include_body_content"),
			IncludeAttachments:   configViper.GetBool("report.include_attachments"),
			IncludeUncategorized: configViper.GetBool("report.include_uncategorized"),
			BodyContentMaxLines:  configViper.GetInt("report.body_content_max_lines"),
			FilterTags:           configViper.GetStringSlice("report.filter_tags"),
			Author:               configViper.GetString("report.author"),
		},
		ServeAddress: configViper.GetString("serve.address"),
		LogLevel:     configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return fmt.Errorf("api.token is required")
	}
	if strings.TrimSpace(c.DatabaseID) == "" {
		return fmt.Errorf("api.database_id is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.FetchLimit < 0 {
		return fmt.Errorf("sync.fetch_limit must not be negative")
	}
	if c.FreshnessWindow < 0 {
		return fmt.Errorf("sync.freshness_window must not be negative")
	}
	return nil
}
