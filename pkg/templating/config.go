package templating

// Config holds all configuration options for the rendering engine.
type Config struct {
	// SiteTemplatesPath is the template root for front-end site and console requests.
	SiteTemplatesPath string `mapstructure:"site_templates_path" yaml:"site_templates_path" json:"site_templates_path"`

	// CPTemplatesPath is the template root for control panel requests.
	CPTemplatesPath string `mapstructure:"cp_templates_path" yaml:"cp_templates_path" json:"cp_templates_path"`

	// DefaultTemplateExtensions are tried, in order, after the literal template name
	// on non-CP requests. CP requests always use html and twig.
	DefaultTemplateExtensions []string `mapstructure:"default_template_extensions" yaml:"default_template_extensions" json:"default_template_extensions"`

	// IndexTemplateFilenames are the directory index names tried after the extensions
	// on non-CP requests. CP requests always use index.
	IndexTemplateFilenames []string `mapstructure:"index_template_filenames" yaml:"index_template_filenames" json:"index_template_filenames"`

	// StrictVariables makes a lookup of a missing map key fail the render.
	StrictVariables bool `mapstructure:"strict_variables" yaml:"strict_variables" json:"strict_variables"`

	// DevMode turns on strict variables and allows the template watcher to run.
	DevMode bool `mapstructure:"dev_mode" yaml:"dev_mode" json:"dev_mode"`

	// CacheVersion is folded into every locator cache key. Changing it on deploy
	// makes previously resolved template paths unreachable.
	CacheVersion string `mapstructure:"cache_version" yaml:"cache_version" json:"cache_version"`

	// EnableCSRFProtection controls whether csrfInput renders a hidden input.
	EnableCSRFProtection bool `mapstructure:"enable_csrf_protection" yaml:"enable_csrf_protection" json:"enable_csrf_protection"`

	// CSRFTokenName is the form field name of the CSRF token.
	CSRFTokenName string `mapstructure:"csrf_token_name" yaml:"csrf_token_name" json:"csrf_token_name"`

	// MarkdownUnsafe lets the markdown filter pass raw HTML through.
	MarkdownUnsafe bool `mapstructure:"markdown_unsafe" yaml:"markdown_unsafe" json:"markdown_unsafe"`
}

// DefaultConfig returns a Config with the values a fresh install starts with.
func DefaultConfig() *Config {
	return &Config{
		SiteTemplatesPath:         "./data/templates",
		CPTemplatesPath:           "./data/cp/templates",
		DefaultTemplateExtensions: []string{"html", "twig"},
		IndexTemplateFilenames:    []string{"index"},
		StrictVariables:           false,
		DevMode:                   false,
		CacheVersion:              "",
		EnableCSRFProtection:      true,
		CSRFTokenName:             "NEPENTHES_CSRF_TOKEN",
		MarkdownUnsafe:            false,
	}
}

// cpTemplateExtensions and cpIndexFilenames are fixed for control panel requests.
var (
	cpTemplateExtensions = []string{"html", "twig"}
	cpIndexFilenames     = []string{"index"}
)
