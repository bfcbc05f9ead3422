package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyChannel         = "update.channel"
	KeyLegacyChannel   = "channel" // Deprecated: use KeyChannel.
	KeyOwner           = "update.owner"
	KeyRepo            = "update.repo"
	KeyAPIURL          = "update.api-url"
	KeyTimeout         = "update.timeout"
	KeyToken           = "update.token"
	KeyPerPage         = "update.per-page"
	KeyAssetPrefix     = "update.asset-prefix"
	KeyAssetExtensions = "update.asset-extensions"

	KeyHistoryPath     = "history.path"
	KeyHistoryEnabled  = "history.enabled"
	KeyHistoryCacheTTL = "history.cache-ttl"

	KeyOutputFormat = "output.format"
	KeyOutputJSON   = "output.json"
)

const (
	// DefaultTimeout bounds one update check. Exported so callers can use the
	// same fallback when the configured value is unusable.
	DefaultTimeout = 10 * time.Second
	DefaultPerPage = 30
	DefaultChannel = "official"
	envPrefix      = "RELCHECK"
	dirName        = ".relcheck"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error

	// userConfigPathOverride is used by tests to override the user config path.
	userConfigPathOverride string
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetStringSlice fetches a list value. A comma separated string, as
// environment variables provide, is split.
func GetStringSlice(key string) []string {
	v, err := getViper()
	if err != nil {
		return nil
	}
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

// Dir returns the per-user relcheck directory (~/.relcheck).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	applyLegacyChannelConfig(v)

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: user and project config files are read on purpose
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, "config.yaml")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyChannel, DefaultChannel)
	v.SetDefault(KeyOwner, "")
	v.SetDefault(KeyRepo, "")
	v.SetDefault(KeyAPIURL, "https://api.github.com")
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyPerPage, DefaultPerPage)
	v.SetDefault(KeyAssetPrefix, "")
	v.SetDefault(KeyAssetExtensions, []string{})
	v.SetDefault(KeyHistoryPath, "")
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryCacheTTL, time.Duration(0))
	v.SetDefault(KeyOutputFormat, "rich")
	v.SetDefault(KeyOutputJSON, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
	userConfigPathOverride = ""
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "config.yaml")))
	return reset
}

// setUserConfigPathOverride sets the user config path for tests.
func setUserConfigPathOverride(path string) {
	userConfigPathOverride = path
}

// applyLegacyChannelConfig maps the old top-level "channel" key onto
// update.channel unless the new key was set explicitly.
func applyLegacyChannelConfig(v *viper.Viper) {
	if v == nil {
		return
	}
	if hasExplicitChannel(v) {
		return
	}
	if v.IsSet(KeyLegacyChannel) {
		if legacy := strings.TrimSpace(v.GetString(KeyLegacyChannel)); legacy != "" {
			v.Set(KeyChannel, legacy)
		}
	}
}

func hasExplicitChannel(v *viper.Viper) bool {
	if v.InConfig(KeyChannel) {
		return true
	}
	_, ok := os.LookupEnv(envKey(KeyChannel))
	return ok
}

func envKey(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(envPrefix) + "_" + strings.ToUpper(replacer.Replace(key))
}

// SaveChannel persists the update channel to the appropriate config file.
// If a project config (.relcheck/config.yaml) exists, it updates that file.
// Otherwise, it updates the user config (~/.relcheck/config.yaml).
// The user config directory is auto-created if needed, but project config
// directories are never auto-created.
func SaveChannel(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel must not be empty")
	}
	targetPath, err := findWritableConfigPath()
	if err != nil {
		return fmt.Errorf("find config path: %w", err)
	}

	// Fresh viper instance for this file only so defaults and env are not written.
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(targetPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFound(err) {
		// never overwrite a file we could not parse
		return fmt.Errorf("read config %s: %w", targetPath, err)
	}

	v.Set(KeyChannel, channel)

	dir := filepath.Dir(targetPath)
	//nolint:gosec // G301: user config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(targetPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Keep the live configuration in step when it is already loaded.
	configMu.Lock()
	if configInst != nil {
		configInst.Set(KeyChannel, channel)
	}
	configMu.Unlock()
	return nil
}

func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// findWritableConfigPath determines which config file to write to.
// Returns project config path if it exists, otherwise user config path.
func findWritableConfigPath() (string, error) {
	wd, err := os.Getwd()
	if err == nil {
		projectPath, err := findProjectConfig(wd)
		if err == nil && projectPath != "" {
			return projectPath, nil
		}
	}
	if userConfigPathOverride != "" {
		return userConfigPathOverride, nil
	}
	return defaultUserConfigPath()
}
