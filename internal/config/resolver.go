package config

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/spec-kit/presence-desk/pkg/util/errorutil"
)

// defaultAppConfig is the built-in layer consulted when the injected
// configuration misses a path. Values here are placeholders for a local
// deployment and are expected to be overridden.
const defaultAppConfig = `
apiBaseUrl: "https://backlog.example.com/api/v2"
projectIds:
  staff: ""
  billing: ""
  hospital: ""
statusIds: {}
`

// Status keys understood under statusIds.
var statusKeys = []string{"present", "absent", "processing", "completed", "returned"}

// Resolver answers dotted-path lookups against the injected application
// configuration, falling back to the built-in defaults.
type Resolver struct {
	injected *viper.Viper
	defaults *viper.Viper
}

// TrackerSettings is the resolved issue-tracker configuration.
type TrackerSettings struct {
	BaseURL           string
	APIKey            string
	AdminAPIKey       string
	StaffProjectID    string
	BillingProjectID  string
	HospitalProjectID string
	StatusIDs         map[string]int64
}

// NewResolver wraps an already populated viper instance. A nil instance means
// nothing was injected.
func NewResolver(injected *viper.Viper) *Resolver {
	defaults := viper.New()
	defaults.SetConfigType("yaml")
	_ = defaults.ReadConfig(bytes.NewBufferString(defaultAppConfig))
	return &Resolver{injected: injected, defaults: defaults}
}

// NewResolverFromMap builds a resolver from an in-memory injected config.
func NewResolverFromMap(values map[string]any) *Resolver {
	v := viper.New()
	if values != nil {
		_ = v.MergeConfigMap(values)
	}
	return NewResolver(v)
}

// LoadResolver reads the injected config file, if any, and overlays
// PRESENCE_-prefixed environment variables (PRESENCE_PROJECTIDS_STAFF, ...).
func LoadResolver(path string) (*Resolver, error) {
	v := viper.New()
	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return NewResolver(v), nil
}

// Get traverses path in the injected config, then in the defaults, and
// returns fallback when neither has it. It never panics.
func (r *Resolver) Get(path string, fallback any) (value any) {
	defer func() {
		if rec := recover(); rec != nil {
			value = fallback
		}
	}()
	if r == nil || path == "" {
		return fallback
	}
	if r.injected != nil && r.injected.IsSet(path) {
		if v := r.injected.Get(path); v != nil {
			return v
		}
	}
	if r.defaults.IsSet(path) {
		if v := r.defaults.Get(path); v != nil {
			return v
		}
	}
	return fallback
}

// GetString resolves path as a string.
func (r *Resolver) GetString(path, fallback string) string {
	switch v := r.Get(path, fallback).(type) {
	case string:
		return v
	case nil:
		return fallback
	default:
		if n, ok := toInt64(v); ok {
			return strconv.FormatInt(n, 10)
		}
		return fallback
	}
}

// GetInt64 resolves path as an integer. Non-numeric values yield fallback.
func (r *Resolver) GetInt64(path string, fallback int64) int64 {
	if n, ok := toInt64(r.Get(path, fallback)); ok {
		return n
	}
	return fallback
}

// TrackerSettings assembles the tracker configuration. Status ids absent
// from the injected config are left out of StatusIDs.
func (r *Resolver) TrackerSettings() TrackerSettings {
	settings := TrackerSettings{
		BaseURL:           strings.TrimRight(r.GetString("apiBaseUrl", ""), "/"),
		APIKey:            r.GetString("apiKey", ""),
		AdminAPIKey:       r.GetString("adminApiKey", ""),
		StaffProjectID:    r.GetString("projectIds.staff", ""),
		BillingProjectID:  r.GetString("projectIds.billing", ""),
		HospitalProjectID: r.GetString("projectIds.hospital", ""),
		StatusIDs:         map[string]int64{},
	}
	for _, key := range statusKeys {
		if id := r.GetInt64("statusIds."+key, 0); id > 0 {
			settings.StatusIDs[key] = id
		}
	}
	// The older config files spell the returned status "return".
	if _, ok := settings.StatusIDs["returned"]; !ok {
		if id := r.GetInt64("statusIds.return", 0); id > 0 {
			settings.StatusIDs["returned"] = id
		}
	}
	return settings
}

// Validate reports a CONFIGURATION_MISSING error naming every absent field.
func (s TrackerSettings) Validate() error {
	var missing []string
	if s.BaseURL == "" {
		missing = append(missing, "apiBaseUrl")
	}
	if s.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if s.AdminAPIKey == "" {
		missing = append(missing, "adminApiKey")
	}
	if s.StaffProjectID == "" {
		missing = append(missing, "projectIds.staff")
	}
	if s.BillingProjectID == "" {
		missing = append(missing, "projectIds.billing")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationMissing(missing)
	}
	return nil
}

// ProjectIDs lists the configured projects used for identity lookup.
func (s TrackerSettings) ProjectIDs() []string {
	var ids []string
	for _, id := range []string{s.StaffProjectID, s.BillingProjectID, s.HospitalProjectID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		parsed, err := n.Int64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
