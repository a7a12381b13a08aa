package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GUARD_"

// ConfigFileEnv names an optional YAML, JSON or TOML file applied between the
// defaults and the environment.
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log         LoggingConfig     `koanf:"log"`
	Store       StoreConfig       `koanf:"store"`
	Phone       PhoneConfig       `koanf:"phone"`
	Lookup      LookupConfig      `koanf:"lookup"`
	AddressBook AddressBookConfig `koanf:"addressbook"`
	Transport   TransportConfig   `koanf:"transport"`
	Metrics     MetricsConfig     `koanf:"metrics"`

	// SMS and Calls carry independent policy switches per channel.
	SMS   PolicyConfig `koanf:"sms"`
	Calls PolicyConfig `koanf:"calls"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type StoreConfig struct {
	ContactsDB  string  `koanf:"contacts_db" validate:"required"`
	JournalDB   string  `koanf:"journal_db" validate:"required"`
	CacheSize   int     `koanf:"cache_size" validate:"gte=0"` // 0 disables the lookup cache
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

type PhoneConfig struct {
	// PrivatePattern matches raw origins that denote a withheld caller.
	PrivatePattern string `koanf:"private_pattern" validate:"required,regexp"`
}

type LookupConfig struct {
	// Timeout bounds each address book and message history lookup.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type AddressBookConfig struct {
	// Path of a plain number list; empty means no address book access.
	Path string `koanf:"path"`
}

type TransportConfig struct {
	Workers int `koanf:"workers" validate:"gte=1,lte=256"`
}

type MetricsConfig struct {
	// Addr is the Prometheus listen address; empty disables the endpoint.
	Addr string `koanf:"addr" validate:"omitempty,listen_addr"`
}

// PolicyConfig is the switch set of one channel.
type PolicyConfig struct {
	BlockAll               bool `koanf:"block_all"`
	BlockPrivate           bool `koanf:"block_private"`
	BlockFromBlackList     bool `koanf:"block_from_black_list"`
	BlockNotFromContacts   bool `koanf:"block_not_from_contacts"`
	BlockNotFromSMSHistory bool `koanf:"block_not_from_sms_history"`
	WriteJournal           bool `koanf:"write_journal"`
	NotifyBlocked          bool `koanf:"notify_blocked"`
}

// Policy converts the switches into a domain.Policy.
func (p PolicyConfig) Policy() domain.Policy {
	return domain.Policy{
		domain.SwitchBlockAll:                  p.BlockAll,
		domain.SwitchBlockPrivate:              p.BlockPrivate,
		domain.SwitchBlockFromBlackList:        p.BlockFromBlackList,
		domain.SwitchBlockNotFromContacts:      p.BlockNotFromContacts,
		domain.SwitchBlockNotFromSMSHistory:    p.BlockNotFromSMSHistory,
		domain.SwitchWriteJournal:              p.WriteJournal,
		domain.SwitchBlockedStatusNotification: p.NotifyBlocked,
	}
}

// Policy returns the switches of the given channel.
func (c *AppConfig) Policy(kind domain.EventKind) domain.PolicyConfiguration {
	if kind == domain.EventCall {
		return c.Calls.Policy()
	}
	return c.SMS.Policy()
}

// defaultPolicy blocks black-listed numbers, journals and notifies; every
// other rule starts disabled.
var defaultPolicy = PolicyConfig{
	BlockFromBlackList: true,
	WriteJournal:       true,
	NotifyBlocked:      true,
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Store: StoreConfig{
		ContactsDB:  "/var/lib/callguard/contacts.db",
		JournalDB:   "/var/lib/callguard/journal.db",
		CacheSize:   1000,
		BloomFPRate: 0.01,
	},
	Phone:     PhoneConfig{PrivatePattern: phone.DefaultPrivatePattern},
	Lookup:    LookupConfig{Timeout: 200 * time.Millisecond},
	Transport: TransportConfig{Workers: 4},
	SMS:       defaultPolicy,
	Calls:     defaultPolicy,
}

// sections lists the config sections; the first "_" after a section name in an
// environment key becomes the "." separator (GUARD_SMS_BLOCK_ALL -> sms.block_all).
var sections = []string{"log", "store", "phone", "lookup", "addressbook", "transport", "metrics", "sms", "calls"}

// envKey maps an environment variable name to its koanf key.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// validRegexp reports whether the field compiles as a regular expression.
func validRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// validListenAddr accepts "host:port" and ":port" with a port in 1..65535.
func validListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads GUARD_-prefixed environment variables and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// fileParser picks a koanf parser by file extension.
func fileParser(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file type: %s", path)
	}
}

// fileLoader loads the file named by GUARD_CONFIG_FILE, if set.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if path == "" {
		return nil
	}
	parser, err := fileParser(path)
	if err != nil {
		return err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "regexp" and "listen_addr" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("regexp", validRegexp); err != nil {
		return err
	}
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// Precedence is defaults, then the optional config file, then the environment.
// It runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}
