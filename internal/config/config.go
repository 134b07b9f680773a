// Package config loads listsync settings from a YAML file.
//
// Every field has a default, so a missing file is not an error. Unknown
// keys are rejected so a typo does not silently fall back to a default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/remote"
	"github.com/roach88/listsync/internal/session"
)

// Config is the full listsync configuration.
type Config struct {
	// Server is the base URL of the remote store.
	Server string `yaml:"server" validate:"required,url"`
	// DB is the SQLite file holding the persisted session.
	DB string `yaml:"db" validate:"required"`
	// SessionKey is the durable key the session is stored under.
	SessionKey string `yaml:"session_key" validate:"required"`
	// Kinds optionally points at a CUE file replacing the built-in kinds.
	Kinds   string        `yaml:"kinds"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	Notify    NotifyConfig    `yaml:"notify"`
	Devserver DevserverConfig `yaml:"devserver"`
}

// NotifyConfig configures the notification center.
type NotifyConfig struct {
	Duration time.Duration `yaml:"duration" validate:"gt=0"`
}

// DevserverConfig configures `listsync serve`.
type DevserverConfig struct {
	Addr     string        `yaml:"addr" validate:"required,listen_addr"`
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl" validate:"gte=0"`
	Users    []User        `yaml:"users" validate:"dive"`
	// Seed maps a kind name to its initial records.
	Seed map[string][]map[string]any `yaml:"seed"`
}

// User is a seeded devserver account.
type User struct {
	Username string `yaml:"username" validate:"required"`
	Name     string `yaml:"name"`
	Password string `yaml:"password" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:     "http://localhost:3001",
		DB:         "listsync.db",
		SessionKey: session.DefaultKey,
		Timeout:    remote.DefaultTimeout,
		Notify:     NotifyConfig{Duration: notify.DefaultDuration},
		Devserver: DevserverConfig{
			Addr:     "localhost:3001",
			TokenTTL: time.Hour,
			Users: []User{
				{Username: "root", Name: "Superuser", Password: "salainen"},
			},
			Seed: map[string][]map[string]any{
				"contacts": {
					{"name": "Arto Hellas", "number": "040-123456"},
					{"name": "Ada Lovelace", "number": "39-44-5323523"},
					{"name": "Dan Abramov", "number": "12-43-234345"},
					{"name": "Mary Poppendieck", "number": "39-23-6423122"},
				},
			},
		},
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode strictly decodes YAML into cfg, keeping values for keys the
// document omits, then validates.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("listen_addr", isListenAddr); err != nil {
		panic(err)
	}
	return v
}

// isListenAddr accepts host:port with a port in 0..65535. Port 0 asks the
// kernel for a free port; the host may be empty to listen on all interfaces.
func isListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	_, err = strconv.ParseUint(port, 10, 16)
	return err == nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fieldPath(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// SeedFields converts the devserver seed into record fields.
func (d DevserverConfig) SeedFields() (map[string][]record.Fields, error) {
	out := make(map[string][]record.Fields, len(d.Seed))
	for kind, rows := range d.Seed {
		list := make([]record.Fields, 0, len(rows))
		for i, row := range rows {
			fields := make(record.Fields, len(row))
			for name, raw := range row {
				v, err := record.FromAny(raw)
				if err != nil {
					return nil, fmt.Errorf("seed %s[%d].%s: %w", kind, i, name, err)
				}
				fields[name] = v
			}
			list = append(list, fields)
		}
		out[kind] = list
	}
	return out, nil
}
