package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// serverConfig is the merged configuration of the server. Flags provide the
// defaults, the TOML file overrides them, and NETDICOM_* environment
// variables (from the process or from a .env file) override both.
type serverConfig struct {
	AETitle string
	Listen  string
	Admin   string // admin HTTP address; empty disables it
	Dir     string
	Output  string

	RemoteAEs     []string // "AE=host:port"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	MaxPDUSize   int
	ARTIMTimeout time.Duration
	DIMSETimeout time.Duration
	Shutdown     time.Duration
}

type fileConfig struct {
	AETitle       string   `toml:"ae_title"`
	Listen        string   `toml:"listen"`
	Admin         string   `toml:"admin"`
	Dir           string   `toml:"dir"`
	Output        string   `toml:"output"`
	RemoteAEs     []string `toml:"remote_aes"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	RedisKey      string   `toml:"redis_key"`
	MaxPDUSize    int      `toml:"max_pdu_size"`
	ARTIMTimeout  string   `toml:"artim_timeout"`
	DIMSETimeout  string   `toml:"dimse_timeout"`
	Shutdown      string   `toml:"shutdown_timeout"`
}

func loadConfigFile(path string, cfg *serverConfig) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}
	if meta.IsDefined("ae_title") {
		cfg.AETitle = strings.TrimSpace(raw.AETitle)
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("admin") {
		cfg.Admin = strings.TrimSpace(raw.Admin)
	}
	if meta.IsDefined("dir") {
		cfg.Dir = strings.TrimSpace(raw.Dir)
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.TrimSpace(raw.Output)
	}
	if meta.IsDefined("remote_aes") {
		cfg.RemoteAEs = raw.RemoteAEs
	}
	if meta.IsDefined("redis_addr") {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("redis_password") {
		cfg.RedisPassword = raw.RedisPassword
	}
	if meta.IsDefined("redis_db") {
		cfg.RedisDB = raw.RedisDB
	}
	if meta.IsDefined("redis_key") {
		cfg.RedisKey = strings.TrimSpace(raw.RedisKey)
	}
	if meta.IsDefined("max_pdu_size") {
		cfg.MaxPDUSize = raw.MaxPDUSize
	}
	for _, d := range []struct {
		key string
		src string
		dst *time.Duration
	}{
		{"artim_timeout", raw.ARTIMTimeout, &cfg.ARTIMTimeout},
		{"dimse_timeout", raw.DIMSETimeout, &cfg.DIMSETimeout},
		{"shutdown_timeout", raw.Shutdown, &cfg.Shutdown},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.src))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// readEnv returns the NETDICOM_* variables of the process, plus those of
// envFile that the process does not set. A missing envFile is not an error.
func readEnv(envFile string) (map[string]string, error) {
	env := map[string]string{}
	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
		for k, v := range fileEnv {
			if strings.HasPrefix(k, "NETDICOM_") {
				env[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "NETDICOM_") {
			env[k] = v
		}
	}
	return env, nil
}

func applyEnv(cfg *serverConfig, env map[string]string) error {
	for key, dst := range map[string]*string{
		"NETDICOM_AE_TITLE":       &cfg.AETitle,
		"NETDICOM_LISTEN":         &cfg.Listen,
		"NETDICOM_ADMIN":          &cfg.Admin,
		"NETDICOM_DIR":            &cfg.Dir,
		"NETDICOM_OUTPUT":         &cfg.Output,
		"NETDICOM_REDIS_ADDR":     &cfg.RedisAddr,
		"NETDICOM_REDIS_PASSWORD": &cfg.RedisPassword,
		"NETDICOM_REDIS_KEY":      &cfg.RedisKey,
	} {
		if v, ok := env[key]; ok {
			*dst = v
		}
	}
	if v, ok := env["NETDICOM_REMOTE_AES"]; ok {
		cfg.RemoteAEs = splitList(v)
	}
	for key, dst := range map[string]*int{
		"NETDICOM_REDIS_DB":     &cfg.RedisDB,
		"NETDICOM_MAX_PDU_SIZE": &cfg.MaxPDUSize,
	} {
		if v, ok := env[key]; ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = n
		}
	}
	for key, dst := range map[string]*time.Duration{
		"NETDICOM_ARTIM_TIMEOUT":    &cfg.ARTIMTimeout,
		"NETDICOM_DIMSE_TIMEOUT":    &cfg.DIMSETimeout,
		"NETDICOM_SHUTDOWN_TIMEOUT": &cfg.Shutdown,
	} {
		if v, ok := env[key]; ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// canonicalizeHostPort turns a bare port number into ":port".
func canonicalizeHostPort(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
