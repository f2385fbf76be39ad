package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeFile(t, "server.toml", `
ae_title = " PACS1 "
listen = "11112"
remote_aes = ["STORE1=10.0.0.1:104", "STORE2=10.0.0.2:104"]
max_pdu_size = 65536
dimse_timeout = "30s"
`)
	cfg := serverConfig{AETitle: "bogusae", Dir: "/data", ARTIMTimeout: 5 * time.Second}
	if err := loadConfigFile(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.AETitle != "PACS1" {
		t.Fatalf("unexpected ae title: %q", cfg.AETitle)
	}
	if cfg.Listen != "11112" || canonicalizeHostPort(cfg.Listen) != ":11112" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if len(cfg.RemoteAEs) != 2 || cfg.RemoteAEs[1] != "STORE2=10.0.0.2:104" {
		t.Fatalf("unexpected remote aes: %+v", cfg.RemoteAEs)
	}
	if cfg.MaxPDUSize != 65536 {
		t.Fatalf("unexpected max pdu size: %d", cfg.MaxPDUSize)
	}
	if cfg.DIMSETimeout != 30*time.Second {
		t.Fatalf("unexpected dimse timeout: %v", cfg.DIMSETimeout)
	}
	// Keys absent from the file keep their previous values.
	if cfg.Dir != "/data" || cfg.ARTIMTimeout != 5*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	for _, content := range []string{
		`artim_timeout = "soon"`,
		`no_such_key = 1`,
		`ae_title = `,
	} {
		var cfg serverConfig
		if err := loadConfigFile(writeFile(t, "bad.toml", content), &cfg); err == nil {
			t.Errorf("%q: no error", content)
		}
	}
	var cfg serverConfig
	if err := loadConfigFile(filepath.Join(t.TempDir(), "missing.toml"), &cfg); err == nil {
		t.Error("missing file: no error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := serverConfig{AETitle: "bogusae", RemoteAEs: []string{"A=h:1"}}
	err := applyEnv(&cfg, map[string]string{
		"NETDICOM_AE_TITLE":      "PACS2",
		"NETDICOM_REMOTE_AES":    "B=h:2, C=h:3,",
		"NETDICOM_REDIS_DB":      "3",
		"NETDICOM_ARTIM_TIMEOUT": "2s",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AETitle != "PACS2" || cfg.RedisDB != 3 || cfg.ARTIMTimeout != 2*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.RemoteAEs) != 2 || cfg.RemoteAEs[0] != "B=h:2" || cfg.RemoteAEs[1] != "C=h:3" {
		t.Fatalf("unexpected remote aes: %+v", cfg.RemoteAEs)
	}
	if err := applyEnv(&cfg, map[string]string{"NETDICOM_MAX_PDU_SIZE": "big"}); err == nil {
		t.Fatal("bad integer accepted")
	}
}

func TestReadEnv(t *testing.T) {
	path := writeFile(t, ".env", "NETDICOM_LISTEN=:4242\nNETDICOM_ADMIN=:4243\nOTHER=1\n")
	t.Setenv("NETDICOM_ADMIN", ":9999")
	env, err := readEnv(path)
	if err != nil {
		t.Fatal(err)
	}
	if env["NETDICOM_LISTEN"] != ":4242" {
		t.Errorf("listen from file: %q", env["NETDICOM_LISTEN"])
	}
	// The process environment wins over the file.
	if env["NETDICOM_ADMIN"] != ":9999" {
		t.Errorf("admin: %q", env["NETDICOM_ADMIN"])
	}
	if _, ok := env["OTHER"]; ok {
		t.Error("non-NETDICOM variable kept")
	}
	if _, err := readEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}
