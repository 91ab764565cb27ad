package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}
	if len(cfg.Environments) != 0 {
		t.Fatalf("Environments = %v, want empty", cfg.Environments)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slipway", "config.yaml")
	cfg := &Config{
		CurrentEnvironment: "prod",
		Environments: map[string]Environment{
			"prod": {Region: "us-east-1", Project: "acme", Port: "3000"},
		},
	}
	if err := cfg.saveTo(path); err != nil {
		t.Fatalf("saveTo() error = %v", err)
	}

	loaded, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}
	name, env, err := loaded.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if name != "prod" || env.Region != "us-east-1" {
		t.Fatalf("Resolve() = %q %+v", name, env)
	}
}

func TestResolveValidation(t *testing.T) {
	cfg := &Config{Environments: map[string]Environment{
		"noregion": {Project: "acme"},
	}}

	if _, _, err := cfg.Resolve(""); err == nil {
		t.Fatal("Resolve(\"\") with no current environment: expected error")
	}
	if _, _, err := cfg.Resolve("missing"); err == nil {
		t.Fatal("Resolve(missing): expected error")
	}
	if _, _, err := cfg.Resolve("noregion"); err == nil {
		t.Fatal("Resolve(noregion): expected error")
	}
}

func TestSetUseRemove(t *testing.T) {
	cfg := &Config{Environments: make(map[string]Environment)}

	if err := cfg.Use("prod"); err == nil {
		t.Fatal("Use(prod) before Set: expected error")
	}

	cfg.Set("prod", Environment{Region: "us-east-1", Project: "acme"})
	if err := cfg.Use("prod"); err != nil {
		t.Fatalf("Use(prod) error = %v", err)
	}
	if cfg.CurrentEnvironment != "prod" {
		t.Fatalf("CurrentEnvironment = %q, want prod", cfg.CurrentEnvironment)
	}

	if err := cfg.Remove("missing"); err == nil {
		t.Fatal("Remove(missing): expected error")
	}
	if err := cfg.Remove("prod"); err != nil {
		t.Fatalf("Remove(prod) error = %v", err)
	}
	if cfg.CurrentEnvironment != "" {
		t.Fatalf("CurrentEnvironment = %q after removing current, want empty", cfg.CurrentEnvironment)
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	env := Environment{Region: "eu-west-1", Project: "acme"}

	if got := env.ClusterName("prod"); got != "acme-prod" {
		t.Fatalf("ClusterName() = %q", got)
	}
	if got := env.ServiceName("prod"); got != "acme-prod" {
		t.Fatalf("ServiceName() = %q", got)
	}
	if got := env.LocalImage(); got != "acme" {
		t.Fatalf("LocalImage() = %q", got)
	}

	port, proto, err := env.ContainerPort()
	if err != nil {
		t.Fatalf("ContainerPort() error = %v", err)
	}
	if port != 8080 || proto != "tcp" {
		t.Fatalf("ContainerPort() = %d/%s, want 8080/tcp", port, proto)
	}
}

func TestContainerPortSpecs(t *testing.T) {
	cases := []struct {
		spec      string
		wantPort  int32
		wantProto string
		wantErr   bool
	}{
		{spec: "3000", wantPort: 3000, wantProto: "tcp"},
		{spec: "9000/udp", wantPort: 9000, wantProto: "udp"},
		{spec: "notaport", wantErr: true},
	}
	for _, tc := range cases {
		env := Environment{Port: tc.spec}
		port, proto, err := env.ContainerPort()
		if tc.wantErr {
			if err == nil {
				t.Errorf("ContainerPort(%q): expected error", tc.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("ContainerPort(%q) error = %v", tc.spec, err)
			continue
		}
		if port != tc.wantPort || proto != tc.wantProto {
			t.Errorf("ContainerPort(%q) = %d/%s, want %d/%s", tc.spec, port, proto, tc.wantPort, tc.wantProto)
		}
	}
}
