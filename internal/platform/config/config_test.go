package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIRESTORE_PROJECT_ID":  "instrugate-test",
		"API_STORAGE_IMAGES_BUCKET": "instrugate-images",
		"API_AUTH_SIGNING_SECRET":   "plain-secret",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected default port %q", cfg.Server.Port)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected default access TTL %v", cfg.Auth.AccessTTL)
	}
	if cfg.Events.TopicID != "quotation-events" {
		t.Fatalf("unexpected default events topic %q", cfg.Events.TopicID)
	}
	if cfg.Events.ProjectID != "instrugate-test" {
		t.Fatalf("expected events project to fall back to firestore project, got %q", cfg.Events.ProjectID)
	}
	if cfg.Chat.HistoryLimit != 50 {
		t.Fatalf("unexpected default chat history limit %d", cfg.Chat.HistoryLimit)
	}
}

func TestLoadReportsMissingFields(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "Storage.ImagesBucket": false, "Auth.SigningSecret": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("expected %s reported missing, got %v", field, fields)
		}
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_SIGNING_SECRET"] = "sm://projects/p/secrets/jwt/versions/latest"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/p/secrets/jwt/versions/latest" {
			return "", errors.New("unexpected ref " + ref)
		}
		return "resolved-secret", nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.SigningSecret != "resolved-secret" {
		t.Fatalf("expected resolved secret, got %q", cfg.Auth.SigningSecret)
	}
}

func TestLoadFailsWhenResolverErrors(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_SIGNING_SECRET"] = "secret://projects/p/secrets/jwt/versions/1"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("permission denied")
	})

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
}

func TestLoadEnforcesRequiredSecrets(t *testing.T) {
	env := baseEnv()
	delete(env, "API_AUTH_SIGNING_SECRET")

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("Auth.SigningSecret"))

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Auth.SigningSecret" {
		t.Fatalf("unexpected missing secret names %v", names)
	}
}

func TestEnvMapTakesPrecedenceOverDefaults(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_AUTH_ACCESS_TTL"] = "5m"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected access TTL %v", cfg.Auth.AccessTTL)
	}
}
