package gatewayconfig

import (
	"testing"

	"github.com/linkedingateway/gateway/config"
)

func TestFromValuesAndValidate(t *testing.T) {
	raw := config.AppConfigValues{
		KeyDatabaseURL:  "postgres://localhost/gateway",
		KeyJWTSecretKey: "shh",
	}
	v := FromValues(raw)
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.IsLinkedInOAuthConfigured() {
		t.Errorf("expected IsLinkedInOAuthConfigured to be false with no client id/secret set")
	}
}

func TestValidateReportsMissingRequiredSettings(t *testing.T) {
	v := FromValues(config.AppConfigValues{})
	err := v.Validate()
	if err == nil {
		t.Fatal("expected an error when jwt_secret_key and database_url are both unset")
	}
}

func TestIsLinkedInOAuthConfigured(t *testing.T) {
	v := FromValues(config.AppConfigValues{
		KeyLinkedInClientID:     "id",
		KeyLinkedInClientSecret: "secret",
	})
	if !v.IsLinkedInOAuthConfigured() {
		t.Errorf("expected true when both client id and secret are set")
	}
}
