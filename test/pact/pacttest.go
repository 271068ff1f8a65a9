//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const (
	ProviderName = "temporary-care-api"
	ConsumerName = "owner-portal"

	StateApplicationsBaseline = "applications baseline"
	StateApplicationSubmitted = "application 7d6f7a4e submitted by pact-owner"
	StateApplicationMissing   = "no application 00000000"
)

const (
	ExistingApplicationID     = "7d6f7a4e-2c1b-4b7e-9a51-0f3c8e2d1a10"
	ExistingApplicationNumber = "TCA-1780272000000-A1B2C3"
	MissingApplicationID      = "00000000-0000-4000-8000-000000000404"

	OwnerID   = "pact-owner"
	PetRef    = "pet-fluffy"
	JWTSecret = "pact-shared-secret"
)

// TokenTTL keeps pact tokens valid between the consumer run and provider verification.
const TokenTTL = 24 * time.Hour

// StayStart is the fixed check-in of the seeded application, far enough ahead to stay valid.
var StayStart = time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the owner portal consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleSubmission is the body the portal posts to file an application.
func ExampleSubmission() map[string]any {
	return map[string]any{
		"pets": []map[string]any{{
			"petRef":              PetRef,
			"specialInstructions": map[string]any{"food": "twice a day"},
		}},
		"startDate": StayStart.Format(time.RFC3339),
		"endDate":   StayStart.Add(72 * time.Hour).Format(time.RFC3339),
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
