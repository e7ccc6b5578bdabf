package tasks

import (
	"context"
	"os"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const credentialExpiryComponent = "tasks.credential-expiry"

// credentialRotationWarningAge is how long since the vault file was last
// written before this task starts warning that stored credentials may be
// stale (the vault itself has no per-secret expiry metadata, so the file's
// own mtime — which changes on every Set — is the proxy used here).
const credentialRotationWarningAge = 90 * 24 * time.Hour

// NewCredentialExpiryWarningTask warns when the credential vault hasn't
// been updated in a long time, nudging rotation of long-lived secrets
// (bot tokens, OAuth refresh tokens, the peer bearer secret).
func NewCredentialExpiryWarningTask(vaultPath string) scheduler.Task {
	return scheduler.Task{
		Name:            "credential-expiry-warning",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			info, err := os.Stat(vaultPath)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			age := time.Since(info.ModTime())
			if age < credentialRotationWarningAge {
				return nil
			}
			logger.WarnCF(credentialExpiryComponent, "vault has not been updated in a long time, consider rotating credentials", map[string]interface{}{
				"age_days": int(age.Hours() / 24),
			})
			return nil
		},
	}
}
