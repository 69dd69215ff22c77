package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"
)

// BootstrapLibrarians invites every LIBRARIAN_EMAILS address while the library has no librarian
// yet. Addresses that already hold an open invite are skipped.
func BootstrapLibrarians(ctx context.Context, cfg Config, repo *db.Repo, logger *slog.Logger) {
	if len(cfg.LibrarianEmails) == 0 {
		return
	}
	n, err := repo.CountLibrarians(ctx)
	if err != nil {
		logger.Error("bootstrap: count librarians", "error", err)
		return
	}
	if n > 0 {
		return
	}

	now := time.Now()
	for _, email := range cfg.LibrarianEmails {
		if open, err := repo.HasOpenInvite(ctx, email, now); err != nil || open {
			continue
		}
		token, err := NewInviteToken()
		if err != nil {
			logger.Error("bootstrap: token", "error", err)
			return
		}
		if _, err := repo.CreateInvite(ctx, email, token, models.RoleLibrarian, now.Add(24*time.Hour), "bootstrap"); err != nil {
			logger.Error("bootstrap: invite", "email", email, "error", err)
			continue
		}
		logger.Info("bootstrap: librarian invite created", "email", email, "link", InviteLink(cfg.WebOrigin, token))
	}
}

func NewInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func InviteLink(webOrigin, token string) string {
	return fmt.Sprintf("%s/login?inviteToken=%s", strings.TrimRight(webOrigin, "/"), token)
}
