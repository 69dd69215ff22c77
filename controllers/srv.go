package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Srv struct {
	WA        *webauthn.WebAuthn
	Repo      *db.Repo
	Sess      *session.Store
	AppSess   *session.AppSessionStore
	WebOrigin string
	Cfg       app.Config

	Policy     circulation.Policy
	Notifier   circulation.Notifier
	Hub        *notify.Hub
	Cache      redis.UniversalClient
	Dashboards DashboardInvalidator
	Logger     *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:         a.WA,
		Repo:       a.Repo,
		Sess:       session.NewStore(a.RDB, a.Config.SessionTTL),
		AppSess:    a.AppSessions(),
		WebOrigin:  a.Config.WebOrigin,
		Cfg:        a.Config,
		Policy:     a.Workflow.Policy(),
		Notifier:   a.Sink,
		Hub:        a.Hub,
		Cache:      a.RDB,
		Dashboards: NewRedisDashboardCache(a.RDB),
		Logger:     a.Logger,
	}
}

// notifyUser sends a best-effort message after the write it reports; a failure is only logged.
func (s *Srv) notifyUser(ctx context.Context, userID, message string) {
	if err := s.Notifier.Enqueue(context.WithoutCancel(ctx), userID, message); err != nil {
		s.Logger.Warn("notification not enqueued", "user_id", userID, "error", err)
	}
}

// audit records a librarian action; the action itself already happened, so failures are logged.
func (s *Srv) audit(c *gin.Context, action string, loanID, reason *string) {
	if _, err := s.Repo.LogAudit(c.Request.Context(), action, app.UserID(c), c.GetString(app.KeyUsername), loanID, reason); err != nil {
		s.Logger.Error("audit not recorded", "action", action, "error", err)
	}
}

// dashboardChanged drops the cached counters; a stale cache only lives until its TTL.
func (s *Srv) dashboardChanged(ctx context.Context) {
	if s.Dashboards == nil {
		return
	}
	if err := s.Dashboards.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.Logger.Warn("dashboard cache not invalidated", "error", err)
	}
}

func (s *Srv) secureCookie() bool { return strings.HasPrefix(s.WebOrigin, "https://") }

func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookie(),
		MaxAge:   int(maxAge / time.Second),
	})
}

// issueSession signs userID in: login snapshot, Redis session, cookie.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID string, ip, ua string) error {
	_ = s.Repo.TouchUserLogin(ctx, userID, ip, ua)
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, userID); err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Username }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.DisplayName }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(userID string, cred *webauthn.Credential) *models.Credential {
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func (s *Srv) waUserFor(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u)
}

func (s *Srv) loadWAUserByUsername(ctx context.Context, username string) (*waUser, error) {
	u, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u)
}

// abortRepoErr answers 404 for a missing row and 500 otherwise.
func abortRepoErr(c *gin.Context, err error, what string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, app.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
}

func validUUID(c *gin.Context, id, what string) bool {
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid " + what + " id"})
		return false
	}
	return true
}
