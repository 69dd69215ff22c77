package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
)

type InviteController struct{ *Srv }

func GetInviteController(s *Srv) *InviteController { return &InviteController{Srv: s} }

// POST /admin/invites
func (ic *InviteController) CreateInvite(c *gin.Context) {
	var in struct {
		Email   string      `json:"email" binding:"required,email"`
		Role    models.Role `json:"role"`
		Expires int         `json:"expiresDays"` // default 1
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch in.Role {
	case "":
		in.Role = models.RolePatron
	case models.RolePatron, models.RoleLibrarian:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be patron or librarian"})
		return
	}
	if in.Expires <= 0 {
		in.Expires = 1
	}

	token, err := app.NewInviteToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	inv, err := ic.Repo.CreateInvite(
		ctx,
		strings.ToLower(in.Email),
		token,
		in.Role,
		time.Now().AddDate(0, 0, in.Expires),
		c.GetString(app.KeyUsername),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	link := app.InviteLink(ic.Cfg.WebOrigin, token)

	// without SMTP settings the link is only logged
	if err := ic.sendInviteMail(inv, link, in.Expires); err != nil {
		log.Printf("[invite email] send failed: %v", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"link":   link,
		"invite": inv,
	})
}

type smtpConf struct {
	Host     string // SMTP_HOST
	Port     string // SMTP_PORT
	Username string // SMTP_USERNAME
	Password string // SMTP_PASSWORD
	From     string // SMTP_FROM, falls back to Username
	AppName  string
}

func (ic *InviteController) loadSMTP() smtpConf {
	return smtpConf{
		Host:     config.Get("SMTP_HOST", ""),
		Port:     config.Get("SMTP_PORT", "587"),
		Username: config.Get("SMTP_USERNAME", ""),
		Password: config.Get("SMTP_PASSWORD", ""),
		From:     config.Get("SMTP_FROM", ""),
		AppName:  ic.Cfg.AppName,
	}
}

func (ic *InviteController) sendInviteMail(inv *models.Invite, link string, expiresDays int) error {
	conf := ic.loadSMTP()

	if conf.Host == "" || (conf.Username == "" && conf.From == "") {
		log.Printf("[DEV] Invite link for %s (%s): %s (expires in %d day(s))", inv.Email, inv.Role, link, expiresDays)
		return nil
	}

	fromAddr := conf.From
	if fromAddr == "" {
		fromAddr = conf.Username
	}

	subject := fmt.Sprintf("You're invited to %s", conf.AppName)
	htmlBody := fmt.Sprintf(`
<div style="font-family:Arial,sans-serif; font-size:14px; color:#222">
  <p>Hello,</p>
  <p>You have been invited to <b>%s</b> as a %s. Create your passkey to sign in:</p>
  <p>
    <a href="%s" style="display:inline-block; padding:10px 16px; background:#2563EB; color:#fff; text-decoration:none; border-radius:6px;">
      Accept Invitation
    </a>
  </p>
  <p>Or open this link directly:</p>
  <p><a href="%s">%s</a></p>
  <p>This invitation expires in %d day(s).</p>
</div>
`, conf.AppName, inv.Role, link, link, link, expiresDays)

	msg := buildMIMEWithFromName(conf.AppName, fromAddr, inv.Email, subject, htmlBody)

	auth := smtp.PlainAuth("", conf.Username, conf.Password, conf.Host)
	return smtp.SendMail(conf.Host+":"+conf.Port, auth, fromAddr, []string{inv.Email}, []byte(msg))
}

func buildMIMEWithFromName(fromName, fromAddr, to, subject, html string) string {
	headers := []string{
		fmt.Sprintf("From: %s <%s>", fromName, fromAddr),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + html
}
