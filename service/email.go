package service

import (
	"errors"
	"fmt"
	"html"
	"time"

	"expensehub/config"

	"gopkg.in/gomail.v2"
)

// Mailer 发信接口，测试中可替换
type Mailer interface {
	SendTemporaryPassword(toEmail, username, password string) error
	SendPasswordReset(toEmail, username, resetLink string) error
	SendApprovalReminder(toEmail, username string, reminder ApprovalReminder) error
}

// ApprovalReminder 逾期审批提醒内容
type ApprovalReminder struct {
	ApprovalID uint
	Subject    string
	Amount     string
	DueDate    time.Time
}

var ErrEmailDisabled = errors.New("email service is disabled, set email.enabled=true")

// EmailService 基于 SMTP 的发信服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendTemporaryPassword 注册后发送临时密码
func (s *EmailService) SendTemporaryPassword(toEmail, username, password string) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	return s.sendEmail(toEmail, "Your ExpenseHub account", s.temporaryPasswordBody(username, password))
}

// SendPasswordReset 发送密码重置链接
func (s *EmailService) SendPasswordReset(toEmail, username, resetLink string) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	return s.sendEmail(toEmail, "Reset your ExpenseHub password", s.resetBody(username, resetLink))
}

// SendApprovalReminder 提醒审批人处理逾期审批
func (s *EmailService) SendApprovalReminder(toEmail, username string, reminder ApprovalReminder) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	subject := fmt.Sprintf("Approval #%d is overdue", reminder.ApprovalID)
	return s.sendEmail(toEmail, subject, s.reminderBody(username, reminder))
}

const emailLayout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: #1d4ed8; color: white; padding: 24px; text-align: center; }
        .content { padding: 32px 28px; color: #333; line-height: 1.7; }
        .code { font-size: 24px; font-weight: bold; letter-spacing: 2px; font-family: 'Courier New', monospace; }
        .btn { display: inline-block; background: #1d4ed8; color: white !important; text-decoration: none; padding: 12px 32px; border-radius: 8px; }
        .footer { background: #f8f9fa; padding: 16px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>ExpenseHub</h1></div>
        <div class="content">%s</div>
        <div class="footer">This message was sent automatically, please do not reply.</div>
    </div>
</body>
</html>
`

func (s *EmailService) temporaryPasswordBody(username, password string) string {
	content := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>Your account has been created successfully.</p>
            <p>Your temporary password is: <span class="code">%s</span></p>
            <p>Please log in and change your password immediately.</p>`,
		html.EscapeString(username), html.EscapeString(password))
	return fmt.Sprintf(emailLayout, content)
}

func (s *EmailService) resetBody(username, resetLink string) string {
	link := html.EscapeString(resetLink)
	content := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>We received a request to reset your password. Click the button below to choose a new one:</p>
            <p style="text-align: center;"><a href="%s" class="btn">Reset password</a></p>
            <p>This link expires in <strong>1 hour</strong>. If you did not request a reset, ignore this email.</p>
            <p style="word-break: break-all; font-size: 12px;">%s</p>`,
		html.EscapeString(username), link, link)
	return fmt.Sprintf(emailLayout, content)
}

func (s *EmailService) reminderBody(username string, r ApprovalReminder) string {
	content := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>The expense <strong>%s</strong> (%s) is waiting for your review.</p>
            <p>It was due on <strong>%s</strong>.</p>`,
		html.EscapeString(username), html.EscapeString(r.Subject), html.EscapeString(r.Amount), r.DueDate.Format("2006-01-02 15:04"))
	return fmt.Sprintf(emailLayout, content)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
