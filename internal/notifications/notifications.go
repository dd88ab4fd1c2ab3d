package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/scoring"
)

// NotificationType defines the type of notification
type NotificationType string

const (
	NotifyBlockingTask      NotificationType = "blocking_task"
	NotifyCriticalRiskLevel NotificationType = "critical_risk"
	NotifyTransitionBlocked NotificationType = "transition_blocked"
	NotifyWeeklyDigest      NotificationType = "weekly_digest"
)

// Severity orders notifications for channel filtering.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Channel defines notification channels
type Channel string

const (
	ChannelSlack Channel = "slack"
	ChannelEmail Channel = "email"
)

// Notification represents a notification to be sent
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Severity  Severity
	Data      map[string]interface{}
	Timestamp time.Time
}

// Config holds notification configuration
type Config struct {
	Slack SlackConfig
	Email EmailConfig
}

// SlackConfig holds Slack configuration
type SlackConfig struct {
	WebhookURL  string
	Channel     string
	Username    string
	IconEmoji   string
	Enabled     bool
	MinSeverity Severity // Minimum severity to notify
}

// EmailConfig holds email configuration
type EmailConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	From        string
	To          []string
	Enabled     bool
	MinSeverity Severity
}

// Service handles notifications
type Service struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// NewService creates a new notification service
func NewService(config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: config,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends a notification to all enabled channels
func (s *Service) Send(ctx context.Context, notif *Notification) error {
	var errs []error

	if s.config.Slack.Enabled && s.shouldNotify(notif.Severity, s.config.Slack.MinSeverity) {
		if err := s.sendSlack(ctx, notif); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}

	if s.config.Email.Enabled && s.shouldNotify(notif.Severity, s.config.Email.MinSeverity) {
		if err := s.sendEmail(ctx, notif); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}

	return nil
}

// shouldNotify checks if notification should be sent based on severity
func (s *Service) shouldNotify(actual, minimum Severity) bool {
	severityOrder := map[Severity]int{
		SeverityLow:      1,
		SeverityMedium:   2,
		SeverityHigh:     3,
		SeverityCritical: 4,
	}

	return severityOrder[actual] >= severityOrder[minimum]
}

// SlackMessage represents a Slack message payload
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fallback  string       `json:"fallback,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// sendSlack sends a notification to Slack
func (s *Service) sendSlack(ctx context.Context, notif *Notification) error {
	color := s.severityToColor(notif.Severity)

	fields := []SlackField{}
	if notif.Data != nil {
		if systemName, ok := notif.Data["system_name"].(string); ok {
			fields = append(fields, SlackField{
				Title: "AI System",
				Value: systemName,
				Short: true,
			})
		}
		if regulation, ok := notif.Data["regulation"].(string); ok {
			fields = append(fields, SlackField{
				Title: "Regulation",
				Value: regulation,
				Short: true,
			})
		}
		if count, ok := notif.Data["blocking_tasks"].(int); ok {
			fields = append(fields, SlackField{
				Title: "Blocking Tasks",
				Value: fmt.Sprintf("%d", count),
				Short: true,
			})
		}
		if level, ok := notif.Data["risk_level"].(string); ok {
			fields = append(fields, SlackField{
				Title: "Risk Level",
				Value: level,
				Short: true,
			})
		}
	}

	msg := SlackMessage{
		Channel:   s.config.Slack.Channel,
		Username:  s.config.Slack.Username,
		IconEmoji: s.config.Slack.IconEmoji,
		Attachments: []SlackAttachment{
			{
				Color:     color,
				Title:     notif.Title,
				Text:      notif.Message,
				Fallback:  fmt.Sprintf("%s: %s", notif.Title, notif.Message),
				Fields:    fields,
				Footer:    "AI Governance Alerts",
				Timestamp: notif.Timestamp.Unix(),
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.Slack.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	s.logger.Info("slack notification sent",
		"type", notif.Type,
		"title", notif.Title)

	return nil
}

// severityToColor converts severity to Slack color
func (s *Service) severityToColor(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "#FF0000" // Red
	case SeverityHigh:
		return "#FFA500" // Orange
	case SeverityMedium:
		return "#FFFF00" // Yellow
	default:
		return "#36A64F" // Green
	}
}

// sendEmail sends a notification via email
func (s *Service) sendEmail(ctx context.Context, notif *Notification) error {
	subject := fmt.Sprintf("[Governance Alert] %s", notif.Title)
	body, err := s.formatEmailBody(notif)
	if err != nil {
		return err
	}

	msg := s.buildEmailMessage(subject, body)

	auth := smtp.PlainAuth("", s.config.Email.Username, s.config.Email.Password, s.config.Email.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.config.Email.SMTPHost, s.config.Email.SMTPPort)

	err = smtp.SendMail(addr, auth, s.config.Email.From, s.config.Email.To, []byte(msg))
	if err != nil {
		return err
	}

	s.logger.Info("email notification sent",
		"type", notif.Type,
		"title", notif.Title,
		"recipients", len(s.config.Email.To))

	return nil
}

// buildEmailMessage builds an email message
func (s *Service) buildEmailMessage(subject, body string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.Email.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(s.config.Email.To, ",")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}

// formatEmailBody formats the email body
func (s *Service) formatEmailBody(notif *Notification) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 600px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { padding: 20px; background: {{.HeaderColor}}; color: white; border-radius: 8px 8px 0 0; }
        .content { padding: 20px; }
        .severity { display: inline-block; padding: 4px 8px; border-radius: 4px; font-weight: bold; background: {{.SeverityColor}}; color: white; }
        .data-table { width: 100%; border-collapse: collapse; margin-top: 15px; }
        .data-table td { padding: 8px; border-bottom: 1px solid #eee; }
        .data-table td:first-child { font-weight: bold; width: 30%; }
        .footer { padding: 15px 20px; background: #f9f9f9; border-radius: 0 0 8px 8px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h2 style="margin:0;">{{.Title}}</h2>
        </div>
        <div class="content">
            <p>{{.Message}}</p>
            <p>Severity: <span class="severity">{{.Severity}}</span></p>
            {{if .HasData}}
            <table class="data-table">
                {{range $key, $value := .Data}}
                <tr>
                    <td>{{$key}}</td>
                    <td>{{$value}}</td>
                </tr>
                {{end}}
            </table>
            {{end}}
        </div>
        <div class="footer">
            <p>This is an automated alert from the AI governance platform.</p>
            <p>Generated at: {{.Timestamp}}</p>
        </div>
    </div>
</body>
</html>
`
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	headerColor := "#2196F3" // Default blue
	severityColor := s.severityToColor(notif.Severity)

	switch notif.Severity {
	case SeverityCritical:
		headerColor = "#F44336"
	case SeverityHigh:
		headerColor = "#FF9800"
	case SeverityMedium:
		headerColor = "#FFC107"
	}

	data := map[string]interface{}{
		"Title":         notif.Title,
		"Message":       notif.Message,
		"Severity":      string(notif.Severity),
		"HeaderColor":   headerColor,
		"SeverityColor": severityColor,
		"Data":          notif.Data,
		"HasData":       len(notif.Data) > 0,
		"Timestamp":     notif.Timestamp.Format(time.RFC1123),
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// NotifyBlockingTasks alerts that a governance evaluation opened new
// blocking tasks for a system.
func (s *Service) NotifyBlockingTasks(ctx context.Context, system *models.AISystem, tasks []models.GovernanceTask) error {
	titles := make([]string, 0, len(tasks))
	regulation := ""
	for _, t := range tasks {
		titles = append(titles, t.Title)
		regulation = string(t.Regulation)
	}

	notif := &Notification{
		Type:     NotifyBlockingTask,
		Title:    fmt.Sprintf("Blocking Governance Tasks for %s", system.Name),
		Message:  strings.Join(titles, "; "),
		Severity: SeverityHigh,
		Data: map[string]interface{}{
			"system_id":      system.ID,
			"system_name":    system.Name,
			"regulation":     regulation,
			"blocking_tasks": len(tasks),
			"stage":          string(system.LifecycleStage),
		},
		Timestamp: time.Now(),
	}

	return s.Send(ctx, notif)
}

// NotifyCriticalRisk sends an immediate alert when a system's composite
// risk score lands in the critical band.
func (s *Service) NotifyCriticalRisk(ctx context.Context, system *models.AISystem, result *scoring.Result) error {
	notif := &Notification{
		Type:     NotifyCriticalRiskLevel,
		Title:    "CRITICAL Risk Score",
		Message:  fmt.Sprintf("%s scored %.2f composite risk", system.Name, result.CompositeScore),
		Severity: SeverityCritical,
		Data: map[string]interface{}{
			"system_id":       system.ID,
			"system_name":     system.Name,
			"risk_level":      string(result.OverallRiskLevel),
			"composite_score": result.CompositeScore,
			"stage":           string(system.LifecycleStage),
		},
		Timestamp: time.Now(),
	}

	return s.Send(ctx, notif)
}

// NotifyTransitionBlocked alerts that a requested lifecycle transition
// was rejected by the validator.
func (s *Service) NotifyTransitionBlocked(ctx context.Context, system *models.AISystem, target models.LifecycleStage, reason string) error {
	notif := &Notification{
		Type:     NotifyTransitionBlocked,
		Title:    fmt.Sprintf("Transition to %s Blocked", target),
		Message:  fmt.Sprintf("%s: %s", system.Name, reason),
		Severity: SeverityMedium,
		Data: map[string]interface{}{
			"system_id":   system.ID,
			"system_name": system.Name,
			"from_stage":  string(system.LifecycleStage),
			"to_stage":    string(target),
			"reason":      reason,
		},
		Timestamp: time.Now(),
	}

	return s.Send(ctx, notif)
}

// DigestStats holds weekly digest statistics
type DigestStats struct {
	Period          string
	SystemsTotal    int
	SystemsCritical int
	SystemsHigh     int
	OpenTasks       int
	BlockingTasks   int
	TasksCompleted  int
}

// NotifyWeeklyDigest sends a portfolio-level summary notification.
func (s *Service) NotifyWeeklyDigest(ctx context.Context, stats DigestStats) error {
	notif := &Notification{
		Type:     NotifyWeeklyDigest,
		Title:    "Weekly Governance Digest",
		Message:  fmt.Sprintf("Summary: %d systems tracked, %d open tasks, %d blocking", stats.SystemsTotal, stats.OpenTasks, stats.BlockingTasks),
		Severity: s.digestToSeverity(stats),
		Data: map[string]interface{}{
			"period":           stats.Period,
			"systems_total":    stats.SystemsTotal,
			"systems_critical": stats.SystemsCritical,
			"systems_high":     stats.SystemsHigh,
			"open_tasks":       stats.OpenTasks,
			"blocking_tasks":   stats.BlockingTasks,
			"tasks_completed":  stats.TasksCompleted,
		},
		Timestamp: time.Now(),
	}

	return s.Send(ctx, notif)
}

// digestToSeverity determines notification severity from digest stats
func (s *Service) digestToSeverity(stats DigestStats) Severity {
	if stats.SystemsCritical > 0 {
		return SeverityCritical
	}
	if stats.BlockingTasks > 0 {
		return SeverityHigh
	}
	if stats.OpenTasks > 10 {
		return SeverityMedium
	}
	return SeverityLow
}
