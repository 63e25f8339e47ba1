package email

import (
	"strings"
	"testing"
	"time"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderReminderTemplate(t *testing.T) {
	data := ReminderData{
		AppName:  "FormSnap",
		UserName: "Asha",
		Count:    2,
		Plural:   "s",
		Applications: []ReminderApplication{
			{Company: "Google", FormTitle: "SWE Intern 2025", Deadline: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
			{Company: "", FormTitle: "Scholarship Form", Deadline: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
		},
		DashboardURL: "http://localhost:5173/dashboard",
	}

	html, err := renderTemplate(reminderEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Asha") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "Google") {
		t.Error("template should contain company name")
	}
	if !strings.Contains(html, "SWE Intern 2025") {
		t.Error("template should contain form title")
	}
	// Records with no company fall back to a generic card heading.
	if !strings.Contains(html, "Application") {
		t.Error("template should fall back for empty company")
	}
	if !strings.Contains(html, "http://localhost:5173/dashboard") {
		t.Error("template should contain dashboard link")
	}
	if !strings.Contains(html, "2 upcoming deadlines") {
		t.Error("template should pluralize the count")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "FormSnap",
		UserName: "Asha",
		ResetURL: "https://example.com/reset-password?token=abc123",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "FormSnap") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "https://example.com/reset-password?token=abc123") {
		t.Error("template should contain reset URL")
	}
}

func TestSendEmailNotConfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@b.com"}, "subject", "body"); err == nil {
		t.Error("expected error when not configured")
	}
	if err := svc.SendHTMLEmail([]string{"a@b.com"}, "subject", "<p>body</p>"); err == nil {
		t.Error("expected error when not configured")
	}
}
