package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hochfrequenz/trupload/internal/uploader"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Project string // Optional project name
	RunURL  string // Optional link to the TestRail run
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers and joins their errors
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(ctx context.Context, n Notification) error { return nil }

// RunURL links to a run in the TestRail web UI
func RunURL(host string, runID int) string {
	if host == "" || runID <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/index.php?/runs/view/%d", strings.TrimRight(host, "/"), runID)
}

// UploadNotification describes the outcome of an upload of reportFile
func UploadNotification(summary *uploader.Summary, err error, host, project, reportFile string) Notification {
	n := Notification{Project: project}
	if summary != nil {
		n.RunURL = RunURL(host, summary.RunID)
	}

	if err != nil {
		n.Title = fmt.Sprintf("Upload of %s to %s failed", reportFile, project)
		n.Message = err.Error()
		n.Type = NotifyError
		return n
	}

	n.Title = fmt.Sprintf("Uploaded %s to %s", reportFile, project)
	n.Type = NotifySuccess
	if summary != nil {
		n.Message = fmt.Sprintf("%d results in run %d", len(summary.ResultIDs), summary.RunID)
		if created := len(summary.AddedSections) + len(summary.AddedCases); created > 0 {
			n.Message += fmt.Sprintf(", created %d sections and %d cases", len(summary.AddedSections), len(summary.AddedCases))
		}
	}
	return n
}
