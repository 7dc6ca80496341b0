package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hochfrequenz/trupload/internal/apiclient"
	"github.com/hochfrequenz/trupload/internal/config"
	"github.com/hochfrequenz/trupload/internal/console"
	"github.com/hochfrequenz/trupload/internal/history"
	"github.com/hochfrequenz/trupload/internal/notify"
	"github.com/hochfrequenz/trupload/internal/parser"
	"github.com/hochfrequenz/trupload/internal/remote"
	"github.com/hochfrequenz/trupload/internal/uploader"
)

// session holds what consecutive uploads share: one API client, one
// console and the optional history store
type session struct {
	cfg      *config.Config
	log      *logrus.Logger
	env      *console.Environment
	dir      uploader.Directory
	history  *history.Store
	notifier notify.Notifier
}

func (a *app) newSession(cfg *config.Config) *session {
	log := a.newLogger()
	client := apiclient.New(apiclient.Options{
		Host:     cfg.TestRail.Host,
		Username: cfg.TestRail.Username,
		Password: cfg.TestRail.Password,
		APIKey:   cfg.TestRail.Key,
		Timeout:  cfg.RequestTimeout(),
		Logger:   log,
	})

	s := &session{
		cfg: cfg,
		log: log,
		env: console.New(a.stdout, a.stdin, cfg.Upload.AutoCreate),
		dir: remote.NewHandler(client, log),
		notifier: notify.NewMultiNotifier(
			notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
			notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		),
	}

	if cfg.History.Enabled {
		store, err := history.New(cfg.History.DatabasePath)
		if err != nil {
			log.WithError(err).Warn("upload history disabled")
		} else {
			s.history = store
		}
	}
	return s
}

func (s *session) Close() {
	if s.history != nil {
		s.history.Close()
	}
}

// upload parses path and runs one upload workflow for it
func (s *session) upload(ctx context.Context, path string) error {
	started := time.Now()

	suite, err := parser.ParseFile(path)
	if err != nil {
		s.finish(ctx, path, started, nil, err)
		return err
	}
	s.log.WithFields(logrus.Fields{
		"file":     path,
		"sections": len(suite.Sections),
		"cases":    suite.CaseCount(),
	}).Debug("parsed report")

	u := uploader.New(suite, s.dir, s.env, uploader.Options{
		Project: s.cfg.TestRail.Project,
		Title:   s.cfg.Upload.Title,
		SuiteID: s.cfg.Upload.SuiteID,
		RunID:   s.cfg.Upload.RunID,
	})
	summary, err := u.Upload(ctx)
	s.finish(ctx, path, started, summary, err)
	return err
}

// finish records and announces the outcome. Neither can change the result.
func (s *session) finish(ctx context.Context, path string, started time.Time, summary *uploader.Summary, uploadErr error) {
	if s.history != nil {
		rec := &history.Upload{
			Project:    s.cfg.TestRail.Project,
			ReportFile: path,
			Status:     history.StatusSucceeded,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if summary != nil {
			rec.Message = summary.String()
			rec.SuiteID = summary.SuiteID
			rec.RunID = summary.RunID
			rec.ResultCount = len(summary.ResultIDs)
		}
		if uploadErr != nil {
			rec.Status = history.StatusFailed
			rec.Message = uploadErr.Error()
		}
		if err := s.history.Record(rec); err != nil {
			s.log.WithError(err).Warn("could not record upload")
		}
	}

	n := notify.UploadNotification(summary, uploadErr, s.cfg.TestRail.Host, s.cfg.TestRail.Project, filepath.Base(path))
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.WithError(err).Warn("could not send notification")
	}
}
