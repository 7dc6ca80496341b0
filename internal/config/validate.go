package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that everything needed for an upload is present
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// describe turns a validation failure into a message naming the config key
func describe(fe validator.FieldError) string {
	key := configKey(fe.StructNamespace())
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", key, strings.ToLower(fe.Param()))
	case "url":
		return key + " must be a URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", key, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", key, fe.Tag())
	}
}

var fieldKeys = map[string]string{
	"TestRail.Host":              "testrail.host",
	"TestRail.Project":           "testrail.project",
	"TestRail.Username":          "testrail.username",
	"TestRail.Password":          "testrail.password",
	"TestRail.Key":               "testrail.key",
	"TestRail.Timeout":           "testrail.timeout",
	"Upload.File":                "upload.file",
	"Upload.SuiteID":             "upload.suite_id",
	"Upload.RunID":               "upload.run_id",
	"Upload.AutoCreate":          "upload.auto_create",
	"Notifications.SlackWebhook": "notifications.slack_webhook",
}

func configKey(namespace string) string {
	ns := strings.TrimPrefix(namespace, "Config.")
	if k, ok := fieldKeys[ns]; ok {
		return k
	}
	return strings.ToLower(ns)
}
