// Package auth verifies caller identity: Firebase ID tokens posted by the web
// client and, optionally, the Google OAuth authorization-code flow.
package auth

import (
	"context"
	"encoding/json"

	firebase "firebase.google.com/go/v4"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"

	"github.com/tbourn/nemo-backend/internal/config"
)

// ClientOptions turns the Firebase settings into Google client options. A
// credentials file wins over an inline client email and private key; with
// neither, Application Default Credentials apply.
func ClientOptions(cfg config.FirebaseConfig) ([]option.ClientOption, error) {
	switch {
	case cfg.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	case cfg.ClientEmail != "" && cfg.PrivateKey != "":
		raw, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   cfg.ProjectID,
			"client_email": cfg.ClientEmail,
			"private_key":  cfg.PrivateKey,
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode service account")
		}
		return []option.ClientOption{option.WithCredentialsJSON(raw)}, nil
	default:
		return nil, nil
	}
}

// NewApp initializes the Firebase Admin SDK.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize Firebase app", goerr.V("project", cfg.ProjectID))
	}
	return app, nil
}
