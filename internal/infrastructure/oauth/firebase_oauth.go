package oauth

import (
	"context"
	"errors"
	"fmt"

	"aerorelay-service/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

// FirebaseOAuth mints access tokens for the FCM HTTP v1 API from a service account
type FirebaseOAuth struct {
	config    *jwt.Config
	projectID string
	logger    logger.Logger
}

// NewFirebaseOAuth creates a new Firebase service-account token handler
func NewFirebaseOAuth(projectID, clientEmail, privateKey string, logger logger.Logger) (*FirebaseOAuth, error) {
	if projectID == "" || clientEmail == "" || privateKey == "" {
		return nil, errors.New("firebase project id, client email and private key are required")
	}

	config := &jwt.Config{
		Email:      clientEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{fcm.FirebaseMessagingScope},
		TokenURL:   google.JWTTokenURL,
	}

	return &FirebaseOAuth{
		config:    config,
		projectID: projectID,
		logger:    logger,
	}, nil
}

// ProjectID returns the Firebase project the credentials belong to
func (o *FirebaseOAuth) ProjectID() string {
	return o.projectID
}

// GetTokenSource returns a caching token source for the FCM API
func (o *FirebaseOAuth) GetTokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, o.config.TokenSource(ctx))
}

// NewFCMService builds an FCM v1 client authenticated with the service account
func (o *FirebaseOAuth) NewFCMService(ctx context.Context) (*fcm.Service, error) {
	svc, err := fcm.NewService(ctx, option.WithTokenSource(o.GetTokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create fcm service: %w", err)
	}

	o.logger.Info("FCM client initialised", "projectId", o.projectID)
	return svc, nil
}
