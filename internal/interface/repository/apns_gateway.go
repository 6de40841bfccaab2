package repository

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
)

// APNsGateway sends push messages straight to Apple Push Notification service
type APNsGateway struct {
	client   *apns2.Client
	bundleID string
	logger   logger.Logger
}

// NewAPNsClient returns a provider-token client for the production or sandbox host
func NewAPNsClient(key *ecdsa.PrivateKey, keyID, teamID string, production bool) *apns2.Client {
	client := apns2.NewTokenClient(&token.Token{AuthKey: key, KeyID: keyID, TeamID: teamID})
	if production {
		return client.Production()
	}
	return client.Development()
}

// NewAPNsGateway creates a new APNs gateway. bundleID is sent as the apns-topic.
func NewAPNsGateway(client *apns2.Client, bundleID string, logger logger.Logger) repository.PushGateway {
	return &APNsGateway{
		client:   client,
		bundleID: bundleID,
		logger:   logger,
	}
}

// Provider returns the provider tag
func (g *APNsGateway) Provider() entity.PushProvider {
	return entity.ProviderAPNs
}

// Send delivers one alert to a device token
func (g *APNsGateway) Send(ctx context.Context, msg entity.PushMessage) (string, error) {
	if msg.Token == "" {
		return "", fmt.Errorf("apns requires a device token: %w", entity.ErrValidation)
	}

	notification := &apns2.Notification{
		DeviceToken: msg.Token,
		Topic:       g.bundleID,
		Priority:    apns2.PriorityHigh,
		PushType:    apns2.PushTypeAlert,
		Payload:     buildAPNsBody(msg),
	}

	res, err := g.client.PushWithContext(ctx, notification)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if !res.Sent() {
		return "", fmt.Errorf("APNs returned status %d: %s", res.StatusCode, res.Reason)
	}

	g.logger.Debug("APNs notification sent", "apnsId", res.ApnsID)
	return res.ApnsID, nil
}

// buildAPNsBody merges the aps dictionary with the string data keys
func buildAPNsBody(msg entity.PushMessage) map[string]interface{} {
	body := map[string]interface{}{
		"aps":          newAPSPayload(msg).Aps,
		"click_action": entity.ClickActionFlightStatus,
	}
	for k, v := range msg.Data {
		if k == "aps" {
			continue
		}
		body[k] = v
	}
	return body
}
