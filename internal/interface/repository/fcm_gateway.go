package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"

	"google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
)

// FCMGateway sends push messages through the Firebase Cloud Messaging HTTP v1 API
type FCMGateway struct {
	service   *fcm.Service
	projectID string
	logger    logger.Logger
}

// NewFCMGateway creates a new FCM push gateway
func NewFCMGateway(service *fcm.Service, projectID string, logger logger.Logger) repository.PushGateway {
	return &FCMGateway{
		service:   service,
		projectID: projectID,
		logger:    logger,
	}
}

// Provider returns the provider tag
func (g *FCMGateway) Provider() entity.PushProvider {
	return entity.ProviderFCM
}

// Send delivers one message to a device token or a topic
func (g *FCMGateway) Send(ctx context.Context, msg entity.PushMessage) (string, error) {
	message, err := buildFCMMessage(msg)
	if err != nil {
		return "", err
	}

	parent := "projects/" + g.projectID
	resp, err := g.service.Projects.Messages.
		Send(parent, &fcm.SendMessageRequest{Message: message}).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("fcm rejected message (%d): %s", apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("failed to send fcm message: %w", err)
	}

	g.logger.Debug("FCM message sent", "messageId", resp.Name, "topic", msg.Topic)
	return resp.Name, nil
}

// apnsPayload is the aps dictionary attached to iOS deliveries
type apnsPayload struct {
	Aps apsDictionary `json:"aps"`
}

type apsDictionary struct {
	Alert             *apsAlert `json:"alert,omitempty"`
	Sound             string    `json:"sound,omitempty"`
	Badge             int       `json:"badge,omitempty"`
	ContentAvailable  int       `json:"content-available,omitempty"`
	InterruptionLevel string    `json:"interruption-level,omitempty"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func newAPSPayload(msg entity.PushMessage) apnsPayload {
	return apnsPayload{Aps: apsDictionary{
		Alert:             &apsAlert{Title: msg.Title, Body: msg.Body},
		Sound:             "default",
		Badge:             1,
		ContentAvailable:  1,
		InterruptionLevel: "time-sensitive",
	}}
}

func buildFCMMessage(msg entity.PushMessage) (*fcm.Message, error) {
	if (msg.Token == "") == (msg.Topic == "") {
		return nil, fmt.Errorf("exactly one of token or topic is required: %w", entity.ErrValidation)
	}

	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	if _, ok := data["click_action"]; !ok {
		data["click_action"] = entity.ClickActionFlightStatus
	}

	aps := newAPSPayload(msg)
	aps.Aps.Alert = nil // FCM fills the alert from the notification block
	payload, err := json.Marshal(aps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode apns payload: %w", err)
	}

	return &fcm.Message{
		Token: msg.Token,
		Topic: msg.Topic,
		Notification: &fcm.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
		Android: &fcm.AndroidConfig{
			Priority: "HIGH",
			Notification: &fcm.AndroidNotification{
				Sound:       "default",
				ChannelId:   entity.AndroidChannelID,
				ClickAction: entity.ClickActionFlightStatus,
			},
		},
		Apns: &fcm.ApnsConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: googleapi.RawMessage(payload),
		},
	}, nil
}
