package entity

// User is the owner of journeys and push tokens
type User struct {
	ID          string
	Email       string
	DisplayName string
	FCMToken    string
	PushToken   string
	Platform    string
}

// DeviceToken returns the FCM token, falling back to the legacy push token
func (u *User) DeviceToken() string {
	if u == nil {
		return ""
	}
	if u.FCMToken != "" {
		return u.FCMToken
	}
	return u.PushToken
}
