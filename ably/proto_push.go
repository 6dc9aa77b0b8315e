package ably

// Platforms a device can be registered for push notifications on.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformBrowser = "browser"
)

// Form factors of a registered device.
const (
	FormFactorPhone    = "phone"
	FormFactorTablet   = "tablet"
	FormFactorDesktop  = "desktop"
	FormFactorTV       = "tv"
	FormFactorWatch    = "watch"
	FormFactorCar      = "car"
	FormFactorEmbedded = "embedded"
	FormFactorOther    = "other"
)

// DevicePushDetails holds how a device is reached by push notifications.
type DevicePushDetails struct {
	// Recipient identifies the device to the push transport, for example
	// {"transportType": "fcm", "registrationToken": "..."}.
	Recipient   map[string]interface{} `json:"recipient" codec:"recipient" validate:"required,min=1"`
	State       string                 `json:"state,omitempty" codec:"state,omitempty"`
	ErrorReason *PushErrorReason       `json:"errorReason,omitempty" codec:"errorReason,omitempty"`
}

// PushErrorReason is the last error the push transport reported for a device.
type PushErrorReason struct {
	Code       ErrorCode `json:"code,omitempty" codec:"code,omitempty"`
	StatusCode int       `json:"statusCode,omitempty" codec:"statusCode,omitempty"`
	Message    string    `json:"message,omitempty" codec:"message,omitempty"`
}

// DeviceDetails is a device registered for push notifications.
type DeviceDetails struct {
	ID           string                 `json:"id" codec:"id" validate:"required"`
	ClientID     string                 `json:"clientId,omitempty" codec:"clientId,omitempty"`
	FormFactor   string                 `json:"formFactor" codec:"formFactor" validate:"required,oneof=phone tablet desktop tv watch car embedded other"`
	Platform     string                 `json:"platform" codec:"platform" validate:"required,oneof=android ios browser"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" codec:"metadata,omitempty"`
	DeviceSecret string                 `json:"deviceSecret,omitempty" codec:"deviceSecret,omitempty"`
	Push         DevicePushDetails      `json:"push" codec:"push"`
}

// PushChannelSubscription subscribes either a device or every device of a
// client to push notifications published on a channel.
type PushChannelSubscription struct {
	Channel  string `json:"channel" codec:"channel" validate:"required"`
	DeviceID string `json:"deviceId,omitempty" codec:"deviceId,omitempty" validate:"required_without=ClientID,excluded_with=ClientID"`
	ClientID string `json:"clientId,omitempty" codec:"clientId,omitempty" validate:"required_without=DeviceID"`
}

type pushPublishRequest struct {
	Recipient map[string]interface{} `validate:"required,min=1"`
	Payload   map[string]interface{} `validate:"required,min=1"`
}
