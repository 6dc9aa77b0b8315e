package ably

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var pushValidator = validator.New(validator.WithRequiredStructEnabled())

func validatePush(target any) error {
	if err := pushValidator.Struct(target); err != nil {
		return newError(ErrInvalidParameterValue, fmt.Errorf("validation failed: %w", err))
	}
	return nil
}

// Push is the entry point of the push notifications API.
type Push struct {
	Admin *PushAdmin
}

func newPush(client *REST) *Push {
	return &Push{
		Admin: &PushAdmin{
			client:               client,
			DeviceRegistrations:  &PushDeviceRegistrations{client: client},
			ChannelSubscriptions: &PushChannelSubscriptions{client: client},
		},
	}
}

// PushAdmin manages device registrations and channel subscriptions, and
// publishes push notifications directly to recipients.
type PushAdmin struct {
	DeviceRegistrations  *PushDeviceRegistrations
	ChannelSubscriptions *PushChannelSubscriptions

	client *REST
}

// Publish sends a push notification straight to a recipient, bypassing
// channels. Both recipient and payload must be non-empty.
func (a *PushAdmin) Publish(ctx context.Context, recipient, payload map[string]interface{}) error {
	if err := validatePush(pushPublishRequest{Recipient: recipient, Payload: payload}); err != nil {
		return err
	}
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["recipient"] = recipient
	_, err := a.client.do(ctx, &request{
		Method: http.MethodPost,
		Path:   "/push/publish",
		In:     body,
	})
	return err
}

// A PushOption filters a push admin listing or removal.
type PushOption func(*paginateParams)

// PushWithLimit caps the number of items in each page of a listing.
func PushWithLimit(limit int) PushOption {
	return func(o *paginateParams) {
		o.limit = limit
	}
}

func PushWithDeviceID(id string) PushOption {
	return func(o *paginateParams) {
		o.setExtra("deviceId", id)
	}
}

func PushWithClientID(id string) PushOption {
	return func(o *paginateParams) {
		o.setExtra("clientId", id)
	}
}

func PushWithChannel(name string) PushOption {
	return func(o *paginateParams) {
		o.setExtra("channel", name)
	}
}

// PushWithParam sets any other filter the service accepts.
func PushWithParam(key, value string) PushOption {
	return func(o *paginateParams) {
		o.setExtra(key, value)
	}
}

func applyPushOptions(options []PushOption) url.Values {
	var o paginateParams
	for _, set := range options {
		set(&o)
	}
	return o.values()
}

// removeWhereParams rejects an unfiltered removal, which would otherwise
// affect every item of the application.
func removeWhereParams(options []PushOption) (url.Values, error) {
	params := applyPushOptions(options)
	params.Del("limit")
	if len(params) == 0 {
		return nil, newErrorf(ErrInvalidParameterValue, "removeWhere requires at least one filter")
	}
	return params, nil
}

// PushDeviceRegistrations manages the devices registered to receive push
// notifications.
type PushDeviceRegistrations struct {
	client *REST
}

func deviceRegistrationPath(id string) string {
	return "/push/deviceRegistrations/" + encodeURIComponent.Replace(id)
}

// Get gives the registered device with the given id.
func (r *PushDeviceRegistrations) Get(ctx context.Context, deviceID string) (*DeviceDetails, error) {
	if deviceID == "" {
		return nil, newErrorf(ErrInvalidParameterValue, "device id is required")
	}
	var device DeviceDetails
	if _, err := r.client.do(ctx, &request{
		Method: http.MethodGet,
		Path:   deviceRegistrationPath(deviceID),
		Out:    &device,
	}); err != nil {
		return nil, err
	}
	return &device, nil
}

// List gives the registered devices matching the filters.
func (r *PushDeviceRegistrations) List(ctx context.Context, options ...PushOption) (*PaginatedResult[*DeviceDetails], error) {
	query := pageQuery[*DeviceDetails]{
		client: r.client,
		decode: decodeItems[*DeviceDetails],
	}
	return query.load(ctx, "/push/deviceRegistrations", applyPushOptions(options))
}

// Save registers a device, or updates its registration, and gives the
// registration as stored by the service.
func (r *PushDeviceRegistrations) Save(ctx context.Context, device *DeviceDetails) (*DeviceDetails, error) {
	if device == nil {
		return nil, newErrorf(ErrInvalidParameterValue, "device is required")
	}
	if err := validatePush(device); err != nil {
		return nil, err
	}
	var saved DeviceDetails
	if _, err := r.client.do(ctx, &request{
		Method: http.MethodPut,
		Path:   deviceRegistrationPath(device.ID),
		In:     device,
		Out:    &saved,
	}); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Remove unregisters the device with the given id.
func (r *PushDeviceRegistrations) Remove(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return newErrorf(ErrInvalidParameterValue, "device id is required")
	}
	_, err := r.client.do(ctx, &request{
		Method: http.MethodDelete,
		Path:   deviceRegistrationPath(deviceID),
	})
	return err
}

// RemoveWhere unregisters every device matching the filters.
func (r *PushDeviceRegistrations) RemoveWhere(ctx context.Context, options ...PushOption) error {
	params, err := removeWhereParams(options)
	if err != nil {
		return err
	}
	_, err = r.client.do(ctx, &request{
		Method: http.MethodDelete,
		Path:   "/push/deviceRegistrations",
		Params: params,
	})
	return err
}

// PushChannelSubscriptions manages which devices and clients receive the
// push notifications published on channels.
type PushChannelSubscriptions struct {
	client *REST
}

// List gives the subscriptions matching the filters.
func (s *PushChannelSubscriptions) List(ctx context.Context, options ...PushOption) (*PaginatedResult[*PushChannelSubscription], error) {
	query := pageQuery[*PushChannelSubscription]{
		client: s.client,
		decode: decodeItems[*PushChannelSubscription],
	}
	return query.load(ctx, "/push/channelSubscriptions", applyPushOptions(options))
}

// ListChannels gives the names of the channels with at least one
// subscription.
func (s *PushChannelSubscriptions) ListChannels(ctx context.Context, options ...PushOption) (*PaginatedResult[string], error) {
	query := pageQuery[string]{
		client: s.client,
		decode: decodeItems[string],
	}
	return query.load(ctx, "/push/channels", applyPushOptions(options))
}

// Save subscribes a device or a client to a channel.
func (s *PushChannelSubscriptions) Save(ctx context.Context, sub *PushChannelSubscription) (*PushChannelSubscription, error) {
	if sub == nil {
		return nil, newErrorf(ErrInvalidParameterValue, "subscription is required")
	}
	if err := validatePush(sub); err != nil {
		return nil, err
	}
	var saved PushChannelSubscription
	if _, err := s.client.do(ctx, &request{
		Method: http.MethodPost,
		Path:   "/push/channelSubscriptions",
		In:     sub,
		Out:    &saved,
	}); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Remove deletes a single subscription.
func (s *PushChannelSubscriptions) Remove(ctx context.Context, sub *PushChannelSubscription) error {
	if sub == nil {
		return newErrorf(ErrInvalidParameterValue, "subscription is required")
	}
	if err := validatePush(sub); err != nil {
		return err
	}
	params := url.Values{"channel": {sub.Channel}}
	if sub.DeviceID != "" {
		params.Set("deviceId", sub.DeviceID)
	} else {
		params.Set("clientId", sub.ClientID)
	}
	_, err := s.client.do(ctx, &request{
		Method: http.MethodDelete,
		Path:   "/push/channelSubscriptions",
		Params: params,
	})
	return err
}

// RemoveWhere deletes every subscription matching the filters.
func (s *PushChannelSubscriptions) RemoveWhere(ctx context.Context, options ...PushOption) error {
	params, err := removeWhereParams(options)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, &request{
		Method: http.MethodDelete,
		Path:   "/push/channelSubscriptions",
		Params: params,
	})
	return err
}
