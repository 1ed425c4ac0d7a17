// README: Firebase Cloud Messaging push for new offers to vendors.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"quickfix/internal/logger"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// Sender is the part of *messaging.Client the notifier uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// UserLookup resolves the device token of the vendor being notified.
type UserLookup interface {
	Get(ctx context.Context, id types.ID) (*users.User, error)
}

// FCMNotifier implements request.Notifier.
type FCMNotifier struct {
	sender Sender
	users  UserLookup
	log    logger.Logger
}

var _ request.Notifier = (*FCMNotifier)(nil)

func NewFCMNotifier(sender Sender, lookup UserLookup, log logger.Logger) *FCMNotifier {
	if log == nil {
		log = logger.Nop{}
	}
	return &FCMNotifier{sender: sender, users: lookup, log: log}
}

// OfferPlaced pushes the offer to the intended vendor's device. Vendors
// without a registered device token are skipped.
func (n *FCMNotifier) OfferPlaced(ctx context.Context, r *request.ServiceRequest) error {
	if r.IntendedVendorID == nil {
		return nil
	}
	vendor, err := n.users.Get(ctx, *r.IntendedVendorID)
	if err != nil {
		return fmt.Errorf("lookup vendor %s: %w", *r.IntendedVendorID, err)
	}
	if vendor.DeviceToken == "" {
		n.log.Debugf("vendor %s has no device token, offer %s not pushed", vendor.ID, r.ID)
		return nil
	}

	msg := &messaging.Message{
		Token: vendor.DeviceToken,
		Data:  offerData(r),
		Notification: &messaging.Notification{
			Title: "New service request",
			Body:  describe(r),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	messageID, err := n.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM to vendor %s: %w", vendor.ID, err)
	}
	n.log.Infof("FCM sent for request %s to %s, message_id=%s", r.ID, vendor.ID, messageID)
	return nil
}

func offerData(r *request.ServiceRequest) map[string]string {
	data := map[string]string{
		"type":       "new_request",
		"request_id": string(r.ID),
		"problem":    r.ProblemDescription,
	}
	if r.Origin != nil {
		data["origin_lat"] = strconv.FormatFloat(r.Origin.Lat, 'f', 6, 64)
		data["origin_lng"] = strconv.FormatFloat(r.Origin.Lng, 'f', 6, 64)
	}
	if r.Vehicle.VehicleType != "" {
		data["vehicle_type"] = r.Vehicle.VehicleType
	}
	if r.Vehicle.VehicleNumber != "" {
		data["vehicle_number"] = r.Vehicle.VehicleNumber
	}
	return data
}

func describe(r *request.ServiceRequest) string {
	if r.Vehicle.MakeModel != "" {
		return r.ProblemDescription + " for a " + r.Vehicle.MakeModel
	}
	return r.ProblemDescription + " nearby"
}
