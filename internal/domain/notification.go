package domain

import (
	"errors"
	"strings"
	"time"
)

// TargetKind discriminates the recipient of a notification.
type TargetKind string

const (
	TargetUser   TargetKind = "user"
	TargetVendor TargetKind = "vendor"
)

// ErrInvalidTarget is returned when a notification target is incomplete.
var ErrInvalidTarget = errors.New("domain: invalid notification target")

// NotificationTarget addresses exactly one user or one vendor.
type NotificationTarget struct {
	kind TargetKind
	id   string
}

// ForUser targets a user account.
func ForUser(userID string) NotificationTarget {
	return NotificationTarget{kind: TargetUser, id: strings.TrimSpace(userID)}
}

// ForVendor targets a vendor shop.
func ForVendor(vendorID string) NotificationTarget {
	return NotificationTarget{kind: TargetVendor, id: strings.TrimSpace(vendorID)}
}

// ParseTarget rebuilds a target from its stored representation.
func ParseTarget(kind, id string) (NotificationTarget, error) {
	t := NotificationTarget{kind: TargetKind(strings.TrimSpace(kind)), id: strings.TrimSpace(id)}
	if err := t.Validate(); err != nil {
		return NotificationTarget{}, err
	}
	return t, nil
}

// Kind returns the target discriminator.
func (t NotificationTarget) Kind() TargetKind { return t.kind }

// ID returns the identifier of the targeted user or vendor.
func (t NotificationTarget) ID() string { return t.id }

// Validate reports ErrInvalidTarget for zero or malformed targets.
func (t NotificationTarget) Validate() error {
	if t.id == "" {
		return ErrInvalidTarget
	}
	switch t.kind {
	case TargetUser, TargetVendor:
		return nil
	}
	return ErrInvalidTarget
}

func (t NotificationTarget) String() string {
	return string(t.kind) + ":" + t.id
}

// NotificationType tags the audience class of a notification.
type NotificationType string

const (
	NotificationTypeSystem NotificationType = "system"
	NotificationTypeVendor NotificationType = "vendor"
	NotificationTypeAdmin  NotificationType = "admin"
)

// Notification is an in-app message attached to an order event.
type Notification struct {
	ID          string
	Target      NotificationTarget
	Type        NotificationType
	OrderID     string
	OrderItemID string
	Message     string
	Seen        bool
	CreatedAt   time.Time
}

// NotificationSummary counts notifications by seen state.
type NotificationSummary struct {
	Unread int64
	Read   int64
	All    int64
}
