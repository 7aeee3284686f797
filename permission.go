package main

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// CollisionField names the identity field an existing account was found by.
type CollisionField int

const (
	CollisionNone CollisionField = iota
	CollisionEmail
	CollisionPhone
	CollisionUsername
	// CollisionUnknown is reported when the backend blocks a registration
	// without naming a field we know.
	CollisionUnknown
)

func (c CollisionField) String() string {
	switch c {
	case CollisionEmail:
		return "email"
	case CollisionPhone:
		return "phone"
	case CollisionUsername:
		return "username"
	case CollisionUnknown:
		return "account"
	default:
		return "none"
	}
}

// collisionFields is the shape the backend uses to report an existing account.
// An explicit alreadyExistBy tag wins; otherwise fields are checked in the
// fixed order email, phone, username.
type collisionFields struct {
	AlreadyExistBy string          `json:"alreadyExistBy,omitempty"`
	ByEmail        json.RawMessage `json:"byEmail,omitempty"`
	ByPhone        json.RawMessage `json:"byPhone,omitempty"`
	ByUsername     json.RawMessage `json:"byUsername,omitempty"`
}

func (c collisionFields) collision() CollisionField {
	switch c.AlreadyExistBy {
	case "email", "byEmail":
		return CollisionEmail
	case "phone", "byPhone":
		return CollisionPhone
	case "username", "byUsername":
		return CollisionUsername
	}

	switch {
	case len(c.ByEmail) > 0:
		return CollisionEmail
	case len(c.ByPhone) > 0:
		return CollisionPhone
	case len(c.ByUsername) > 0:
		return CollisionUsername
	}
	return CollisionNone
}

// PermissionResult is the answer of the registration permission gate.
type PermissionResult struct {
	Collision CollisionField
}

func (r PermissionResult) Permitted() bool {
	return r.Collision == CollisionNone
}

type PermissionChecker interface {
	CheckRegistrationPermission(ctx context.Context, request PermissionRequest) (json.RawMessage, error)
}

// parsePermission turns the data member of an allowLeadRegistration answer
// into a result. Any non-null data blocks the registration.
func parsePermission(data json.RawMessage) PermissionResult {
	if isNull(data) {
		return PermissionResult{}
	}

	var fields collisionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		log.WithField("data", string(data)).Warn("Unreadable registration permission data")
		return PermissionResult{Collision: CollisionUnknown}
	}
	if collision := fields.collision(); collision != CollisionNone {
		return PermissionResult{Collision: collision}
	}
	return PermissionResult{Collision: CollisionUnknown}
}

// CheckRegistrationPermission asks the backend whether the identity held in the
// store is free. A collision is announced through notifier; the store is not
// touched either way.
func CheckRegistrationPermission(ctx context.Context, backend PermissionChecker, store *RegistrationStore, notifier Notifier, messages Messages) (PermissionResult, error) {
	data := store.Snapshot()
	request := PermissionRequest{
		Email:       data.Email,
		PhoneNumber: data.Phone,
		Username:    data.Username,
		IsTrial:     data.IsTrial,
	}

	raw, err := backend.CheckRegistrationPermission(ctx, request)
	if err != nil {
		return PermissionResult{}, err
	}

	result := parsePermission(raw)
	if !result.Permitted() {
		RecordCollision(result.Collision)
		notifier.Notify(Notice{
			Variant: NoticeDestructive,
			Message: messages.Get(data.Language, MsgAlreadyExist, result.Collision),
		})
	}
	return result, nil
}
