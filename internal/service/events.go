package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func customerActor(userID string) events.Actor {
	role := domain.RoleCustomer
	return events.Actor{UserID: &userID, Role: &role}
}

func staffActor(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	role := user.Role
	return events.Actor{UserID: &user.ID, Role: &role}
}
