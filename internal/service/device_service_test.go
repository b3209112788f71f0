package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"notesync/internal/domain"
)

func seedSessions(repo *mockSessionRepository) {
	now := time.Now()
	for i, s := range []domain.Session{
		{ID: "s-laptop", UserID: "alice", DeviceID: "laptop"},
		{ID: "s-phone", UserID: "alice", DeviceID: "phone"},
		{ID: "s-bob", UserID: "bob", DeviceID: "desk"},
	} {
		s := s
		s.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		s.ExpiresAt = now.Add(time.Hour)
		repo.sessions[s.ID] = &s
	}
}

func TestDeviceService_List(t *testing.T) {
	repo := newMockSessionRepository()
	seedSessions(repo)
	service := NewDeviceService(repo)

	devices, err := service.List(context.Background(), domain.Identity{UserID: "alice", SessionID: "s-phone"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].DeviceID != "laptop" || devices[0].Current {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].DeviceID != "phone" || !devices[1].Current {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}

func TestDeviceService_Revoke(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		wantErr   error
		wantGone  bool
	}{
		{name: "own device", sessionID: "s-laptop", wantGone: true},
		{name: "other user's device", sessionID: "s-bob", wantErr: domain.ErrNotFound},
		{name: "unknown device", sessionID: "s-nope", wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockSessionRepository()
			seedSessions(repo)
			service := NewDeviceService(repo)

			err := service.Revoke(context.Background(), domain.Identity{UserID: "alice", SessionID: "s-phone"}, tt.sessionID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Revoke() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Revoke() error = %v", err)
			}

			_, stillThere := repo.sessions[tt.sessionID]
			if tt.wantGone && stillThere {
				t.Error("session was not deleted")
			}
			if tt.sessionID == "s-bob" && !stillThere {
				t.Error("another user's session was deleted")
			}
		})
	}
}

func TestDeviceService_RevokedSessionFailsFreshAuth(t *testing.T) {
	users := newMockUserRepository()
	sessions := newMockSessionRepository()
	auth := NewAuthService(users, sessions, "secret", time.Hour, time.Minute)
	devices := NewDeviceService(sessions)
	ctx := context.Background()

	if err := auth.Register(ctx, &domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	laptop, err := auth.Login(ctx, &domain.LoginRequest{Email: "alice@example.com", Password: "password123", DeviceID: "laptop"})
	if err != nil {
		t.Fatalf("Login(laptop) error = %v", err)
	}
	phone, err := auth.Login(ctx, &domain.LoginRequest{Email: "alice@example.com", Password: "password123", DeviceID: "phone"})
	if err != nil {
		t.Fatalf("Login(phone) error = %v", err)
	}

	laptopID, err := auth.Authenticate(ctx, laptop.AccessToken, true)
	if err != nil {
		t.Fatalf("Authenticate(laptop) error = %v", err)
	}
	phoneID, err := auth.Authenticate(ctx, phone.AccessToken, true)
	if err != nil {
		t.Fatalf("Authenticate(phone) error = %v", err)
	}

	if err := devices.Revoke(ctx, *phoneID, laptopID.SessionID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	if _, err := auth.Authenticate(ctx, laptop.AccessToken, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("fresh auth after revoke error = %v, want ErrUnauthorized", err)
	}
}
