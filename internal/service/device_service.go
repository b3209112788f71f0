package service

import (
	"context"
	"errors"
	"fmt"

	"notesync/internal/domain"
	"notesync/internal/repository"
)

// DeviceService shows a user where they are logged in and lets them sign a
// device out remotely. A device is one login session.
type DeviceService struct {
	sessionRepo repository.SessionRepository
}

func NewDeviceService(sessionRepo repository.SessionRepository) *DeviceService {
	return &DeviceService{sessionRepo: sessionRepo}
}

func (s *DeviceService) List(ctx context.Context, identity domain.Identity) ([]domain.DeviceSession, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]domain.DeviceSession, 0, len(sessions))
	for _, session := range sessions {
		devices = append(devices, domain.DeviceSession{
			SessionID: session.ID,
			DeviceID:  session.DeviceID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			Current:   session.ID == identity.SessionID,
		})
	}
	return devices, nil
}

// Revoke ends another session of the caller. Requests using it are refused
// as soon as they revalidate the session.
func (s *DeviceService) Revoke(ctx context.Context, identity domain.Identity, sessionID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	// Another user's session is reported as missing.
	if err != nil || session.UserID != identity.UserID {
		return fmt.Errorf("device %s: %w", sessionID, domain.ErrNotFound)
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke device: %w", err)
	}
	return nil
}
