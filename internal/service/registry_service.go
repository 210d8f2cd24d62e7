package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/overmark/roomaccess/internal/codegen"
	"github.com/overmark/roomaccess/internal/domain"
	"github.com/overmark/roomaccess/internal/repository"
	"github.com/overmark/roomaccess/pkg/config"
	"github.com/overmark/roomaccess/pkg/events"
	"github.com/overmark/roomaccess/pkg/logger"
)

// RegistryService owns the room-to-code mapping and is the only writer of
// room_qr_codes.
type RegistryService interface {
	IssueCode(ctx context.Context, roomNumber, residentName, issuedBy string) (*domain.RoomCode, error)
	RotateCode(ctx context.Context, roomNumber, rotatedBy string) (*domain.RoomCode, error)
	ResolveCode(ctx context.Context, code string) (*domain.RoomCode, error)
	ActiveCodeForRoom(ctx context.Context, roomNumber string) (*domain.RoomCode, error)
	ListActive(ctx context.Context) ([]domain.RoomCode, error)
	RoomOverview(ctx context.Context) ([]domain.RoomOverviewEntry, error)
	RoomHistory(ctx context.Context, roomNumber string) ([]domain.RoomCode, error)
	LoginURL(code string) string
}

type registryService struct {
	codeRepo repository.RoomCodeRepository
	eventBus events.Publisher
	config   *config.Config
}

func NewRegistryService(
	codeRepo repository.RoomCodeRepository,
	eventBus events.Publisher,
	config *config.Config,
) RegistryService {
	return &registryService{
		codeRepo: codeRepo,
		eventBus: eventBus,
		config:   config,
	}
}

// IssueCode creates the first active code for a room. Issuing while a code is
// already active is an error; staff rotate in that case so the supersession
// is always explicit.
func (s *registryService) IssueCode(ctx context.Context, roomNumber, residentName, issuedBy string) (*domain.RoomCode, error) {
	roomNumber = strings.TrimSpace(roomNumber)
	if roomNumber == "" {
		return nil, fmt.Errorf("room number is required")
	}

	existing, err := s.codeRepo.FindActiveByRoom(ctx, roomNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check active code: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrActiveCodeExists
	}

	rc, err := s.insertWithRetry(ctx, roomNumber, residentName, issuedBy)
	if err != nil {
		return nil, err
	}

	if err := s.eventBus.Publish(ctx, events.CodeIssued, events.CodeIssuedEvent{
		CodeID:     rc.ID,
		RoomNumber: rc.RoomNumber,
		IssuedBy:   issuedBy,
		IssuedAt:   rc.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish code.issued event", "error", err, "room", roomNumber)
	}

	return rc, nil
}

// RotateCode supersedes a room's active code with a fresh one. The repository
// applies both effects in one transaction, so no reader observes two active
// codes for the room.
func (s *registryService) RotateCode(ctx context.Context, roomNumber, rotatedBy string) (*domain.RoomCode, error) {
	roomNumber = strings.TrimSpace(roomNumber)
	if roomNumber == "" {
		return nil, fmt.Errorf("room number is required")
	}

	code, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	rc, err := s.codeRepo.Rotate(ctx, roomNumber, code, rotatedBy)
	if errors.Is(err, domain.ErrCodeCollision) {
		// One regeneration covers the astronomically rare collision.
		if code, err = codegen.Generate(); err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		rc, err = s.codeRepo.Rotate(ctx, roomNumber, code, rotatedBy)
	}
	if err != nil {
		return nil, err
	}

	if err := s.eventBus.Publish(ctx, events.CodeRotated, events.CodeRotatedEvent{
		NewCodeID:  rc.ID,
		RoomNumber: rc.RoomNumber,
		RotatedBy:  rotatedBy,
		RotatedAt:  time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish code.rotated event", "error", err, "room", roomNumber)
	}

	return rc, nil
}

// ResolveCode maps a scanned code to its room. Only active codes resolve; a
// rotated-out code is indistinguishable from one that never existed.
func (s *registryService) ResolveCode(ctx context.Context, code string) (*domain.RoomCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrNotFound
	}

	rc, err := s.codeRepo.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve code: %w", err)
	}
	if rc == nil {
		return nil, domain.ErrNotFound
	}
	return rc, nil
}

// ActiveCodeForRoom returns the room's active code, or ErrNotFound when the
// room has none.
func (s *registryService) ActiveCodeForRoom(ctx context.Context, roomNumber string) (*domain.RoomCode, error) {
	rc, err := s.codeRepo.FindActiveByRoom(ctx, strings.TrimSpace(roomNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}
	if rc == nil {
		return nil, domain.ErrNotFound
	}
	return rc, nil
}

func (s *registryService) ListActive(ctx context.Context) ([]domain.RoomCode, error) {
	codes, err := s.codeRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active codes: %w", err)
	}
	sortByRoom(codes)
	return codes, nil
}

// RoomOverview lists every room of the facility with its active code, if any,
// so staff can see at a glance which rooms still need a printed code.
func (s *registryService) RoomOverview(ctx context.Context) ([]domain.RoomOverviewEntry, error) {
	codes, err := s.codeRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active codes: %w", err)
	}

	byRoom := make(map[string]*domain.RoomCode, len(codes))
	for i := range codes {
		byRoom[codes[i].RoomNumber] = &codes[i]
	}

	entries := make([]domain.RoomOverviewEntry, 0, s.config.App.RoomCount)
	for n := 1; n <= s.config.App.RoomCount; n++ {
		room := strconv.Itoa(n)
		entries = append(entries, domain.RoomOverviewEntry{
			RoomNumber: room,
			Active:     byRoom[room],
		})
		delete(byRoom, room)
	}

	// Rooms outside the configured range still show up once they hold a code.
	var extra []domain.RoomOverviewEntry
	for room, rc := range byRoom {
		extra = append(extra, domain.RoomOverviewEntry{RoomNumber: room, Active: rc})
	}
	sort.Slice(extra, func(i, j int) bool {
		return roomOrdinal(extra[i].RoomNumber) < roomOrdinal(extra[j].RoomNumber)
	})

	return append(entries, extra...), nil
}

func (s *registryService) RoomHistory(ctx context.Context, roomNumber string) ([]domain.RoomCode, error) {
	history, err := s.codeRepo.ListHistoryByRoom(ctx, strings.TrimSpace(roomNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to list room history: %w", err)
	}
	return history, nil
}

// LoginURL is the exact string a printed QR card encodes.
func (s *registryService) LoginURL(code string) string {
	return s.config.App.Origin + "/login?code=" + url.QueryEscape(code)
}

func (s *registryService) insertWithRetry(ctx context.Context, roomNumber, residentName, issuedBy string) (*domain.RoomCode, error) {
	code, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	rc, err := s.codeRepo.InsertActive(ctx, roomNumber, code, residentName, issuedBy)
	if errors.Is(err, domain.ErrCodeCollision) {
		if code, err = codegen.Generate(); err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		rc, err = s.codeRepo.InsertActive(ctx, roomNumber, code, residentName, issuedBy)
	}
	if errors.Is(err, domain.ErrDuplicateActiveCode) {
		// Constraint backstop: a concurrent issue won the race.
		logger.ErrorContext(ctx, "One-active invariant hit on issue", "room", roomNumber)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert code: %w", err)
	}
	return rc, nil
}

// Rooms are numbered, but room_number is a string; listings sort numerically
// the way the admin panel displays them.
func sortByRoom(codes []domain.RoomCode) {
	sort.Slice(codes, func(i, j int) bool {
		return roomOrdinal(codes[i].RoomNumber) < roomOrdinal(codes[j].RoomNumber)
	})
}

func roomOrdinal(room string) int {
	n, err := strconv.Atoi(room)
	if err != nil {
		return 0
	}
	return n
}
