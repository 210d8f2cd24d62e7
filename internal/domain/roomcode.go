package domain

import (
	"fmt"
	"strings"
	"time"
)

// RoomCode is one issued access code for one room. A room accumulates many
// records over time; at most one of them is active.
type RoomCode struct {
	ID            int64      `json:"id"`
	RoomNumber    string     `json:"room_number"`
	Code          string     `json:"code"`
	IsActive      bool       `json:"is_active"`
	ResidentName  string     `json:"resident_name"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Identity returns the backend account email derived from the room number.
// The account's password is whatever code is active at login time, so
// rotating a code retires the old password without an explicit reset.
func (rc *RoomCode) Identity(domain string) string {
	return RoomIdentity(rc.RoomNumber, domain)
}

func RoomIdentity(roomNumber, domain string) string {
	return "room" + roomNumber + "@" + domain
}

type CodeLoginRequest struct {
	Code string `json:"code"`
}

func (r *CodeLoginRequest) Normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

func (r *CodeLoginRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code is required")
	}
	return nil
}

type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *StaffLoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *StaffLoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

type IssueCodeRequest struct {
	ResidentName string `json:"resident_name"`
}

func (r *IssueCodeRequest) Normalize() {
	r.ResidentName = strings.TrimSpace(r.ResidentName)
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	RoomNumber  string `json:"room_number,omitempty"`
	Role        Role   `json:"role"`
}

// RoomOverviewEntry pairs a room with its active code, if any. Rooms without
// a code show up with Active == nil so staff can see which rooms still need
// one printed.
type RoomOverviewEntry struct {
	RoomNumber string    `json:"room_number"`
	Active     *RoomCode `json:"active_code,omitempty"`
}
