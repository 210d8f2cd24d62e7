package domain

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"resident", RoleResident, true},
		{"beboer", RoleResident, true},
		{"Beboer", RoleResident, true},
		{"staff", RoleStaff, true},
		{"personale", RoleStaff, true},
		{" PERSONALE ", RoleStaff, true},
		{"admin", RoleAdmin, true},
		{"", "", false},
		{"driver", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRoleIsStaff(t *testing.T) {
	if RoleResident.IsStaff() {
		t.Error("resident must not count as staff")
	}
	if !RoleStaff.IsStaff() || !RoleAdmin.IsStaff() {
		t.Error("staff and admin must count as staff")
	}
}

func TestRoomIdentity(t *testing.T) {
	rc := &RoomCode{RoomNumber: "12"}
	if got := rc.Identity("overmark.local"); got != "room12@overmark.local" {
		t.Errorf("Identity() = %q", got)
	}
}

func TestCodeLoginRequestNormalize(t *testing.T) {
	req := &CodeLoginRequest{Code: "  ab23cd45 "}
	req.Normalize()
	if req.Code != "AB23CD45" {
		t.Errorf("Normalize() = %q", req.Code)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	empty := &CodeLoginRequest{Code: "   "}
	empty.Normalize()
	if err := empty.Validate(); err == nil {
		t.Error("empty code must fail validation")
	}
}
