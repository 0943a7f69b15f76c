package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/application"
)

func TestEmbeddedPolicy(t *testing.T) {
	t.Parallel()

	enforcer, err := NewEnforcer(EnforcerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}

	tests := []struct {
		role       application.Role
		permission application.Permission
		want       bool
	}{
		{application.RoleManager, application.PermissionReadAllBookings, true},
		{application.RoleManager, application.PermissionDeleteAnyBooking, true},
		{application.RoleManager, application.PermissionWriteRooms, true},
		{application.RoleEmployee, application.PermissionReadAllBookings, false},
		{application.RoleEmployee, application.PermissionDeleteAnyBooking, false},
		{application.RoleEmployee, application.PermissionWriteRooms, false},
		{"", application.PermissionWriteRooms, false},
		{"auditor", application.PermissionReadAllBookings, false},
		{application.RoleManager, "malformed", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.permission), func(t *testing.T) {
			if got := enforcer.Can(tt.role, tt.permission); got != tt.want {
				t.Fatalf("Can(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
			}
		})
	}
}

func TestPolicyFileOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.csv")
	policy := "p, manager, rooms, write\np, facilities, rooms, write\ng, auditor, viewer\np, viewer, bookings, read_all\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	enforcer, err := NewEnforcer(EnforcerConfig{PolicyPath: path}, nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}

	if !enforcer.Can("facilities", application.PermissionWriteRooms) {
		t.Fatal("expected facilities to write rooms")
	}
	if !enforcer.Can("auditor", application.PermissionReadAllBookings) {
		t.Fatal("expected auditor to inherit read_all from viewer")
	}
	if enforcer.Can(application.RoleManager, application.PermissionDeleteAnyBooking) {
		t.Fatal("override policy should replace the embedded one")
	}
}

func TestLoadPolicyRejectsMalformedLines(t *testing.T) {
	t.Parallel()

	enforcer, err := NewEnforcer(EnforcerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	for _, policy := range []string{"p, manager", "x, a, b, c", "p, a, b"} {
		if err := loadPolicy(enforcer.enforcer, policy); err == nil {
			t.Errorf("loadPolicy(%q) expected error", policy)
		}
	}
}

func TestNilEnforcerDenies(t *testing.T) {
	t.Parallel()

	var enforcer *Enforcer
	if enforcer.Can(application.RoleManager, application.PermissionWriteRooms) {
		t.Fatal("nil enforcer must deny")
	}
	if _, err := enforcer.Allowed("manager", "rooms", "write"); err == nil {
		t.Fatal("expected error from nil enforcer")
	}
}
