package adminauth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestParseCredentials(t *testing.T) {
	spec := "Admin@Mukhalis.com:admin:" + hash(t, "s3cret") + " , mod@mukhalis.com:Moderator:" + hash(t, "m0d")
	creds, err := ParseCredentials(spec)
	if err != nil {
		t.Fatalf("ParseCredentials: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("len = %d, want 2", len(creds))
	}
	if c := creds["admin@mukhalis.com"]; c.Role != "admin" {
		t.Errorf("admin entry = %+v", c)
	}
	if c := creds["mod@mukhalis.com"]; c.Role != "moderator" {
		t.Errorf("moderator entry = %+v", c)
	}
}

func TestParseCredentials_Errors(t *testing.T) {
	good := hash(t, "x")
	tests := []struct {
		name string
		spec string
	}{
		{"empty", ""},
		{"missing parts", "a@b.com:admin"},
		{"bad role", "a@b.com:company:" + good},
		{"plaintext password", "a@b.com:admin:admin123"},
		{"empty email", ":admin:" + good},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCredentials(tt.spec); err == nil {
				t.Errorf("expected error for %q", tt.spec)
			}
		})
	}
}

func TestCredentials_Check(t *testing.T) {
	creds, err := ParseCredentials("admin@mukhalis.com:admin:" + hash(t, "s3cret"))
	if err != nil {
		t.Fatalf("ParseCredentials: %v", err)
	}
	if _, ok := creds.Check(" ADMIN@mukhalis.com ", "s3cret"); !ok {
		t.Error("expected match with normalized email")
	}
	if _, ok := creds.Check("admin@mukhalis.com", "wrong"); ok {
		t.Error("wrong password accepted")
	}
	if _, ok := creds.Check("nobody@mukhalis.com", "s3cret"); ok {
		t.Error("unknown email accepted")
	}
}

func TestPermissions(t *testing.T) {
	if got := Permissions("admin"); len(got) != 6 {
		t.Errorf("admin permissions = %v", got)
	}
	if got := Permissions("moderator"); len(got) != 3 {
		t.Errorf("moderator permissions = %v", got)
	}
}
