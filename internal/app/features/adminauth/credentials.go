// internal/app/features/adminauth/credentials.go
package adminauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/mukhalis/internal/app/system/normalize"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"golang.org/x/crypto/bcrypt"
)

var errEmptyCredentials = errors.New("no admin credentials configured")

// Credential is one staff login.
type Credential struct {
	Email string
	Role  string
	Hash  []byte
}

// Credentials is the staff login table, keyed by normalized email.
type Credentials map[string]Credential

// dummyHash is compared against when the email is unknown so both paths
// cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mukhalis-unknown-account"), bcrypt.MinCost)

// ParseCredentials reads "email:role:bcrypthash" entries separated by commas.
// Role must be admin or moderator.
func ParseCredentials(spec string) (Credentials, error) {
	out := Credentials{}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("admin credential %q: want email:role:hash", entry)
		}
		email := normalize.Email(parts[0])
		role := normalize.Role(parts[1])
		hash := strings.TrimSpace(parts[2])
		if email == "" {
			return nil, fmt.Errorf("admin credential %q: empty email", entry)
		}
		if !models.IsStaffRole(role) {
			return nil, fmt.Errorf("admin credential %s: role must be admin or moderator", email)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("admin credential %s: %w", email, err)
		}
		out[email] = Credential{Email: email, Role: role, Hash: []byte(hash)}
	}
	if len(out) == 0 {
		return nil, errEmptyCredentials
	}
	return out, nil
}

// Check returns the credential matching email and password.
func (c Credentials) Check(email, password string) (Credential, bool) {
	cred, ok := c[normalize.Email(email)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Credential{}, false
	}
	if bcrypt.CompareHashAndPassword(cred.Hash, []byte(password)) != nil {
		return Credential{}, false
	}
	return cred, true
}

// Permissions lists the dashboard sections a staff role may open.
func Permissions(role string) []string {
	if role == models.RoleAdmin {
		return []string{"dashboard", "users", "companies", "offices", "reviews", "settings"}
	}
	return []string{"dashboard", "reviews", "companies"}
}
