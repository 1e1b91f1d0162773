// Package ops holds the operator tasks behind mukhalisctl.
package ops

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dalemusser/mukhalis/internal/app/system/notify"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserLister lists accounts. *userstore.Store satisfies it.
type UserLister interface {
	List(ctx context.Context, role string, limit int64) ([]models.User, error)
}

// ListUsers prints up to limit users as a table.
func ListUsers(ctx context.Context, users UserLister, w io.Writer, role string, limit int64) error {
	list, err := users.List(ctx, role, limit)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHONE\tROLE\tACTIVE\tPUSH\tNAME")
	for _, u := range list {
		name := ""
		if u.IndividualProfile != nil {
			name = u.IndividualProfile.FullName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n", u.ID.Hex(), u.Phone, u.Role, u.IsActive, u.PushToken != "", name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d user(s)\n", len(list))
	return nil
}

// Promoter switches individuals to the company role.
type Promoter interface {
	PromoteToCompany(ctx context.Context, id primitive.ObjectID) (bool, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// OwnerLister reports who owns a business.
type OwnerLister interface {
	OwnerIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// PromoteOwners gives every business owner still marked individual the
// company role. With dryRun it only reports them. It returns how many
// owners needed the change.
func PromoteOwners(ctx context.Context, owners OwnerLister, users Promoter, w io.Writer, dryRun bool) (int, error) {
	ids, err := owners.OwnerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list business owners: %w", err)
	}

	fixed := 0
	for _, id := range ids {
		u, err := users.GetByID(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "skip %s: %v\n", id.Hex(), err)
			continue
		}
		if u.Role != models.RoleIndividual {
			continue
		}
		if dryRun {
			fmt.Fprintf(w, "would promote %s (%s)\n", id.Hex(), u.Phone)
			fixed++
			continue
		}
		ok, err := users.PromoteToCompany(ctx, id)
		if err != nil {
			return fixed, fmt.Errorf("promote %s: %w", id.Hex(), err)
		}
		if ok {
			fmt.Fprintf(w, "promoted %s (%s)\n", id.Hex(), u.Phone)
			fixed++
		}
	}
	verb := "promoted"
	if dryRun {
		verb = "need promotion"
	}
	fmt.Fprintf(w, "%d of %d owner(s) %s\n", fixed, len(ids), verb)
	return fixed, nil
}

// PromoteUser promotes one account.
func PromoteUser(ctx context.Context, users Promoter, id primitive.ObjectID, w io.Writer) error {
	ok, err := users.PromoteToCompany(ctx, id)
	if err != nil {
		return fmt.Errorf("promote %s: %w", id.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("user %s not found or not an individual", id.Hex())
	}
	fmt.Fprintf(w, "promoted %s\n", id.Hex())
	return nil
}

// testTemplates are the canned notifications send-test-notification uses.
var testTemplates = map[models.NotificationType]notify.Payload{
	models.NotificationSystem: {
		Title:   models.LocalizedText{AR: "إشعار النظام", EN: "System Notification"},
		Message: models.LocalizedText{AR: "هذا إشعار اختبار من نظام مخلص", EN: "This is a test notification from Mukhalis system"},
	},
	models.NotificationAnnouncement: {
		Title:   models.LocalizedText{AR: "إعلان مهم", EN: "Important Announcement"},
		Message: models.LocalizedText{AR: "لدينا ميزات جديدة رائعة! تحقق منها الآن", EN: "We have exciting new features! Check them out now"},
		Data:    map[string]any{"url": "/announcements"},
	},
	models.NotificationReview: {
		Title:   models.LocalizedText{AR: "تقييم جديد", EN: "New Review"},
		Message: models.LocalizedText{AR: "قام أحمد بتقييم مكتبك بـ 5 نجوم", EN: "Ahmed rated your office 5 stars"},
		Data:    map[string]any{"rating": 5},
	},
}

// TestPayload returns the canned notification for t. Types without their
// own template reuse the system text under type t.
func TestPayload(t models.NotificationType) (notify.Payload, error) {
	if !t.Valid() {
		return notify.Payload{}, fmt.Errorf("unknown notification type %q", t)
	}
	p, ok := testTemplates[t]
	if !ok {
		p = testTemplates[models.NotificationSystem]
	}
	p.Type = t
	data := map[string]any{"testMode": true}
	for k, v := range p.Data {
		data[k] = v
	}
	p.Data = data
	return p, nil
}

// UserSender delivers to one user. *notify.Service satisfies it.
type UserSender interface {
	SendToUser(ctx context.Context, userID primitive.ObjectID, p notify.Payload, opts notify.Options) (bool, error)
}

// SendTest sends a canned notification to one user, ignoring preferences.
func SendTest(ctx context.Context, sender UserSender, userID primitive.ObjectID, t models.NotificationType, w io.Writer) error {
	p, err := TestPayload(t)
	if err != nil {
		return err
	}
	ok, err := sender.SendToUser(ctx, userID, p, notify.Options{SaveToDB: true})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if !ok {
		fmt.Fprintf(w, "not delivered: user %s is missing or inactive\n", userID.Hex())
		return nil
	}
	fmt.Fprintf(w, "sent %s notification to %s\n", t, userID.Hex())
	return nil
}
