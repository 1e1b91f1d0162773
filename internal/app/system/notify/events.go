package notify

import (
	"context"
	"fmt"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotifyNewReview tells a business owner about a new rating.
func (s *Service) NotifyNewReview(ctx context.Context, businessID primitive.ObjectID, reviewerName string, rating int) (bool, error) {
	return s.SendToBusinessOwner(ctx, businessID, Payload{
		Type: models.NotificationReview,
		Title: models.LocalizedText{
			AR: "تقييم جديد",
			EN: "New Review",
		},
		Message: models.LocalizedText{
			AR: fmt.Sprintf("قام %s بتقييم مكتبك بـ %d نجوم", reviewerName, rating),
			EN: fmt.Sprintf("%s rated your office %d stars", reviewerName, rating),
		},
		Data:     map[string]any{"rating": rating},
		Priority: PriorityHigh,
	}, DefaultOptions)
}

// NotifyWelcome greets a new user. Preferences are not consulted.
func (s *Service) NotifyWelcome(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	return s.SendToUser(ctx, userID, Payload{
		Type: models.NotificationSystem,
		Title: models.LocalizedText{
			AR: "مرحباً بك في مُخلِّص!",
			EN: "Welcome to Mukhalis!",
		},
		Message: models.LocalizedText{
			AR: "ابدأ بتصفح المكاتب واكتشف أفضل خدمات التخليص الجمركي",
			EN: "Start browsing offices and discover the best customs clearance services",
		},
		Priority: PriorityDefault,
	}, Options{CheckPreferences: false, SaveToDB: true})
}

// NotifyBusinessStatus tells an owner their business was approved or
// rejected. reason is only used for rejections.
func (s *Service) NotifyBusinessStatus(ctx context.Context, businessID primitive.ObjectID, status, reason string) (bool, error) {
	var title, msg models.LocalizedText
	switch status {
	case models.VerificationApproved:
		title = models.LocalizedText{AR: "تم توثيق مكتبك", EN: "Your office is verified"}
		msg = models.LocalizedText{
			AR: "تمت الموافقة على مكتبك وأصبح ظاهراً للعملاء",
			EN: "Your office has been approved and is now visible to clients",
		}
	case models.VerificationRejected:
		title = models.LocalizedText{AR: "لم يتم قبول مكتبك", EN: "Your office was not approved"}
		msg = models.LocalizedText{
			AR: "يرجى مراجعة بيانات مكتبك وإعادة الإرسال",
			EN: "Please review your office details and resubmit",
		}
		if reason != "" {
			msg.AR += ": " + reason
			msg.EN += ": " + reason
		}
	default:
		return false, fmt.Errorf("notify: no message for status %q", status)
	}

	data := map[string]any{"status": status}
	if reason != "" {
		data["reason"] = reason
	}
	return s.SendToBusinessOwner(ctx, businessID, Payload{
		Type:     models.NotificationVerificationStatus,
		Title:    title,
		Message:  msg,
		Data:     data,
		Priority: PriorityHigh,
	}, Options{CheckPreferences: false, SaveToDB: true})
}

// NotifyNewBusiness alerts staff that a business is waiting for review.
func (s *Service) NotifyNewBusiness(ctx context.Context, b *models.Business) (Counts, error) {
	name := b.DisplayName()
	return s.SendToRole(ctx, []string{models.RoleAdmin, models.RoleModerator}, Payload{
		Type: models.NotificationNewBusiness,
		Title: models.LocalizedText{
			AR: "مكتب جديد بانتظار المراجعة",
			EN: "New office awaiting review",
		},
		Message: models.LocalizedText{
			AR: fmt.Sprintf("سجّل %s وينتظر التوثيق", name),
			EN: fmt.Sprintf("%s registered and is awaiting verification", name),
		},
		Data:     map[string]any{"businessId": b.ID.Hex()},
		Priority: PriorityNormal,
	}, Options{CheckPreferences: false, SaveToDB: true})
}
