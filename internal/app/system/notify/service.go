package notify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	"github.com/dalemusser/mukhalis/internal/app/system/metrics"
	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchSize bounds how many pushes a broadcast has in flight.
const BatchSize = 100

// Users is the user lookup the Service needs. *userstore.Store satisfies it.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListPushRecipients(ctx context.Context, roles []string) ([]models.User, error)
}

// Records persists notifications. *notificationstore.Store satisfies it.
type Records interface {
	InsertIndividual(ctx context.Context, userID primitive.ObjectID, d notificationstore.Draft) (*models.IndividualNotification, error)
	InsertBroadcast(ctx context.Context, roles []string, d notificationstore.Draft) (*models.BroadcastNotification, error)
}

// Businesses resolves business owners.
type Businesses interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Business, error)
}

// DeadTokens receives push tokens the gateway reported as unregistered.
type DeadTokens interface {
	Enqueue(token string)
}

// Service delivers notifications.
type Service struct {
	users      Users
	records    Records
	businesses Businesses
	gateway    push.Gateway
	dead       DeadTokens
	log        *zap.Logger
}

// NewService wires a Service. dead may be nil.
func NewService(users Users, records Records, businesses Businesses, gateway push.Gateway, dead DeadTokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:      users,
		records:    records,
		businesses: businesses,
		gateway:    gateway,
		dead:       dead,
		log:        logger,
	}
}

func draftOf(p Payload) notificationstore.Draft {
	return notificationstore.Draft{
		Type:    p.Type,
		Title:   p.Title,
		Message: p.Message,
		Data:    p.Data,
	}
}

// SendToUser notifies one user. It returns false without side effects when
// the user is missing, inactive, or filtered by preferences. A push failure
// does not change the result.
func (s *Service) SendToUser(ctx context.Context, userID primitive.ObjectID, p Payload, opts Options) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.log.Warn("notify: user not found", zap.String("user_id", userID.Hex()))
			metrics.NotificationsDispatched.WithLabelValues("individual", "no_user").Inc()
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		metrics.NotificationsDispatched.WithLabelValues("individual", "inactive").Inc()
		return false, nil
	}

	if opts.CheckPreferences && !ShouldDeliver(u.NotificationPreferences, p.Type) {
		s.log.Info("notify: skipped by preferences",
			zap.String("user_id", userID.Hex()),
			zap.String("type", string(p.Type)))
		metrics.NotificationsDispatched.WithLabelValues("individual", "filtered").Inc()
		return false, nil
	}

	if opts.SaveToDB {
		if _, err := s.records.InsertIndividual(ctx, u.ID, draftOf(p)); err != nil {
			return false, fmt.Errorf("save notification: %w", err)
		}
	}

	if pushAllowed(u) {
		s.push(ctx, u.PushToken, p)
	}

	metrics.NotificationsDispatched.WithLabelValues("individual", "delivered").Inc()
	return true, nil
}

// SendToRole records one broadcast addressed to roles and pushes it to
// every active member of those roles holding a token.
func (s *Service) SendToRole(ctx context.Context, roles []string, p Payload, opts Options) (Counts, error) {
	if len(roles) == 0 {
		return Counts{}, errors.New("notify: no roles given")
	}
	if opts.SaveToDB {
		if _, err := s.records.InsertBroadcast(ctx, roles, draftOf(p)); err != nil {
			return Counts{}, fmt.Errorf("save broadcast: %w", err)
		}
	}

	users, err := s.users.ListPushRecipients(ctx, roles)
	if err != nil {
		return Counts{}, fmt.Errorf("list recipients: %w", err)
	}

	c := s.fanOut(ctx, users, p, opts, len(users))
	metrics.NotificationsDispatched.WithLabelValues("roles", "delivered").Inc()
	s.log.Info("role notification",
		zap.Strings("roles", roles),
		zap.Int("sent", c.Sent),
		zap.Int("skipped", c.Skipped))
	return c, nil
}

// SendToAll records one broadcast for everyone and pushes it in batches of
// BatchSize.
func (s *Service) SendToAll(ctx context.Context, p Payload, opts Options) (Counts, error) {
	if opts.SaveToDB {
		if _, err := s.records.InsertBroadcast(ctx, nil, draftOf(p)); err != nil {
			return Counts{}, fmt.Errorf("save broadcast: %w", err)
		}
	}

	users, err := s.users.ListPushRecipients(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("list recipients: %w", err)
	}

	var total Counts
	for start := 0; start < len(users); start += BatchSize {
		end := start + BatchSize
		if end > len(users) {
			end = len(users)
		}
		c := s.fanOut(ctx, users[start:end], p, opts, BatchSize)
		total.Sent += c.Sent
		total.Skipped += c.Skipped
	}

	metrics.NotificationsDispatched.WithLabelValues("all", "delivered").Inc()
	s.log.Info("broadcast notification",
		zap.Int("sent", total.Sent),
		zap.Int("skipped", total.Skipped))
	return total, nil
}

// fanOut pushes p to users with at most limit sends in flight.
func (s *Service) fanOut(ctx context.Context, users []models.User, p Payload, opts Options, limit int) Counts {
	if limit > BatchSize || limit <= 0 {
		limit = BatchSize
	}
	var sent, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range users {
		u := &users[i]
		if opts.CheckPreferences && !ShouldDeliver(u.NotificationPreferences, p.Type) {
			skipped.Add(1)
			continue
		}
		if !pushAllowed(u) {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if s.push(gctx, u.PushToken, p) {
				sent.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Counts{Sent: int(sent.Load()), Skipped: int(skipped.Load())}
}

// SendToBusinessOwner resolves the owner of a business and notifies them,
// adding businessId to the payload data.
func (s *Service) SendToBusinessOwner(ctx context.Context, businessID primitive.ObjectID, p Payload, opts Options) (bool, error) {
	b, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, businessstore.ErrNotFound) {
			s.log.Warn("notify: business not found", zap.String("business_id", businessID.Hex()))
			return false, nil
		}
		return false, fmt.Errorf("load business: %w", err)
	}
	if b.OwnerID.IsZero() {
		s.log.Warn("notify: business has no owner", zap.String("business_id", businessID.Hex()))
		return false, nil
	}

	data := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	data["businessId"] = businessID.Hex()
	p.Data = data

	return s.SendToUser(ctx, b.OwnerID, p, opts)
}

// push sends one message and reports whether the gateway accepted it.
// Failures are logged and never returned.
func (s *Service) push(ctx context.Context, token string, p Payload) bool {
	data := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	data["notificationType"] = string(p.Type)

	prio := p.Priority
	if prio == "" {
		prio = PriorityHigh
	}

	pctx, cancel := context.WithTimeout(ctx, timeouts.Push())
	defer cancel()

	_, err := s.gateway.Send(pctx, push.Message{
		To:        token,
		Title:     p.Title.AR,
		Body:      p.Message.AR,
		Data:      data,
		Sound:     "default",
		Priority:  string(prio),
		ChannelID: AndroidChannel,
	})
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, push.ErrInvalidToken):
		s.log.Warn("push skipped: malformed token", zap.String("type", string(p.Type)))
	case push.IsDeviceNotRegistered(err):
		s.log.Info("push token no longer registered", zap.Error(err))
		if s.dead != nil {
			s.dead.Enqueue(token)
		}
	default:
		s.log.Warn("push failed", zap.Error(err), zap.String("type", string(p.Type)))
	}
	return false
}
