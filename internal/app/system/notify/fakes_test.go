package notify

import (
	"context"
	"errors"
	"sync"

	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var errBoom = errors.New("boom")

type memUsers struct {
	byID    map[primitive.ObjectID]*models.User
	lookErr error
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byID: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if m.lookErr != nil {
		return nil, m.lookErr
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ListPushRecipients(_ context.Context, roles []string) ([]models.User, error) {
	if m.lookErr != nil {
		return nil, m.lookErr
	}
	var out []models.User
	for _, u := range m.byID {
		if !u.IsActive || u.PushToken == "" {
			continue
		}
		if len(roles) > 0 && !contains(roles, u.Role) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type memRecords struct {
	mu         sync.Mutex
	individual []notificationstore.Draft
	owners     []primitive.ObjectID
	broadcasts [][]string
	failInsert bool
}

func (m *memRecords) InsertIndividual(_ context.Context, userID primitive.ObjectID, d notificationstore.Draft) (*models.IndividualNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return nil, errBoom
	}
	m.individual = append(m.individual, d)
	m.owners = append(m.owners, userID)
	return &models.IndividualNotification{UserID: userID}, nil
}

func (m *memRecords) InsertBroadcast(_ context.Context, roles []string, d notificationstore.Draft) (*models.BroadcastNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return nil, errBoom
	}
	m.broadcasts = append(m.broadcasts, roles)
	return &models.BroadcastNotification{Roles: roles}, nil
}

func (m *memRecords) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.individual) + len(m.broadcasts)
}

type memBusinesses map[primitive.ObjectID]*models.Business

func (m memBusinesses) GetByID(_ context.Context, id primitive.ObjectID) (*models.Business, error) {
	b, ok := m[id]
	if !ok {
		return nil, businessstore.ErrNotFound
	}
	return b, nil
}

// fakeGateway records messages. Tokens listed in fail get err back.
type fakeGateway struct {
	mu   sync.Mutex
	sent []push.Message
	fail map[string]error
}

func (g *fakeGateway) Send(_ context.Context, msg push.Message) (push.Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.fail[msg.To]; ok {
		return push.Ticket{}, err
	}
	g.sent = append(g.sent, msg)
	return push.Ticket{ID: "t", Status: "ok"}, nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type deadSink struct {
	mu     sync.Mutex
	tokens []string
}

func (d *deadSink) Enqueue(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
}
