// Package push sends mobile push notifications through the Expo push service
// using the Expo server SDK.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/system/metrics"
	"github.com/google/uuid"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultExpoURL is Expo's push send endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

var (
	// ErrInvalidToken is returned for tokens that are not Expo push tokens.
	// No request is made for them.
	ErrInvalidToken = errors.New("invalid push token")
	// ErrTicket is matched by errors describing a ticket with status "error".
	ErrTicket = errors.New("push ticket error")
)

var tokenPattern = regexp.MustCompile(`^(?:Exponent|Expo)PushToken\[[^\]]+\]$`)

// ValidToken reports whether token looks like an Expo push token.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// Message is one push notification.
type Message struct {
	To        string         `json:"to"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Sound     string         `json:"sound,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
}

// Ticket is Expo's per-message receipt.
type Ticket struct {
	ID      string         `json:"id,omitempty"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

// TicketDetails carries the machine-readable ticket error.
type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// TicketError wraps a ticket whose status is "error". Cause holds the
// SDK's classified error when there is one.
type TicketError struct {
	Ticket Ticket
	Cause  error
}

func (e *TicketError) Error() string {
	code := ""
	if e.Ticket.Details != nil {
		code = e.Ticket.Details.Error
	}
	return fmt.Sprintf("push ticket error: %s (%s)", e.Ticket.Message, code)
}

func (e *TicketError) Is(target error) bool { return target == ErrTicket }

func (e *TicketError) Unwrap() error { return e.Cause }

// IsDeviceNotRegistered reports whether err says the token is no longer
// valid and should be cleared from the user.
func IsDeviceNotRegistered(err error) bool {
	var dnr *expo.DeviceNotRegisteredError
	if errors.As(err, &dnr) {
		return true
	}
	var te *TicketError
	if !errors.As(err, &te) {
		return false
	}
	return te.Ticket.Details != nil && te.Ticket.Details.Error == expo.ErrorDeviceNotRegistered
}

// Gateway delivers a single push message.
type Gateway interface {
	Send(ctx context.Context, msg Message) (Ticket, error)
}

// ExpoGateway publishes messages through the Expo push SDK.
type ExpoGateway struct {
	host   string
	apiURL string
	client *http.Client
	log    *zap.Logger
}

// NewExpoGateway builds a gateway. sendURL is the full push/send endpoint
// (a bare host uses Expo's default API path). When accessToken is set,
// requests carry it as a bearer token (Expo "enhanced push security").
func NewExpoGateway(sendURL, accessToken string, timeout time.Duration, logger *zap.Logger) *ExpoGateway {
	if sendURL == "" {
		sendURL = DefaultExpoURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	host, apiURL := splitSendURL(sendURL)
	client := &http.Client{}
	if accessToken != "" {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}))
	}
	client.Timeout = timeout
	return &ExpoGateway{host: host, apiURL: apiURL, client: client, log: logger}
}

func splitSendURL(raw string) (host, apiURL string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return expo.DefaultHost, expo.DefaultBaseAPIURL
	}
	apiURL = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/push/send")
	if apiURL == "" {
		apiURL = expo.DefaultBaseAPIURL
	}
	return u.Scheme + "://" + u.Host, apiURL
}

// ctxTransport binds the caller's context to requests the SDK builds.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(r.WithContext(t.ctx))
}

func (g *ExpoGateway) pushClient(ctx context.Context) *expo.PushClient {
	base := g.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return expo.NewPushClient(&expo.ClientConfig{
		Host:   g.host,
		APIURL: g.apiURL,
		HTTPClient: &http.Client{
			Transport: ctxTransport{ctx: ctx, base: base},
			Timeout:   g.client.Timeout,
		},
	})
}

// Send validates the token and publishes msg. A ticket with status "error"
// is returned together with a *TicketError.
func (g *ExpoGateway) Send(ctx context.Context, msg Message) (Ticket, error) {
	if !ValidToken(msg.To) {
		metrics.PushDeliveries.WithLabelValues("invalid_token").Inc()
		return Ticket{}, ErrInvalidToken
	}
	to, err := expo.NewExponentPushToken(msg.To)
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("invalid_token").Inc()
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if msg.Sound == "" {
		msg.Sound = "default"
	}

	start := time.Now()
	resp, err := g.pushClient(ctx).Publish(&expo.PushMessage{
		To:        []expo.ExponentPushToken{to},
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      stringData(msg.Data),
		Sound:     msg.Sound,
		Priority:  msg.Priority,
		ChannelID: msg.ChannelID,
	})
	metrics.PushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		return Ticket{}, fmt.Errorf("push request: %w", err)
	}

	ticket := Ticket{ID: resp.ID, Status: resp.Status, Message: resp.Message}
	if code := resp.Details["error"]; code != "" {
		ticket.Details = &TicketDetails{Error: code}
	}
	if verr := resp.ValidateResponse(); verr != nil {
		metrics.PushDeliveries.WithLabelValues("ticket_error").Inc()
		terr := &TicketError{Ticket: ticket, Cause: verr}
		if IsDeviceNotRegistered(terr) {
			g.log.Warn("push token no longer registered", zap.String("token", msg.To))
		} else {
			g.log.Warn("push ticket error", zap.String("message", ticket.Message))
		}
		return ticket, terr
	}

	metrics.PushDeliveries.WithLabelValues("sent").Inc()
	return ticket, nil
}

// stringData flattens data to the string map Expo's SDK carries. Strings
// pass through; other values are JSON-encoded.
func stringData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch x := v.(type) {
		case string:
			out[k] = x
		default:
			b, err := json.Marshal(x)
			if err != nil {
				out[k] = fmt.Sprint(x)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

// LogGateway logs messages instead of sending them. It is used when push
// delivery is disabled.
type LogGateway struct {
	Log *zap.Logger
}

// Send validates the token like ExpoGateway and logs the message.
func (g LogGateway) Send(_ context.Context, msg Message) (Ticket, error) {
	if !ValidToken(msg.To) {
		return Ticket{}, ErrInvalidToken
	}
	id := uuid.NewString()
	if g.Log != nil {
		g.Log.Info("push (log only)",
			zap.String("ticket", id),
			zap.String("to", msg.To),
			zap.String("title", msg.Title))
	}
	return Ticket{ID: id, Status: "ok"}, nil
}
