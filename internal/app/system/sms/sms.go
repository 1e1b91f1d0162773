// Package sms sends text messages over AWS SNS or the Twilio Messages API.
package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when a sender is built without the
// settings it needs.
var ErrNotConfigured = errors.New("sms sender not configured")

// Publisher is the part of the SNS client used for SMS.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes transactional SMS through AWS SNS.
type SNSSender struct {
	client   Publisher
	senderID string
	log      *zap.Logger
}

// NewSNSSender loads AWS credentials from the default chain for region.
func NewSNSSender(ctx context.Context, region, senderID string, logger *zap.Logger) (*SNSSender, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: aws region is empty", ErrNotConfigured)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSSenderWithClient(sns.NewFromConfig(cfg), senderID, logger), nil
}

// NewSNSSenderWithClient wraps an existing SNS client.
func NewSNSSenderWithClient(client Publisher, senderID string, logger *zap.Logger) *SNSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SNSSender{client: client, senderID: senderID, log: logger}
}

// SendSMS publishes body to phone.
func (s *SNSSender) SendSMS(ctx context.Context, phone, body string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	s.log.Debug("sms published via sns", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// messageAPI is the part of the Twilio REST client used for SMS.
type messageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioSender sends SMS with the Twilio Messages API.
type TwilioSender struct {
	api  messageAPI
	from string
}

// NewTwilioSender builds a sender for the given account and from-number.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("%w: twilio messaging credentials missing", ErrNotConfigured)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}, nil
}

// SendSMS sends body to phone.
func (t *TwilioSender) SendSMS(_ context.Context, phone, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(t.from)
	params.SetBody(body)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}
