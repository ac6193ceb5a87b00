// internal/notify/senders.go
package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	awsclient "poultry-review/internal/common/aws"
)

// EmailSender delivers one rendered email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers one rendered SMS message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// SESEmailSender sends email through AWS SES.
type SESEmailSender struct {
	client *awsclient.SESClient
	from   string
}

func NewSESEmailSender(client *awsclient.SESClient, from string) *SESEmailSender {
	return &SESEmailSender{client: client, from: from}
}

func (s *SESEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Html: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

// SNSSMSSender sends SMS through AWS SNS.
type SNSSMSSender struct {
	client *awsclient.SNSClient
}

func NewSNSSMSSender(client *awsclient.SNSClient) *SNSSMSSender {
	return &SNSSMSSender{client: client}
}

func (s *SNSSMSSender) SendSMS(ctx context.Context, phone, body string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
	})
	return err
}
