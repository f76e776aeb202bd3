package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/felag/mailengine/internal/config"
)

// SESSender implements Sender on the AWS SES v2 API.
type SESSender struct {
	client  *sesv2.Client
	timeout time.Duration
}

// NewSESSender creates an SES-backed sender from the mail configuration.
func NewSESSender(ctx context.Context, cfg appconfig.MailConfig) (*SESSender, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client:  sesv2.NewFromConfig(awsCfg),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Send delivers one plain-text email and returns definitively.
func (s *SESSender) Send(ctx context.Context, to, subject, body, fromAddress string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}
