package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/hr-workforce-api/internal/config"
)

// SMSSender delivers one-time codes over SMS via AWS SNS.
type SMSSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

type sender struct {
	client *sns.Client
}

func NewSender(cfg *config.Config) (SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &sender{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *sender) SendCode(ctx context.Context, phone, code string) error {
	msg := fmt.Sprintf("Your verification code is %s. It expires shortly and can be used once.", code)
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg),
		MessageAttributes: map[string]types.MessageAttributeValue{
			// Transactional routing so carriers don't throttle codes as
			// promotional traffic.
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	return err
}
