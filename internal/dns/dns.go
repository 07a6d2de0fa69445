// Package dns publishes DNS bindings to Route53.
package dns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-eks-go/internal/composer"
)

const changeComment = "wetwire-eks ingress alias"

// Publisher applies DNS bindings as record set upserts.
type Publisher struct {
	client route53iface.Route53API
	log    *zap.Logger
}

// NewPublisher returns a Publisher using client. A nil logger disables logging.
func NewPublisher(client route53iface.Route53API, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, log: log}
}

// NewClient builds a Route53 client from the shared AWS configuration.
func NewClient(region string) (route53iface.Route53API, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return route53.New(sess), nil
}

// ChangeInput is the UPSERT request for b.
func ChangeInput(b *composer.DNSBinding) *route53.ChangeResourceRecordSetsInput {
	return &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(b.HostedZoneID),
		ChangeBatch: &route53.ChangeBatch{
			Comment: aws.String(changeComment),
			Changes: []*route53.Change{{
				Action: aws.String(route53.ChangeActionUpsert),
				ResourceRecordSet: &route53.ResourceRecordSet{
					Name:            aws.String(b.RecordName),
					Type:            aws.String(b.Type),
					TTL:             aws.Int64(b.TTL),
					ResourceRecords: []*route53.ResourceRecord{{Value: aws.String(b.Target)}},
				},
			}},
		},
	}
}

// Publish upserts b and returns the Route53 change ID. Applying the same
// binding twice is harmless.
func (p *Publisher) Publish(ctx context.Context, b *composer.DNSBinding) (string, error) {
	if b == nil {
		return "", fmt.Errorf("dns: nil binding")
	}
	out, err := p.client.ChangeResourceRecordSetsWithContext(ctx, ChangeInput(b))
	if err != nil {
		return "", fmt.Errorf("upserting %s in zone %s: %w", b.RecordName, b.HostedZoneID, err)
	}

	var changeID string
	if out.ChangeInfo != nil {
		changeID = aws.StringValue(out.ChangeInfo.Id)
	}
	p.log.Info("dns record upserted",
		zap.String("zone", b.HostedZoneID),
		zap.String("record", b.RecordName),
		zap.String("type", b.Type),
		zap.String("target", b.Target),
		zap.String("change", changeID))
	return changeID, nil
}
