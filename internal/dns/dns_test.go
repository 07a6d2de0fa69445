package dns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/route53/route53iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-eks-go/internal/composer"
)

type fakeRoute53 struct {
	route53iface.Route53API
	inputs []*route53.ChangeResourceRecordSetsInput
	err    error
}

func (f *fakeRoute53) ChangeResourceRecordSetsWithContext(_ aws.Context, in *route53.ChangeResourceRecordSetsInput, _ ...request.Option) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &route53.ChangeResourceRecordSetsOutput{
		ChangeInfo: &route53.ChangeInfo{Id: aws.String("/change/C123"), Status: aws.String(route53.ChangeStatusPending)},
	}, nil
}

func testBinding() *composer.DNSBinding {
	return &composer.DNSBinding{
		HostedZoneID: "mock-zone-id",
		RecordName:   "cdk8s-samples.mydomain.com.",
		Target:       "alb-123.elb.amazonaws.com",
		Type:         "CNAME",
		TTL:          300,
	}
}

func TestChangeInput(t *testing.T) {
	in := ChangeInput(testBinding())

	assert.Equal(t, "mock-zone-id", aws.StringValue(in.HostedZoneId))
	require.Len(t, in.ChangeBatch.Changes, 1)
	change := in.ChangeBatch.Changes[0]
	assert.Equal(t, route53.ChangeActionUpsert, aws.StringValue(change.Action))

	rrs := change.ResourceRecordSet
	assert.Equal(t, "cdk8s-samples.mydomain.com.", aws.StringValue(rrs.Name))
	assert.Equal(t, "CNAME", aws.StringValue(rrs.Type))
	assert.Equal(t, int64(300), aws.Int64Value(rrs.TTL))
	require.Len(t, rrs.ResourceRecords, 1)
	assert.Equal(t, "alb-123.elb.amazonaws.com", aws.StringValue(rrs.ResourceRecords[0].Value))
}

func TestPublisher_Publish(t *testing.T) {
	fake := &fakeRoute53{}
	p := NewPublisher(fake, nil)

	id, err := p.Publish(context.Background(), testBinding())
	require.NoError(t, err)
	assert.Equal(t, "/change/C123", id)

	_, err = p.Publish(context.Background(), testBinding())
	require.NoError(t, err)
	require.Len(t, fake.inputs, 2)
	assert.Equal(t, fake.inputs[0], fake.inputs[1])
}

func TestPublisher_PublishError(t *testing.T) {
	fake := &fakeRoute53{err: errors.New("throttled")}
	p := NewPublisher(fake, nil)

	_, err := p.Publish(context.Background(), testBinding())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Contains(t, err.Error(), "mock-zone-id")
}

func TestPublisher_NilBinding(t *testing.T) {
	_, err := NewPublisher(&fakeRoute53{}, nil).Publish(context.Background(), nil)
	require.Error(t, err)
}
