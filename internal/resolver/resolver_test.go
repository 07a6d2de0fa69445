package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func ingress(lb ...networkingv1.IngressLoadBalancerIngress) *networkingv1.Ingress {
	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: "my-test-ingress", Namespace: "default"},
		Status: networkingv1.IngressStatus{
			LoadBalancer: networkingv1.IngressLoadBalancerStatus{Ingress: lb},
		},
	}
}

func TestIngressAddress(t *testing.T) {
	tests := []struct {
		name string
		ing  *networkingv1.Ingress
		want string
	}{
		{"nil", nil, ""},
		{"no status", ingress(), ""},
		{"hostname", ingress(networkingv1.IngressLoadBalancerIngress{Hostname: "alb-1.elb.amazonaws.com"}), "alb-1.elb.amazonaws.com"},
		{"ip only", ingress(networkingv1.IngressLoadBalancerIngress{IP: "10.0.0.1"}), "10.0.0.1"},
		{
			"hostname preferred",
			ingress(
				networkingv1.IngressLoadBalancerIngress{IP: "10.0.0.1"},
				networkingv1.IngressLoadBalancerIngress{Hostname: "alb-2.elb.amazonaws.com"},
			),
			"alb-2.elb.amazonaws.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IngressAddress(tt.ing))
		})
	}
}

func TestResolver_Address_Missing(t *testing.T) {
	r := New(fake.NewSimpleClientset())
	address, err := r.Address(context.Background(), "default", "my-test-ingress")
	require.NoError(t, err)
	assert.Empty(t, address)
}

func TestResolver_Wait_Assigned(t *testing.T) {
	client := fake.NewSimpleClientset(ingress(networkingv1.IngressLoadBalancerIngress{Hostname: "alb-1.elb.amazonaws.com"}))
	r := New(client, WithInterval(10*time.Millisecond))

	address, err := r.Wait(context.Background(), "default", "my-test-ingress")
	require.NoError(t, err)
	assert.Equal(t, "alb-1.elb.amazonaws.com", address)
}

func TestResolver_Wait_AssignedLater(t *testing.T) {
	client := fake.NewSimpleClientset(ingress())
	r := New(client, WithInterval(10*time.Millisecond), WithTimeout(5*time.Second))

	go func() {
		time.Sleep(30 * time.Millisecond)
		updated := ingress(networkingv1.IngressLoadBalancerIngress{Hostname: "alb-late.elb.amazonaws.com"})
		_, _ = client.NetworkingV1().Ingresses("default").UpdateStatus(context.Background(), updated, metav1.UpdateOptions{})
	}()

	address, err := r.Wait(context.Background(), "default", "my-test-ingress")
	require.NoError(t, err)
	assert.Equal(t, "alb-late.elb.amazonaws.com", address)
}

func TestResolver_Wait_Timeout(t *testing.T) {
	r := New(fake.NewSimpleClientset(ingress()), WithInterval(5*time.Millisecond), WithTimeout(30*time.Millisecond))

	_, err := r.Wait(context.Background(), "default", "my-test-ingress")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestNew_NonPositiveDurationsKeepDefaults(t *testing.T) {
	client := fake.NewSimpleClientset(ingress(networkingv1.IngressLoadBalancerIngress{Hostname: "alb-1.elb.amazonaws.com"}))
	r := New(client, WithInterval(0), WithTimeout(-time.Second))
	assert.Equal(t, DefaultInterval, r.interval)
	assert.Equal(t, DefaultTimeout, r.timeout)

	address, err := r.Wait(context.Background(), "default", "my-test-ingress")
	require.NoError(t, err)
	assert.Equal(t, "alb-1.elb.amazonaws.com", address)
}

func TestResolver_Wait_ZeroIntervalTimesOut(t *testing.T) {
	r := New(fake.NewSimpleClientset(ingress()), WithInterval(0), WithTimeout(30*time.Millisecond))

	_, err := r.Wait(context.Background(), "default", "my-test-ingress")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
}
