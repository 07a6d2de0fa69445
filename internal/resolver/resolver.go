// Package resolver waits for the load balancer address that the ingress
// controller assigns to an Ingress.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	DefaultTimeout  = 5 * time.Minute
	DefaultInterval = 5 * time.Second
)

// ErrNotReady is returned when the timeout expires before an address is assigned.
var ErrNotReady = errors.New("ingress address not assigned")

// Resolver polls Ingress status through the Kubernetes API.
type Resolver struct {
	client   kubernetes.Interface
	log      *zap.Logger
	timeout  time.Duration
	interval time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds how long Wait polls. Non-positive values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithInterval sets the polling interval. Non-positive values keep
// DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New returns a Resolver using client.
func New(client kubernetes.Interface, opts ...Option) *Resolver {
	r := &Resolver{
		client:   client,
		log:      zap.NewNop(),
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClient builds a clientset from the default kubeconfig loading rules.
// An explicit kubeconfig path takes precedence when set.
func NewClient(kubeconfig string) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	config, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return clientset, nil
}

// Address returns the current ingress address, or "" when none is assigned
// yet. A missing Ingress is treated as not assigned.
func (r *Resolver) Address(ctx context.Context, namespace, name string) (string, error) {
	ing, err := r.client.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get ingress %s/%s: %w", namespace, name, err)
	}
	return IngressAddress(ing), nil
}

// Wait polls until the ingress has an address or the timeout expires. The
// first check runs immediately.
func (r *Resolver) Wait(ctx context.Context, namespace, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		address, err := r.Address(ctx, namespace, name)
		if err != nil && ctx.Err() == nil {
			return "", err
		}
		if address != "" {
			r.log.Info("ingress address assigned",
				zap.String("namespace", namespace),
				zap.String("ingress", name),
				zap.String("address", address))
			return address, nil
		}
		r.log.Debug("waiting for ingress address", zap.String("namespace", namespace), zap.String("ingress", name))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("ingress %s/%s after %s: %w", namespace, name, r.timeout, ErrNotReady)
		case <-ticker.C:
		}
	}
}

// IngressAddress returns the first hostname, else the first IP, recorded in
// the ingress load balancer status.
func IngressAddress(ing *networkingv1.Ingress) string {
	if ing == nil {
		return ""
	}
	for _, lb := range ing.Status.LoadBalancer.Ingress {
		if lb.Hostname != "" {
			return lb.Hostname
		}
	}
	for _, lb := range ing.Status.LoadBalancer.Ingress {
		if lb.IP != "" {
			return lb.IP
		}
	}
	return ""
}
