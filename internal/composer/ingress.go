package composer

import "strings"

// ALB ingress controller annotation keys.
const (
	AnnotationPrefix                 = "alb.ingress.kubernetes.io/"
	AnnotationTargetType             = AnnotationPrefix + "target-type"
	AnnotationLoadBalancerName       = AnnotationPrefix + "load-balancer-name"
	AnnotationLoadBalancerAttributes = AnnotationPrefix + "load-balancer-attributes"
	AnnotationCertificateARN         = AnnotationPrefix + "certificate-arn"
	AnnotationListenPorts            = AnnotationPrefix + "listen-ports"
	AnnotationSSLRedirect            = AnnotationPrefix + "ssl-redirect"
	AnnotationSSLPolicy              = AnnotationPrefix + "ssl-policy"
)

const (
	targetTypeIP       = "ip"
	dualListenPorts    = `[{"HTTPS":443}, {"HTTP":80}]`
	sslRedirectPort    = "443"
	defaultIngressPath = "/"
)

// BuildIngress constructs the ingress route for exposure. The TLS branch is
// selected by the presence of a certificate; access logging by the presence
// of a bucket name.
func BuildIngress(exposure *ServiceExposure, params DeploymentParameters) (*IngressRoute, error) {
	p := withDefaults(params)
	if exposure == nil || exposure.Ref.Name == "" {
		return nil, configErr("ingress.service", "service reference is required")
	}
	if exposure.Port <= 0 {
		return nil, configErr("ingress.servicePort", "service %s publishes no port", exposure.Ref.Name)
	}

	route := &IngressRoute{
		Name:        p.Names.Ingress,
		Namespace:   exposure.Namespace,
		Service:     exposure.Ref,
		ServicePort: exposure.Port,
		Path:        defaultIngressPath,
		PathMatch:   PathMatchPrefix,
		ClassName:   p.IngressClassName,
	}

	if cert := strings.TrimSpace(p.Certificate); cert != "" {
		route.TLS = &TLSListener{CertificateARN: cert, SSLPolicy: DefaultSSLPolicy}
	}
	if bucket := strings.TrimSpace(p.AlbAccessLogsBucketName); bucket != "" {
		route.AccessLogs = &AccessLogs{Bucket: bucket, Prefix: strings.Trim(p.AlbAccessLogsPrefix, "/ ")}
	}
	return route, nil
}

// LoadBalancerName is the ALB name, derived from the routed service.
func (r *IngressRoute) LoadBalancerName() string {
	return r.Service.LoadBalancerName()
}

// Annotations renders the ALB controller annotations for r. Keys for
// absent optional features are omitted, never emitted empty.
func (r *IngressRoute) Annotations() map[string]string {
	a := map[string]string{
		AnnotationTargetType:       targetTypeIP,
		AnnotationLoadBalancerName: r.LoadBalancerName(),
	}
	if r.TLS != nil && r.TLS.CertificateARN != "" {
		a[AnnotationCertificateARN] = r.TLS.CertificateARN
		a[AnnotationListenPorts] = dualListenPorts
		a[AnnotationSSLRedirect] = sslRedirectPort
		if r.TLS.SSLPolicy != "" {
			a[AnnotationSSLPolicy] = r.TLS.SSLPolicy
		}
	}
	if attrs := r.loadBalancerAttributes(); attrs != "" {
		a[AnnotationLoadBalancerAttributes] = attrs
	}
	return a
}

func (r *IngressRoute) loadBalancerAttributes() string {
	if r.AccessLogs == nil || r.AccessLogs.Bucket == "" {
		return ""
	}
	parts := []string{
		"access_logs.s3.enabled=true",
		"access_logs.s3.bucket=" + r.AccessLogs.Bucket,
	}
	if r.AccessLogs.Prefix != "" {
		parts = append(parts, "access_logs.s3.prefix="+r.AccessLogs.Prefix)
	}
	return strings.Join(parts, ",")
}
