package composer

import (
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Kind discriminates the emitted manifests.
type Kind string

const (
	KindDeployment              Kind = "Deployment"
	KindService                 Kind = "Service"
	KindHorizontalPodAutoscaler Kind = "HorizontalPodAutoscaler"
	KindIngress                 Kind = "Ingress"
)

// Manifest is one desired-state object handed to the cluster.
type Manifest struct {
	Kind      Kind
	Name      string
	Namespace string
	Object    runtime.Object
}

// Rollout defaults carried by every Deployment.
const (
	progressDeadlineSeconds       = 600
	terminationGracePeriodSeconds = 30
	startupFailureThreshold       = 3
	rollingUpdateBudget           = "25%"
)

// DeploymentObject renders w as an apps/v1 Deployment.
func DeploymentObject(w *Workload) *appsv1.Deployment {
	containers := make([]corev1.Container, 0, len(w.Containers))
	for _, c := range w.Containers {
		containers = append(containers, containerObject(c, w.SharedVolume))
	}

	var volumes []corev1.Volume
	if w.SharedVolume != "" {
		volumes = []corev1.Volume{{
			Name:         w.SharedVolume,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		}}
	}

	budget := intstr.FromString(rollingUpdateBudget)
	fsGroupChange := corev1.FSGroupChangeAlways
	podSecurity := &corev1.PodSecurityContext{FSGroupChangePolicy: &fsGroupChange}
	if w.NonRoot() {
		podSecurity.RunAsNonRoot = ptr(true)
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: string(KindDeployment)},
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.Ref.Name,
			Namespace: w.Namespace,
		},
		Spec: appsv1.DeploymentSpec{
			MinReadySeconds:         0,
			ProgressDeadlineSeconds: ptr(int32(progressDeadlineSeconds)),
			Selector:                &metav1.LabelSelector{MatchLabels: copyLabels(w.Labels)},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxSurge:       &budget,
					MaxUnavailable: &budget,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: copyLabels(w.Labels)},
				Spec: corev1.PodSpec{
					AutomountServiceAccountToken:  ptr(false),
					Containers:                    containers,
					DNSPolicy:                     corev1.DNSClusterFirst,
					RestartPolicy:                 corev1.RestartPolicyAlways,
					SecurityContext:               podSecurity,
					SetHostnameAsFQDN:             ptr(false),
					TerminationGracePeriodSeconds: ptr(int64(terminationGracePeriodSeconds)),
					Volumes:                       volumes,
				},
			},
		},
	}
}

func containerObject(c WorkloadSpec, sharedVolume string) corev1.Container {
	out := corev1.Container{
		Name:            c.Name,
		Image:           c.Image,
		ImagePullPolicy: corev1.PullAlways,
		Ports:           []corev1.ContainerPort{{ContainerPort: c.Port}},
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU: *resource.NewMilliQuantity(c.CPURequestMillis, resource.DecimalSI),
			},
			Limits: corev1.ResourceList{
				corev1.ResourceCPU: *resource.NewMilliQuantity(c.CPULimitMillis, resource.DecimalSI),
			},
		},
		SecurityContext: containerSecurity(c),
		StartupProbe: &corev1.Probe{
			ProbeHandler: corev1.ProbeHandler{
				TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt32(c.Port)},
			},
			FailureThreshold: startupFailureThreshold,
		},
	}

	for _, e := range c.Env {
		out.Env = append(out.Env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}
	if c.VolumeMount != "" {
		out.VolumeMounts = []corev1.VolumeMount{{Name: sharedVolume, MountPath: c.VolumeMount}}
	}
	if c.PostStart != nil {
		out.Lifecycle = &corev1.Lifecycle{
			PostStart: &corev1.LifecycleHandler{
				Exec: &corev1.ExecAction{Command: append([]string(nil), c.PostStart.Command...)},
			},
		}
	}
	return out
}

// containerSecurity locks down a container that runs as a known non-root user.
// The root filesystem stays writable when a postStart hook has to move files
// off it.
func containerSecurity(c WorkloadSpec) *corev1.SecurityContext {
	sc := &corev1.SecurityContext{
		AllowPrivilegeEscalation: ptr(false),
		Privileged:               ptr(false),
	}
	if c.RunAsUser == nil {
		return sc
	}
	sc.RunAsUser = c.RunAsUser
	sc.RunAsNonRoot = ptr(true)
	sc.ReadOnlyRootFilesystem = ptr(c.PostStart == nil)
	return sc
}

// ServiceObject renders s as a v1 Service.
func ServiceObject(s *ServiceExposure) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: string(KindService)},
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.Ref.Name,
			Namespace: s.Namespace,
		},
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{{
				Port:       s.Port,
				Protocol:   corev1.ProtocolTCP,
				TargetPort: intstr.FromInt32(s.TargetPort),
			}},
			Selector: copyLabels(s.Selector),
			Type:     corev1.ServiceType(s.Type),
		},
	}
}

// AutoscalerObject renders p as an autoscaling/v2 HorizontalPodAutoscaler.
func AutoscalerObject(p *ScalingPolicy) *autoscalingv2.HorizontalPodAutoscaler {
	return &autoscalingv2.HorizontalPodAutoscaler{
		TypeMeta: metav1.TypeMeta{APIVersion: "autoscaling/v2", Kind: string(KindHorizontalPodAutoscaler)},
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.Name,
			Namespace: p.Namespace,
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       string(KindDeployment),
				Name:       p.Target.Name,
			},
			MinReplicas: ptr(p.MinReplicas),
			MaxReplicas: p.MaxReplicas,
			Metrics: []autoscalingv2.MetricSpec{{
				Type: autoscalingv2.ResourceMetricSourceType,
				Resource: &autoscalingv2.ResourceMetricSource{
					Name: corev1.ResourceCPU,
					Target: autoscalingv2.MetricTarget{
						Type:               autoscalingv2.UtilizationMetricType,
						AverageUtilization: ptr(p.TargetCPUUtilization),
					},
				},
			}},
		},
	}
}

// IngressObject renders r as a networking.k8s.io/v1 Ingress.
func IngressObject(r *IngressRoute) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	if r.PathMatch == PathMatchExact {
		pathType = networkingv1.PathTypeExact
	}

	var className *string
	if r.ClassName != "" {
		className = ptr(r.ClassName)
	}

	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: string(KindIngress)},
		ObjectMeta: metav1.ObjectMeta{
			Name:        r.Name,
			Namespace:   r.Namespace,
			Annotations: r.Annotations(),
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: className,
			Rules: []networkingv1.IngressRule{{
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     r.Path,
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: r.Service.Name,
									Port: networkingv1.ServiceBackendPort{Number: r.ServicePort},
								},
							},
						}},
					},
				},
			}},
		},
	}
}

func copyLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
