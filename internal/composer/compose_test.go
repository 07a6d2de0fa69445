package composer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
)

func testParams() DeploymentParameters {
	return DeploymentParameters{
		Account:   "123456789012",
		Region:    "us-east-1",
		Namespace: "default",
	}
}

func ingressOf(t *testing.T, manifests []Manifest) *networkingv1.Ingress {
	t.Helper()
	for _, m := range manifests {
		if m.Kind == KindIngress {
			ing, ok := m.Object.(*networkingv1.Ingress)
			require.True(t, ok)
			return ing
		}
	}
	t.Fatal("no ingress manifest")
	return nil
}

func TestCompose_EmissionOrder(t *testing.T) {
	manifests, err := Compose(testParams())
	require.NoError(t, err)
	require.Len(t, manifests, 4)

	assert.Equal(t, KindDeployment, manifests[0].Kind)
	assert.Equal(t, KindService, manifests[1].Kind)
	assert.Equal(t, KindHorizontalPodAutoscaler, manifests[2].Kind)
	assert.Equal(t, KindIngress, manifests[3].Kind)

	for _, m := range manifests {
		assert.Equal(t, "default", m.Namespace, m.Kind)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	p := testParams()
	p.Certificate = "mock-arn"
	p.AlbAccessLogsBucketName = "mock-bucket"
	p.AdminUsers = []string{"alice"}

	first, err := Compose(p)
	require.NoError(t, err)
	second, err := Compose(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompose_HTTPSAnnotations(t *testing.T) {
	p := testParams()
	p.Certificate = "mock-arn"
	p.AlbAccessLogsBucketName = "mock-bucket"

	manifests, err := Compose(p)
	require.NoError(t, err)
	a := ingressOf(t, manifests).Annotations

	assert.Equal(t, "mock-arn", a[AnnotationCertificateARN])
	assert.Equal(t, `[{"HTTPS":443}, {"HTTP":80}]`, a[AnnotationListenPorts])
	assert.Equal(t, "443", a[AnnotationSSLRedirect])
	assert.Contains(t, a[AnnotationLoadBalancerAttributes], "mock-bucket")
	assert.Equal(t, "ip", a[AnnotationTargetType])
	assert.Equal(t, "my-service-alb", a[AnnotationLoadBalancerName])
}

func TestCompose_HTTPOnlyAnnotations(t *testing.T) {
	p := testParams()
	p.AlbAccessLogsBucketName = "mock-bucket"

	manifests, err := Compose(p)
	require.NoError(t, err)
	a := ingressOf(t, manifests).Annotations

	assert.Len(t, a, 3)
	assert.Contains(t, a, AnnotationTargetType)
	assert.Contains(t, a, AnnotationLoadBalancerName)
	assert.Equal(t, "access_logs.s3.enabled=true,access_logs.s3.bucket=mock-bucket", a[AnnotationLoadBalancerAttributes])
	for _, key := range []string{AnnotationCertificateARN, AnnotationListenPorts, AnnotationSSLRedirect, AnnotationSSLPolicy} {
		assert.NotContains(t, a, key)
	}
}

func TestCompose_NoOptionalFeatures(t *testing.T) {
	p := testParams()
	p.Certificate = "   "

	manifests, err := Compose(p)
	require.NoError(t, err)
	a := ingressOf(t, manifests).Annotations

	assert.Len(t, a, 2)
	assert.NotContains(t, a, AnnotationLoadBalancerAttributes)
	assert.NotContains(t, a, AnnotationCertificateARN)
}

func TestCompose_AccessLogsPrefix(t *testing.T) {
	p := testParams()
	p.AlbAccessLogsBucketName = "mock-bucket"
	p.AlbAccessLogsPrefix = "/alb/"

	manifests, err := Compose(p)
	require.NoError(t, err)
	assert.Equal(t,
		"access_logs.s3.enabled=true,access_logs.s3.bucket=mock-bucket,access_logs.s3.prefix=alb",
		ingressOf(t, manifests).Annotations[AnnotationLoadBalancerAttributes])
}

func TestCompose_PortIntegrity(t *testing.T) {
	tests := []struct {
		name     string
		topology Topology
		want     int32
	}{
		{"single", TopologySingle, 8080},
		{"multi", TopologyMulti, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			p.Topology = tt.topology

			manifests, err := Compose(p)
			require.NoError(t, err)

			deploy := manifests[0].Object.(*appsv1.Deployment)
			svc := manifests[1].Object.(*corev1.Service)
			ing := manifests[3].Object.(*networkingv1.Ingress)

			front := deploy.Spec.Template.Spec.Containers[0]
			assert.Equal(t, tt.want, front.Ports[0].ContainerPort)
			assert.Equal(t, tt.want, svc.Spec.Ports[0].TargetPort.IntVal)
			assert.Equal(t, int32(80), svc.Spec.Ports[0].Port)

			backend := ing.Spec.Rules[0].HTTP.Paths[0].Backend.Service
			assert.Equal(t, svc.Name, backend.Name)
			assert.Equal(t, svc.Spec.Ports[0].Port, backend.Port.Number)
		})
	}
}

func TestCompose_SelectorMatchesPodLabels(t *testing.T) {
	manifests, err := Compose(testParams())
	require.NoError(t, err)

	deploy := manifests[0].Object.(*appsv1.Deployment)
	svc := manifests[1].Object.(*corev1.Service)

	assert.Equal(t, deploy.Spec.Template.Labels, svc.Spec.Selector)
	assert.Equal(t, deploy.Spec.Selector.MatchLabels, deploy.Spec.Template.Labels)
	assert.Equal(t, DefaultDeploymentName, svc.Spec.Selector[NameLabel])
	assert.Equal(t, corev1.ServiceTypeNodePort, svc.Spec.Type)
}

func TestCompose_ScalingTargetsDeployment(t *testing.T) {
	manifests, err := Compose(testParams())
	require.NoError(t, err)

	hpa := manifests[2].Object.(*autoscalingv2.HorizontalPodAutoscaler)
	assert.Equal(t, "my-cdk8s-deployment-hpa", hpa.Name)
	assert.Equal(t, int32(2), *hpa.Spec.MinReplicas)
	assert.Equal(t, int32(5), hpa.Spec.MaxReplicas)
	assert.Equal(t, "my-cdk8s-deployment", hpa.Spec.ScaleTargetRef.Name)
	assert.Equal(t, "Deployment", hpa.Spec.ScaleTargetRef.Kind)
	require.Len(t, hpa.Spec.Metrics, 1)
	assert.Equal(t, int32(70), *hpa.Spec.Metrics[0].Resource.Target.AverageUtilization)
}

func TestCompose_RenamedServiceRenamesLoadBalancer(t *testing.T) {
	p := testParams()
	p.Names.Service = "storefront"

	manifests, err := Compose(p)
	require.NoError(t, err)

	ing := ingressOf(t, manifests)
	assert.Equal(t, "storefront-alb", ing.Annotations[AnnotationLoadBalancerName])
	assert.Equal(t, "storefront", ing.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Name)
}

func TestCompose_MultiContainerSharesVolume(t *testing.T) {
	p := testParams()
	p.Topology = TopologyMulti

	manifests, err := Compose(p)
	require.NoError(t, err)

	spec := manifests[0].Object.(*appsv1.Deployment).Spec.Template.Spec
	require.Len(t, spec.Volumes, 1)
	assert.Equal(t, SharedVolumeName, spec.Volumes[0].Name)
	assert.NotNil(t, spec.Volumes[0].EmptyDir)

	require.Len(t, spec.Containers, 2)
	for _, c := range spec.Containers {
		require.Len(t, c.VolumeMounts, 1)
		assert.Equal(t, SharedVolumePath, c.VolumeMounts[0].MountPath)
		assert.Contains(t, c.Image, "123456789012.dkr.ecr.us-east-1.amazonaws.com/")
	}

	app := spec.Containers[1]
	assert.Equal(t, "php-fpm", app.Name)
	assert.Equal(t, int32(9000), app.Ports[0].ContainerPort)
	require.NotNil(t, app.Lifecycle)
	assert.Contains(t, app.Lifecycle.PostStart.Exec.Command[2], SharedVolumePath)
}

func TestCompose_MultiContainerSecurityContext(t *testing.T) {
	p := testParams()
	p.Topology = TopologyMulti

	manifests, err := Compose(p)
	require.NoError(t, err)

	pod := manifests[0].Object.(*appsv1.Deployment).Spec.Template.Spec
	require.NotNil(t, pod.SecurityContext)
	assert.Nil(t, pod.SecurityContext.RunAsNonRoot, "images without an explicit user must not be refused")

	for _, c := range pod.Containers {
		require.NotNil(t, c.SecurityContext, c.Name)
		assert.False(t, *c.SecurityContext.AllowPrivilegeEscalation, c.Name)
		assert.Nil(t, c.SecurityContext.RunAsUser, c.Name)
		assert.Nil(t, c.SecurityContext.RunAsNonRoot, c.Name)
		assert.Nil(t, c.SecurityContext.ReadOnlyRootFilesystem, c.Name)
	}

	app := pod.Containers[1]
	require.NotNil(t, app.Lifecycle)
	assert.Equal(t, []string{"/bin/bash", "-c", "mv /app/* " + SharedVolumePath}, app.Lifecycle.PostStart.Exec.Command)
}

func TestContainerSecurity_HookKeepsRootWritable(t *testing.T) {
	user := int64(1005)
	c := WorkloadSpec{
		Name:        "app",
		RunAsUser:   &user,
		VolumeMount: SharedVolumePath,
		PostStart:   &LifecycleHook{Command: []string{"true"}, TargetPath: SharedVolumePath},
	}

	sc := containerSecurity(c)
	assert.True(t, *sc.RunAsNonRoot)
	assert.Equal(t, int64(1005), *sc.RunAsUser)
	assert.False(t, *sc.ReadOnlyRootFilesystem)

	c.PostStart = nil
	assert.True(t, *containerSecurity(c).ReadOnlyRootFilesystem)
}

func TestCompose_SecurityDefaults(t *testing.T) {
	manifests, err := Compose(testParams())
	require.NoError(t, err)

	deploy := manifests[0].Object.(*appsv1.Deployment)
	pod := deploy.Spec.Template.Spec
	assert.False(t, *pod.AutomountServiceAccountToken)
	assert.True(t, *pod.SecurityContext.RunAsNonRoot)
	assert.Nil(t, deploy.Spec.Replicas)

	c := pod.Containers[0]
	assert.False(t, *c.SecurityContext.AllowPrivilegeEscalation)
	assert.True(t, *c.SecurityContext.ReadOnlyRootFilesystem)
	assert.Equal(t, int64(1005), *c.SecurityContext.RunAsUser)
	assert.Equal(t, "250m", c.Resources.Requests.Cpu().String())
	assert.Equal(t, "1", c.Resources.Limits.Cpu().String())
}

func TestCompose_MissingNamespace(t *testing.T) {
	p := testParams()
	p.Namespace = ""

	manifests, err := Compose(p)
	require.Error(t, err)
	assert.Nil(t, manifests)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "namespace", cfgErr.Field)
}

func TestValidateParameters_AggregatesViolations(t *testing.T) {
	p := DeploymentParameters{
		Namespace:               "Not_A_Label",
		RecordName:              "app.example.com",
		AlbAccessLogsBucketName: "UPPER",
		PublishedPort:           70000,
	}

	err := ValidateParameters(p)
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 4)

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		var cfgErr *ConfigurationError
		require.True(t, errors.As(e, &cfgErr))
		fields = append(fields, cfgErr.Field)
	}
	assert.Equal(t, []string{"namespace", "hostedZoneId", "albAccessLogsBucketName", "publishedPort"}, fields)
}

func TestCompose_MalformedAdminFailsWhole(t *testing.T) {
	p := testParams()
	p.AdminUsers = []string{"alice"}
	p.AdminRoles = []string{"bad role/name"}

	manifests, err := Compose(p)
	require.Error(t, err)
	assert.Nil(t, manifests)

	var idErr *IdentityFormatError
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, IdentityRole, idErr.Kind)
	assert.Equal(t, "bad role/name", idErr.Identity)
}

func TestNewPlan_AdminBindings(t *testing.T) {
	p := testParams()
	p.AdminUsers = []string{"alice"}
	p.AdminRoles = []string{"ops-admin"}

	plan, err := NewPlan(p)
	require.NoError(t, err)
	require.Len(t, plan.Admins, 2)

	assert.Equal(t, "arn:aws:iam::123456789012:user/alice", plan.Admins[0].ARN)
	assert.Equal(t, "arn:aws:iam::123456789012:role/ops-admin", plan.Admins[1].ARN)
	assert.Equal(t, []string{ClusterAdminGroup}, plan.Admins[1].Groups)
	assert.Equal(t, ClusterAdminPolicyARN, plan.Admins[1].PolicyARN)
}

func TestCompose_MultiRequiresAccount(t *testing.T) {
	p := testParams()
	p.Topology = TopologyMulti
	p.Account = ""

	_, err := Compose(p)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "topology", cfgErr.Field)
}
