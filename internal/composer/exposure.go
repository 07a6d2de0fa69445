package composer

// BuildExposure constructs the Service for workload. The target port is
// always the front container's port; it cannot be set independently.
func BuildExposure(workload *Workload, name string, publishedPort int32, typ ExposureType) (*ServiceExposure, error) {
	if workload == nil || workload.Ref.Name == "" {
		return nil, configErr("service.target", "workload reference is required")
	}
	if name == "" {
		return nil, configErr("service.name", "must not be empty")
	}
	if publishedPort <= 0 {
		return nil, configErr("service.port", "must be > 0, got %d", publishedPort)
	}
	switch typ {
	case ExposureClusterIP, ExposureNodePort:
	default:
		return nil, configErr("service.type", "unsupported exposure type %q", typ)
	}

	targetPort := workload.FrontPort()
	if targetPort <= 0 {
		return nil, configErr("service.targetPort", "workload %s declares no container port", workload.Ref.Name)
	}

	selector := make(map[string]string, len(workload.Labels))
	for k, v := range workload.Labels {
		selector[k] = v
	}

	return &ServiceExposure{
		Ref:        ServiceRef{Name: name},
		Namespace:  workload.Namespace,
		Target:     workload.Ref,
		Selector:   selector,
		TargetPort: targetPort,
		Port:       publishedPort,
		Type:       typ,
	}, nil
}
