package composer

// BuildScaling constructs the autoscaling policy for workload.
func BuildScaling(workload *Workload, min, max, targetUtil int32) (*ScalingPolicy, error) {
	if workload == nil || workload.Ref.Name == "" {
		return nil, configErr("scaling.target", "workload reference is required")
	}
	if min < 1 {
		return nil, configErr("scaling.minReplicas", "must be >= 1, got %d", min)
	}
	if max < min {
		return nil, configErr("scaling.maxReplicas", "must be >= minReplicas (%d), got %d", min, max)
	}
	if targetUtil < 0 || targetUtil > 100 {
		return nil, configErr("scaling.targetCPUUtilization", "must be within 0-100, got %d", targetUtil)
	}

	return &ScalingPolicy{
		Name:                 workload.Ref.Name + "-hpa",
		Namespace:            workload.Namespace,
		Target:               workload.Ref,
		MinReplicas:          min,
		MaxReplicas:          max,
		TargetCPUUtilization: targetUtil,
	}, nil
}
