package composer

import "strings"

// BuildWorkload constructs the workload for the requested topology: one
// container for TopologySingle, a front and an application container sharing
// a volume for TopologyMulti.
func BuildWorkload(params DeploymentParameters) (*Workload, error) {
	p := withDefaults(params)
	if strings.TrimSpace(p.Namespace) == "" {
		return nil, configErr("namespace", "must not be empty")
	}

	w := &Workload{
		Ref:       WorkloadRef{Name: p.Names.Deployment},
		Namespace: p.Namespace,
		Labels:    map[string]string{NameLabel: p.Names.Deployment},
	}

	switch p.Topology {
	case TopologySingle:
		image := p.Image
		if image == "" {
			image = DefaultImage
		}
		user := int64(singleContainerUser)
		w.Containers = []WorkloadSpec{{
			Name:             frontContainerName,
			Image:            image,
			Port:             singleContainerPort,
			CPURequestMillis: cpuRequestMillis,
			CPULimitMillis:   cpuLimitMillis,
			RunAsUser:        &user,
		}}

	case TopologyMulti:
		if p.Account == "" || p.Region == "" {
			return nil, configErr("topology", "multi-container images require account and region")
		}
		env := []EnvValue{{Name: "key1", Value: "value1"}}
		w.SharedVolume = SharedVolumeName
		w.Containers = []WorkloadSpec{
			{
				Name:             frontContainerName,
				Image:            ecrImage(p.Account, p.Region, frontContainerName),
				Port:             frontContainerPort,
				CPURequestMillis: cpuRequestMillis,
				CPULimitMillis:   cpuLimitMillis,
				Env:              env,
				VolumeMount:      SharedVolumePath,
			},
			{
				Name:             appContainerName,
				Image:            ecrImage(p.Account, p.Region, appContainerName),
				Port:             appContainerPort,
				CPURequestMillis: cpuRequestMillis,
				CPULimitMillis:   cpuLimitMillis,
				PostStart: &LifecycleHook{
					Command:    []string{"/bin/bash", "-c", "mv /app/* " + SharedVolumePath},
					TargetPath: SharedVolumePath,
				},
				Env:         env,
				VolumeMount: SharedVolumePath,
			},
		}

	default:
		return nil, configErr("topology", "unknown topology %q", p.Topology)
	}

	if err := ValidateWorkload(w); err != nil {
		return nil, err
	}
	return w, nil
}

// ValidateWorkload checks the per-container invariants of w.
func ValidateWorkload(w *Workload) error {
	if w.Ref.Name == "" {
		return configErr("workload.name", "must not be empty")
	}
	if len(w.Containers) == 0 {
		return configErr("workload.containers", "at least one container is required")
	}

	seen := make(map[string]bool, len(w.Containers))
	for _, c := range w.Containers {
		field := "workload.containers[" + c.Name + "]"
		if c.Name == "" {
			return configErr("workload.containers", "container name must not be empty")
		}
		if seen[c.Name] {
			return configErr(field, "duplicate container name")
		}
		seen[c.Name] = true

		if c.Image == "" {
			return configErr(field+".image", "must not be empty")
		}
		if c.Port <= 0 {
			return configErr(field+".port", "must be > 0, got %d", c.Port)
		}
		if c.CPURequestMillis < 0 {
			return configErr(field+".cpu", "request must not be negative")
		}
		if c.CPULimitMillis < c.CPURequestMillis {
			return configErr(field+".cpu", "limit %dm is below request %dm", c.CPULimitMillis, c.CPURequestMillis)
		}
		if c.VolumeMount != "" && w.SharedVolume == "" {
			return configErr(field+".volumeMount", "mounts %s but the workload declares no shared volume", c.VolumeMount)
		}
		if c.PostStart != nil {
			if len(c.PostStart.Command) == 0 {
				return configErr(field+".postStart", "command must not be empty")
			}
			if c.VolumeMount == "" {
				return configErr(field+".postStart", "lifecycle hook requires a shared volume mount")
			}
			if c.PostStart.TargetPath != c.VolumeMount {
				return configErr(field+".postStart", "hook targets %s which is not the mounted volume path %s",
					c.PostStart.TargetPath, c.VolumeMount)
			}
		}
	}
	return nil
}
