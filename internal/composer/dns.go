package composer

import "strings"

const (
	dnsRecordType = "CNAME"
	dnsRecordTTL  = 300
)

// BuildDNSBinding aliases the configured record name to the ingress address.
//
// It must only be called once the externally assigned address is known.
// When no hosted zone and record are configured it returns (nil, true): there
// is nothing to bind. When they are configured but address is still empty it
// returns (nil, false): the load balancer is not ready yet.
func BuildDNSBinding(address string, params DeploymentParameters) (binding *DNSBinding, ready bool) {
	zoneID := strings.TrimSpace(params.HostedZoneID)
	record := strings.TrimSpace(params.RecordName)
	if zoneID == "" || record == "" {
		return nil, true
	}

	address = strings.TrimSuffix(strings.TrimSpace(address), ".")
	if address == "" {
		return nil, false
	}

	return &DNSBinding{
		HostedZoneID: zoneID,
		RecordName:   QualifyRecordName(record, params.HostedZoneName),
		Target:       address,
		Type:         dnsRecordType,
		TTL:          dnsRecordTTL,
	}, true
}

// QualifyRecordName returns record as a fully-qualified name with a trailing
// dot, appending zoneName when record is relative to the zone.
func QualifyRecordName(record, zoneName string) string {
	record = strings.TrimSuffix(strings.TrimSpace(record), ".")
	zone := strings.TrimSuffix(strings.TrimSpace(zoneName), ".")
	if zone != "" && record != zone && !strings.HasSuffix(record, "."+zone) {
		record = record + "." + zone
	}
	return record + "."
}
