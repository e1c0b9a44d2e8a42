package probes

import (
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/models"
)

const defaultSNMPPort = 161

// SNMPReader reads single OIDs from one SNMP endpoint.
type SNMPReader struct {
	Target    string
	Community string
	Timeout   time.Duration
	Retries   int
}

// Read fetches one OID. A zero port uses the default SNMP port; raw forces
// numeric interpretation of octet-string payloads.
func (r *SNMPReader) Read(port uint16, oid string, raw models.SNMPRawKind) (string, models.ProbeResult) {
	if port == 0 {
		port = defaultSNMPPort
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	client := &gosnmp.GoSNMP{
		Target:    r.Target,
		Port:      port,
		Community: r.Community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   r.Retries,
	}
	if err := client.Connect(); err != nil {
		zap.S().Named("snmp_probe").Debugw("connect failed", "target", r.Target, "error", err)
		return "", models.ProbeCommError
	}
	defer client.Conn.Close()

	packet, err := client.Get([]string{oid})
	if err != nil {
		zap.S().Named("snmp_probe").Debugw("get failed", "target", r.Target, "oid", oid, "error", err)
		return "", models.ProbeCommError
	}
	if len(packet.Variables) == 0 {
		return "", models.ProbeCollectionError
	}

	pdu := packet.Variables[0]
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return "", models.ProbeNoSuchInstance
	case gosnmp.OctetString:
		payload, ok := pdu.Value.([]byte)
		if !ok {
			return "", models.ProbeCollectionError
		}
		return interpretOctetString(payload, raw), models.ProbeSuccess
	default:
		return gosnmp.ToBigInt(pdu.Value).String(), models.ProbeSuccess
	}
}

// interpretOctetString renders an octet-string payload, forcing integer
// interpretation when the item's raw flag asks for it.
func interpretOctetString(payload []byte, raw models.SNMPRawKind) string {
	if raw == models.SNMPRawNone {
		return string(payload)
	}

	var v uint64
	for _, b := range payload {
		v = v<<8 | uint64(b)
	}
	switch raw {
	case models.SNMPRawInt32:
		return strconv.FormatInt(int64(int32(v)), 10)
	case models.SNMPRawInt64:
		return strconv.FormatInt(int64(v), 10)
	case models.SNMPRawDouble:
		return strconv.FormatUint(v, 10)
	default:
		return strconv.FormatUint(v, 10)
	}
}
