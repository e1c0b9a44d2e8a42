// Package probes provides reference source-probe implementations target
// implementations delegate their reads to: an SNMP reader on gosnmp, a
// script probe on the embedded script environment, and an in-process
// registry for internal server metrics. Transport details stay here; the
// collection core only sees probe results.
package probes
