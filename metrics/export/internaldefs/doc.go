// Package internaldefs holds the metric families and bucket bounds shared
// by the Prometheus and OTel exporters, so both publish identical series.
//
// Engine counters are grouped by the step they describe: how the session
// was obtained, how it was assigned, and what commit did with the cookie.
package internaldefs
