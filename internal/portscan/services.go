package portscan

// UnknownService is returned for ports without a catalog entry.
const UnknownService = "unknown"

// serviceCatalog maps well-known port numbers to IANA-registered service
// names. Loaded once at process start and never mutated.
var serviceCatalog = map[int]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	465:   "smtps",
	587:   "smtp-submission",
	993:   "imaps",
	995:   "pop3s",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-proxy",
	8443:  "https-alt",
	27017: "mongodb",
}

// ServiceName returns the well-known service name for a port, or
// UnknownService when the port has no catalog entry. Pure lookup, no I/O.
func ServiceName(port int) string {
	if name, ok := serviceCatalog[port]; ok {
		return name
	}
	return UnknownService
}
