package fingerprint

import "strings"

// scannerTags maps User-Agent substrings to tool names. Order matters:
// the first match wins.
var scannerTags = []struct {
	needle string
	tag    string
}{
	{"gobuster", "Gobuster"},
	{"dirsearch", "Dirsearch"},
	{"sqlmap", "SQLmap"},
	{"ffuf", "FFUF"},
	{"burp", "Burp Suite"},
	{"python-requests", "Python Script"},
	{"curl/", "Curl"},
}

// DetectScanner classifies the client tool from its declared User-Agent
// using a case-insensitive substring match. Returns "" when no known
// scanner matches.
func DetectScanner(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, s := range scannerTags {
		if strings.Contains(ua, s.needle) {
			return s.tag
		}
	}
	return ""
}
