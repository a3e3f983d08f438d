package cloudflare

// apiToken holds the Cloudflare API token. Its String/GoString forms
// always redact the value so it can never leak through a %v/%+v log line
// or an accidental fmt.Println of the provider struct.
type apiToken string

const redacted = "***REDACTED***"

func (apiToken) String() string   { return redacted }
func (apiToken) GoString() string { return redacted }
