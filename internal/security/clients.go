package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"commerce.read","commerce.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"simulated-client": {ID: "simulated-client", Secret: "simulated-client-secret", Perms: []string{"commerce.read", "commerce.write"}, Enabled: true},
	"svc-backoffice":   {ID: "svc-backoffice", Secret: "bo-secret", Perms: []string{"commerce.read", "commerce.write"}, Enabled: true},
	"svc-analytics":    {ID: "svc-analytics", Secret: "ana-secret", Perms: []string{"commerce.read"}, Enabled: true},
}
