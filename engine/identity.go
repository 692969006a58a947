package engine

// IdentitySource yields the client identity string sent with each request.
type IdentitySource interface {
	UserAgent() string
}

// desktopAgents is the built-in rotation used when no richer source is wired.
var desktopAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.7; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Rotation picks uniformly from a fixed list of agents.
type Rotation struct {
	agents []string
	pacer  *Pacer
}

// NewRotation creates a Rotation over agents, or the built-in list if empty.
func NewRotation(pacer *Pacer, agents ...string) *Rotation {
	if len(agents) == 0 {
		agents = desktopAgents
	}
	return &Rotation{agents: agents, pacer: pacer}
}

func (r *Rotation) UserAgent() string {
	return r.agents[r.pacer.Intn(len(r.agents))]
}
