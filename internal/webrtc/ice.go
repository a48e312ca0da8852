package webrtc

import (
	"fmt"

	"github.com/pion/stun"
	"github.com/pion/webrtc/v3"
)

// ICEServer represents a STUN/TURN server configuration
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Config holds the ICE servers handed to peers. The gateway never uses them itself.
type Config struct {
	STUNURLs     []string // e.g., ["stun:stun.l.google.com:19302"]
	TURNURLs     []string // e.g., ["turn:your-server:3478"]
	TURNUsername string
	TURNPassword string
}

// Validate checks that every configured URL is a well-formed STUN or TURN URI.
func (c *Config) Validate() error {
	for _, raw := range c.STUNURLs {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("invalid STUN url %q: %w", raw, err)
		}
		if u.Scheme != stun.SchemeTypeSTUN && u.Scheme != stun.SchemeTypeSTUNS {
			return fmt.Errorf("invalid STUN url %q: unexpected scheme %s", raw, u.Scheme)
		}
	}
	for _, raw := range c.TURNURLs {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("invalid TURN url %q: %w", raw, err)
		}
		if u.Scheme != stun.SchemeTypeTURN && u.Scheme != stun.SchemeTypeTURNS {
			return fmt.Errorf("invalid TURN url %q: unexpected scheme %s", raw, u.Scheme)
		}
	}
	if len(c.TURNURLs) > 0 && c.TURNUsername == "" {
		return fmt.Errorf("TURN urls configured without a username")
	}
	return nil
}

// GetICEServers returns the ICE server configuration for clients
func (c *Config) GetICEServers() []ICEServer {
	servers := make([]ICEServer, 0, 2)

	if len(c.STUNURLs) > 0 {
		servers = append(servers, ICEServer{URLs: c.STUNURLs})
	}

	if len(c.TURNURLs) > 0 && c.TURNUsername != "" {
		servers = append(servers, ICEServer{
			URLs:       c.TURNURLs,
			Username:   c.TURNUsername,
			Credential: c.TURNPassword,
		})
	}

	return servers
}

// PionICEServers returns the same servers as pion configuration values.
func (c *Config) PionICEServers() []webrtc.ICEServer {
	servers := c.GetICEServers()
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			ice.Username = s.Username
			ice.Credential = s.Credential
			ice.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, ice)
	}
	return out
}
