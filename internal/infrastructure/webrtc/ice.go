package webrtc

import (
	"parlor/pkg/config"

	"github.com/pion/webrtc/v3"
)

// defaultICEServers is the fallback when no servers are configured.
// Public STUN is enough for candidate discovery on most networks.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

func resolveICEServers(configured []webrtc.ICEServer) []webrtc.ICEServer {
	if len(configured) == 0 {
		return defaultICEServers
	}
	return configured
}

// ICEServersFromConfig converts the ice_servers configuration section
// into pion's form. An empty section yields nil, which NewRoomTransport
// replaces with the STUN defaults.
func ICEServersFromConfig(cfg *config.Config) []webrtc.ICEServer {
	if len(cfg.WebRTC.ICEServers) == 0 {
		return nil
	}
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return servers
}
