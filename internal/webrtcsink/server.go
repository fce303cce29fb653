// Package webrtcsink ships normalized frames to WebRTC viewers over a
// data channel. Signaling is plain HTTP offer/answer; each client has
// a bounded frame queue and slow clients lose frames, never the
// pipeline.
package webrtcsink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/internal/metrics"
	"github.com/camfeed/camfeed/pkg/types"
)

const (
	// frameChannelLabel names the data channel carrying frame messages.
	frameChannelLabel = "video"

	// clientQueueDepth bounds per-client buffering; roughly one second
	// at the default capture rate.
	clientQueueDepth = 20

	// maxBufferedBytes stops queueing into a client whose SCTP buffer
	// is already backed up.
	maxBufferedBytes = 8 << 20
)

// Client represents one connected viewer.
type Client struct {
	id            string
	peerConn      *webrtc.PeerConnection
	dataChan      *webrtc.DataChannel
	frameChan     chan []byte
	closeChan     chan struct{}
	closeOnce     sync.Once
	framesSent    uint64
	framesDropped uint64
}

// Server manages WebRTC viewer connections and fans dispatched frames
// out to them. It implements the pipeline sink contract.
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	metrics    *metrics.Metrics
}

// NewServer creates a sink server using the given STUN servers.
func NewServer(stunServers []string, maxClients int, m *metrics.Metrics) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		if url != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
		}
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients:    make(map[string]*Client),
		config:     webrtc.Configuration{ICEServers: iceServers},
		maxClients: maxClients,
		api:        api,
		metrics:    m,
	}
}

// HandleOffer handles a viewer's SDP offer and returns the answer,
// with ICE candidates gathered, as JSON.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}

	s.clientsMu.RLock()
	numClients := len(s.clients)
	s.clientsMu.RUnlock()
	if numClients >= s.maxClients {
		return nil, fmt.Errorf("maximum clients reached (%d)", s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	// Frames tolerate loss but not reordering artifacts on a live
	// feed; unordered delivery keeps a late frame from stalling the
	// ones behind it.
	ordered := false
	dataChan, err := peerConn.CreateDataChannel(frameChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	client := &Client{
		id:        generateClientID(),
		peerConn:  peerConn,
		dataChan:  dataChan,
		frameChan: make(chan []byte, clientQueueDepth),
		closeChan: make(chan struct{}),
	}

	dataChan.OnOpen(func() {
		logger.Info("WebRTC", "Client %s data channel open", client.id)
		go s.sendFrames(client)
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())
		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (%s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	if err := peerConn.SetLocalDescription(answer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.TotalClients.Add(1)
		s.metrics.ActiveClients.Store(uint64(s.ClientCount()))
	}
	logger.Info("WebRTC", "Client %s connected", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		return nil, fmt.Errorf("no local description available")
	}
	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}
	return answerJSON, nil
}

// Submit serializes the frame once and queues it to every connected
// client without blocking. Implements the pipeline sink contract.
func (s *Server) Submit(frame *types.PlanarFrame, timestampUS int64) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	payload := marshalFrame(frame, timestampUS)
	for _, client := range s.clients {
		select {
		case client.frameChan <- payload:
			client.framesSent++
			if s.metrics != nil {
				s.metrics.SinkFramesSent.Add(1)
			}
		default:
			client.framesDropped++
			if s.metrics != nil {
				s.metrics.SinkFramesDropped.Add(1)
			}
		}
	}
}

// sendFrames drains one client's queue onto its data channel.
func (s *Server) sendFrames(client *Client) {
	for {
		select {
		case <-client.closeChan:
			return
		case payload, ok := <-client.frameChan:
			if !ok {
				return
			}
			if client.dataChan.BufferedAmount() > maxBufferedBytes {
				// Transport backed up: latest frame wins, this one goes.
				client.framesDropped++
				if s.metrics != nil {
					s.metrics.SinkFramesDropped.Add(1)
				}
				continue
			}
			if err := client.dataChan.Send(payload); err != nil {
				logger.Warn("WebRTC", "Error sending frame to client %s: %v", client.id, err)
				return
			}
		}
	}
}

// RemoveClient removes a client by ID.
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	s.clientsMu.Unlock()

	if !exists {
		return
	}

	client.closeOnce.Do(func() {
		close(client.closeChan)
	})
	client.peerConn.Close()

	if s.metrics != nil {
		s.metrics.ActiveClients.Store(uint64(s.ClientCount()))
	}
	logger.Info("WebRTC", "Client %s disconnected (sent: %d, dropped: %d)",
		clientID, client.framesSent, client.framesDropped)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Close closes all client connections.
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func generateClientID() string {
	return fmt.Sprintf("client-%d", time.Now().UnixNano())
}
