// Package dmx provides DMX output management and Art-Net communication.
package dmx

import (
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-live/internal/services/pubsub"
	"github.com/bbernstein/lacylights-live/pkg/artnet"
)

const (
	// UniverseSize is the number of channels per DMX universe.
	UniverseSize = 512
	// MaxUniverses is the number of port addresses Art-Net can carry.
	MaxUniverses = artnet.MaxUniverse + 1
)

// Frame is published on pubsub.TopicDMXOutput for every universe that
// changed since the previous transmission.
type Frame struct {
	Universe int   `json:"universe"`
	Channels []int `json:"channels"`
}

// Service manages DMX channel values and Art-Net output.
type Service struct {
	mu sync.RWMutex

	// Channel values for each universe, indexed from 0
	universes [][]byte

	// Configuration
	enabled          bool
	broadcastAddr    string
	port             int
	refreshRateHz    int
	idleRateHz       int
	highRateDuration time.Duration

	// Adaptive transmission rate state
	currentRate      int
	isInHighRateMode bool
	lastChangeTime   time.Time

	// Dirty flag system for efficient transmission
	isDirty        bool
	dirtyUniverses map[int]bool

	lastTransmissionTime time.Time

	// Art-Net sequence number (increments for each packet, wraps at 255)
	sequence byte

	conn *net.UDPConn

	publisher *pubsub.PubSub

	// Control
	stopChan        chan struct{}
	resetTickerChan chan struct{}
	running         bool
}

// Config holds DMX service configuration.
type Config struct {
	Enabled          bool
	BroadcastAddr    string
	Port             int
	UniverseCount    int
	RefreshRateHz    int
	IdleRateHz       int
	HighRateDuration time.Duration
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		BroadcastAddr:    "255.255.255.255",
		Port:             artnet.DefaultPort,
		UniverseCount:    1,
		RefreshRateHz:    60,
		IdleRateHz:       1,
		HighRateDuration: 2 * time.Second,
	}
}

// NewService creates a new DMX service.
func NewService(cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.RefreshRateHz <= 0 {
		cfg.RefreshRateHz = defaults.RefreshRateHz
	}
	if cfg.IdleRateHz <= 0 {
		cfg.IdleRateHz = defaults.IdleRateHz
	}
	if cfg.HighRateDuration <= 0 {
		cfg.HighRateDuration = defaults.HighRateDuration
	}
	if cfg.Port <= 0 {
		cfg.Port = defaults.Port
	}
	if cfg.UniverseCount <= 0 {
		cfg.UniverseCount = defaults.UniverseCount
	}
	if cfg.UniverseCount > MaxUniverses {
		cfg.UniverseCount = MaxUniverses
	}

	s := &Service{
		universes:        make([][]byte, cfg.UniverseCount),
		dirtyUniverses:   make(map[int]bool),
		enabled:          cfg.Enabled,
		broadcastAddr:    cfg.BroadcastAddr,
		port:             cfg.Port,
		refreshRateHz:    cfg.RefreshRateHz,
		idleRateHz:       cfg.IdleRateHz,
		highRateDuration: cfg.HighRateDuration,
		currentRate:      cfg.IdleRateHz, // idle until the first change
		stopChan:         make(chan struct{}),
		resetTickerChan:  make(chan struct{}, 1),
	}
	for i := range s.universes {
		s.universes[i] = make([]byte, UniverseSize)
	}

	return s
}

// SetPublisher publishes a Frame for each changed universe on every
// transmission cycle, whether or not Art-Net output is enabled.
func (s *Service) SetPublisher(ps *pubsub.PubSub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = ps
}

// Initialize starts the DMX service and Art-Net transmission.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.enabled {
		if err := s.dial(); err != nil {
			return err
		}

		log.Printf("🎭 DMX Service initialized with %d universes", len(s.universes))
		log.Printf("📡 Adaptive transmission: %dHz (active) / %dHz (idle), %v high-rate duration",
			s.refreshRateHz, s.idleRateHz, s.highRateDuration)
		log.Printf("📡 Art-Net output enabled, broadcasting to %s:%d", s.broadcastAddr, s.port)
		s.poll()
	} else {
		log.Printf("🎭 DMX Service initialized with %d universes (simulation mode)", len(s.universes))
	}

	s.running = true
	go s.transmitLoop()

	return nil
}

func (s *Service) dial() error {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(s.broadcastAddr, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// poll announces the controller to Art-Net nodes on the network.
func (s *Service) poll() {
	if s.conn == nil {
		return
	}
	if _, err := s.conn.Write(artnet.BuildPollPacket(artnet.PollReplyOnChange)); err != nil {
		log.Printf("Art-Net poll error: %v", err)
	}
}

// transmitLoop runs the adaptive rate transmission loop.
func (s *Service) transmitLoop() {
	s.mu.RLock()
	interval := time.Second / time.Duration(s.currentRate)
	s.mu.RUnlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastRate := 0

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.resetTickerChan:
			s.mu.RLock()
			currentRate := s.currentRate
			s.mu.RUnlock()

			if currentRate != lastRate {
				ticker.Reset(time.Second / time.Duration(currentRate))
				lastRate = currentRate
			}
		case <-ticker.C:
			s.processTransmission()

			s.mu.RLock()
			currentRate := s.currentRate
			s.mu.RUnlock()

			if currentRate != lastRate {
				ticker.Reset(time.Second / time.Duration(currentRate))
				lastRate = currentRate
			}
		}
	}
}

// processTransmission handles a single transmission cycle.
func (s *Service) processTransmission() {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentTime := time.Now()

	if s.isDirty {
		s.lastChangeTime = currentTime
		if !s.isInHighRateMode {
			s.isInHighRateMode = true
			s.currentRate = s.refreshRateHz
			log.Printf("📡 DMX transmission: switching to high rate (%dHz) - changes detected", s.refreshRateHz)
		}
	} else {
		timeSinceLastChange := currentTime.Sub(s.lastChangeTime)
		if s.isInHighRateMode && !s.lastChangeTime.IsZero() && timeSinceLastChange > s.highRateDuration {
			s.isInHighRateMode = false
			s.currentRate = s.idleRateHz
			log.Printf("📡 DMX transmission: switching to idle rate (%dHz) - no changes for %v", s.idleRateHz, timeSinceLastChange)
		}
	}

	// Transmit in both modes: idle frames keep receivers from timing out.
	s.outputDMX()
}

// outputDMX sends Art-Net packets for dirty universes, or for every
// universe as a keep-alive when nothing changed.
func (s *Service) outputDMX() {
	var toTransmit []int
	if s.isDirty && len(s.dirtyUniverses) > 0 {
		for u := range s.dirtyUniverses {
			toTransmit = append(toTransmit, u)
		}
	} else {
		for u := range s.universes {
			toTransmit = append(toTransmit, u)
		}
	}

	if s.enabled && s.conn != nil {
		for _, universe := range toTransmit {
			s.sequence++
			packet := artnet.BuildDMXPacket(universe, s.universes[universe], s.sequence)
			if _, err := s.conn.Write(packet); err != nil {
				log.Printf("Art-Net send error for universe %d: %v", universe, err)
			}
		}
		s.lastTransmissionTime = time.Now()
	}

	if s.publisher != nil {
		for u := range s.dirtyUniverses {
			s.publisher.Publish(pubsub.TopicDMXOutput, Frame{Universe: u, Channels: toInts(s.universes[u])}, strconv.Itoa(u))
		}
	}

	s.isDirty = false
	s.dirtyUniverses = make(map[int]bool)
}

func toInts(channels []byte) []int {
	out := make([]int, len(channels))
	for i, v := range channels {
		out[i] = int(v)
	}
	return out
}

func (s *Service) markDirty(universe int) {
	s.isDirty = true
	s.dirtyUniverses[universe] = true
}

func (s *Service) validUniverse(universe int) bool {
	return universe >= 0 && universe < len(s.universes)
}

// SetChannelValue sets one channel. Channels are indexed from 0.
func (s *Service) SetChannelValue(universe, channel int, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validUniverse(universe) || channel < 0 || channel >= UniverseSize {
		return
	}

	if s.universes[universe][channel] != value {
		s.universes[universe][channel] = value
		s.markDirty(universe)
		s.triggerHighRate()
	}
}

// SetAllChannels sets all channels in a universe. Missing values are left
// as they are.
func (s *Service) SetAllChannels(universe int, values []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validUniverse(universe) {
		return
	}

	universeData := s.universes[universe]
	changed := false
	for i := 0; i < UniverseSize && i < len(values); i++ {
		if universeData[i] != values[i] {
			universeData[i] = values[i]
			changed = true
		}
	}

	if changed {
		s.markDirty(universe)
		s.triggerHighRate()
	}
}

// triggerHighRate immediately switches to high rate mode.
func (s *Service) triggerHighRate() {
	s.lastChangeTime = time.Now()
	if !s.isInHighRateMode {
		s.isInHighRateMode = true
		s.currentRate = s.refreshRateHz
		log.Printf("📡 DMX transmission: switching to high rate (%dHz) - channel change", s.refreshRateHz)

		select {
		case s.resetTickerChan <- struct{}{}:
		default:
		}
	}
}

// GetChannelValue returns the current value of a channel.
func (s *Service) GetChannelValue(universe, channel int) byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validUniverse(universe) || channel < 0 || channel >= UniverseSize {
		return 0
	}
	return s.universes[universe][channel]
}

// GetUniverse returns all channel values for a universe.
func (s *Service) GetUniverse(universe int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validUniverse(universe) {
		return make([]int, UniverseSize)
	}
	return toInts(s.universes[universe])
}

// UniverseCount returns the number of universes the service outputs.
func (s *Service) UniverseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.universes)
}

// Blackout sets every channel to 0.
func (s *Service) Blackout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for universe, channels := range s.universes {
		changed := false
		for i := range channels {
			if channels[i] != 0 {
				channels[i] = 0
				changed = true
			}
		}
		if changed {
			s.markDirty(universe)
		}
	}
	s.triggerHighRate()
}

// IsEnabled returns whether Art-Net output is enabled.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// GetBroadcastAddress returns the Art-Net broadcast address.
func (s *Service) GetBroadcastAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broadcastAddr
}

// IsActive returns whether DMX output is in high-rate mode.
func (s *Service) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isInHighRateMode
}

// GetCurrentRate returns the current transmission rate in Hz.
func (s *Service) GetCurrentRate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRate
}

// LastTransmission returns when Art-Net packets were last sent.
func (s *Service) LastTransmission() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTransmissionTime
}

// CountActiveChannels returns the number of non-zero channels.
func (s *Service) CountActiveChannels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, channels := range s.universes {
		for _, v := range channels {
			if v > 0 {
				count++
			}
		}
	}
	return count
}

// Stop stops the transmission loop, sends a blackout frame and closes the
// socket.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false

	for universe := range s.universes {
		s.universes[universe] = make([]byte, UniverseSize)
		if s.enabled && s.conn != nil {
			s.sequence++
			packet := artnet.BuildDMXPacket(universe, s.universes[universe], s.sequence)
			_, _ = s.conn.Write(packet)
		}
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	log.Printf("🎭 DMX Service stopped")
}

// ReloadBroadcastAddress updates the broadcast address and reconnects.
// If Art-Net was disabled, this will enable it.
func (s *Service) ReloadBroadcastAddress(newAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasEnabled := s.enabled
	log.Printf("🔄 Reloading Art-Net broadcast address from %s to %s (was enabled: %v)", s.broadcastAddr, newAddress, wasEnabled)

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	s.broadcastAddr = newAddress
	if err := s.dial(); err != nil {
		return err
	}

	if !wasEnabled {
		s.enabled = true
		log.Printf("✅ Art-Net enabled with broadcast address %s:%d", s.broadcastAddr, s.port)
	} else {
		log.Printf("✅ Art-Net broadcast address updated to %s:%d", s.broadcastAddr, s.port)
	}
	s.poll()
	return nil
}

// DisableArtNet disables Art-Net output and closes the connection.
func (s *Service) DisableArtNet() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.enabled = false
	log.Printf("🔌 Art-Net output disabled")
}
