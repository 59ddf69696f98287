// Package network finds the broadcast addresses Art-Net output can use.
package network

import (
	"fmt"
	"net"
	"strings"
)

// GlobalBroadcast is used when no interface broadcast can be found.
const GlobalBroadcast = "255.255.255.255"

// InterfaceType classifies a network interface.
type InterfaceType string

const (
	TypeEthernet  InterfaceType = "ethernet"
	TypeWiFi      InterfaceType = "wifi"
	TypeOther     InterfaceType = "other"
	TypeLocalhost InterfaceType = "localhost"
	TypeGlobal    InterfaceType = "global"
)

// Icon returns the emoji used when listing interfaces of this type.
func (t InterfaceType) Icon() string {
	switch t {
	case TypeWiFi:
		return "📶"
	case TypeEthernet:
		return "🌐"
	case TypeLocalhost:
		return "🏠"
	case TypeGlobal:
		return "🌍"
	default:
		return "📡"
	}
}

// InterfaceOption is a broadcast address Art-Net can be sent to.
type InterfaceOption struct {
	Name          string        `json:"name"`
	Address       string        `json:"address"`
	Broadcast     string        `json:"broadcast"`
	Description   string        `json:"description"`
	InterfaceType InterfaceType `json:"interfaceType"`
}

// ClassifyInterface guesses the interface type from its name.
func ClassifyInterface(ifaceName string) InterfaceType {
	name := strings.ToLower(ifaceName)

	// en0 is the built-in WiFi on macOS
	if name == "en0" {
		return TypeWiFi
	}

	switch {
	case strings.HasPrefix(name, "wlan"),
		strings.HasPrefix(name, "wl"),
		strings.Contains(name, "wifi"),
		strings.Contains(name, "wireless"):
		return TypeWiFi
	case strings.HasPrefix(name, "eth"),
		strings.HasPrefix(name, "en"):
		return TypeEthernet
	}
	return TypeOther
}

// calculateBroadcast computes the broadcast address from IP and netmask
func calculateBroadcast(ip net.IP, mask net.IPMask) net.IP {
	if ip == nil || mask == nil {
		return nil
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}

	if len(mask) == 16 {
		mask = mask[12:16]
	}
	if len(mask) != 4 {
		return nil
	}

	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}

// optionFor builds the option for one interface address, or returns false
// when the address cannot broadcast.
func optionFor(ifaceName string, addr net.Addr) (InterfaceOption, bool) {
	var ipNet *net.IPNet
	switch v := addr.(type) {
	case *net.IPNet:
		ipNet = v
	case *net.IPAddr:
		ipNet = &net.IPNet{IP: v.IP, Mask: v.IP.DefaultMask()}
	}
	if ipNet == nil {
		return InterfaceOption{}, false
	}

	ip4 := ipNet.IP.To4()
	broadcast := calculateBroadcast(ip4, ipNet.Mask)
	if broadcast == nil || broadcast.Equal(ip4) {
		// IPv6 or point-to-point
		return InterfaceOption{}, false
	}

	kind := ClassifyInterface(ifaceName)
	return InterfaceOption{
		Name:          ifaceName + "-broadcast",
		Address:       ip4.String(),
		Broadcast:     broadcast.String(),
		Description:   fmt.Sprintf("%s %s - %s Broadcast (%s)", kind.Icon(), ifaceName, strings.ToUpper(string(kind[:1]))+string(kind[1:]), broadcast),
		InterfaceType: kind,
	}, true
}

// GetNetworkInterfaces lists the broadcast options of every IPv4 interface
// that is up, ethernet first, followed by localhost and the global broadcast.
func GetNetworkInterfaces() ([]InterfaceOption, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	byType := map[InterfaceType][]InterfaceOption{}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if option, ok := optionFor(iface.Name, addr); ok {
				byType[option.InterfaceType] = append(byType[option.InterfaceType], option)
			}
		}
	}

	var options []InterfaceOption
	for _, kind := range []InterfaceType{TypeEthernet, TypeWiFi, TypeOther} {
		options = append(options, byType[kind]...)
	}
	options = append(options,
		InterfaceOption{
			Name:          "localhost",
			Address:       "127.0.0.1",
			Broadcast:     "127.0.0.1",
			Description:   TypeLocalhost.Icon() + " Localhost (for testing only)",
			InterfaceType: TypeLocalhost,
		},
		InterfaceOption{
			Name:          "global-broadcast",
			Address:       "0.0.0.0",
			Broadcast:     GlobalBroadcast,
			Description:   TypeGlobal.Icon() + " Global Broadcast (" + GlobalBroadcast + ")",
			InterfaceType: TypeGlobal,
		},
	)
	return options, nil
}

// ChooseBroadcast picks the broadcast address to use from options: the
// first interface on a 192.168.x.x network, else the first real interface,
// else the global broadcast.
func ChooseBroadcast(options []InterfaceOption) string {
	first := ""
	for _, o := range options {
		if o.InterfaceType == TypeLocalhost || o.InterfaceType == TypeGlobal {
			continue
		}
		if strings.HasPrefix(o.Address, "192.168.") {
			return o.Broadcast
		}
		if first == "" {
			first = o.Broadcast
		}
	}
	if first != "" {
		return first
	}
	return GlobalBroadcast
}

// DetectBroadcast returns the broadcast address of the best local interface.
func DetectBroadcast() string {
	options, err := GetNetworkInterfaces()
	if err != nil {
		return GlobalBroadcast
	}
	return ChooseBroadcast(options)
}

// ResolveBroadcast returns configured when it is set, and the detected
// broadcast address otherwise.
func ResolveBroadcast(configured string) string {
	if configured != "" {
		return configured
	}
	return DetectBroadcast()
}
