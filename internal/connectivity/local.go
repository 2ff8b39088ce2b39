package connectivity

import "net"

// LocalCheck reports whether the local network is usable and which
// addresses the device currently holds
type LocalCheck func() (bool, []string)

// InterfaceCheck считает локальную сеть доступной, если есть поднятый
// не-loopback интерфейс с private или global unicast адресом
func InterfaceCheck() (bool, []string) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, nil
	}

	var addrs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range ifAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if usableIP(ipNet.IP) {
				addrs = append(addrs, ipNet.IP.String())
			}
		}
	}

	return len(addrs) > 0, addrs
}

func usableIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return false
	}
	return ip.IsPrivate() || ip.IsGlobalUnicast()
}
