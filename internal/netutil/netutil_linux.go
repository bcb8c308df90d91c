//go:build linux

// Package netutil provides the small set of raw socket options the receive
// path needs that net.UDPConn does not expose directly: DSCP marking,
// multicast group join, and multicast loopback suppression. It mirrors the
// teacher's dscp/timestamp packages' pattern of reaching for
// golang.org/x/sys/unix and operating on the connection's raw file
// descriptor via SyscallConn.
package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// DSCPExpeditedForwarding is the DSCP codepoint recommended for PTP and RTP
// traffic (§6): 56, which EnableDSCP writes as 56<<2 (0xe0) in the TOS /
// traffic class octet. The value is 56, not the EF codepoint 46 (0x2e).
const DSCPExpeditedForwarding = 56

// EnableDSCP sets the IP_TOS (or IPV6_TCLASS) socket option on conn so
// outgoing packets carry the given DSCP codepoint in the high six bits of
// the traffic class octet.
func EnableDSCP(conn *net.UDPConn, dscp int) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("netutil: obtaining raw conn: %w", err)
	}

	tos := dscp << 2
	isV6 := conn.LocalAddr().(*net.UDPAddr).IP.To4() == nil

	var sockErr error
	err = sc.Control(func(fd uintptr) {
		if isV6 {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
		} else {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos)
		}
	})
	if err != nil {
		return fmt.Errorf("netutil: control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("netutil: setsockopt TOS/TCLASS: %w", sockErr)
	}
	return nil
}

// JoinMulticast joins conn to the given multicast group on the named
// interface, and disables loopback of locally-sent multicast datagrams
// (IP_MULTICAST_LOOP off), matching §4.E/§4.I's socket setup.
func JoinMulticast(conn *net.UDPConn, group net.IP, ifaceName string) error {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return fmt.Errorf("netutil: interface %q: %w", ifaceName, err)
	}

	sc, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("netutil: obtaining raw conn: %w", err)
	}

	var sockErr error
	err = sc.Control(func(fd uintptr) {
		if ip4 := group.To4(); ip4 != nil {
			mreq := &unix.IPMreq{}
			copy(mreq.Multiaddr[:], ip4)
			ifAddr, addrErr := firstIPv4(iface)
			if addrErr != nil {
				sockErr = addrErr
				return
			}
			copy(mreq.Interface[:], ifAddr)
			if sockErr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); sockErr != nil {
				return
			}
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 0)
			return
		}

		mreq := &unix.IPv6Mreq{Interface: uint32(iface.Index)}
		copy(mreq.Multiaddr[:], group.To16())
		if sockErr = unix.SetsockoptIPv6Mreq(int(fd), unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_LOOP, 0)
	})
	if err != nil {
		return fmt.Errorf("netutil: control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("netutil: joining multicast group %s on %s: %w", group, ifaceName, sockErr)
	}
	return nil
}

func firstIPv4(iface *net.Interface) ([4]byte, error) {
	var zero [4]byte
	addrs, err := iface.Addrs()
	if err != nil {
		return zero, fmt.Errorf("netutil: interface addrs: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			var out [4]byte
			copy(out[:], ip4)
			return out, nil
		}
	}
	return zero, fmt.Errorf("netutil: interface %s has no IPv4 address", iface.Name)
}

// SetReuseAddr sets SO_REUSEADDR, allowing multiple receivers to bind the
// same multicast port (§4.I step 1).
func SetReuseAddr(conn *net.UDPConn) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("netutil: obtaining raw conn: %w", err)
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("netutil: control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("netutil: SO_REUSEADDR: %w", sockErr)
	}
	return nil
}
