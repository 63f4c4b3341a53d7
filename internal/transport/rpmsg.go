package transport

import "unsafe"

// afRPMsg is the address family for a cross-core RPMSG stream socket on the
// embedded platform this protocol was distilled from. It is not part of
// golang.org/x/sys/unix (that package only carries mainline Linux address
// families); the numeric value is a documented placeholder rather than a
// verified kernel constant, since no reachable header defines it for this
// module.
const afRPMsg = 0x2a

// rpmsgAddr mirrors the platform's struct sockaddr_rpmsg: an address family
// word, a peer CPU name and a channel name, both fixed-size C strings.
type rpmsgAddr struct {
	Family uint16
	CPU    [16]byte
	Name   [32]byte
}

func newRPMsgAddr(cpu, name string) rpmsgAddr {
	var a rpmsgAddr
	a.Family = afRPMsg
	copy(a.CPU[:], cpu)
	copy(a.Name[:], name)
	return a
}

func (a *rpmsgAddr) bytes() []byte {
	return (*[unsafe.Sizeof(rpmsgAddr{})]byte)(unsafe.Pointer(a))[:]
}
