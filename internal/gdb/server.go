package gdb

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"mipsvm/internal/emulator"
)

// interruptChar is the out-of-band byte a debugger sends to stop a free run.
const interruptChar = 0x03

// Server speaks the GDB Remote Serial Protocol to a single debugger
// connection and relays its requests to the emulator.
type Server struct {
	target target
	conn   net.Conn
	reader *bufio.Reader
}

// Serve binds a TCP listener, waits for one debugger to connect, and runs
// the session until the debugger kills or detaches. The emulator is driven
// exclusively by the debugger for the duration of the session.
func Serve(emu *emulator.Emulator, ip string, port uint16) error {
	sockaddr := net.JoinHostPort(ip, strconv.Itoa(int(port)))
	listener, err := net.Listen("tcp", sockaddr)
	if err != nil {
		return err
	}
	defer listener.Close()
	fmt.Printf("Waiting for a GDB connection on %s...\n", sockaddr)

	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("Debugger connected from %s\n", conn.RemoteAddr())

	s := &Server{
		target: target{emu: emu},
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	return s.session()
}

// session processes packets until the debugger disconnects.
func (s *Server) session() error {
	for {
		packet, err := s.recvPacket()
		if err != nil {
			glog.Infof("GDB session closed: %v", err)
			return nil
		}

		reply, done := s.handle(packet)
		if err := s.sendPacket(reply); err != nil {
			return err
		}
		if done {
			glog.Info("GDB session finished")
			return nil
		}
	}
}

// recvPacket reads one $data#cs frame, verifies the checksum, and acks it.
// Stray interrupt bytes between packets are ignored.
func (s *Server) recvPacket() (string, error) {
	s.conn.SetReadDeadline(time.Time{})

	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '$':
		case '+', '-', interruptChar:
			continue
		default:
			continue
		}

		var data strings.Builder
		for {
			b, err = s.reader.ReadByte()
			if err != nil {
				return "", err
			}
			if b == '#' {
				break
			}
			data.WriteByte(b)
		}

		var csum [2]byte
		for i := range csum {
			csum[i], err = s.reader.ReadByte()
			if err != nil {
				return "", err
			}
		}

		want, err := strconv.ParseUint(string(csum[:]), 16, 8)
		if err != nil || uint8(want) != checksum(data.String()) {
			glog.Warningf("GDB packet checksum mismatch for %q", data.String())
			if _, err := s.conn.Write([]byte{'-'}); err != nil {
				return "", err
			}
			continue
		}

		if _, err := s.conn.Write([]byte{'+'}); err != nil {
			return "", err
		}
		return data.String(), nil
	}
}

func (s *Server) sendPacket(data string) error {
	frame := fmt.Sprintf("$%s#%02x", data, checksum(data))
	_, err := s.conn.Write([]byte(frame))
	return err
}

func checksum(data string) uint8 {
	var sum uint8
	for i := 0; i < len(data); i++ {
		sum += data[i]
	}
	return sum
}

// interruptPending polls the connection for the 0x03 interrupt byte without
// blocking. Non-interrupt bytes are pushed back for the packet reader.
func (s *Server) interruptPending() bool {
	s.conn.SetReadDeadline(time.Now())
	defer s.conn.SetReadDeadline(time.Time{})

	b, err := s.reader.ReadByte()
	if err != nil {
		return false
	}
	if b == interruptChar {
		return true
	}
	s.reader.UnreadByte()
	return false
}

// handle dispatches one packet and returns the reply. done reports that the
// session should end after the reply is sent.
func (s *Server) handle(packet string) (reply string, done bool) {
	if packet == "" {
		return "", false
	}

	switch packet[0] {
	case '?':
		return "S05", false
	case 'g':
		return s.readRegisters(), false
	case 'G':
		return s.writeRegisters(packet[1:]), false
	case 'p':
		return s.readRegister(packet[1:]), false
	case 'P':
		return s.writeRegister(packet[1:]), false
	case 'm':
		return s.readMemory(packet[1:]), false
	case 'M':
		return s.writeMemory(packet[1:]), false
	case 'c':
		return s.resume(packet[1:], false), false
	case 's':
		return s.resume(packet[1:], true), false
	case 'z', 'Z':
		return s.breakpoint(packet), false
	case 'q':
		return s.query(packet), false
	case 'D':
		return "OK", true
	case 'k':
		return "", true
	default:
		// Unsupported command
		return "", false
	}
}

func (s *Server) query(packet string) string {
	if strings.HasPrefix(packet, "qSupported") {
		return "PacketSize=4096;swbreak+;hwbreak-"
	}
	if packet == "qAttached" {
		return "1"
	}
	return ""
}

// hexWord renders a register value in target (little-endian) byte order.
func hexWord(val uint32) string {
	return fmt.Sprintf("%02x%02x%02x%02x",
		byte(val), byte(val>>8), byte(val>>16), byte(val>>24))
}

func parseHexWord(data string) (uint32, bool) {
	raw, err := hex.DecodeString(data)
	if err != nil || len(raw) != 4 {
		return 0, false
	}
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24, true
}

func (s *Server) readRegisters() string {
	var sb strings.Builder
	for n := 0; n < numRegs; n++ {
		val, _ := s.target.readRegister(n)
		sb.WriteString(hexWord(val))
	}
	return sb.String()
}

func (s *Server) writeRegisters(data string) string {
	for n := 0; n < numRegs && (n+1)*8 <= len(data); n++ {
		val, ok := parseHexWord(data[n*8 : (n+1)*8])
		if !ok {
			return "E01"
		}
		s.target.writeRegister(n, val)
	}
	return "OK"
}

func (s *Server) readRegister(arg string) string {
	n, err := strconv.ParseUint(arg, 16, 32)
	if err != nil {
		return "E01"
	}
	val, ok := s.target.readRegister(int(n))
	if !ok {
		return "E01"
	}
	return hexWord(val)
}

func (s *Server) writeRegister(arg string) string {
	numStr, valStr, found := strings.Cut(arg, "=")
	if !found {
		return "E01"
	}
	n, err := strconv.ParseUint(numStr, 16, 32)
	if err != nil {
		return "E01"
	}
	val, ok := parseHexWord(valStr)
	if !ok {
		return "E01"
	}
	if !s.target.writeRegister(int(n), val) {
		return "E01"
	}
	return "OK"
}

func parseAddrLen(arg string) (addr uint32, length int, ok bool) {
	addrStr, lenStr, found := strings.Cut(arg, ",")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(addrStr, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	l, err := strconv.ParseUint(lenStr, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(a), int(l), true
}

func (s *Server) readMemory(arg string) string {
	addr, length, ok := parseAddrLen(arg)
	if !ok {
		return "E01"
	}

	data := make([]byte, length)
	if !s.target.readAddrs(addr, data) {
		return "E14"
	}
	return hex.EncodeToString(data)
}

func (s *Server) writeMemory(arg string) string {
	spec, hexData, found := strings.Cut(arg, ":")
	if !found {
		return "E01"
	}
	addr, length, ok := parseAddrLen(spec)
	if !ok {
		return "E01"
	}
	data, err := hex.DecodeString(hexData)
	if err != nil || len(data) != length {
		return "E01"
	}

	if !s.target.writeAddrs(addr, data) {
		return "E14"
	}
	return "OK"
}

// resume continues or steps the emulator and renders the stop reply.
func (s *Server) resume(arg string, step bool) string {
	if arg != "" {
		if addr, err := strconv.ParseUint(arg, 16, 32); err == nil {
			s.target.emu.CPU.PC = uint32(addr)
		}
	}

	event, err := s.target.emu.Resume(step, s.interruptPending)
	if err != nil {
		glog.Errorf("emulation error under debugger: %v", err)
		return "E01"
	}

	switch event.Kind {
	case emulator.EventHalted:
		return "W00"
	case emulator.EventInterrupted:
		return "S02"
	case emulator.EventWatchWrite:
		return fmt.Sprintf("T05watch:%x;", event.Address)
	case emulator.EventWatchRead:
		return fmt.Sprintf("T05rwatch:%x;", event.Address)
	default:
		return "S05"
	}
}

// breakpoint handles the Z/z insert/remove packets. Type 0 and 1 map to the
// software breakpoint set; types 2-4 map to the watchpoint set.
func (s *Server) breakpoint(packet string) string {
	parts := strings.Split(packet[1:], ",")
	if len(parts) < 2 {
		return "E01"
	}

	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return "E01"
	}
	addr, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return "E01"
	}

	insert := packet[0] == 'Z'
	address := uint32(addr)

	switch kind {
	case 0, 1:
		if insert {
			s.target.addBreakpoint(address)
			return "OK"
		}
		if !s.target.removeBreakpoint(address) {
			return "E01"
		}
		return "OK"
	case 2, 3, 4:
		if insert {
			s.target.addWatchpoint(address)
			return "OK"
		}
		if !s.target.removeWatchpoint(address) {
			return "E01"
		}
		return "OK"
	default:
		// Unsupported breakpoint type
		return ""
	}
}
