// Package serialbridge reaches the sensor's two-wire bus through a USB-CDC
// bridge. Commands are framed as "   #" + 4 hex digits of length + 4 character
// packet type + payload; answers use the same framing followed by a 4 character
// CRC field.
package serialbridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jonas-koeritz/tcam/internal/logging"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// USB IDs reported by the bridge firmware.
const VENDOR_ID = "1209"

var PRODUCT_IDs = []string{"7C30", "7C31"}

const (
	cmdWrite = "I2CW"
	cmdRead  = "I2CR"
	pktError = "ERRO"

	// The bridge moves at most this many bytes per transaction.
	maxTransfer = 0xFF
)

var ErrBridge = errors.New("bridge reported an error")

// Bridge is a tcam.Transport bound to one device address behind the bridge.
type Bridge struct {
	port io.ReadWriteCloser
	addr uint16
	log  *slog.Logger

	mu sync.Mutex
}

// Open connects to the bridge on serialPort, or autodetects it by USB ID when
// no port is given, and binds it to the device at addr.
func Open(addr uint16, serialPort ...string) (*Bridge, error) {
	portName := ""
	var err error

	if len(serialPort) == 0 || serialPort[0] == "" {
		portName, err = getSerialPort()
		if err != nil {
			return nil, fmt.Errorf("failed to open serial bridge: %w", err)
		}
	} else {
		portName = serialPort[0]
	}

	p, err := serial.Open(portName, &serial.Mode{}) // USB-CDC, the baudrate is ignored
	if err != nil {
		return nil, fmt.Errorf("failed to open serial bridge: %w", err)
	}

	b := New(p, addr)
	b.log = b.log.With("port", portName)
	return b, nil
}

// New wraps an already open port.
func New(port io.ReadWriteCloser, addr uint16) *Bridge {
	return &Bridge{
		port: port,
		addr: addr,
		log:  logging.GetLogger("serialbridge").With("address", fmt.Sprintf("0x%02X", addr)),
	}
}

// Write sends p to the device in one bus transaction and returns the number of
// bytes the device acknowledged.
func (b *Bridge) Write(p []byte) (int, error) {
	if len(p) > maxTransfer {
		return 0, fmt.Errorf("transfer of %d bytes exceeds bridge limit of %d", len(p), maxTransfer)
	}

	data, err := b.sendCommand(fmt.Sprintf("%s%02X%02X%s", cmdWrite, b.addr, len(p), strings.ToUpper(hex.EncodeToString(p))))
	if err != nil {
		return 0, fmt.Errorf("failed to write to device: %w", err)
	}

	n, err := strconv.ParseUint(string(data), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("failed to decode write count: %w", err)
	}
	return int(n), nil
}

// Read fills p from the device in one bus transaction and returns the number of
// bytes actually received.
func (b *Bridge) Read(p []byte) (int, error) {
	if len(p) > maxTransfer {
		return 0, fmt.Errorf("transfer of %d bytes exceeds bridge limit of %d", len(p), maxTransfer)
	}

	data, err := b.sendCommand(fmt.Sprintf("%s%02X%02X", cmdRead, b.addr, len(p)))
	if err != nil {
		return 0, fmt.Errorf("failed to read from device: %w", err)
	}

	value, err := hex.DecodeString(string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode read data: %w", err)
	}
	return copy(p, value), nil
}

func (b *Bridge) Close() error {
	return b.port.Close()
}

func (b *Bridge) sendCommand(cmd string) (data []byte, err error) {
	cmdType := cmd[0:4]

	// Reformat cmd, include length
	cmd = fmt.Sprintf("   #%04X%s", len(cmd), cmd)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Debug("Sending command", "command", cmd)

	_, err = b.port.Write([]byte(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to write to serial port: %w", err)
	}

	packetType := ""
	for packetType != cmdType {
		packetType, data, err = b.readPacket()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if packetType == pktError {
			return nil, fmt.Errorf("%w: %s", ErrBridge, data)
		}
	}

	return data, nil
}

func (b *Bridge) readPacket() (packetType string, data []byte, err error) {
	header := make([]byte, 12)
	for string(header[:4]) != "   #" {
		if _, err = io.ReadFull(b.port, header); err != nil {
			return "", nil, fmt.Errorf("failed to read header from serial port: %w", err)
		}
	}

	packetType = string(header[8:])

	length, err := hex.DecodeString(string(header[4:8]))
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode packet length: %w", err)
	}

	// The length covers type, payload and CRC
	total := int(length[0])<<8 | int(length[1])
	if total < 8 {
		return "", nil, fmt.Errorf("invalid packet length %d", total)
	}

	data = make([]byte, total-8)
	if _, err = io.ReadFull(b.port, data); err != nil {
		return "", nil, fmt.Errorf("failed to read data from serial port: %w", err)
	}

	// The CRC field is not verified.
	crc := make([]byte, 4)
	if _, err = io.ReadFull(b.port, crc); err != nil {
		return "", nil, fmt.Errorf("failed to read CRC from serial port: %w", err)
	}

	return packetType, data, nil
}

// Port is a serial port that looks like a bridge.
type Port struct {
	Name         string
	SerialNumber string
	Product      string
}

// Ports lists attached bridges.
func Ports() ([]Port, error) {
	portDetails, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var ports []Port
	for _, port := range portDetails {
		if port.IsUSB && strings.EqualFold(port.VID, VENDOR_ID) && slices.ContainsFunc(PRODUCT_IDs, func(pid string) bool {
			return strings.EqualFold(pid, port.PID)
		}) {
			ports = append(ports, Port{Name: port.Name, SerialNumber: port.SerialNumber, Product: port.Product})
		}
	}
	return ports, nil
}

func getSerialPort() (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no bridge with USB ID %s found", VENDOR_ID)
	}
	return ports[0].Name, nil
}
