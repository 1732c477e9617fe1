package serialmux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter. Reads block until data
// is fed or the port is finished or closed, which lets tests drive Monitor
// the way a bridge would.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	read    bytes.Buffer
	written bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// ShortWrite makes Write report one byte fewer than requested.
	ShortWrite bool

	finished bool
	closed   bool
}

// NewTestableSerialPort creates an empty port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// NewMockSerialMux returns a mux over a port preloaded with lines whose
// reads end once the lines are consumed.
func NewMockSerialMux(lines ...string) (*SerialMux[*TestableSerialPort], *TestableSerialPort) {
	port := NewTestableSerialPort()
	for _, l := range lines {
		port.AddReadData([]byte(l + "\n"))
	}
	port.Finish()
	return NewSerialMux(port), port
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.read.Len() == 0 && !p.finished && !p.closed {
		p.readCond.Wait()
	}
	if p.closed {
		return 0, errPortClosed
	}
	if p.read.Len() == 0 {
		return 0, io.EOF
	}
	return p.read.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	n, _ := p.written.Write(b)
	if p.ShortWrite && n > 0 {
		n--
	}
	return n, nil
}

// Close wakes any blocked reader with an error.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// Closed reports whether Close was called.
func (p *TestableSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// AddReadData queues data for subsequent reads.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read.Write(data)
	p.readCond.Broadcast()
}

// Finish makes reads return io.EOF once the queued data is drained.
func (p *TestableSerialPort) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	p.readCond.Broadcast()
}

// GetWrittenData returns a copy of everything written to the port.
func (p *TestableSerialPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.written.Bytes())
}

// Commands splits the written data into newline-terminated commands.
func (p *TestableSerialPort) Commands() []string {
	s := strings.TrimSuffix(string(p.GetWrittenData()), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
