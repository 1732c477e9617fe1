package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

// PCAPSource replays sensor records carried in UDP datagrams from a
// capture file. Each datagram holds one or more JSON line records;
// records without a timestamp take the packet's capture time.
type PCAPSource struct {
	r     io.Reader
	port  int
	pacer *pacer
}

// NewPCAPSource reads a pcap stream, keeping UDP datagrams addressed to
// port (0 keeps every UDP datagram).
func NewPCAPSource(r io.Reader, port int) *PCAPSource {
	return &PCAPSource{r: r, port: port}
}

// Paced replays packets with their original capture spacing.
func (s *PCAPSource) Paced(clock timeutil.Clock) *PCAPSource {
	s.pacer = &pacer{clock: clock}
	return s
}

// Run submits every decodable record and returns nil at end of capture.
func (s *PCAPSource) Run(ctx context.Context, sink Sink) error {
	reader, err := pcapgo.NewReader(s.r)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}
	packets := gopacket.NewPacketSource(reader, reader.LinkType())
	packets.NoCopy = true

	count, submitted := 0, 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-packets.Packets():
			if !ok || packet == nil {
				logf("pcap replay complete: %d packets, %d readings", count, submitted)
				return nil
			}
			count++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			if s.port != 0 && int(udp.DstPort) != s.port {
				continue
			}

			captured := packet.Metadata().Timestamp
			if err := s.pacer.wait(ctx, captured); err != nil {
				return err
			}
			submitted += deliver(SinkFunc(func(r Reading) {
				if r.Timestamp.IsZero() {
					r.Timestamp = captured
				}
				sink.Submit(r)
			}), bytes.Clone(udp.Payload))
		}
	}
}
