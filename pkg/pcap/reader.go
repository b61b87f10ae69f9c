package pcap

import (
	"FlowSpectra/internal/core/model"
	"FlowSpectra/internal/engine/protocol"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type linkSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng file, front to back, once.
type Reader struct {
	file   *os.File
	source linkSource
	path   string
}

// NewReader creates a new reader for the given file path. The capture format
// is detected from the file magic.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, 1<<20)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header of '%s': %w", filePath, err)
	}

	var source linkSource
	if bytes.Equal(magic, pcapngMagic) {
		source, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		source, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open capture '%s': %w", filePath, err)
	}

	return &Reader{file: f, source: source, path: filePath}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// LinkType returns the link type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.source.LinkType()
}

// ReadPackets decodes every record and sends the parsed PacketInfo to out.
// It closes out when the capture is exhausted, on error, or when ctx is done.
func (r *Reader) ReadPackets(ctx context.Context, out chan<- *model.PacketInfo) error {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.source, r.source.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// A capture cut mid-record is still usable up to that point.
			log.WithField("file", r.path).Warn("Capture ends with a truncated record")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet from '%s': %w", r.path, err)
		}

		select {
		case out <- protocol.ParsePacket(packet):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
