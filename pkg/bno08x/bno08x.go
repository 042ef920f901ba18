// Package bno08x reads yaw from a BNO08x AHRS running in UART-RVC mode and presents it
// as a heading source.
package bno08x

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/log"
)

const (
	DefaultDevice   = "/dev/ttyAMA0"
	DefaultBaudRate = 115200

	ReportFrequency = 100
	ReportInterval  = time.Second / ReportFrequency

	packetLen = 19
)

var (
	header = []byte{0xaa, 0xaa}

	ErrNoReports = errors.New("BNO08x hasn't sent a report")
	errLostSync  = errors.New("lost sync with packet stream")
)

type IMUReport struct {
	Time   time.Time
	Index  uint8
	Yaw    int16 // hundredths of a degree
	Pitch  int16
	Roll   int16
	XAccel int16
	YAccel int16
	ZAccel int16
}

func (i IMUReport) String() string {
	return fmt.Sprintf("[%02x] Y:%7.2f P:%7.2f R:%7.2f X:%7.2f Y:%7.2f Z:%7.2f",
		i.Index, float64(i.Yaw)/100.0, float64(i.Pitch)/100.0, float64(i.Roll)/100.0,
		float64(i.XAccel)/100.0, float64(i.YAccel)/100.0, float64(i.ZAccel)/100.0)
}

func (i IMUReport) YawDegrees() float64 {
	return float64(i.Yaw) / 100.0
}

// decodePacket checks the framing and checksum of one packet.
func decodePacket(buf []byte) (IMUReport, error) {
	var report IMUReport
	if len(buf) != packetLen || !bytes.Equal(buf[:2], header) {
		return report, errLostSync
	}
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	if buf[packetLen-1] != checksum {
		return report, errors.Errorf("bad checksum %x != %x", buf[packetLen-1], checksum)
	}
	report.Index = buf[2]
	report.Yaw = int16(binary.LittleEndian.Uint16(buf[3:5]))
	report.Pitch = int16(binary.LittleEndian.Uint16(buf[5:7]))
	report.Roll = int16(binary.LittleEndian.Uint16(buf[7:9]))
	report.XAccel = int16(binary.LittleEndian.Uint16(buf[9:11]))
	report.YAccel = int16(binary.LittleEndian.Uint16(buf[11:13]))
	report.ZAccel = int16(binary.LittleEndian.Uint16(buf[13:15]))
	return report, nil
}

type Config struct {
	Device   string
	BaudRate int
}

// BNO08X tracks the latest report from the sensor.  The heading it reports is
// continuous: it keeps counting past +/-180 so that turn rate and zeroing work across
// the seam.
type BNO08X struct {
	cfg   Config
	log   log.Logger
	clock clock.Clock

	lock       sync.Mutex
	cond       *sync.Cond
	lastReport IMUReport
	haveReport bool

	// Unwrapped yaw, and the yaw that reads as zero.
	heading float64
	zero    float64
	rate    float64
}

func New(cfg Config, l log.Logger, c clock.Clock) *BNO08X {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	b := &BNO08X{cfg: cfg, log: l, clock: c}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *BNO08X) CurrentReport() IMUReport {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastReport
}

// WaitForReportAfter waits for a report newer than t, giving up after timeout.
func (b *BNO08X) WaitForReportAfter(t time.Time, timeout time.Duration) (IMUReport, error) {
	deadline := b.clock.Now().Add(timeout)
	timer := b.clock.AfterFunc(timeout, func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.cond.Broadcast()
	})
	defer timer.Stop()

	b.lock.Lock()
	defer b.lock.Unlock()
	for !b.haveReport || !b.lastReport.Time.After(t) {
		if !b.clock.Now().Before(deadline) {
			return b.lastReport, ErrNoReports
		}
		b.cond.Wait()
	}
	return b.lastReport, nil
}

// Heading returns degrees since the last Reset.  With no reports it stays at zero.
func (b *BNO08X) Heading() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.heading - b.zero
}

// Rate returns degrees per second, from the last two reports.
func (b *BNO08X) Rate() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.rate
}

func (b *BNO08X) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.zero = b.heading
}

// Calibrate waits for the sensor to start reporting.  The BNO08x calibrates itself.
func (b *BNO08X) Calibrate() error {
	report, err := b.WaitForReportAfter(time.Time{}, time.Second)
	if err != nil {
		return err
	}
	b.log.Infof("BNO08X reporting: %v", report)
	return nil
}

func (b *BNO08X) LoopReadingReports(ctx context.Context) {
	defer b.cond.Broadcast()
	for ctx.Err() == nil {
		err := b.openAndLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		b.log.Warnf("BNO08X loop stopped; will retry: %v", err)
		b.clock.Sleep(100 * time.Millisecond)
	}
}

func (b *BNO08X) openAndLoop(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: b.cfg.BaudRate,
	}
	s, err := serial.Open(b.cfg.Device, mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", b.cfg.Device)
	}
	defer s.Close()
	return b.readReports(ctx, s)
}

// readReports decodes packets from r until it fails or ctx is cancelled.
func (b *BNO08X) readReports(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	buf := make([]byte, packetLen)
resync:
	b.log.Debugf("BNO08X resync...")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		peek, err := br.Peek(2)
		if err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		if bytes.Equal(peek, header) {
			break
		}
		if _, err := br.Discard(1); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
	}
	b.log.Debugf("BNO08X in sync with packet stream")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		report, err := decodePacket(buf)
		if err != nil {
			b.log.Warnf("BNO08X: %v", err)
			goto resync
		}
		report.Time = b.clock.Now()
		b.setReport(report)
	}
}

func (b *BNO08X) setReport(report IMUReport) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.haveReport {
		// Yaw wraps at +/-180; take the short way round.
		delta := angle.FromFloat(report.YawDegrees() - b.lastReport.YawDegrees()).Float()
		b.heading += delta
		if dt := report.Time.Sub(b.lastReport.Time).Seconds(); dt > 0 {
			b.rate = delta / dt
		}
	} else {
		b.heading = report.YawDegrees()
		b.zero = b.heading
	}
	b.lastReport = report
	b.haveReport = true
	b.cond.Broadcast()
}
