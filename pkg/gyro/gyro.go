// Package gyro integrates the yaw rate from an MPU-6000/9250 family gyro into a heading.
// The chip is reached over SPI (periph) or I2C (x/exp/io/i2c).
package gyro

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/swervebot/pkg/log"
)

const (
	DefaultAddr = 0x68

	RegSampleRateDiv = 25
	RegConfig        = 26
	RegGyroConf      = 27
	RegGyroYOffset   = 21
	RegFIFOEnable    = 35
	RegGyroY         = 69 // 16 bits
	RegUserCtl       = 106
	RegFIFOCount     = 114 // 16 bits
	RegFIFORW        = 116 // n-bytes

	GyroRange = 2 // 1000 dps

	// 1kHz DLPF output divided by (1 + SampleRateDiv).
	sampleRateDiv  = 9
	SampleInterval = time.Millisecond * (1 + sampleRateDiv)

	calibrationSamples = 1000
)

// Port is a register-level connection to the chip.
type Port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
}

// Gyro integrates yaw rate samples from the chip's FIFO.  Heading and Rate are safe to
// call while LoopReadingFIFO runs.
type Gyro struct {
	dev        Port
	disableI2C bool
	log        log.Logger

	lock    sync.Mutex
	heading float64
	rate    float64
}

func New(dev Port, disableI2C bool, l log.Logger) *Gyro {
	return &Gyro{dev: &lockedPort{port: dev}, disableI2C: disableI2C, log: l}
}

// lockedPort serialises register access; Calibrate may run while the FIFO loop polls.
type lockedPort struct {
	lock sync.Mutex
	port Port
}

func (p *lockedPort) ReadReg(reg byte, buf []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.port.ReadReg(reg, buf)
}

func (p *lockedPort) WriteReg(reg byte, buf []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.port.WriteReg(reg, buf)
}

func NewI2C(deviceFile string, addr int, l log.Logger) (*Gyro, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", deviceFile)
	}
	return New(dev, false, l), nil
}

func NewSPI(deviceFile string, l log.Logger) (*Gyro, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph")
	}
	p, err := spireg.Open(deviceFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", deviceFile)
	}
	c, err := p.Connect(physic.KiloHertz*1000, spi.Mode3, 8)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SPI port")
	}
	return New(&SPIAdapter{c: c}, true, l), nil
}

// SPIAdapter does register reads and writes over a raw SPI connection.
type SPIAdapter struct {
	c spi.Conn

	r, w []byte
}

const (
	W = 0x00
	R = 0x80
)

func (s *SPIAdapter) ReadReg(reg byte, buf []byte) error {
	// Whole transaction is the address byte plus the data.
	bufLen := 1 + len(buf)
	s.ensureBuf(bufLen)
	s.w[0] = R | reg
	if err := s.c.Tx(s.w[:bufLen], s.r[:bufLen]); err != nil {
		return err
	}
	// First byte comes back while the address is going out.
	copy(buf, s.r[1:bufLen])
	return nil
}

func (s *SPIAdapter) WriteReg(reg byte, buf []byte) error {
	bufLen := 1 + len(buf)
	s.ensureBuf(bufLen)
	s.w[0] = W | reg
	copy(s.w[1:], buf)
	return s.c.Tx(s.w[:bufLen], s.r[:bufLen])
}

func (s *SPIAdapter) ensureBuf(l int) {
	if len(s.r) < l {
		s.w = make([]byte, l)
		s.r = make([]byte, l)
		return
	}
	for i := 0; i < l; i++ {
		s.w[i] = 0
		s.r[i] = 0
	}
}

type regWrite struct {
	reg, val byte
}

func (g *Gyro) Configure() error {
	var writes []regWrite
	if g.disableI2C {
		writes = append(writes, regWrite{RegUserCtl, 0x10})
	}
	writes = append(writes,
		regWrite{RegGyroConf, GyroRange << 3},
		regWrite{RegConfig, 1}, // DLPF, Fs=1kHz
		regWrite{RegSampleRateDiv, sampleRateDiv},
		regWrite{RegFIFOEnable, 1 << 5}, // yaw axis only
	)
	for _, w := range writes {
		if err := g.dev.WriteReg(w.reg, []byte{w.val}); err != nil {
			return errors.Wrapf(err, "failed to write register %d", w.reg)
		}
	}
	return nil
}

func DegreesPerLSB() float64 {
	return 1000.0 / math.MaxInt16
}

// Calibrate measures the bias of the stationary gyro and loads it into the chip's
// offset register.  The vehicle must not move while it runs.
func (g *Gyro) Calibrate() error {
	g.log.Infof("Calibrating gyro")
	if err := g.dev.WriteReg(RegGyroYOffset, []byte{0, 0}); err != nil {
		return errors.Wrap(err, "failed to clear gyro offset")
	}
	for i := 0; i < 100; i++ {
		if _, err := g.ReadYawRate(); err != nil {
			return err
		}
	}
	var sum float64
	for i := 0; i < calibrationSamples; i++ {
		x, err := g.ReadYawRate()
		if err != nil {
			return err
		}
		sum -= float64(x)
	}
	offset := sum / calibrationSamples
	// The offset register is in +/-1000dps units at 4x resolution.
	scaled := int16(math.Round(offset / 4 * math.Pow(2, GyroRange)))
	g.log.Infof("Gyro offset %.2f LSB, writing %d", offset, scaled)
	if err := g.dev.WriteReg(RegGyroYOffset, []byte{byte(scaled >> 8), byte(scaled)}); err != nil {
		return errors.Wrap(err, "failed to write gyro offset")
	}
	g.ResetFIFO()
	return nil
}

func (g *Gyro) ReadYawRate() (int16, error) {
	return g.read16(RegGyroY)
}

func (g *Gyro) ResetFIFO() {
	if err := g.dev.WriteReg(RegUserCtl, []byte{1<<6 | 1<<2}); err != nil {
		g.log.Warnf("Failed to reset gyro FIFO: %v", err)
	}
}

// ReadFIFO returns whatever samples are queued; possibly none.
func (g *Gyro) ReadFIFO() ([]int16, error) {
	count, err := g.read16(RegFIFOCount)
	if err != nil {
		return nil, err
	}
	var buf [512]byte
	n := int(count) & 0xfff
	if n > len(buf) {
		// Overflowed; the data is useless.
		g.ResetFIFO()
		return nil, errors.Errorf("gyro FIFO overflow (%d bytes)", n)
	}
	n &^= 1
	if n == 0 {
		return nil, nil
	}
	if err := g.dev.ReadReg(RegFIFORW, buf[:n]); err != nil {
		return nil, errors.Wrap(err, "failed to read gyro FIFO")
	}
	result := make([]int16, n/2)
	for i := range result {
		result[i] = int16(buf[i*2])<<8 | int16(buf[i*2+1])
	}
	return result, nil
}

func (g *Gyro) read16(reg byte) (int16, error) {
	var buf [2]byte
	if err := g.dev.ReadReg(reg, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "failed to read register %d", reg)
	}
	return int16(buf[0])<<8 | int16(buf[1]), nil
}

// Poll drains the FIFO and integrates the samples into the heading.
func (g *Gyro) Poll() error {
	samples, err := g.ReadFIFO()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	var total float64
	for _, s := range samples {
		total += float64(s) * DegreesPerLSB()
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	g.heading += total * SampleInterval.Seconds()
	g.rate = total / float64(len(samples))
	return nil
}

// LoopReadingFIFO polls the FIFO every few samples until ctx is done.  Errors are
// logged and the last heading is kept.
func (g *Gyro) LoopReadingFIFO(ctx context.Context, c clock.Clock) {
	ticker := c.Ticker(4 * SampleInterval)
	defer ticker.Stop()
	g.ResetFIFO()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Poll(); err != nil {
				g.log.Warnf("Gyro poll failed: %v", err)
			}
		}
	}
}

func (g *Gyro) Heading() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.heading
}

func (g *Gyro) Rate() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.rate
}

func (g *Gyro) Reset() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.heading = 0
}
