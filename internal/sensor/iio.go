package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"capteur/internal/models"
)

// Files exposed by the Linux dht11 IIO driver (also handles DHT22/AM2301).
const (
	iioTempFile     = "in_temp_input"             // millidegrees Celsius
	iioHumidityFile = "in_humidityrelative_input" // milli-percent
)

// IIO reads an AM2301 through the kernel IIO sysfs interface,
// e.g. /sys/bus/iio/devices/iio:device0.
type IIO struct {
	Dir string
}

// NewIIO returns a sensor bound to the given IIO device directory.
func NewIIO(dir string) *IIO {
	return &IIO{Dir: dir}
}

// Read fetches both channels. The driver performs the bus transaction on each
// file read and reports ETIMEDOUT or EIO when it fails.
func (s *IIO) Read(ctx context.Context) (models.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return models.Measurement{}, err
	}
	milliC, err := s.readChannel(iioTempFile)
	if err != nil {
		return models.Measurement{}, err
	}
	milliRH, err := s.readChannel(iioHumidityFile)
	if err != nil {
		return models.Measurement{}, err
	}
	return models.Measurement{
		Temperature: float64(milliC) / 1000,
		Humidity:    float64(milliRH) / 1000,
	}, nil
}

func (s *IIO) readChannel(name string) (int64, error) {
	raw, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return 0, classifyIIOError(name, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrProtocol, name, strings.TrimSpace(string(raw)))
	}
	return v, nil
}

func classifyIIOError(name string, err error) error {
	switch {
	case errors.Is(err, syscall.ETIMEDOUT):
		return fmt.Errorf("%w: %s", ErrTimeout, name)
	case errors.Is(err, syscall.EIO):
		return fmt.Errorf("%w: %s", ErrChecksum, name)
	default:
		return fmt.Errorf("%w: %s: %v", ErrProtocol, name, err)
	}
}
