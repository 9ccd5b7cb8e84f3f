package led

import (
	"fmt"
	"math"
	"sync"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/grant-carpenter/go-ads"
)

const (
	// full scale reading of the ADS1115 in single ended mode
	fullScale = 32767.0
	// default strap address of the ADS1115
	sensorAddress = 0x48

	sensorPollRate = 250 * time.Millisecond

	// minBrightness keeps the LED visible in a dark room
	minBrightness = 0.1
)

// sample records the current sensor readings
type sample struct {
	sum   float64
	count int
}

// result returns the averaged reading since the last read
func (s *sample) result() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum / float64(s.count), true
}

// Sensor reads ambient light from a photoresistor behind an ADS1115
// and converts it to a brightness level for the LED.
type Sensor struct {
	sync.Mutex
	currentSample *sample
	last          float64
	ads           *ads.ADS
	stopSignal    chan bool
	pollRate      time.Duration
}

// NewSensor returns a Sensor reading from the named I2C bus
func NewSensor(bus string) (*Sensor, error) {
	s := &Sensor{
		currentSample: &sample{},
		last:          1,
		stopSignal:    make(chan bool),
		pollRate:      sensorPollRate,
	}

	// initialise the ADS
	if err := ads.HostInit(); err != nil {
		return nil, fmt.Errorf("failed to initialise ADS host: %w", err)
	}

	var err error
	s.ads, err = ads.NewADS(bus, sensorAddress, "")
	if err != nil {
		return nil, fmt.Errorf("failed to open ADS on %s: %w", bus, err)
	}

	s.ads.SetConfigGain(ads.ConfigGain2_3)

	return s, nil
}

// Start starts the sensor polling loop
func (s *Sensor) Start() {
	ticker := time.NewTicker(s.pollRate)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sample()
			case <-s.stopSignal:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the sensor reading the ADS
func (s *Sensor) Stop() {
	s.stopSignal <- true
	s.ads.Close()
}

// sample reads the ADS value and adds it to the sample data
func (s *Sensor) sample() {
	// read retry from ads chip
	reading, err := s.ads.ReadRetry(5)
	if err != nil {
		chlog.Warn("failed to read light sensor", "error", err)
		return
	}

	normalized := math.Min(float64(reading)/fullScale, 1)
	if normalized < 0 {
		normalized = 0
	}

	s.Lock()
	defer s.Unlock()
	s.currentSample.sum += normalized
	s.currentSample.count++
}

// Brightness returns the averaged ambient level since the last call,
// floored so the LED never goes fully dark. The previous level is
// returned when no samples arrived in the window.
func (s *Sensor) Brightness() float64 {
	s.Lock()
	defer s.Unlock()

	level, ok := s.currentSample.result()
	s.currentSample = &sample{}
	if ok {
		s.last = level
	}
	if s.last < minBrightness {
		return minBrightness
	}
	return s.last
}
