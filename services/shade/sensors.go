package shade

import (
	"time"

	"thingcode-go/drivers/aht20"
	"thingcode-go/drivers/ina219"
	"thingcode-go/drivers/lm75"
	"thingcode-go/x/timex"
)

// currentSensor adapts the INA219 to the motion loop and to condition
// sampling; both see Start/Stop as a powered session.
type currentSensor struct {
	d   *ina219.Device
	cfg ina219.Config
}

func (c *currentSensor) Start() error              { return c.d.Start(c.cfg) }
func (c *currentSensor) Stop() error               { return c.d.Stop() }
func (c *currentSensor) CurrentMA() (int32, error) { return c.d.CurrentMA() }
func (c *currentSensor) Begin() error              { return c.Start() }
func (c *currentSensor) End() error                { return c.Stop() }

func (c *currentSensor) busMV() (float64, error) {
	v, err := c.d.BusMV()
	return float64(v), err
}

func (c *currentSensor) currentMA() (float64, error) {
	v, err := c.d.CurrentMA()
	return float64(v), err
}

// conversionTime is one LM75 conversion after waking.
const conversionTime = 100 * time.Millisecond

// thermometer wakes the LM75 for a batch and shuts it down afterwards.
type thermometer struct {
	d     *lm75.Device
	clock timex.Clock
}

func (t *thermometer) Begin() error {
	if err := t.d.Wake(); err != nil {
		return err
	}
	t.clock.Sleep(conversionTime)
	return nil
}

func (t *thermometer) End() error { return t.d.Shutdown() }

func (t *thermometer) celsius() (float64, error) {
	c, err := t.d.Celsius()
	return float64(c), err
}

// hygrometer takes one AHT20 measurement per batch.
type hygrometer struct {
	d    *aht20.Device
	last aht20.Sample
}

func (h *hygrometer) Begin() error {
	s, err := h.d.Measure()
	if err != nil {
		return err
	}
	h.last = s
	return nil
}

func (h *hygrometer) End() error { return nil }

func (h *hygrometer) relative() (float64, error) { return h.last.RelHumidity(), nil }
