package wlm

import "sync/atomic"

// DeviceAssigner hands out accelerator ids in round-robin order over
// [0, deviceCount). It never collapses to a hot device: placement is pure
// rotation regardless of current load, on the theory that per-model
// worker caps already bound the damage a hotspot can do and load-aware
// placement is deferred as a non-goal.
type DeviceAssigner struct {
	count  int64
	cursor atomic.Int64
}

// NewDeviceAssigner builds an assigner over deviceCount accelerators.
// deviceCount == 0 disables accelerator placement entirely; Next then
// always returns -1.
func NewDeviceAssigner(deviceCount int) *DeviceAssigner {
	return &DeviceAssigner{count: int64(deviceCount)}
}

// Enabled reports whether this assigner targets any accelerators at all.
func (d *DeviceAssigner) Enabled() bool {
	return d.count > 0
}

// Next returns the next device id in rotation, or -1 if disabled.
// Thread-safe.
func (d *DeviceAssigner) Next() int {
	if d.count <= 0 {
		return -1
	}
	n := d.cursor.Add(1) - 1
	return int(n % d.count)
}
