// Package hardware is the GPIO boundary of the alarm.
//
// Board reads the two door sensors and drives the siren relay. The gpiocdev
// driver talks to the Linux GPIO character device; MemoryBoard backs the
// simulated driver and the tests. Open wraps every board with a timeout.
package hardware
