// Package config defines the settings of the door-guard daemon and its
// operator client and provides helpers to load, validate and save them in
// YAML format.
//
// Validate fills defaults for everything optional: the alarm policy
// intervals, the GPIO layout of the two doors, the MQTT topic and the
// command service address.
package config
