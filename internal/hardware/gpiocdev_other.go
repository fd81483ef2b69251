//go:build !linux

package hardware

import "github.com/tankwatch/tank-guard/internal/config"

func openGPIO(*config.Config) (Board, error) {
	return nil, ErrUnsupported
}
