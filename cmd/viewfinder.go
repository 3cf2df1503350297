package cmd

import "github.com/kartoza/kartoza-camera-rig/internal/tui"

func runViewfinder() error {
	r, err := setupRig()
	if err != nil {
		return err
	}
	defer r.shutdown()
	return tui.Run(r.st, r.pn, r.arb, r.src)
}
