package cmd

import (
	"log"

	"github.com/kartoza/kartoza-camera-rig/internal/config"
	"github.com/kartoza/kartoza-camera-rig/internal/grabber"
	"github.com/kartoza/kartoza-camera-rig/internal/meter"
	"github.com/kartoza/kartoza-camera-rig/internal/notify"
	"github.com/kartoza/kartoza-camera-rig/internal/panel"
	"github.com/kartoza/kartoza-camera-rig/internal/recorder"
	"github.com/kartoza/kartoza-camera-rig/internal/state"
	"github.com/kartoza/kartoza-camera-rig/internal/v4l2"
)

// rig bundles the running capture stack shared by the viewfinder and the
// headless panel loop.
type rig struct {
	st      *state.State
	pn      *panel.Panel
	arb     *recorder.Arbiter
	src     *grabber.Source
	meter   *meter.Meter
	cfgPath string
}

// setupRig loads settings, pushes them to the camera and starts the
// preview and audio meter.
func setupRig() (*rig, error) {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	settings, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("[RIG] settings: %v", err)
	}

	st := state.New()
	st.ApplySettings(settings)
	if deviceFlag != "" {
		st.SetDevice(deviceFlag)
	}
	if outputDir != "" {
		st.SetOutputDir(outputDir)
	}

	if r, ok := v4l2.DetectFocusRange(st.Device()); ok {
		st.SetFocusRange(r.Min, r.Max)
	}
	v4l2.ApplySettings(st)

	if dev := meter.DetectDevice(); dev != "" {
		st.SetAudioDevice(dev)
	} else {
		log.Printf("[AUDIO] no capture device found, recording video only")
	}

	src := grabber.New(st.Device())
	src.Start()

	m := meter.New(st)
	if err := m.Start(); err != nil {
		log.Printf("[AUDIO] meter: %v", err)
	}

	pn := panel.New(st, func() { v4l2.ApplySettings(st) })
	arb := recorder.New(st, src, nil, notify.Desktop{})

	return &rig{st: st, pn: pn, arb: arb, src: src, meter: m, cfgPath: cfgPath}, nil
}

// shutdown stops any active recording, tears the pipelines down and
// persists the settings.
func (r *rig) shutdown() {
	if err := r.arb.Stop(); err != nil {
		log.Printf("[RIG] stop recording: %v", err)
	}
	r.meter.Stop()
	r.src.Stop()
	if err := config.Save(r.cfgPath, r.st.Settings()); err != nil {
		log.Printf("[RIG] save settings: %v", err)
	}
}
