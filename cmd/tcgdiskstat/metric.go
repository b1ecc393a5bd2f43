// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/discovery"
)

type metricCollector struct {
	m []prometheus.Metric
}

func (mc *metricCollector) Collect(c chan<- prometheus.Metric) {
	for _, m := range mc.m {
		c <- m
	}
}

func (mc *metricCollector) Describe(c chan<- *prometheus.Desc) {
}

// outputMetrics renders the scanned device state as Prometheus gauges in
// OpenMetrics text exposition format, for scraping by fleet provisioning
// tooling that wants to alert on pre-boot-unlock-capable hardware drifting
// out of its expected locked/enabled state.
func outputMetrics(state Devices) {
	var (
		mDriveInfo = prometheus.NewDesc(
			"tcg_storage_drive_info",
			"Info metric regarding the detected drives",
			[]string{"device", "model", "serial", "firmware", "protocol"}, nil,
		)
		mTCGSupported = prometheus.NewDesc(
			"tcg_storage_supported",
			"Boolean describing whether a drive supports any TCG storage standards",
			[]string{"device"}, nil,
		)
		mSSCSupported = prometheus.NewDesc(
			"tcg_storage_ssc_supported",
			"Boolean describing whether a particular SSC is supported by the drive or not",
			[]string{"device", "ssc"}, nil,
		)
		mLockingEnabled = prometheus.NewDesc(
			"tcg_storage_locking_enabled",
			"Boolean describing whether the drive is reporting range locking has been enabled",
			[]string{"device"}, nil,
		)
		mLocked = prometheus.NewDesc(
			"tcg_storage_locked",
			"Boolean describing whether this module would currently treat the drive as locked and requiring a password",
			[]string{"device"}, nil,
		)
	)
	mc := &metricCollector{}
	for _, s := range state {
		model, serial, firmware, proto := "-", "-", "-", "-"
		if s.Identity != nil {
			model, serial, firmware, proto = s.Identity.Model, s.Identity.SerialNumber, s.Identity.Firmware, s.Identity.Protocol
		}
		mc.m = append(mc.m,
			prometheus.MustNewConstMetric(mDriveInfo, prometheus.GaugeValue, 1,
				s.Device, model, serial, firmware, proto))
		sup := float64(0)
		if s.Level0 != nil {
			sup = 1
		}
		mc.m = append(mc.m, prometheus.MustNewConstMetric(mTCGSupported, prometheus.GaugeValue, sup, s.Device))

		// This is how far we can make it without a successful Level0 discovery
		if s.Level0 == nil {
			continue
		}

		for _, ssc := range sscFeatures(s.Level0) {
			mc.m = append(mc.m,
				prometheus.MustNewConstMetric(mSSCSupported, prometheus.GaugeValue, 1,
					s.Device, ssc))
		}

		lockEn := float64(0)
		if l := s.Level0.Locking; l != nil && l.Has(discovery.LockingEnabled) {
			lockEn = 1
		}
		mc.m = append(mc.m, prometheus.MustNewConstMetric(mLockingEnabled, prometheus.GaugeValue, lockEn, s.Device))

		locked := float64(0)
		if s.Level0.IsLocked() {
			locked = 1
		}
		mc.m = append(mc.m, prometheus.MustNewConstMetric(mLocked, prometheus.GaugeValue, locked, s.Device))
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(mc)

	mfs, err := reg.Gather()
	if err != nil {
		log.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			log.Fatalf("Failed to serialize metrics: %v", err)
		}
	}
}
